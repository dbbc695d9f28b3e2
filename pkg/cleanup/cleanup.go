// Package cleanup submits cleanup jobs against remote test
// workspaces. Each workspace gets a connection file materialized from
// its secret, and then the external cleanup command runs once per
// workspace, strictly sequentially. There is no retry and no partial
// failure handling: the first non-zero exit fails the run.
package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/go-kit/kit/log/level"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"github.com/promptflow/releasekit/pkg/contexts/ctxlog"
)

// Connection files hold credentials, so owner-only.
const connectionPerms = 0600

// Workspace describes one remote workspace eligible for cleanup.
// Workspace definitions live in a yaml file; the json tags are what
// ghodss/yaml keys off, and also the shape of the materialized
// connection file.
type Workspace struct {
	Name           string `json:"name"`
	SubscriptionID string `json:"subscription_id"`
	ResourceGroup  string `json:"resource_group"`

	// ConnectionEnv names the environment variable whose value is
	// the JSON credential blob for this workspace. Secrets reach the
	// job through the environment, never through the yaml file.
	ConnectionEnv string `json:"connection_env"`
}

// LoadWorkspaces reads workspace definitions from a yaml file.
func LoadWorkspaces(path string) ([]Workspace, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading workspace file %s", path)
	}

	var workspaces []Workspace
	if err := yaml.Unmarshal(raw, &workspaces); err != nil {
		return nil, errors.Wrapf(err, "parsing workspace file %s", path)
	}

	if len(workspaces) == 0 {
		return nil, errors.Errorf("workspace file %s defines no workspaces", path)
	}

	for _, ws := range workspaces {
		if ws.Name == "" {
			return nil, errors.Errorf("workspace file %s has a workspace with no name", path)
		}
	}

	return workspaces, nil
}

// connectionFile is the JSON document the cleanup command reads.
type connectionFile struct {
	Name           string          `json:"name"`
	SubscriptionID string          `json:"subscription_id"`
	ResourceGroup  string          `json:"resource_group"`
	Credentials    json.RawMessage `json:"credentials"`
}

// WriteConnectionFile materializes the workspace connection JSON into
// dir and returns its path.
func (w Workspace) WriteConnectionFile(dir string) (string, error) {
	secret := os.Getenv(w.ConnectionEnv)
	if secret == "" {
		return "", errors.Errorf("workspace %s: environment variable %s is empty", w.Name, w.ConnectionEnv)
	}

	if !json.Valid([]byte(secret)) {
		return "", errors.Errorf("workspace %s: %s does not hold valid JSON", w.Name, w.ConnectionEnv)
	}

	contents, err := json.Marshal(connectionFile{
		Name:           w.Name,
		SubscriptionID: w.SubscriptionID,
		ResourceGroup:  w.ResourceGroup,
		Credentials:    json.RawMessage(secret),
	})
	if err != nil {
		return "", errors.Wrapf(err, "marshalling connection for %s", w.Name)
	}

	path := filepath.Join(dir, fmt.Sprintf("connection-%s.json", w.Name))
	if err := os.WriteFile(path, contents, connectionPerms); err != nil {
		return "", errors.Wrapf(err, "writing %s", path)
	}

	return path, nil
}

// Submitter runs the external cleanup command once per workspace.
type Submitter struct {
	command []string // argv of the cleanup command
	workDir string   // where connection files land; a temp dir when empty

	execCC  func(context.Context, string, ...string) *exec.Cmd // Allows test overrides
	jobName func(workspace string) string                      // Allows test overrides
}

type Option func(*Submitter)

func WithWorkDir(dir string) Option {
	return func(s *Submitter) {
		s.workDir = dir
	}
}

func New(command []string, opts ...Option) (*Submitter, error) {
	if len(command) == 0 {
		return nil, errors.New("cleanup command is empty")
	}

	s := &Submitter{
		command: command,

		execCC:  exec.CommandContext,
		jobName: newJobName,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Run submits one cleanup job per workspace, in order. Connection
// files are removed before returning, whether or not submission
// succeeded.
func (s *Submitter) Run(ctx context.Context, workspaces []Workspace) error {
	ctx, span := trace.StartSpan(ctx, "cleanup.Run")
	defer span.End()

	logger := ctxlog.FromContext(ctx)

	workDir := s.workDir
	if workDir == "" {
		var err error
		workDir, err = os.MkdirTemp("", "workspace-cleanup")
		if err != nil {
			return errors.Wrap(err, "making connection file dir")
		}
		defer os.RemoveAll(workDir)
	}

	for _, ws := range workspaces {
		connectionPath, err := ws.WriteConnectionFile(workDir)
		if err != nil {
			return err
		}

		jobName := s.jobName(ws.Name)

		level.Info(logger).Log(
			"msg", "submitting cleanup job",
			"workspace", ws.Name,
			"job", jobName,
		)

		if err := s.submit(ctx, connectionPath, jobName); err != nil {
			os.Remove(connectionPath)
			return errors.Wrapf(err, "cleaning workspace %s", ws.Name)
		}

		os.Remove(connectionPath)
	}

	return nil
}

func (s *Submitter) submit(ctx context.Context, connectionPath, jobName string) error {
	args := append([]string{}, s.command[1:]...)
	args = append(args,
		"--connection", connectionPath,
		"--name", jobName,
	)

	cmd := s.execCC(ctx, s.command[0], args...)

	level.Debug(ctxlog.FromContext(ctx)).Log(
		"msg", "execing",
		"cmd", strings.Join(cmd.Args, " "),
	)

	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	cmd.Stdout, cmd.Stderr = stdout, stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "run command %s\nstdout=%s\nstderr=%s", s.command[0], stdout, stderr)
	}

	return nil
}

// newJobName returns a job name unique enough that reruns against the
// same workspace never collide.
func newJobName(workspace string) string {
	return fmt.Sprintf("cleanup-%s-%s", workspace, uuid.New().String()[:8])
}
