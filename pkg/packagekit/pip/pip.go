// Package pip wraps pip for installing the target package into the
// build environment, either from a source checkout or as a pinned
// published version.
package pip

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	"github.com/promptflow/releasekit/pkg/contexts/ctxlog"
)

type installer struct {
	pipPath string

	execCC func(context.Context, string, ...string) *exec.Cmd // Allows test overrides
}

type Option func(*installer)

func WithPip(path string) Option {
	return func(i *installer) {
		i.pipPath = path
	}
}

func New(opts ...Option) *installer {
	i := &installer{
		pipPath: "pip",

		execCC: exec.CommandContext,
	}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

// InstallFromSource installs the package from a local checkout.
func (i *installer) InstallFromSource(ctx context.Context, path string) error {
	if _, err := i.execOut(ctx, i.pipPath, "install", path); err != nil {
		return errors.Wrapf(err, "installing from %s", path)
	}
	return nil
}

// InstallPinned installs an exact published version of the package.
func (i *installer) InstallPinned(ctx context.Context, pkg, pinnedVersion string) error {
	requirement := fmt.Sprintf("%s==%s", pkg, pinnedVersion)
	if _, err := i.execOut(ctx, i.pipPath, "install", requirement); err != nil {
		return errors.Wrapf(err, "installing %s", requirement)
	}
	return nil
}

func (i *installer) execOut(ctx context.Context, argv0 string, args ...string) (string, error) {
	logger := ctxlog.FromContext(ctx)

	cmd := i.execCC(ctx, argv0, args...)

	level.Debug(logger).Log(
		"msg", "execing",
		"cmd", strings.Join(cmd.Args, " "),
	)

	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	cmd.Stdout, cmd.Stderr = stdout, stderr
	if err := cmd.Run(); err != nil {
		return "", errors.Wrapf(err, "run command %s %v\nstdout=%s\nstderr=%s", argv0, args, stdout, stderr)
	}
	return strings.TrimSpace(stdout.String()), nil
}
