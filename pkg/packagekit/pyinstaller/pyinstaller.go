// Package pyinstaller wraps the PyInstaller tool. It bundles a python
// CLI and its interpreter into a one-directory dist tree that the wix
// package then harvests into an MSI. The actual bundling semantics
// belong to PyInstaller; this only sequences the invocation.
package pyinstaller

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/Masterminds/semver"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	"github.com/promptflow/releasekit/pkg/contexts/ctxlog"
)

// minVersionConstraint is the oldest PyInstaller known to produce a
// dist layout our wxs templates harvest correctly.
const minVersionConstraint = ">= 5.0.0"

type bundler struct {
	pyinstallerPath string // path to the pyinstaller binary
	specFile        string // the .spec file driving the bundle
	distPath        string // where the bundled tree lands
	workPath        string // pyinstaller scratch dir
	noConfirm       bool   // overwrite distPath without prompting

	execCC func(context.Context, string, ...string) *exec.Cmd // Allows test overrides
}

type Option func(*bundler)

func WithPyInstaller(path string) Option {
	return func(b *bundler) {
		b.pyinstallerPath = path
	}
}

func WithWorkPath(path string) Option {
	return func(b *bundler) {
		b.workPath = path
	}
}

func WithNoConfirm() Option {
	return func(b *bundler) {
		b.noConfirm = true
	}
}

func New(specFile, distPath string, opts ...Option) *bundler {
	b := &bundler{
		pyinstallerPath: "pyinstaller",
		specFile:        specFile,
		distPath:        distPath,

		execCC: exec.CommandContext,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// CheckVersion runs `pyinstaller --version` and verifies the result
// against minVersionConstraint.
func (b *bundler) CheckVersion(ctx context.Context) error {
	stdout, err := b.execOut(ctx, b.pyinstallerPath, "--version")
	if err != nil {
		return errors.Wrap(err, "running pyinstaller --version")
	}

	return versionCompatible(stdout)
}

// Bundle invokes pyinstaller against the spec file.
func (b *bundler) Bundle(ctx context.Context) error {
	args := []string{
		b.specFile,
		"--distpath", b.distPath,
	}
	if b.workPath != "" {
		args = append(args, "--workpath", b.workPath)
	}
	if b.noConfirm {
		args = append(args, "--noconfirm")
	}

	if _, err := b.execOut(ctx, b.pyinstallerPath, args...); err != nil {
		return errors.Wrap(err, "running pyinstaller")
	}

	return nil
}

func versionCompatible(rawVersion string) error {
	pyiVer, err := semver.NewVersion(strings.TrimSpace(rawVersion))
	if err != nil {
		return errors.Wrapf(err, "parse pyinstaller version %q as semver", rawVersion)
	}

	c, _ := semver.NewConstraint(minVersionConstraint)
	if !c.Check(pyiVer) {
		return errors.Errorf("build requires PyInstaller %s, have %s", minVersionConstraint, pyiVer)
	}
	return nil
}

func (b *bundler) execOut(ctx context.Context, argv0 string, args ...string) (string, error) {
	logger := ctxlog.FromContext(ctx)

	cmd := b.execCC(ctx, argv0, args...)

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
