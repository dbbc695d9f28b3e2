// Package wix wraps the WiX toolset (heat, candle, light) to turn a
// directory of bundled application files into an MSI. It does not
// implement any installer semantics itself; it only sequences the
// external tools.
package wix

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/promptflow/releasekit/pkg/contexts/ctxlog"
)

type wixTool struct {
	wixPath        string   // Where is wix installed
	packageRoot    string   // The bundled application files to harvest
	buildDir       string   // The wix tools want to work in a build dir
	msArch         string   // Microsoft architecture name
	skipValidation bool     // Skip light validation. Needed under wine.
	cleanDirs      []string // directories to rm on cleanup

	execCC func(context.Context, string, ...string) *exec.Cmd // Allows test overrides
}

type Option func(*wixTool)

func As64bit() Option {
	return func(wo *wixTool) {
		wo.msArch = "x64"
	}
}

func As32bit() Option {
	return func(wo *wixTool) {
		wo.msArch = "x86"
	}
}

// SkipValidation skips light's ICE validation. Virtualized build
// environments commonly fail it with LGHT0216.
func SkipValidation() Option {
	return func(wo *wixTool) {
		wo.skipValidation = true
	}
}

func WithWix(path string) Option {
	return func(wo *wixTool) {
		wo.wixPath = path
	}
}

func WithBuildDir(path string) Option {
	return func(wo *wixTool) {
		wo.buildDir = path
	}
}

// New takes the packageRoot of bundled files and the rendered product
// wxs content, and returns a struct suitable for building MSIs with.
func New(packageRoot string, productWxsContent []byte, opts ...Option) (*wixTool, error) {
	wo := &wixTool{
		wixPath:     `C:\wix311`,
		packageRoot: packageRoot,

		execCC: exec.CommandContext,
	}

	for _, opt := range opts {
		opt(wo)
	}

	var err error
	if wo.buildDir == "" {
		wo.buildDir, err = ioutil.TempDir("", "wix-build-dir")
		if err != nil {
			return nil, errors.Wrap(err, "making temp wix-build-dir")
		}
		wo.cleanDirs = append(wo.cleanDirs, wo.buildDir)
	}

	if wo.msArch == "" {
		switch runtime.GOARCH {
		case "386":
			wo.msArch = "x86"
		case "amd64":
			wo.msArch = "x64"
		default:
			return nil, errors.Errorf("unknown arch for windows %s", runtime.GOARCH)
		}
	}

	productWxsPath := filepath.Join(wo.buildDir, "Product.wxs")

	if err := ioutil.WriteFile(
		productWxsPath,
		productWxsContent,
		0644); err != nil {
		return nil, errors.Wrapf(err, "writing %s", productWxsPath)
	}

	return wo, nil
}

// Cleanup removes temp directories. Meant to be called in a defer.
func (wo *wixTool) Cleanup() {
	for _, d := range wo.cleanDirs {
		os.RemoveAll(d)
	}
}

// Deps checks that the wix tools are present. The three lookups are
// independent, so they run concurrently.
func (wo *wixTool) Deps(ctx context.Context) error {
	var g errgroup.Group

	for _, tool := range []string{"heat.exe", "candle.exe", "light.exe"} {
		tool := tool
		g.Go(func() error {
			toolPath := filepath.Join(wo.wixPath, tool)
			if _, err := os.Stat(toolPath); err != nil {
				return errors.Wrapf(err, "looking for %s", toolPath)
			}
			return nil
		})
	}

	return g.Wait()
}

// Package runs through the wix steps to produce a resulting MSI. The
// MSI is written into the provided io.Writer, facilitating export to a
// file, buffer, or other storage backends.
func (wo *wixTool) Package(ctx context.Context, pkgOutput io.Writer) error {
	if err := wo.heat(ctx); err != nil {
		return errors.Wrap(err, "running heat")
	}

	if err := wo.candle(ctx); err != nil {
		return errors.Wrap(err, "running candle")
	}

	if err := wo.light(ctx); err != nil {
		return errors.Wrap(err, "running light")
	}

	msiFH, err := os.Open(filepath.Join(wo.buildDir, "out.msi"))
	if err != nil {
		return errors.Wrap(err, "opening msi output file")
	}
	defer msiFH.Close()

	if _, err := io.Copy(pkgOutput, msiFH); err != nil {
		return errors.Wrap(err, "copying output")
	}

	return nil
}

// heat invokes wix's heat command. This examines the dist directory
// and "harvests" the files into an xml structure. See
// http://wixtoolset.org/documentation/manual/v3/overview/heat.html
func (wo *wixTool) heat(ctx context.Context) error {
	_, err := wo.execOut(ctx,
		filepath.Join(wo.wixPath, "heat.exe"),
		"dir", wo.packageRoot,
		"-nologo",
		"-gg", "-g1",
		"-srd",
		"-sfrag",
		"-ke",
		"-cg", "AppFiles",
		"-template", "fragment",
		"-dr", "APPDIR",
		"-var", "var.SourceDir",
		"-out", "AppFiles.wxs",
	)
	return err
}

// candle invokes wix's candle command, the compiler that turns WiX
// source files into object files (.wixobj).
func (wo *wixTool) candle(ctx context.Context) error {
	_, err := wo.execOut(ctx,
		filepath.Join(wo.wixPath, "candle.exe"),
		"-nologo",
		"-arch", wo.msArch,
		"-dSourceDir="+wo.packageRoot,
		"Product.wxs",
		"AppFiles.wxs",
	)
	return err
}

// light invokes wix's light command. This links the .wixobj files into
// a Windows Installer database (.msi).
func (wo *wixTool) light(ctx context.Context) error {
	args := []string{
		"-nologo",
		"-dcl:high", // compression level
		"-dSourceDir=" + wo.packageRoot,
		"AppFiles.wixobj",
		"Product.wixobj",
		"-out", "out.msi",
	}

	if wo.skipValidation {
		args = append(args, "-sval")
	}

	_, err := wo.execOut(ctx,
		filepath.Join(wo.wixPath, "light.exe"),
		args...,
	)
	return err
}

func (wo *wixTool) execOut(ctx context.Context, argv0 string, args ...string) (string, error) {
	logger := ctxlog.FromContext(ctx)

	cmd := wo.execCC(ctx, argv0, args...)

	level.Debug(logger).Log(
		"msg", "execing",
		"cmd", strings.Join(cmd.Args, " "),
	)

	cmd.Dir = wo.buildDir
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	cmd.Stdout, cmd.Stderr = stdout, stderr
	if err := cmd.Run(); err != nil {
		return "", errors.Wrapf(err, "run command %s %v\nstdout=%s\nstderr=%s", argv0, args, stdout, stderr)
	}
	return strings.TrimSpace(stdout.String()), nil
}
