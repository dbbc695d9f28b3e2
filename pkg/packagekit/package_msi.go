package packagekit

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"github.com/promptflow/releasekit/pkg/contexts/ctxlog"
	"github.com/promptflow/releasekit/pkg/packagekit/pyinstaller"
	"github.com/promptflow/releasekit/pkg/packagekit/wix"
)

// PackageMSI runs the whole MSI pipeline: render the version
// resource, bundle with pyinstaller, render the product wxs, and hand
// the dist tree to wix. The finished MSI is written to w.
func PackageMSI(ctx context.Context, w io.Writer, po *PackageOptions) error {
	ctx, span := trace.StartSpan(ctx, "packagekit.PackageMSI")
	defer span.End()

	logger := ctxlog.FromContext(ctx)

	// The version resource has to exist before pyinstaller runs -- the
	// spec file references it.
	versionInfoPath := po.VersionInfoFile
	if versionInfoPath == "" {
		versionInfoPath = filepath.Join(filepath.Dir(po.SpecFile), "version_info.txt")
	}

	versionInfoFH, err := os.Create(versionInfoPath)
	if err != nil {
		return errors.Wrapf(err, "creating %s", versionInfoPath)
	}

	if err := RenderVersionInfo(ctx, versionInfoFH, po); err != nil {
		versionInfoFH.Close()
		return errors.Wrap(err, "rendering version info")
	}
	versionInfoFH.Close()

	level.Debug(logger).Log(
		"msg", "rendered version resource",
		"path", versionInfoPath,
		"version", po.Version.String(),
		"tuple", po.Version.Tuple(),
	)

	bundler := pyinstaller.New(po.SpecFile, po.DistRoot,
		pyinstallerOpts(po)...,
	)

	if err := bundler.CheckVersion(ctx); err != nil {
		return errors.Wrap(err, "checking pyinstaller")
	}

	if err := bundler.Bundle(ctx); err != nil {
		return errors.Wrap(err, "bundling")
	}

	if err := isDirectory(po.DistRoot); err != nil {
		return err
	}

	productWXS := new(bytes.Buffer)
	if err := RenderProduct(ctx, productWXS, po); err != nil {
		return errors.Wrap(err, "rendering product wxs")
	}

	wixTool, err := wix.New(po.DistRoot, productWXS.Bytes(), wixOpts(po)...)
	if err != nil {
		return errors.Wrap(err, "making wixTool")
	}
	if !po.WixSkipCleanup {
		defer wixTool.Cleanup()
	}

	if err := wixTool.Deps(ctx); err != nil {
		return errors.Wrap(err, "checking wix toolset")
	}

	if err := wixTool.Package(ctx, w); err != nil {
		return errors.Wrap(err, "packaging")
	}

	return nil
}

func pyinstallerOpts(po *PackageOptions) []pyinstaller.Option {
	opts := []pyinstaller.Option{
		pyinstaller.WithNoConfirm(),
	}

	if po.PyInstallerPath != "" {
		opts = append(opts, pyinstaller.WithPyInstaller(po.PyInstallerPath))
	}
	if po.WorkDir != "" {
		opts = append(opts, pyinstaller.WithWorkPath(po.WorkDir))
	}

	return opts
}

func wixOpts(po *PackageOptions) []wix.Option {
	var opts []wix.Option

	if po.WixPath != "" {
		opts = append(opts, wix.WithWix(po.WixPath))
	}
	if po.SkipValidation {
		opts = append(opts, wix.SkipValidation())
	}

	return opts
}
