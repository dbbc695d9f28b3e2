package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/peterbourgon/ff/v3"
	"github.com/pkg/errors"

	"github.com/promptflow/releasekit/pkg/blob"
	"github.com/promptflow/releasekit/pkg/buildinfo"
	"github.com/promptflow/releasekit/pkg/contexts/ctxlog"
	"github.com/promptflow/releasekit/pkg/packagekit"
	"github.com/promptflow/releasekit/pkg/packagekit/pip"
	"github.com/promptflow/releasekit/pkg/version"
)

func runVersion(args []string) error {
	buildinfo.PrintFull()
	return nil
}

func runMake(args []string) error {
	flagset := flag.NewFlagSet("make", flag.ExitOnError)
	var (
		flDebug = flagset.Bool(
			"debug",
			false,
			"enable debug logging",
		)
		flVersion = flagset.String(
			"version",
			"",
			"package version; derived from the build timestamp when empty",
		)
		flName = flagset.String(
			"name",
			"promptflow",
			"product name",
		)
		flIdentifier = flagset.String(
			"identifier",
			"com.microsoft.promptflow",
			"stable product identifier, used for MSI GUID generation",
		)
		flPublisher = flagset.String(
			"publisher",
			"Microsoft",
			"publisher shown in Add/Remove Programs",
		)
		flDescription = flagset.String(
			"description",
			"Prompt flow CLI",
			"product description",
		)
		flSpecFile = flagset.String(
			"spec",
			"promptflow.spec",
			"the pyinstaller spec file",
		)
		flDistRoot = flagset.String(
			"dist",
			filepath.Join("dist", "promptflow"),
			"pyinstaller dist directory; harvested into the MSI",
		)
		flWorkDir = flagset.String(
			"work",
			"",
			"pyinstaller scratch directory",
		)
		flVersionInfo = flagset.String(
			"version_info",
			"",
			"where the rendered version resource lands (default: version_info.txt next to the spec)",
		)
		flVersionInfoTemplate = flagset.String(
			"version_info_template",
			"",
			"on-disk version resource template; embedded default when empty",
		)
		flProductTemplate = flagset.String(
			"product_template",
			"",
			"on-disk WiX product template; embedded default when empty",
		)
		flPatch = flagset.String(
			"patch",
			"",
			"comma separated project files to patch version placeholders into",
		)
		flPyInstaller = flagset.String(
			"pyinstaller_path",
			"",
			"path to the pyinstaller binary",
		)
		flWixPath = flagset.String(
			"wix_path",
			"",
			`path to the wix toolset (default C:\wix311)`,
		)
		flSkipValidation = flagset.Bool(
			"skip_validation",
			false,
			"skip light's ICE validation; needed under wine",
		)
		flOutputDir = flagset.String(
			"output_dir",
			".",
			"directory the built MSI lands in",
		)
		flInstallFrom = flagset.String(
			"install_from",
			"",
			"install the target package from this source checkout before building",
		)
		flPinnedVersion = flagset.String(
			"pinned_version",
			"",
			"install this published version of the target package before building",
		)
		flPipPath = flagset.String(
			"pip_path",
			"",
			"path to the pip binary",
		)
	)

	flagset.Usage = usageFor(flagset, "msi-builder make [flags]")
	if err := ff.Parse(flagset, args, ffOpts()...); err != nil {
		return err
	}

	logger := newLogger(*flDebug)
	ctx := ctxlog.NewContext(context.Background(), logger)

	if *flInstallFrom != "" && *flPinnedVersion != "" {
		return errors.New("install_from and pinned_version are mutually exclusive")
	}

	var pipOpts []pip.Option
	if *flPipPath != "" {
		pipOpts = append(pipOpts, pip.WithPip(*flPipPath))
	}

	switch {
	case *flInstallFrom != "":
		if err := pip.New(pipOpts...).InstallFromSource(ctx, *flInstallFrom); err != nil {
			return errors.Wrap(err, "installing target package")
		}
	case *flPinnedVersion != "":
		if err := pip.New(pipOpts...).InstallPinned(ctx, *flName, *flPinnedVersion); err != nil {
			return errors.Wrap(err, "installing target package")
		}
	}

	v := version.Resolve(*flVersion, time.Now())

	po := &packagekit.PackageOptions{
		Name:        *flName,
		Identifier:  *flIdentifier,
		Publisher:   *flPublisher,
		Description: *flDescription,

		Version: v,

		SpecFile:        *flSpecFile,
		DistRoot:        *flDistRoot,
		WorkDir:         *flWorkDir,
		VersionInfoFile: *flVersionInfo,

		VersionInfoTemplate: *flVersionInfoTemplate,
		ProductTemplate:     *flProductTemplate,

		PyInstallerPath: *flPyInstaller,
		WixPath:         *flWixPath,
		SkipValidation:  *flSkipValidation,
	}

	if patches := strings.Split(*flPatch, ","); len(patches) != 0 && patches[0] != "" {
		for _, path := range patches {
			if err := packagekit.PatchFile(ctx, path, po); err != nil {
				return errors.Wrapf(err, "patching %s", path)
			}
			level.Debug(logger).Log("msg", "patched project file", "path", path)
		}
	}

	msiPath := filepath.Join(*flOutputDir, fmt.Sprintf("%s-%s.msi", *flName, v.String()))

	msiFH, err := os.Create(msiPath)
	if err != nil {
		return errors.Wrapf(err, "creating %s", msiPath)
	}
	defer msiFH.Close()

	if err := packagekit.PackageMSI(ctx, msiFH, po); err != nil {
		os.Remove(msiPath)
		return errors.Wrap(err, "could not generate msi")
	}

	level.Info(logger).Log(
		"msg", "created msi",
		"path", msiPath,
		"version", v.String(),
	)

	return nil
}

func runPublish(args []string) error {
	flagset := flag.NewFlagSet("publish", flag.ExitOnError)
	var (
		flDebug = flagset.Bool(
			"debug",
			false,
			"enable debug logging",
		)
		flMSI = flagset.String(
			"msi",
			"",
			"path of the MSI to upload",
		)
		flBucket = flagset.String(
			"bucket",
			"",
			"bucket URI to upload into (gs://bucket or s3://bucket)",
		)
		flVersion = flagset.String(
			"version",
			"",
			"the version this MSI was built with",
		)
		flUploadAsLatest = flagset.Bool(
			"upload_as_latest",
			false,
			"overwrite the well-known latest MSI object, then copy it to the versioned name",
		)
	)

	flagset.Usage = usageFor(flagset, "msi-builder publish [flags]")
	if err := ff.Parse(flagset, args, ffOpts()...); err != nil {
		return err
	}

	logger := newLogger(*flDebug)
	ctx := ctxlog.NewContext(context.Background(), logger)

	if *flMSI == "" {
		return errors.New("msi path undefined")
	}
	if *flBucket == "" {
		return errors.New("bucket undefined")
	}
	if *flVersion == "" {
		return errors.New("version undefined")
	}

	store, err := blob.Open(ctx, *flBucket)
	if err != nil {
		return errors.Wrap(err, "opening bucket")
	}

	if err := blob.Publish(ctx, store, blob.PublishOptions{
		MSIPath:        *flMSI,
		Version:        version.Resolve(*flVersion, time.Now()),
		UploadAsLatest: *flUploadAsLatest,
	}); err != nil {
		return errors.Wrap(err, "publishing msi")
	}

	return nil
}

func ffOpts() []ff.Option {
	return []ff.Option{
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithEnvVarPrefix("MSI_BUILDER"),
	}
}

func newLogger(debug bool) log.Logger {
	logger := log.NewJSONLogger(os.Stderr)
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	logger = log.With(logger, "caller", log.DefaultCaller)

	if debug {
		return level.NewFilter(logger, level.AllowDebug())
	}
	return level.NewFilter(logger, level.AllowInfo())
}

func usageFor(fs *flag.FlagSet, short string) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "USAGE\n")
		fmt.Fprintf(os.Stderr, "  %s\n", short)
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "FLAGS\n")
		w := tabwriter.NewWriter(os.Stderr, 0, 2, 2, ' ', 0)
		fs.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(w, "\t-%s %s\t%s\n", f.Name, f.DefValue, f.Usage)
		})
		w.Flush()
		fmt.Fprintf(os.Stderr, "\n")
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "USAGE\n")
	fmt.Fprintf(os.Stderr, "  %s <mode> --help\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "MODES\n")
	fmt.Fprintf(os.Stderr, "  make         Build the MSI (render templates, pyinstaller, wix)\n")
	fmt.Fprintf(os.Stderr, "  publish      Upload a built MSI to blob storage\n")
	fmt.Fprintf(os.Stderr, "  version      Print full version information\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "VERSION\n")
	fmt.Fprintf(os.Stderr, "  %s\n", buildinfo.Version().Version)
	fmt.Fprintf(os.Stderr, "\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var run func([]string) error
	switch strings.ToLower(os.Args[1]) {
	case "version":
		run = runVersion
	case "make":
		run = runMake
	case "publish":
		run = runPublish
	default:
		usage()
		os.Exit(1)
	}

	if err := run(os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
