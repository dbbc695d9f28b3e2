package packagekit

import (
	"github.com/promptflow/releasekit/pkg/version"
)

// PackageOptions is the superset of all MSI build options. Not every
// step reads every field.
type PackageOptions struct {
	Name        string // product name (eg: promptflow)
	Identifier  string // stable identifier, used for GUID generation
	Publisher   string // shows up in Add/Remove Programs
	Description string

	Version version.Version

	SpecFile        string // the pyinstaller .spec file
	DistRoot        string // pyinstaller output dir; wix harvests this
	WorkDir         string // pyinstaller scratch dir
	VersionInfoFile string // where the rendered version resource lands

	// Optional on-disk templates. When empty, the embedded defaults
	// are used.
	VersionInfoTemplate string
	ProductTemplate     string

	PyInstallerPath string

	WixPath        string
	WixSkipCleanup bool // keep the temp dirs
	SkipValidation bool // skip light validation (wine)
}
