// Package buildinfo holds the version information stamped into the
// releasekit binaries themselves at link time.
package buildinfo

import (
	"fmt"
	"runtime"
)

// These are set via ldflags, eg:
//
//	-ldflags "-X github.com/promptflow/releasekit/pkg/buildinfo.version=1.0.0"
var (
	version   = "unknown"
	branch    = "unknown"
	revision  = "unknown"
	buildDate = "unknown"
	buildUser = "unknown"
)

// Info represents the version and build details of the running tool.
type Info struct {
	Version   string `json:"version"`
	Branch    string `json:"branch"`
	Revision  string `json:"revision"`
	GoVersion string `json:"go_version"`
	BuildDate string `json:"build_date"`
	BuildUser string `json:"build_user"`
}

// Version returns the build details.
func Version() Info {
	return Info{
		Version:   version,
		Branch:    branch,
		Revision:  revision,
		GoVersion: runtime.Version(),
		BuildDate: buildDate,
		BuildUser: buildUser,
	}
}

// PrintFull prints a multi-line description of the build.
func PrintFull() {
	v := Version()
	fmt.Printf("releasekit - version %s\n", v.Version)
	fmt.Printf("  branch:     %s\n", v.Branch)
	fmt.Printf("  revision:   %s\n", v.Revision)
	fmt.Printf("  build date: %s\n", v.BuildDate)
	fmt.Printf("  build user: %s\n", v.BuildUser)
	fmt.Printf("  go version: %s\n", v.GoVersion)
}
