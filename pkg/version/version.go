// Package version derives the version strings stamped into the MSI
// build. A version comes either from an explicit operator input, or is
// synthesized from the build timestamp.
//
// Windows version resources must conform to W.X.Y.Z, so whatever form
// the input takes, we normalize a copy of it down to exactly four
// numeric components. The original dotted string is kept as-is for
// display and tooling version fields.
package version

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// tupleLen is the number of components in a Windows binary version
// resource.
const tupleLen = 4

var numericSegment = regexp.MustCompile(`^\d+$`)

// Version holds both forms of a resolved package version.
type Version struct {
	dotted string
	parts  [tupleLen]string
}

// Resolve takes a raw version string and returns the resolved
// Version. An empty raw version synthesizes a dev version from the
// given timestamp, in the form 0.YY.MMDD.HHMMSS.
//
// Splitting happens on `.`. Five or more components are truncated to
// the first four. Fewer than four are right-padded with zeros.
func Resolve(raw string, now time.Time) Version {
	if raw == "" {
		raw = fmt.Sprintf("0.%02d.%02d%02d.%02d%02d%02d",
			now.Year()%100,
			int(now.Month()), now.Day(),
			now.Hour(), now.Minute(), now.Second(),
		)
	}

	v := Version{dotted: raw}

	segments := strings.Split(raw, ".")
	for i := 0; i < tupleLen; i++ {
		if i < len(segments) {
			v.parts[i] = segments[i]
		} else {
			v.parts[i] = "0"
		}
	}

	return v
}

// String returns the original dotted form. This is what shows up in
// display and tooling version fields.
func (v Version) String() string {
	return v.dotted
}

// Tuple returns the four-component comma-separated form used inside
// the binary version resource, eg `1,2,3,0`.
func (v Version) Tuple() string {
	return strings.Join(v.parts[:], ",")
}

// Padded returns the four-component dotted form, eg `1.2.3.0`. WiX
// product versions want this shape.
func (v Version) Padded() string {
	return strings.Join(v.parts[:], ".")
}

// IsRelease reports whether this version should move the latest
// version pointer. Only 1.x versions do -- dev builds synthesize a
// leading 0, and anything else is a prerelease scheme we don't
// publish.
func (v Version) IsRelease() bool {
	return strings.HasPrefix(v.dotted, "1.")
}

// Validate reports non-numeric components. The build pipeline
// deliberately does not call this -- a malformed operator input flows
// into the templates unchecked, and the downstream tool rejects it --
// but callers that want an earlier failure can.
func (v Version) Validate() error {
	for i, p := range v.parts {
		if !numericSegment.MatchString(p) {
			return fmt.Errorf("version component %d (%q) of %s is not numeric", i, p, v.dotted)
		}
	}
	return nil
}
