package version

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	var tests = []struct {
		in     string
		dotted string
		tuple  string
		padded string
	}{
		{
			in:     "1.2.3.4",
			dotted: "1.2.3.4",
			tuple:  "1,2,3,4",
			padded: "1.2.3.4",
		},
		{
			in:     "1.2.3.4.5",
			dotted: "1.2.3.4.5",
			tuple:  "1,2,3,4",
			padded: "1.2.3.4",
		},
		{
			in:     "1.2.3",
			dotted: "1.2.3",
			tuple:  "1,2,3,0",
			padded: "1.2.3.0",
		},
		{
			in:     "1.2",
			dotted: "1.2",
			tuple:  "1,2,0,0",
			padded: "1.2.0.0",
		},
		{
			in:     "7",
			dotted: "7",
			tuple:  "7,0,0,0",
			padded: "7.0.0.0",
		},
	}

	for _, tt := range tests {
		v := Resolve(tt.in, time.Now())
		require.Equal(t, tt.dotted, v.String())
		require.Equal(t, tt.tuple, v.Tuple())
		require.Equal(t, tt.padded, v.Padded())
	}
}

func TestResolveGenerated(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.March, 7, 9, 5, 59, 0, time.UTC)

	v := Resolve("", now)
	require.Equal(t, "0.24.0307.090559", v.String())
	require.Equal(t, "0,24,0307,090559", v.Tuple())
	require.NoError(t, v.Validate())

	// Any generated version matches the documented shape.
	generatedFormat := regexp.MustCompile(`^0\.\d{2}\.\d{4}\.\d{6}$`)
	require.Regexp(t, generatedFormat, Resolve("", time.Now()).String())
}

func TestIsRelease(t *testing.T) {
	t.Parallel()

	var tests = []struct {
		in      string
		release bool
	}{
		{in: "1.0.0", release: true},
		{in: "1.2.3.4", release: true},
		{in: "0.24.0307.090559", release: false},
		{in: "2.0.0", release: false},
		{in: "10.0.0", release: false},
	}

	for _, tt := range tests {
		require.Equal(t, tt.release, Resolve(tt.in, time.Now()).IsRelease(), tt.in)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, Resolve("1.2.3.4", time.Now()).Validate())
	require.NoError(t, Resolve("1.2", time.Now()).Validate())
	require.Error(t, Resolve("1.2.3-rc1", time.Now()).Validate())
	require.Error(t, Resolve("one.two", time.Now()).Validate())
}
