package wix

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewWritesProductWxs(t *testing.T) {
	t.Parallel()

	buildDir := t.TempDir()

	wo, err := New(t.TempDir(), []byte("<Wix/>"), WithBuildDir(buildDir), As64bit())
	require.NoError(t, err)
	defer wo.Cleanup()

	content, err := os.ReadFile(filepath.Join(buildDir, "Product.wxs"))
	require.NoError(t, err)
	require.Equal(t, "<Wix/>", string(content))
}

func TestPackage(t *testing.T) {
	t.Parallel()

	wo, err := New(t.TempDir(), []byte("<Wix/>"),
		WithBuildDir(t.TempDir()),
		WithWix("/fake/wix"),
		As64bit(),
		SkipValidation(),
	)
	require.NoError(t, err)
	defer wo.Cleanup()

	wo.execCC = helperCommandContext

	var msi bytes.Buffer
	require.NoError(t, wo.Package(context.TODO(), &msi))
	require.Equal(t, "not really an msi", msi.String())
}

func TestDeps(t *testing.T) {
	t.Parallel()

	wixDir := t.TempDir()
	for _, tool := range []string{"heat.exe", "candle.exe", "light.exe"} {
		require.NoError(t, os.WriteFile(filepath.Join(wixDir, tool), []byte("#"), 0755))
	}

	wo, err := New(t.TempDir(), []byte("<Wix/>"), WithBuildDir(t.TempDir()), WithWix(wixDir), As64bit())
	require.NoError(t, err)
	defer wo.Cleanup()

	require.NoError(t, wo.Deps(context.TODO()))

	wo.wixPath = filepath.Join(wixDir, "not-here")
	require.Error(t, wo.Deps(context.TODO()))
}

// helperCommandContext re-invokes the test binary so TestHelperProcess
// can stand in for the wix tools.
func helperCommandContext(ctx context.Context, command string, args ...string) *exec.Cmd {
	cs := []string{"-test.run=TestHelperProcess", "--", command}
	cs = append(cs, args...)
	cmd := exec.CommandContext(ctx, os.Args[0], cs...)
	cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
	return cmd
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	args := os.Args
	for len(args) > 0 {
		if args[0] == "--" {
			args = args[1:]
			break
		}
		args = args[1:]
	}

	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "no command\n")
		os.Exit(2)
	}

	// light is the step that produces the msi. The command runs with
	// cwd set to the build dir, so a relative write lands correctly.
	if strings.HasSuffix(args[0], "light.exe") {
		if err := os.WriteFile("out.msi", []byte("not really an msi"), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "writing fake msi: %v\n", err)
			os.Exit(1)
		}
	}
}
