package pip

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInstallFromSource(t *testing.T) {
	t.Parallel()

	i := New()
	i.execCC = helperCommandContext

	require.NoError(t, i.InstallFromSource(context.TODO(), "./src/promptflow"))
}

func TestInstallPinned(t *testing.T) {
	t.Parallel()

	i := New(WithPip("pip3"))
	i.execCC = helperCommandContext

	require.NoError(t, i.InstallPinned(context.TODO(), "promptflow", "1.2.3"))
}

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

	joined := strings.Join(args, " ")
	switch {
	case strings.Contains(joined, "install ./src/promptflow"):
	case strings.Contains(joined, "pip3 install promptflow==1.2.3"):
	default:
		fmt.Fprintf(os.Stderr, "unexpected args: %s\n", joined)
		os.Exit(1)
	}
}
