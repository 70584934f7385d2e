package main

import (
	"errors"
	"os"
	"os/exec"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMainHelp(t *testing.T) {
	output, err := runMainSubprocess(t, nil, "--help")
	require.NoError(t, err, string(output))
	require.Contains(t, string(output), "Usage:")
	require.Contains(t, string(output), "exit-review")
}

func TestMainVersion(t *testing.T) {
	output, err := runMainSubprocess(t, nil, "--version")
	require.NoError(t, err, string(output))
	require.Contains(t, string(output), "proctor dev")
}

func TestMainInvalidCommandExitsNonZero(t *testing.T) {
	output, err := runMainSubprocess(t, nil, "not-a-command")
	requireExitCode(t, err, 2)
	require.Contains(t, string(output), "unknown command")
}

func TestMainControlCommandWithoutSessionFails(t *testing.T) {
	env := []string{
		"XDG_RUNTIME_DIR=" + t.TempDir(),
		"XDG_STATE_HOME=" + t.TempDir(),
		"XDG_CONFIG_HOME=" + t.TempDir(),
		"PROCTOR_SOCKET=",
		"PROCTOR_CONFIG=",
	}
	output, err := runMainSubprocess(t, env, "start")
	requireExitCode(t, err, 1)
	require.Contains(t, string(output), "no active proctor session")
}

func TestMainHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := []string{"proctor"}
	if dash := slices.Index(os.Args, "--"); dash >= 0 {
		args = append(args, os.Args[dash+1:]...)
	}
	os.Args = args

	main()
}

func requireExitCode(t *testing.T, err error, code int) {
	t.Helper()
	var exitErr *exec.ExitError
	require.True(t, errors.As(err, &exitErr), "expected exit error, got %v", err)
	require.Equal(t, code, exitErr.ExitCode())
}

func runMainSubprocess(t *testing.T, env []string, args ...string) ([]byte, error) {
	t.Helper()

	cmdArgs := append([]string{"-test.run=TestMainHelperProcess", "--"}, args...)
	cmd := exec.Command(os.Args[0], cmdArgs...)
	cmd.Env = append(append(os.Environ(), "GO_WANT_HELPER_PROCESS=1"), env...)
	return cmd.CombinedOutput()
}
