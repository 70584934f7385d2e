package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAcquireRecoversStaleSocket(t *testing.T) {
	t.Parallel()

	socketPath := filepath.Join(t.TempDir(), "proctor.sock")
	require.NoError(t, os.WriteFile(socketPath, []byte("stale"), 0o600))

	var removed []string
	listener, err := Acquire(context.Background(), socketPath, AcquireOptions{
		ProbeTimeout: 50 * time.Millisecond,
		Retries:      2,
		OnStale:      func(path string) { removed = append(removed, path) },
	})
	require.NoError(t, err)
	defer listener.Close()

	require.Equal(t, []string{socketPath}, removed)
}

func TestAcquireReturnsAlreadyRunningWhenSessionResponds(t *testing.T) {
	t.Parallel()

	socketPath := filepath.Join(t.TempDir(), "proctor.sock")
	cancel, serveDone := serveForTest(t, socketPath, HandlerFunc(func(context.Context, Request) Response {
		return Response{OK: true, State: "idle"}
	}))
	defer cancel()

	_, err := Acquire(context.Background(), socketPath, AcquireOptions{ProbeTimeout: 80 * time.Millisecond, Retries: 1})
	require.ErrorIs(t, err, ErrAlreadyRunning)
	require.Contains(t, err.Error(), "proctor session already running")

	cancel()
	require.NoError(t, <-serveDone)
}

func TestAcquireDoesNotUnlinkWhenProbeInconclusive(t *testing.T) {
	t.Parallel()

	socketPath := filepath.Join(t.TempDir(), "proctor.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	acceptDone := make(chan struct{})
	go func() {
		defer close(acceptDone)
		for {
			conn, acceptErr := listener.Accept()
			if acceptErr != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				time.Sleep(250 * time.Millisecond)
			}(conn)
		}
	}()

	_, err = Acquire(context.Background(), socketPath, AcquireOptions{ProbeTimeout: 30 * time.Millisecond})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrAlreadyRunning)
	require.Contains(t, err.Error(), "probe existing socket")

	_, statErr := os.Stat(socketPath)
	require.NoError(t, statErr)
	require.NoError(t, listener.Close())
	<-acceptDone
}

func TestRuntimeSocketPath(t *testing.T) {
	t.Setenv(EnvSocket, "")
	t.Setenv("XDG_RUNTIME_DIR", "")
	_, err := RuntimeSocketPath()
	require.Error(t, err)

	dir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", dir)
	path, err := RuntimeSocketPath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "proctor.sock"), path)
}

func TestRuntimeSocketPathOverride(t *testing.T) {
	override := filepath.Join(t.TempDir(), "custom.sock")
	t.Setenv(EnvSocket, override)
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	path, err := RuntimeSocketPath()
	require.NoError(t, err)
	require.Equal(t, override, path)
}

func TestServeClosesSilentClients(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "proctor.sock")
	cancel, serveDone := serveForTest(t, socketPath, HandlerFunc(func(context.Context, Request) Response {
		return Response{OK: true}
	}))

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(requestReadTimeout+time.Second)))
	line, err := bufio.NewReader(conn).ReadBytes('\n')
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(line, &resp))
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "read request")

	cancel()
	require.NoError(t, <-serveDone)
}
