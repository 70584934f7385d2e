package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var ErrAlreadyRunning = errors.New("proctor session already running")

// EnvSocket overrides the control socket location.
const EnvSocket = "PROCTOR_SOCKET"

// RuntimeSocketPath returns $PROCTOR_SOCKET when set, else
// $XDG_RUNTIME_DIR/proctor.sock.
func RuntimeSocketPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv(EnvSocket)); explicit != "" {
		return explicit, nil
	}
	runtimeDir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if runtimeDir == "" {
		return "", fmt.Errorf("XDG_RUNTIME_DIR is not set and %s is empty", EnvSocket)
	}
	return filepath.Join(runtimeDir, "proctor.sock"), nil
}

// AcquireOptions tunes how an existing socket file is judged and replaced.
type AcquireOptions struct {
	ProbeTimeout time.Duration
	Retries      int
	Backoff      time.Duration
	// OnStale runs after a dead socket file is removed.
	OnStale func(path string)
}

func (o AcquireOptions) withDefaults() AcquireOptions {
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = 180 * time.Millisecond
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.Backoff <= 0 {
		o.Backoff = 25 * time.Millisecond
	}
	return o
}

// Acquire binds the session owner socket at path. A responsive owner yields
// ErrAlreadyRunning. A socket nobody answers on is unlinked and the bind is
// retried; a probe that neither answers nor refuses leaves the file alone.
func Acquire(ctx context.Context, path string, opts AcquireOptions) (net.Listener, error) {
	opts = opts.withDefaults()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ensure runtime socket dir: %w", err)
	}

	for attempt := 0; ; attempt++ {
		listener, err := net.Listen("unix", path)
		if err == nil {
			_ = os.Chmod(path, 0o600)
			return listener, nil
		}
		if !isAddrInUse(err) {
			return nil, fmt.Errorf("listen unix %s: %w", path, err)
		}

		alive, probeErr := Probe(ctx, path, opts.ProbeTimeout)
		switch {
		case alive:
			return nil, ErrAlreadyRunning
		case probeErr != nil:
			return nil, fmt.Errorf("probe existing socket %s: %w", path, probeErr)
		}

		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale socket %s: %w", path, err)
		}
		if opts.OnStale != nil {
			opts.OnStale(path)
		}

		if attempt > opts.Retries {
			return nil, fmt.Errorf("acquire socket %s: still in use after %d retries", path, opts.Retries)
		}
		if attempt == 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * opts.Backoff):
		}
	}
}

func isAddrInUse(err error) bool {
	return err != nil && strings.Contains(err.Error(), "address already in use")
}
