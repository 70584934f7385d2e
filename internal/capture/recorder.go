package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rbright/proctor/internal/config"
	"github.com/rbright/proctor/internal/debugdump"
)

// Recording is one running ffmpeg capture.
type Recording struct {
	process *os.Process
	stdout  *bytes.Buffer
	stderr  *bytes.Buffer
	waitErr chan error
	timeout time.Duration
	logger  *slog.Logger
	dump    bool

	stopOnce sync.Once
	data     []byte
	stopErr  error
	done     chan struct{}
}

func recorderArgs(cfg config.CaptureConfig, source Source) []string {
	args := append([]string{}, cfg.FFmpeg.Argv[1:]...)
	args = append(args, "-nostdin")

	video := strings.TrimSpace(cfg.VideoDevice)
	if video != "" {
		args = append(args, "-f", cfg.VideoFormat, "-i", video)
	}
	args = append(args, "-f", "pulse", "-i", source.ID)
	if video != "" {
		args = append(args, "-c:v", cfg.VideoCodec, "-deadline", "realtime", "-cpu-used", "8")
	} else {
		args = append(args, "-vn")
	}
	args = append(args, "-c:a", cfg.AudioCodec, "-f", "webm", "pipe:1")
	return args
}

func startRecording(cfg config.CaptureConfig, source Source, logger *slog.Logger) (*Recording, error) {
	cmd := exec.Command(cfg.FFmpeg.Argv[0], recorderArgs(cfg, source)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 500 * time.Millisecond

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start recorder: %w", err)
	}

	timeout := cfg.StopTimeout()
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	rec := &Recording{
		process: cmd.Process,
		stdout:  &stdout,
		stderr:  &stderr,
		waitErr: make(chan error, 1),
		timeout: timeout,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go func() {
		rec.waitErr <- cmd.Wait()
		close(rec.waitErr)
	}()
	return rec, nil
}

// Stop interrupts ffmpeg so it finalizes the container, killing it after the
// configured timeout or when ctx ends. Repeated calls return the first result.
func (r *Recording) Stop(ctx context.Context) ([]byte, error) {
	r.stopOnce.Do(func() {
		defer close(r.done)

		_ = r.process.Signal(os.Interrupt)

		timer := time.NewTimer(r.timeout)
		defer timer.Stop()

		var err error
		select {
		case err = <-r.waitErr:
		case <-timer.C:
			_ = r.process.Kill()
			err = <-r.waitErr
		case <-ctx.Done():
			_ = r.process.Kill()
			err = <-r.waitErr
		}

		r.data = r.stdout.Bytes()
		r.stopErr = normalizeStopErr(err)
		if r.stopErr != nil && r.stderr.Len() > 0 {
			r.stopErr = fmt.Errorf("%w: %s", r.stopErr, strings.TrimSpace(r.stderr.String()))
		}
		if len(r.data) == 0 && r.stderr.Len() > 0 && r.logger != nil {
			r.logger.Warn("recorder produced no media", "stderr", strings.TrimSpace(r.stderr.String()))
		}
		r.writeDump()
	})
	return r.data, r.stopErr
}

func (r *Recording) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

func (r *Recording) writeDump() {
	if !r.dump || len(r.data) == 0 {
		return
	}
	path, err := debugdump.WriteFile("clip", "webm", r.data)
	if r.logger == nil {
		return
	}
	if err != nil {
		r.logger.Warn("unable to write debug clip dump", "error", err.Error())
		return
	}
	r.logger.Debug("debug clip dump written", "path", path)
}

// normalizeStopErr ignores the non-zero exit ffmpeg reports after SIGINT.
func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
