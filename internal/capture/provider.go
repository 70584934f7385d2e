// Package capture acquires the camera/microphone pair and records answers with ffmpeg.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/rbright/proctor/internal/config"
	"github.com/rbright/proctor/internal/domain"
	"github.com/rbright/proctor/internal/ports"
)

// Provider acquires capture devices described by config.
type Provider struct {
	cfg       config.CaptureConfig
	dumpClips bool
	logger    *slog.Logger

	selectSource func(ctx context.Context, input string, fallback string) (Selection, error)
	holdSource   func(ctx context.Context, source Source) (io.Closer, error)
}

// NewProvider builds a Provider backed by Pulse and ffmpeg.
func NewProvider(cfg config.CaptureConfig, dumpClips bool, logger *slog.Logger) *Provider {
	return &Provider{
		cfg:          cfg,
		dumpClips:    dumpClips,
		logger:       logger,
		selectSource: SelectSource,
		holdSource:   holdPulseSource,
	}
}

// Acquire verifies the recorder, camera node, and microphone and returns a
// held device. Every failure wraps domain.ErrDeviceDenied.
func (p *Provider) Acquire(ctx context.Context) (ports.CaptureDevice, error) {
	if len(p.cfg.FFmpeg.Argv) == 0 {
		return nil, fmt.Errorf("%w: capture.ffmpeg_cmd is empty", domain.ErrDeviceDenied)
	}
	if _, err := exec.LookPath(p.cfg.FFmpeg.Argv[0]); err != nil {
		return nil, fmt.Errorf("%w: recorder %q not found: %v", domain.ErrDeviceDenied, p.cfg.FFmpeg.Argv[0], err)
	}

	if video := strings.TrimSpace(p.cfg.VideoDevice); video != "" {
		if err := CheckVideoDevice(video); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrDeviceDenied, err)
		}
	}

	selection, err := p.selectSource(ctx, p.cfg.AudioInput, p.cfg.AudioFallback)
	if err != nil {
		return nil, fmt.Errorf("%w: select microphone: %v", domain.ErrDeviceDenied, err)
	}
	if selection.Warning != "" && p.logger != nil {
		p.logger.Warn(selection.Warning)
	}

	hold, err := p.holdSource(ctx, selection.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: open microphone: %v", domain.ErrDeviceDenied, err)
	}

	return &Device{
		cfg:       p.cfg,
		source:    selection.Source,
		hold:      hold,
		dumpClips: p.dumpClips,
		logger:    p.logger,
	}, nil
}

// CheckVideoDevice verifies the camera node exists.
func CheckVideoDevice(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("camera %q: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("camera %q is a directory", path)
	}
	return nil
}

// Device is an acquired camera/microphone pair.
type Device struct {
	cfg       config.CaptureConfig
	source    Source
	hold      io.Closer
	dumpClips bool
	logger    *slog.Logger

	mu       sync.Mutex
	active   *Recording
	released bool
}

// ErrReleased is returned when recording on a released device.
var ErrReleased = errors.New("capture device released")

// ErrBusy is returned when a recording is already running on the device.
var ErrBusy = errors.New("capture device busy")

// Name describes the device for logs and status output.
func (d *Device) Name() string {
	name := d.source.Description
	if name == "" {
		name = d.source.ID
	}
	if d.cfg.VideoDevice != "" {
		return d.cfg.VideoDevice + " + " + name
	}
	return name
}

// StartRecording launches ffmpeg writing a WebM stream to stdout.
func (d *Device) StartRecording(_ context.Context) (ports.Recording, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.released {
		return nil, ErrReleased
	}
	if d.active != nil && !d.active.finished() {
		return nil, ErrBusy
	}

	rec, err := startRecording(d.cfg, d.source, d.logger)
	if err != nil {
		return nil, err
	}
	rec.dump = d.dumpClips
	d.active = rec
	return rec, nil
}

// Release stops any running recording and closes the microphone handle.
func (d *Device) Release() error {
	d.mu.Lock()
	if d.released {
		d.mu.Unlock()
		return nil
	}
	d.released = true
	active := d.active
	d.active = nil
	d.mu.Unlock()

	if active != nil {
		_, _ = active.Stop(context.Background())
	}
	if d.hold != nil {
		return d.hold.Close()
	}
	return nil
}
