// Package cue plays short audio cues around recording windows.
package cue

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rbright/proctor/internal/config"
	"github.com/rbright/proctor/internal/playback"
)

type kind int

const (
	kindStart kind = iota + 1
	kindStop
	kindComplete
)

func (k kind) String() string {
	switch k {
	case kindStart:
		return "start"
	case kindStop:
		return "stop"
	case kindComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Player emits cues asynchronously, one at a time.
type Player struct {
	cfg    config.CueConfig
	out    playback.Player
	logger *slog.Logger

	mu       sync.Mutex
	inflight sync.WaitGroup
}

// New builds a cue player. A nil out plays synthesized tones through Pulse.
func New(cfg config.CueConfig, out playback.Player, logger *slog.Logger) *Player {
	if out == nil {
		out = playback.Pulse{MediaName: "proctor cue"}
	}
	return &Player{cfg: cfg, out: out, logger: logger}
}

// RecordingStarted emits the start cue.
func (p *Player) RecordingStarted(ctx context.Context) {
	p.play(ctx, kindStart)
}

// RecordingStopped emits the stop cue.
func (p *Player) RecordingStopped(ctx context.Context) {
	p.play(ctx, kindStop)
}

// SessionComplete emits the completion cue.
func (p *Player) SessionComplete(ctx context.Context) {
	p.play(ctx, kindComplete)
}

// Wait blocks until queued cues finish.
func (p *Player) Wait() {
	p.inflight.Wait()
}

func (p *Player) play(ctx context.Context, k kind) {
	if !p.cfg.Enable {
		return
	}
	ctx = context.WithoutCancel(ctx)

	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		p.mu.Lock()
		defer p.mu.Unlock()

		if err := p.emit(ctx, k); err != nil && p.logger != nil {
			p.logger.Debug("audio cue failed", "cue", k.String(), "error", err.Error())
		}
	}()
}

func (p *Player) emit(ctx context.Context, k kind) error {
	if path := p.path(k); path != "" {
		if err := playFile(ctx, path); err == nil {
			return nil
		} else if p.logger != nil {
			p.logger.Debug("cue file failed; using tone", "cue", k.String(), "error", err.Error())
		}
	}

	samples := samplesFor(k)
	if len(samples) == 0 {
		return nil
	}
	return p.out.Play(ctx, samples, sampleRate)
}

func (p *Player) path(k kind) string {
	var raw string
	switch k {
	case kindStart:
		raw = p.cfg.StartFile
	case kindStop:
		raw = p.cfg.StopFile
	case kindComplete:
		raw = p.cfg.CompleteFile
	}
	return expandUserPath(raw)
}

func expandUserPath(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if raw != "~" && !strings.HasPrefix(raw, "~/") {
		return raw
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return raw
	}
	return filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(raw, "~"), "/"))
}

func playFile(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("stat cue file %q: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(ctx, 4*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "pw-play", "--media-role", "Notification", path)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("play cue file %q: %w", path, err)
	}
	return nil
}
