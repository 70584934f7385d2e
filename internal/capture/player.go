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
	"time"

	"github.com/rbright/proctor/internal/config"
	"github.com/rbright/proctor/internal/domain"
)

// Player shows recorded answers through an external media player that reads
// the clip from stdin.
type Player struct {
	argv   []string
	logger *slog.Logger
}

// NewPlayer builds a Player from capture.player_cmd.
func NewPlayer(cfg config.CaptureConfig, logger *slog.Logger) *Player {
	return &Player{argv: cfg.Player.Argv, logger: logger}
}

func playerArgs(argv []string, clip domain.Clip) []string {
	args := append([]string{}, argv[1:]...)
	return append(args, "-window_title", fmt.Sprintf("Answer %d", clip.QuestionIndex+1), "pipe:0")
}

// Play blocks until the player exits. Cancelling ctx interrupts the player
// and returns ctx.Err().
func (p *Player) Play(ctx context.Context, clip domain.Clip) error {
	if len(p.argv) == 0 {
		return fmt.Errorf("%w: capture.player_cmd is empty", domain.ErrPlaybackUnavailable)
	}
	if clip.Empty() {
		return fmt.Errorf("answer %d has no media", clip.QuestionIndex+1)
	}

	cmd := exec.CommandContext(ctx, p.argv[0], playerArgs(p.argv, clip)...)
	cmd.Stdin = bytes.NewReader(clip.Media)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = 500 * time.Millisecond

	if p.logger != nil {
		p.logger.Debug("playing answer", "question_index", clip.QuestionIndex, "bytes", len(clip.Media))
	}
	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%w: %s not found", domain.ErrPlaybackUnavailable, p.argv[0])
	}
	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		return fmt.Errorf("play answer %d: %w: %s", clip.QuestionIndex+1, err, msg)
	}
	return fmt.Errorf("play answer %d: %w", clip.QuestionIndex+1, err)
}
