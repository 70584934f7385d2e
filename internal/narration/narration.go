// Package narration reads interview questions aloud through an
// OpenAI-compatible speech endpoint.
package narration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/rbright/proctor/internal/config"
	"github.com/rbright/proctor/internal/debugdump"
	"github.com/rbright/proctor/internal/domain"
	"github.com/rbright/proctor/internal/playback"

	openai "github.com/sashabaranov/go-openai"
)

// SampleRate is the rate of the raw PCM the speech endpoint returns.
const SampleRate = 24000

// Service synthesizes and plays narration.
type Service struct {
	cfg    config.NarrationConfig
	api    *openai.Client
	voice  Voice
	player playback.Player
	dump   bool
	logger *slog.Logger
}

// New builds a Service. The API key is read from the environment variable
// named by cfg.APIKeyEnv; without one the service reports itself unavailable.
func New(cfg config.NarrationConfig, dump bool, player playback.Player, logger *slog.Logger) *Service {
	if player == nil {
		player = playback.Pulse{MediaName: "proctor narration"}
	}

	s := &Service{
		cfg:    cfg,
		voice:  SelectVoice(cfg.Voice, cfg.Gender, cfg.Language),
		player: player,
		dump:   dump,
		logger: logger,
	}

	apiKey := ""
	if name := strings.TrimSpace(cfg.APIKeyEnv); name != "" {
		apiKey = strings.TrimSpace(os.Getenv(name))
	}
	if cfg.Enable && apiKey != "" {
		clientCfg := openai.DefaultConfig(apiKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
		s.api = openai.NewClientWithConfig(clientCfg)
	}
	return s
}

// Available reports whether narration is enabled and configured.
func (s *Service) Available() bool {
	return s != nil && s.api != nil
}

// Voice returns the selected voice.
func (s *Service) Voice() Voice {
	return s.voice
}

// Speak synthesizes text and blocks until playback finishes or ctx ends.
func (s *Service) Speak(ctx context.Context, text string) error {
	pcm, err := s.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	if len(pcm) == 0 {
		return nil
	}
	return s.player.Play(ctx, playback.DecodeS16LE(pcm), SampleRate)
}

// Synthesize returns raw s16le mono PCM at SampleRate for text.
func (s *Service) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if !s.Available() {
		return nil, domain.ErrNarrationUnavailable
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	resp, err := s.api.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.cfg.Model),
		Input:          text,
		Voice:          openai.SpeechVoice(s.voice.Name),
		ResponseFormat: openai.SpeechResponseFormat("pcm"),
		Speed:          s.cfg.Speed,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && (apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403) {
			return nil, fmt.Errorf("%w: %v", domain.ErrNarrationUnavailable, err)
		}
		return nil, fmt.Errorf("synthesize speech: %w", err)
	}
	defer resp.Close()

	pcm, err := io.ReadAll(resp)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("read speech audio: %w", err)
	}

	s.writeDump(pcm)
	return pcm, nil
}

func (s *Service) writeDump(pcm []byte) {
	if !s.dump || len(pcm) == 0 {
		return
	}
	path, err := debugdump.WriteWAV("narration", pcm, SampleRate, 1)
	if s.logger == nil {
		return
	}
	if err != nil {
		s.logger.Warn("unable to write narration dump", "error", err.Error())
		return
	}
	s.logger.Debug("narration dump written", "path", path)
}
