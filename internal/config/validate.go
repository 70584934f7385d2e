package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	base := strings.TrimSpace(cfg.API.BaseURL)
	if base == "" {
		return nil, fmt.Errorf("api.base_url must not be empty")
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("api.base_url must be an absolute URL")
	}
	if !strings.HasPrefix(cfg.API.QuestionsPath, "/") {
		return nil, fmt.Errorf("api.questions_path must start with '/'")
	}
	if !strings.Contains(cfg.API.QuestionsPath, "{job_id}") {
		return nil, fmt.Errorf("api.questions_path must contain {job_id}")
	}
	if !strings.HasPrefix(cfg.API.UploadPath, "/") {
		return nil, fmt.Errorf("api.upload_path must start with '/'")
	}
	if cfg.API.TimeoutMS <= 0 {
		return nil, fmt.Errorf("api.timeout_ms must be > 0")
	}

	if cfg.Session.AutoStartSeconds <= 0 {
		return nil, fmt.Errorf("session.auto_start_seconds must be > 0")
	}
	if cfg.Session.AnswerSeconds <= 0 {
		return nil, fmt.Errorf("session.answer_seconds must be > 0")
	}
	if cfg.Session.SettleMS < 0 {
		return nil, fmt.Errorf("session.settle_ms must be >= 0")
	}
	if cfg.Session.UploadDrainMS < 0 {
		return nil, fmt.Errorf("session.upload_drain_ms must be >= 0")
	}
	if cfg.Session.DeviceWaitMS <= 0 {
		return nil, fmt.Errorf("session.device_wait_ms must be > 0")
	}
	if strings.TrimSpace(cfg.Session.FallbackQuestion) == "" {
		return nil, fmt.Errorf("session.fallback_question must not be empty")
	}

	if len(cfg.Capture.FFmpeg.Argv) == 0 {
		return nil, fmt.Errorf("capture.ffmpeg_cmd must not be empty")
	}
	if cfg.Capture.VideoDevice != "" && strings.TrimSpace(cfg.Capture.VideoFormat) == "" {
		return nil, fmt.Errorf("capture.video_format must not be empty when capture.video_device is set")
	}
	if strings.TrimSpace(cfg.Capture.AudioCodec) == "" {
		return nil, fmt.Errorf("capture.audio_codec must not be empty")
	}
	if cfg.Capture.StopTimeoutMS <= 0 {
		return nil, fmt.Errorf("capture.stop_timeout_ms must be > 0")
	}

	if cfg.Narration.Enable {
		if strings.TrimSpace(cfg.Narration.Model) == "" {
			return nil, fmt.Errorf("narration.model must not be empty when narration.enable=true")
		}
		if cfg.Narration.Speed < 0.25 || cfg.Narration.Speed > 4.0 {
			return nil, fmt.Errorf("narration.speed must be between 0.25 and 4.0")
		}
		if strings.TrimSpace(cfg.Narration.APIKeyEnv) == "" {
			warnings = append(warnings, Warning{Message: "narration.api_key_env is empty; narration will be unavailable"})
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Log.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}

	return warnings, nil
}
