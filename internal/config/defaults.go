package config

import "github.com/rbright/proctor/internal/domain"

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL:       "https://ai-interview-urf8.onrender.com",
			QuestionsPath: "/openings/questions/{job_id}/",
			UploadPath:    "/call/process/",
			TimeoutMS:     15000,
		},
		Session: SessionConfig{
			AutoStartSeconds: 10,
			AnswerSeconds:    60,
			SettleMS:         1000,
			UploadDrainMS:    30000,
			DeviceWaitMS:     5000,
			FallbackQuestion: domain.DefaultQuestion,
		},
		Capture: CaptureConfig{
			FFmpeg:        mustParseCommand("ffmpeg -hide_banner -loglevel error"),
			VideoDevice:   "/dev/video0",
			VideoFormat:   "v4l2",
			AudioInput:    "default",
			AudioFallback: "default",
			VideoCodec:    "libvpx",
			AudioCodec:    "libopus",
			StopTimeoutMS: 3000,
			Player:        mustParseCommand("ffplay -hide_banner -loglevel error -autoexit"),
		},
		Narration: NarrationConfig{
			Enable:    true,
			APIKeyEnv: "OPENAI_API_KEY",
			Model:     "tts-1",
			Gender:    "female",
			Language:  "en",
			Speed:     1.0,
		},
		Cues: CueConfig{Enable: true},
		UI:   UIConfig{Language: "en"},
		Log:  LogConfig{Level: "info"},
	}
}
