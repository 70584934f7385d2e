// Package config resolves, parses, validates, and defaults proctor configuration.
package config

import "time"

// Config is the fully materialized runtime configuration used by proctor.
type Config struct {
	API       APIConfig
	Session   SessionConfig
	Capture   CaptureConfig
	Narration NarrationConfig
	Cues      CueConfig
	UI        UIConfig
	Log       LogConfig
	Debug     DebugConfig
}

// APIConfig locates the interview backend.
type APIConfig struct {
	BaseURL       string
	QuestionsPath string
	UploadPath    string
	TimeoutMS     int
	HealthGRPC    string
}

// SessionConfig controls the session timers.
type SessionConfig struct {
	AutoStartSeconds int
	AnswerSeconds    int
	SettleMS         int
	UploadDrainMS    int
	DeviceWaitMS     int
	FallbackQuestion string
}

// CaptureConfig controls audio/video device selection and the recorder command.
type CaptureConfig struct {
	FFmpeg        CommandConfig
	VideoDevice   string
	VideoFormat   string
	AudioInput    string
	AudioFallback string
	VideoCodec    string
	AudioCodec    string
	StopTimeoutMS int
	// Player plays recorded answers back during review; empty disables playback.
	Player CommandConfig
}

// NarrationConfig controls question text-to-speech.
type NarrationConfig struct {
	Enable    bool
	BaseURL   string
	APIKeyEnv string
	Model     string
	Voice     string
	Gender    string
	Language  string
	Speed     float64
}

// CueConfig controls audio cues around recording.
type CueConfig struct {
	Enable       bool
	StartFile    string
	StopFile     string
	CompleteFile string
}

// UIConfig controls the interactive terminal view.
type UIConfig struct {
	Language string
}

// LogConfig controls runtime log verbosity.
type LogConfig struct {
	Level string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	ClipDump      bool
	NarrationDump bool
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}

func (s SessionConfig) AutoStart() time.Duration {
	return time.Duration(s.AutoStartSeconds) * time.Second
}

func (s SessionConfig) Answer() time.Duration {
	return time.Duration(s.AnswerSeconds) * time.Second
}

func (s SessionConfig) Settle() time.Duration {
	return time.Duration(s.SettleMS) * time.Millisecond
}

func (s SessionConfig) UploadDrain() time.Duration {
	return time.Duration(s.UploadDrainMS) * time.Millisecond
}

func (s SessionConfig) DeviceWait() time.Duration {
	return time.Duration(s.DeviceWaitMS) * time.Millisecond
}

func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutMS) * time.Millisecond
}

func (c CaptureConfig) StopTimeout() time.Duration {
	return time.Duration(c.StopTimeoutMS) * time.Millisecond
}
