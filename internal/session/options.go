package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/rbright/proctor/internal/config"
	"github.com/rbright/proctor/internal/domain"
	"github.com/rbright/proctor/internal/ports"
)

// Options tune one session run.
type Options struct {
	Params           domain.Params
	AutoStartSeconds int
	AnswerSeconds    int
	Settle           time.Duration
	UploadDrain      time.Duration
	CaptureStop      time.Duration
	// DeviceWait bounds how long a requested start waits on a pending
	// device acquisition before recording without one.
	DeviceWait       time.Duration
	FallbackQuestion string

	Clock  Clock
	Logger *slog.Logger

	// OnSnapshot, when set, is called from the run loop after every state change.
	OnSnapshot func(Snapshot)
}

// captureStopGrace covers the kill and reap that follow an ignored interrupt
// once the recorder's own stop timeout has run out.
const captureStopGrace = 2 * time.Second

// OptionsFromConfig maps runtime config onto controller options.
func OptionsFromConfig(cfg config.Config, params domain.Params, logger *slog.Logger) Options {
	return Options{
		Params:           params,
		AutoStartSeconds: cfg.Session.AutoStartSeconds,
		AnswerSeconds:    cfg.Session.AnswerSeconds,
		Settle:           cfg.Session.Settle(),
		UploadDrain:      cfg.Session.UploadDrain(),
		CaptureStop:      cfg.Capture.StopTimeout() + captureStopGrace,
		DeviceWait:       cfg.Session.DeviceWait(),
		FallbackQuestion: cfg.Session.FallbackQuestion,
		Logger:           logger,
	}
}

func (o Options) withDefaults() Options {
	if o.AutoStartSeconds <= 0 {
		o.AutoStartSeconds = 10
	}
	if o.AnswerSeconds <= 0 {
		o.AnswerSeconds = 60
	}
	if o.Settle < 0 {
		o.Settle = 0
	}
	if o.CaptureStop <= 0 {
		o.CaptureStop = 3*time.Second + captureStopGrace
	}
	if o.DeviceWait <= 0 {
		o.DeviceWait = 5 * time.Second
	}
	if o.FallbackQuestion == "" {
		o.FallbackQuestion = domain.DefaultQuestion
	}
	if o.Clock == nil {
		o.Clock = realClock{}
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Deps are the collaborators a controller drives. Nil members fall back to
// inert implementations.
type Deps struct {
	Questions ports.QuestionSource
	Capture   ports.CaptureProvider
	Narrator  ports.Narrator
	Uploader  ports.Uploader
	Indicator ports.Indicator
	Player    ports.ClipPlayer
}

type noQuestions struct{}

func (noQuestions) FetchQuestions(context.Context, string) ([]string, error) {
	return nil, domain.ErrQuestionFetchFailed
}

type noCapture struct{}

func (noCapture) Acquire(context.Context) (ports.CaptureDevice, error) {
	return nil, domain.ErrDeviceDenied
}

type noNarrator struct{}

func (noNarrator) Available() bool                     { return false }
func (noNarrator) Speak(context.Context, string) error { return domain.ErrNarrationUnavailable }

type noUploader struct{}

func (noUploader) Upload(context.Context, string, domain.Clip) error { return nil }

type noPlayer struct{}

func (noPlayer) Play(context.Context, domain.Clip) error { return domain.ErrPlaybackUnavailable }

type noIndicator struct{}

func (noIndicator) RecordingStarted(context.Context) {}
func (noIndicator) RecordingStopped(context.Context) {}
func (noIndicator) SessionComplete(context.Context)  {}

func (d Deps) withDefaults() Deps {
	if d.Questions == nil {
		d.Questions = noQuestions{}
	}
	if d.Capture == nil {
		d.Capture = noCapture{}
	}
	if d.Narrator == nil {
		d.Narrator = noNarrator{}
	}
	if d.Uploader == nil {
		d.Uploader = noUploader{}
	}
	if d.Indicator == nil {
		d.Indicator = noIndicator{}
	}
	if d.Player == nil {
		d.Player = noPlayer{}
	}
	return d
}
