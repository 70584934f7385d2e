// Package session orchestrates one interview: question loading, narration,
// per-question countdowns, capture, upload and review.
//
// All session state is owned by the goroutine running Controller.Run.
// Collaborator results, timer ticks and user intents reach it as messages,
// so a result from a superseded timer, narration or device acquisition can
// be recognized and dropped.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/proctor/internal/domain"
	"github.com/rbright/proctor/internal/fsm"
	"github.com/rbright/proctor/internal/ports"
	"github.com/rbright/proctor/internal/review"
)

// ErrClosed is returned by intents submitted after Run has returned.
var ErrClosed = errors.New("session is not running")

type eventKind int

const (
	eventQuestions eventKind = iota + 1
	eventDevice
	eventNarrationEnded
	eventTimer
	eventClip
	eventUpload
	eventPlaybackEnded
)

type timerKind int

const (
	timerTick timerKind = iota + 1
	timerSettle
	timerDeviceWait
)

type event struct {
	kind eventKind

	timer timerKind
	epoch uint64
	seq   uint64

	questions []string
	device    ports.CaptureDevice
	media     []byte
	index     int
	err       error
}

// Controller drives a single interview session.
type Controller struct {
	opts Options
	deps Deps
	log  *slog.Logger

	intents   chan intentRequest
	events    chan event
	done      chan struct{}
	completed chan struct{}
	updates   chan Snapshot

	mu   sync.RWMutex
	snap Snapshot

	uploads      sync.WaitGroup
	uploadCtx    context.Context
	uploadCancel context.CancelFunc
	runCtx       context.Context

	// Run-loop owned state below.
	phase      fsm.Phase
	reviewFrom fsm.Phase
	questions  []string
	fallback   bool
	index      int
	countdown  int
	timeLeft   int
	clips      []domain.Clip

	epoch uint64
	timer Timer

	narrating         bool
	narrationID       uint64
	narrationCancel   context.CancelFunc
	narrationDisabled bool

	playbackID     uint64
	playbackCancel context.CancelFunc

	device        ports.CaptureDevice
	devicePending bool
	deviceSeq     uint64
	deviceErr     string
	recording     ports.Recording
	startDeferred bool
	warning       string

	uploadsInFlight  int
	uploadsSucceeded int
	uploadsFailed    int
	uploadsSkipped   int
	lastUploadErr    string

	nav          *review.Navigator
	completeOnce sync.Once
	startedAt    time.Time
}

// NewController builds a controller in the loading phase.
func NewController(opts Options, deps Deps) *Controller {
	opts = opts.withDefaults()
	c := &Controller{
		opts:      opts,
		deps:      deps.withDefaults(),
		log:       opts.Logger,
		intents:   make(chan intentRequest),
		events:    make(chan event, 64),
		done:      make(chan struct{}),
		completed: make(chan struct{}),
		updates:   make(chan Snapshot, 1),
		phase:     fsm.PhaseLoading,
		countdown: opts.AutoStartSeconds,
		timeLeft:  opts.AnswerSeconds,
	}
	c.nav = review.New(review.Hooks{
		Speak:        c.narrate,
		Play:         c.playClip,
		StopPlayback: c.cancelPlayback,
		Exit:         c.acquireDevice,
	})
	c.snap = c.buildSnapshot()
	return c
}

// Snapshot returns the most recently published session view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Updates delivers snapshots as they change. Slow readers only see the latest.
func (c *Controller) Updates() <-chan Snapshot {
	return c.updates
}

// Completed is closed once the session reaches the complete phase.
func (c *Controller) Completed() <-chan struct{} {
	return c.completed
}

// Done is closed when Run returns.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Run executes the session until ctx is cancelled. Reaching the complete
// phase does not end Run; review stays available until the caller stops it.
func (c *Controller) Run(ctx context.Context) Result {
	defer close(c.done)

	c.runCtx = ctx
	c.uploadCtx, c.uploadCancel = context.WithCancel(context.WithoutCancel(ctx))
	defer c.uploadCancel()
	c.startedAt = c.opts.Clock.Now()

	c.log.Info("session starting",
		"job_id", c.opts.Params.JobID,
		"interview_id", c.opts.Params.InterviewID,
	)

	c.loadQuestions()
	c.acquireDevice()
	c.publish()

	for {
		select {
		case req := <-c.intents:
			c.handleIntent(req)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return c.shutdown(ctx.Err())
		case req := <-c.intents:
			c.handleIntent(req)
			continue
		case ev := <-c.events:
			c.handleEvent(ev)
		}
		c.publish()
	}
}

func (c *Controller) post(ev event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

func (c *Controller) handleEvent(ev event) {
	switch ev.kind {
	case eventQuestions:
		c.onQuestions(ev.questions, ev.err)
	case eventDevice:
		c.onDevice(ev)
	case eventNarrationEnded:
		c.onNarrationEnded(ev)
	case eventTimer:
		if ev.epoch != c.epoch {
			return
		}
		c.timer = nil
		switch ev.timer {
		case timerTick:
			c.onTick()
		case timerSettle:
			c.onSettle()
		case timerDeviceWait:
			c.onDeviceWait()
		}
	case eventClip:
		c.onClip(ev)
	case eventUpload:
		c.onUpload(ev)
	case eventPlaybackEnded:
		c.onPlaybackEnded(ev)
	}
}

// transition applies event to the phase machine and invalidates any pending timer.
func (c *Controller) transition(event fsm.Event) error {
	next, err := fsm.Transition(c.phase, event)
	if err != nil {
		return err
	}
	c.stopTimer()
	c.epoch++
	c.log.Debug("session transition", "from", c.phase, "event", event, "to", next)
	c.phase = next
	return nil
}

func (c *Controller) arm(kind timerKind, d time.Duration) {
	c.stopTimer()
	epoch := c.epoch
	c.timer = c.opts.Clock.AfterFunc(d, func() {
		c.post(event{kind: eventTimer, timer: kind, epoch: epoch})
	})
}

func (c *Controller) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) publish() {
	snap := c.buildSnapshot()

	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()

	select {
	case <-c.updates:
	default:
	}
	select {
	case c.updates <- snap:
	default:
	}

	if c.opts.OnSnapshot != nil {
		c.opts.OnSnapshot(snap)
	}
}

func (c *Controller) buildSnapshot() Snapshot {
	snap := Snapshot{
		Phase:              c.phase,
		QuestionIndex:      c.index,
		QuestionCount:      len(c.questions),
		TimeLeft:           c.timeLeft,
		AnswerSeconds:      c.opts.AnswerSeconds,
		AutoStartCountdown: c.countdown,
		Narrating:          c.narrating,
		NarrationDisabled:  c.narrationDisabled || !c.deps.Narrator.Available(),
		Recording:          c.phase == fsm.PhaseRecording,
		Uploading:          c.phase == fsm.PhaseProcessing,
		DeviceReady:        c.device != nil,
		DevicePending:      c.devicePending,
		StartDeferred:      c.startDeferred,
		Error:              c.deviceErr,
		Warning:            c.warning,
		FallbackQuestions:  c.fallback,
		ClipCount:          len(c.clips),
		UploadsInFlight:    c.uploadsInFlight,
		UploadsSucceeded:   c.uploadsSucceeded,
		UploadsFailed:      c.uploadsFailed,
		LastUploadError:    c.lastUploadErr,
		CanExitReview:      c.phase == fsm.PhaseReview && c.reviewFrom != fsm.PhaseComplete,
		Review:             c.nav.View(),
	}
	if c.device != nil {
		snap.DeviceName = c.device.Name()
	}
	if c.index < len(c.questions) {
		snap.Question = c.questions[c.index]
	}
	return snap
}

func (c *Controller) shutdown(cause error) Result {
	c.log.Info("session stopping", "phase", c.phase, "cause", cause)

	c.stopTimer()
	c.epoch++
	c.cancelNarration()
	c.nav.StopPlayback()
	if c.recording != nil {
		rec := c.recording
		c.recording = nil
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(c.runCtx), c.opts.CaptureStop)
		if _, err := rec.Stop(stopCtx); err != nil {
			c.log.Warn("capture stop during shutdown failed", "error", err)
		}
		cancel()
	}
	c.releaseDevice()

	abandoned := c.drainUploads()

	c.publish()
	return Result{
		Phase:             c.phase,
		Questions:         append([]string(nil), c.questions...),
		Clips:             append([]domain.Clip(nil), c.clips...),
		FallbackQuestions: c.fallback,
		UploadsSucceeded:  c.uploadsSucceeded,
		UploadsFailed:     c.uploadsFailed,
		UploadsSkipped:    c.uploadsSkipped,
		UploadsAbandoned:  abandoned,
		DeviceError:       c.deviceErr,
		Err:               cause,
		StartedAt:         c.startedAt,
		FinishedAt:        c.opts.Clock.Now(),
	}
}

// drainUploads waits up to UploadDrain for in-flight uploads, then cancels
// the rest. It returns how many were cut short.
func (c *Controller) drainUploads() int {
	if c.uploadsInFlight == 0 {
		return 0
	}

	finished := make(chan struct{})
	go func() {
		c.uploads.Wait()
		close(finished)
	}()

	deadline := time.NewTimer(c.opts.UploadDrain)
	defer deadline.Stop()

	abandoned := 0
	cancelled := false
	for {
		select {
		case <-finished:
			for {
				select {
				case ev := <-c.events:
					if ev.kind == eventUpload {
						abandoned += c.settleDrained(ev, cancelled)
					}
				default:
					return abandoned
				}
			}
		case ev := <-c.events:
			switch ev.kind {
			case eventUpload:
				abandoned += c.settleDrained(ev, cancelled)
			case eventDevice:
				if ev.device != nil {
					_ = ev.device.Release()
				}
			}
		case <-deadline.C:
			if !cancelled {
				c.log.Warn("abandoning in-flight uploads", "count", c.uploadsInFlight)
				cancelled = true
				c.uploadCancel()
			}
		}
	}
}

func (c *Controller) settleDrained(ev event, cancelled bool) int {
	if cancelled && errors.Is(ev.err, context.Canceled) {
		c.uploadsInFlight--
		return 1
	}
	c.onUpload(ev)
	return 0
}
