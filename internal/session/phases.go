package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rbright/proctor/internal/domain"
	"github.com/rbright/proctor/internal/fsm"
)

func (c *Controller) loadQuestions() {
	ctx := c.runCtx
	jobID := c.opts.Params.JobID
	go func() {
		questions, err := c.deps.Questions.FetchQuestions(ctx, jobID)
		c.post(event{kind: eventQuestions, questions: questions, err: err})
	}()
}

func (c *Controller) onQuestions(questions []string, err error) {
	if c.phase != fsm.PhaseLoading {
		return
	}
	if err != nil {
		c.log.Warn("question fetch failed; using fallback question", "error", err)
		questions = []string{c.opts.FallbackQuestion}
		c.fallback = true
	}
	c.questions = questions

	if len(questions) == 0 {
		c.log.Info("no questions for job", "job_id", c.opts.Params.JobID)
		if err := c.transition(fsm.EventLoadedEmpty); err == nil {
			c.enterComplete()
		}
		return
	}

	c.log.Info("questions loaded", "count", len(questions), "fallback", c.fallback)
	if err := c.transition(fsm.EventLoaded); err != nil {
		return
	}
	c.index = 0
	c.enterIdle(true)
}

// enterIdle starts the auto-start countdown for the current question. A
// resumed idle keeps the countdown and timer it was frozen with.
func (c *Controller) enterIdle(reset bool) {
	if reset {
		c.countdown = c.opts.AutoStartSeconds
		c.timeLeft = c.opts.AnswerSeconds
	}
	c.arm(timerTick, time.Second)
	c.narrate(c.questions[c.index])
}

func (c *Controller) onTick() {
	switch c.phase {
	case fsm.PhaseIdle:
		c.countdown--
		if c.countdown <= 0 {
			c.countdown = 0
			c.log.Info("auto-starting answer", "question_index", c.index)
			c.requestStart()
			return
		}
		c.arm(timerTick, time.Second)
	case fsm.PhaseRecording:
		c.timeLeft--
		if c.timeLeft <= 0 {
			c.timeLeft = 0
			c.log.Info("answer time elapsed", "question_index", c.index)
			c.stopRecording()
			return
		}
		c.arm(timerTick, time.Second)
	}
}

const warnDeviceWait = "waiting for capture device"

// requestStart records now when the device question is settled. While an
// acquisition is still in flight the start waits for it, up to DeviceWait.
func (c *Controller) requestStart() {
	if !c.devicePending {
		c.startRecording()
		return
	}
	if c.startDeferred {
		return
	}
	c.startDeferred = true
	c.warning = warnDeviceWait
	c.log.Info("answer start waiting for capture device", "question_index", c.index, "timeout", c.opts.DeviceWait)
	c.arm(timerDeviceWait, c.opts.DeviceWait)
}

func (c *Controller) onDeviceWait() {
	if c.phase != fsm.PhaseIdle || !c.startDeferred {
		return
	}
	c.log.Warn("capture device still pending; recording without it", "question_index", c.index, "waited", c.opts.DeviceWait)
	c.startRecording()
}

func (c *Controller) clearDeferredStart() {
	c.startDeferred = false
	if c.warning == warnDeviceWait {
		c.warning = ""
	}
}

func (c *Controller) startRecording() {
	if err := c.transition(fsm.EventStart); err != nil {
		return
	}
	c.clearDeferredStart()
	c.cancelNarration()
	c.timeLeft = c.opts.AnswerSeconds
	c.deps.Indicator.RecordingStarted(c.runCtx)

	if c.device == nil {
		c.warning = fmt.Sprintf("answer %d recorded without a capture device", c.index+1)
		c.log.Warn("recording without capture device", "question_index", c.index, "pending", c.devicePending)
	} else {
		rec, err := c.device.StartRecording(c.runCtx)
		if err != nil {
			c.noteDeviceError(err)
		} else {
			c.recording = rec
			c.warning = ""
		}
	}
	c.arm(timerTick, time.Second)
}

func (c *Controller) stopRecording() {
	if err := c.transition(fsm.EventStop); err != nil {
		return
	}
	c.deps.Indicator.RecordingStopped(c.runCtx)

	rec := c.recording
	c.recording = nil
	index := c.index
	if rec == nil {
		c.finishClip(index, nil)
		return
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(c.runCtx), c.opts.CaptureStop)
	go func() {
		defer cancel()
		media, err := rec.Stop(stopCtx)
		c.post(event{kind: eventClip, index: index, media: media, err: err})
	}()
}

func (c *Controller) onClip(ev event) {
	if c.phase != fsm.PhaseProcessing || ev.index != c.index {
		return
	}
	if ev.err != nil {
		c.log.Warn("capture stop failed", "question_index", ev.index, "error", ev.err)
	}
	c.finishClip(ev.index, ev.media)
}

func (c *Controller) finishClip(index int, media []byte) {
	clip := domain.Clip{
		QuestionIndex: index,
		Question:      c.questions[index],
		Media:         media,
		CreatedAt:     c.opts.Clock.Now(),
	}
	c.clips = append(c.clips, clip)
	c.log.Info("answer captured", "question_index", index, "bytes", len(media))

	if clip.Empty() {
		c.uploadsSkipped++
		c.log.Warn("skipping upload of empty answer", "question_index", index)
	} else {
		c.startUpload(clip)
	}
	c.arm(timerSettle, c.opts.Settle)
}

func (c *Controller) onSettle() {
	if c.phase != fsm.PhaseProcessing {
		return
	}
	if c.index+1 < len(c.questions) {
		if err := c.transition(fsm.EventAdvance); err != nil {
			return
		}
		c.index++
		c.enterIdle(true)
		return
	}
	if err := c.transition(fsm.EventFinish); err == nil {
		c.enterComplete()
	}
}

func (c *Controller) enterComplete() {
	c.cancelNarration()
	c.releaseDevice()
	c.deps.Indicator.SessionComplete(c.runCtx)
	c.log.Info("session complete", "answers", len(c.clips))
	c.completeOnce.Do(func() { close(c.completed) })
}

func (c *Controller) narrate(text string) {
	if text == "" || c.narrating || c.narrationDisabled || !c.deps.Narrator.Available() {
		return
	}
	c.narrationID++
	id := c.narrationID
	ctx, cancel := context.WithCancel(c.runCtx)
	c.narrationCancel = cancel
	c.narrating = true

	go func() {
		err := c.deps.Narrator.Speak(ctx, text)
		c.post(event{kind: eventNarrationEnded, seq: id, err: err})
	}()
}

func (c *Controller) cancelNarration() {
	if c.narrationCancel != nil {
		c.narrationCancel()
		c.narrationCancel = nil
	}
	if c.narrating {
		c.narrationID++
		c.narrating = false
	}
}

func (c *Controller) onNarrationEnded(ev event) {
	if ev.seq != c.narrationID {
		return
	}
	c.narrating = false
	if c.narrationCancel != nil {
		c.narrationCancel()
		c.narrationCancel = nil
	}

	switch {
	case ev.err == nil, errors.Is(ev.err, context.Canceled):
	case errors.Is(ev.err, domain.ErrNarrationUnavailable):
		c.narrationDisabled = true
		c.log.Warn("narration disabled", "error", ev.err)
	default:
		c.log.Warn("narration failed", "error", ev.err)
	}
}

func (c *Controller) playClip(clip domain.Clip) {
	c.cancelNarration()
	c.cancelPlayback()
	c.playbackID++
	id := c.playbackID
	ctx, cancel := context.WithCancel(c.runCtx)
	c.playbackCancel = cancel

	go func() {
		err := c.deps.Player.Play(ctx, clip)
		c.post(event{kind: eventPlaybackEnded, seq: id, err: err})
	}()
}

func (c *Controller) cancelPlayback() {
	if c.playbackCancel != nil {
		c.playbackCancel()
		c.playbackCancel = nil
		c.playbackID++
	}
}

func (c *Controller) onPlaybackEnded(ev event) {
	if ev.seq != c.playbackID {
		return
	}
	if c.playbackCancel != nil {
		c.playbackCancel()
		c.playbackCancel = nil
	}
	err := ev.err
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err != nil {
		c.log.Warn("answer playback failed", "error", err)
	}
	c.nav.PlaybackEnded(err)
}

func (c *Controller) acquireDevice() {
	if c.device != nil || c.devicePending {
		return
	}
	c.deviceSeq++
	seq := c.deviceSeq
	c.devicePending = true
	ctx := c.runCtx

	go func() {
		device, err := c.deps.Capture.Acquire(ctx)
		if !c.post(event{kind: eventDevice, seq: seq, device: device, err: err}) && device != nil {
			_ = device.Release()
		}
	}()
}

func (c *Controller) onDevice(ev event) {
	stale := ev.seq != c.deviceSeq
	if !stale {
		c.devicePending = false
	}
	wanted := c.phase != fsm.PhaseReview && c.phase != fsm.PhaseComplete
	if stale || !wanted {
		if ev.device != nil {
			_ = ev.device.Release()
		}
		return
	}
	if ev.err != nil {
		c.noteDeviceError(ev.err)
	} else {
		c.device = ev.device
		c.log.Info("capture device ready", "device", ev.device.Name())
	}
	if c.startDeferred && c.phase == fsm.PhaseIdle {
		c.startRecording()
	}
}

func (c *Controller) releaseDevice() {
	if c.devicePending {
		c.deviceSeq++
		c.devicePending = false
	}
	if c.device == nil {
		return
	}
	if err := c.device.Release(); err != nil {
		c.log.Warn("capture device release failed", "error", err)
	}
	c.device = nil
}

// noteDeviceError keeps the first device failure for the rest of the session.
func (c *Controller) noteDeviceError(err error) {
	if c.deviceErr != "" {
		return
	}
	c.deviceErr = err.Error()
	c.log.Error("capture device unavailable", "error", err)
}

func (c *Controller) startUpload(clip domain.Clip) {
	c.uploadsInFlight++
	c.uploads.Add(1)
	ctx := c.uploadCtx
	interviewID := c.opts.Params.InterviewID

	go func() {
		defer c.uploads.Done()
		err := c.deps.Uploader.Upload(ctx, interviewID, clip)
		c.post(event{kind: eventUpload, index: clip.QuestionIndex, err: err})
	}()
}

func (c *Controller) onUpload(ev event) {
	c.uploadsInFlight--
	if ev.err != nil {
		c.uploadsFailed++
		c.lastUploadErr = ev.err.Error()
		c.log.Error("answer upload failed", "question_index", ev.index, "error", ev.err)
		return
	}
	c.uploadsSucceeded++
	c.log.Info("answer uploaded", "question_index", ev.index)
}
