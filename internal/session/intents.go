package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rbright/proctor/internal/domain"
	"github.com/rbright/proctor/internal/fsm"
	"github.com/rbright/proctor/internal/ipc"
	"github.com/rbright/proctor/internal/review"
)

var (
	// ErrInvalidIntent is returned when an intent does not apply to the current phase.
	ErrInvalidIntent = errors.New("intent not valid in current phase")
	// ErrReviewLocked is returned when leaving a review entered after the last question.
	ErrReviewLocked = errors.New("review entered after completion cannot be exited")
)

type intentKind string

const (
	intentStart       intentKind = "start answering"
	intentStop        intentKind = "stop answering"
	intentEnterReview intentKind = "enter review"
	intentExitReview  intentKind = "exit review"
	intentNext        intentKind = "next answer"
	intentPrevious    intentKind = "previous answer"
	intentReplay      intentKind = "replay question"
	intentPlay        intentKind = "play answer"
	intentStopPlay    intentKind = "stop playback"
)

type intentRequest struct {
	kind  intentKind
	reply chan error
}

// StartAnswering begins recording the current question ahead of the countdown.
func (c *Controller) StartAnswering(ctx context.Context) error {
	return c.submit(ctx, intentStart)
}

// StopAnswering ends the current recording early.
func (c *Controller) StopAnswering(ctx context.Context) error {
	return c.submit(ctx, intentStop)
}

// EnterReview freezes the session and opens the recorded answers.
func (c *Controller) EnterReview(ctx context.Context) error {
	return c.submit(ctx, intentEnterReview)
}

// ExitReview resumes the question that was pending when review began.
func (c *Controller) ExitReview(ctx context.Context) error {
	return c.submit(ctx, intentExitReview)
}

// ReviewNext moves the review cursor forward, clamping at the last answer.
func (c *Controller) ReviewNext(ctx context.Context) error {
	return c.submit(ctx, intentNext)
}

// ReviewPrevious moves the review cursor back, clamping at the first answer.
func (c *Controller) ReviewPrevious(ctx context.Context) error {
	return c.submit(ctx, intentPrevious)
}

// ReplayQuestion speaks the current question again. In review it speaks
// the question of the answer under the cursor.
func (c *Controller) ReplayQuestion(ctx context.Context) error {
	return c.submit(ctx, intentReplay)
}

// ReviewPlay plays the recorded answer under the review cursor.
func (c *Controller) ReviewPlay(ctx context.Context) error {
	return c.submit(ctx, intentPlay)
}

// ReviewStopPlayback stops answer playback started by ReviewPlay.
func (c *Controller) ReviewStopPlayback(ctx context.Context) error {
	return c.submit(ctx, intentStopPlay)
}

func (c *Controller) submit(ctx context.Context, kind intentKind) error {
	req := intentRequest{kind: kind, reply: make(chan error, 1)}
	select {
	case c.intents <- req:
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-req.reply
}

func (c *Controller) handleIntent(req intentRequest) {
	err := c.applyIntent(req.kind)
	if err != nil {
		c.log.Debug("intent rejected", "intent", req.kind, "phase", c.phase, "error", err)
	}
	c.publish()
	req.reply <- err
}

func (c *Controller) applyIntent(kind intentKind) error {
	switch kind {
	case intentStart:
		if c.phase != fsm.PhaseIdle {
			return c.invalid(kind)
		}
		c.requestStart()
	case intentStop:
		if c.phase != fsm.PhaseRecording {
			return c.invalid(kind)
		}
		c.stopRecording()
	case intentEnterReview:
		if c.phase != fsm.PhaseIdle && c.phase != fsm.PhaseComplete {
			return c.invalid(kind)
		}
		if len(c.clips) == 0 {
			return review.ErrNoClips
		}
		from := c.phase
		if err := c.transition(fsm.EventEnterReview); err != nil {
			return err
		}
		c.reviewFrom = from
		c.cancelNarration()
		c.clearDeferredStart()
		c.releaseDevice()
		return c.nav.Enter(append([]domain.Clip(nil), c.clips...))
	case intentExitReview:
		if c.phase != fsm.PhaseReview {
			return c.invalid(kind)
		}
		if c.reviewFrom == fsm.PhaseComplete {
			return ErrReviewLocked
		}
		c.cancelNarration()
		if err := c.transition(fsm.EventExitReview); err != nil {
			return err
		}
		if err := c.nav.Exit(); err != nil {
			return err
		}
		c.enterIdle(false)
	case intentNext:
		if c.phase != fsm.PhaseReview {
			return c.invalid(kind)
		}
		_, err := c.nav.Next()
		return err
	case intentPrevious:
		if c.phase != fsm.PhaseReview {
			return c.invalid(kind)
		}
		_, err := c.nav.Previous()
		return err
	case intentReplay:
		return c.replay(kind)
	case intentPlay:
		if c.phase != fsm.PhaseReview {
			return c.invalid(kind)
		}
		return c.nav.Play()
	case intentStopPlay:
		if c.phase != fsm.PhaseReview {
			return c.invalid(kind)
		}
		c.nav.StopPlayback()
	default:
		return c.invalid(kind)
	}
	return nil
}

func (c *Controller) replay(kind intentKind) error {
	if c.narrationDisabled || !c.deps.Narrator.Available() {
		return domain.ErrNarrationUnavailable
	}
	switch c.phase {
	case fsm.PhaseIdle:
		c.cancelNarration()
		c.narrate(c.questions[c.index])
		return nil
	case fsm.PhaseReview:
		c.cancelNarration()
		c.nav.StopPlayback()
		return c.nav.ReplayNarration()
	default:
		return c.invalid(kind)
	}
}

func (c *Controller) invalid(kind intentKind) error {
	return fmt.Errorf("%w: %s during %s", ErrInvalidIntent, kind, c.phase)
}

// Handle serves control socket requests against the running session.
func (c *Controller) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	var err error
	switch req.Command {
	case ipc.CommandStatus:
	case ipc.CommandStart:
		err = c.StartAnswering(ctx)
	case ipc.CommandStop:
		err = c.StopAnswering(ctx)
	case ipc.CommandReview:
		err = c.EnterReview(ctx)
	case ipc.CommandExitReview:
		err = c.ExitReview(ctx)
	case ipc.CommandNext:
		err = c.ReviewNext(ctx)
	case ipc.CommandPrev:
		err = c.ReviewPrevious(ctx)
	case ipc.CommandReplay:
		err = c.ReplayQuestion(ctx)
	case ipc.CommandPlay:
		err = c.ReviewPlay(ctx)
	case ipc.CommandStopPlayback:
		err = c.ReviewStopPlayback(ctx)
	default:
		return ipc.Response{OK: false, State: string(c.Snapshot().Phase), Error: fmt.Sprintf("unknown command %q", req.Command)}
	}

	snap := c.Snapshot()
	resp := ipc.Response{OK: err == nil, State: string(snap.Phase)}
	if err != nil {
		resp.Error = err.Error()
	} else if req.Command != ipc.CommandStatus {
		resp.Message = req.Command
	}
	if raw, merr := json.Marshal(snap); merr == nil {
		resp.Snapshot = raw
	}
	return resp
}
