// Package fsm defines the interview session phases and their legal transitions.
package fsm

import "fmt"

type Phase string

type Event string

const (
	PhaseLoading    Phase = "loading"
	PhaseIdle       Phase = "idle"
	PhaseRecording  Phase = "recording"
	PhaseProcessing Phase = "processing"
	PhaseComplete   Phase = "complete"
	PhaseReview     Phase = "review"
)

const (
	EventLoaded      Event = "loaded"
	EventLoadedEmpty Event = "loaded_empty"
	EventStart       Event = "start"
	EventStop        Event = "stop"
	EventAdvance     Event = "advance"
	EventFinish      Event = "finish"
	EventEnterReview Event = "enter_review"
	EventExitReview  Event = "exit_review"
)

// Transition returns the phase reached from current on event.
//
// Review is reachable from idle and complete only; leaving review always
// lands in idle, so the caller must reject exit when review was entered
// from complete.
func Transition(current Phase, event Event) (Phase, error) {
	switch current {
	case PhaseLoading:
		switch event {
		case EventLoaded:
			return PhaseIdle, nil
		case EventLoadedEmpty:
			return PhaseComplete, nil
		default:
			return current, invalidTransition(current, event)
		}
	case PhaseIdle:
		switch event {
		case EventStart:
			return PhaseRecording, nil
		case EventEnterReview:
			return PhaseReview, nil
		default:
			return current, invalidTransition(current, event)
		}
	case PhaseRecording:
		switch event {
		case EventStop:
			return PhaseProcessing, nil
		default:
			return current, invalidTransition(current, event)
		}
	case PhaseProcessing:
		switch event {
		case EventAdvance:
			return PhaseIdle, nil
		case EventFinish:
			return PhaseComplete, nil
		default:
			return current, invalidTransition(current, event)
		}
	case PhaseReview:
		switch event {
		case EventExitReview:
			return PhaseIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case PhaseComplete:
		switch event {
		case EventEnterReview:
			return PhaseReview, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown phase %q", current)
	}
}

// Terminal reports whether no further session activity follows phase.
func (p Phase) Terminal() bool {
	return p == PhaseComplete
}

func invalidTransition(phase Phase, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", phase, event)
}
