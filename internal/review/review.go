// Package review navigates recorded answers after (or between) questions.
package review

import (
	"errors"

	"github.com/rbright/proctor/internal/domain"
)

// ErrNoClips is returned when review is entered with nothing recorded.
var ErrNoClips = errors.New("no recorded answers to review")

// ErrInactive is returned when navigating outside an active review.
var ErrInactive = errors.New("review is not active")

// ErrEmptyClip is returned when playing an answer that recorded nothing.
var ErrEmptyClip = errors.New("nothing was recorded for this answer")

// Hooks connect the navigator to narration, playback and device control.
type Hooks struct {
	Speak func(text string)
	// Play starts playback of clip; StopPlayback cancels it.
	Play         func(clip domain.Clip)
	StopPlayback func()
	Exit         func()
}

// View is the externally visible review state.
type View struct {
	Active  bool   `json:"active"`
	Index   int    `json:"index"`
	Count   int    `json:"count"`
	Clip    int    `json:"question_index"`
	Text    string `json:"question"`
	Bytes   int    `json:"bytes"`
	HasPrev bool   `json:"has_prev"`
	HasNext bool   `json:"has_next"`
	Playing bool   `json:"playing"`
	// PlaybackError holds the last failed playback of the answer under the cursor.
	PlaybackError string `json:"playback_error,omitempty"`
}

// Navigator holds the review cursor. It is not safe for concurrent use.
type Navigator struct {
	hooks  Hooks
	clips  []domain.Clip
	cursor int
	active bool

	playing     bool
	playbackErr string
}

// New returns an inactive navigator.
func New(hooks Hooks) *Navigator {
	return &Navigator{hooks: hooks}
}

// Enter starts review at the first clip.
func (n *Navigator) Enter(clips []domain.Clip) error {
	if len(clips) == 0 {
		return ErrNoClips
	}
	n.clips = clips
	n.cursor = 0
	n.active = true
	n.playing = false
	n.playbackErr = ""
	return nil
}

// Active reports whether a review is in progress.
func (n *Navigator) Active() bool {
	return n.active
}

// Next moves to the following clip, staying put on the last one.
func (n *Navigator) Next() (domain.Clip, error) {
	if !n.active {
		return domain.Clip{}, ErrInactive
	}
	n.StopPlayback()
	if n.cursor < len(n.clips)-1 {
		n.cursor++
		n.playbackErr = ""
	}
	return n.clips[n.cursor], nil
}

// Previous moves to the preceding clip, staying put on the first one.
func (n *Navigator) Previous() (domain.Clip, error) {
	if !n.active {
		return domain.Clip{}, ErrInactive
	}
	n.StopPlayback()
	if n.cursor > 0 {
		n.cursor--
		n.playbackErr = ""
	}
	return n.clips[n.cursor], nil
}

// Current returns the clip under the cursor.
func (n *Navigator) Current() (domain.Clip, error) {
	if !n.active {
		return domain.Clip{}, ErrInactive
	}
	return n.clips[n.cursor], nil
}

// ReplayNarration speaks the current clip's question again.
func (n *Navigator) ReplayNarration() error {
	clip, err := n.Current()
	if err != nil {
		return err
	}
	if n.hooks.Speak != nil {
		n.hooks.Speak(clip.Question)
	}
	return nil
}

// Play starts playback of the recorded answer under the cursor, restarting
// it when already playing.
func (n *Navigator) Play() error {
	clip, err := n.Current()
	if err != nil {
		return err
	}
	if clip.Empty() {
		return ErrEmptyClip
	}
	n.StopPlayback()
	n.playing = true
	n.playbackErr = ""
	if n.hooks.Play != nil {
		n.hooks.Play(clip)
	}
	return nil
}

// StopPlayback cancels the running playback, if any.
func (n *Navigator) StopPlayback() {
	if !n.playing {
		return
	}
	n.playing = false
	if n.hooks.StopPlayback != nil {
		n.hooks.StopPlayback()
	}
}

// PlaybackEnded records that playback finished on its own or failed.
func (n *Navigator) PlaybackEnded(err error) {
	if !n.playing {
		return
	}
	n.playing = false
	if err != nil {
		n.playbackErr = err.Error()
	}
}

// Exit discards the cursor and asks for the capture device back.
func (n *Navigator) Exit() error {
	if !n.active {
		return ErrInactive
	}
	n.StopPlayback()
	n.playbackErr = ""
	n.active = false
	n.clips = nil
	n.cursor = 0
	if n.hooks.Exit != nil {
		n.hooks.Exit()
	}
	return nil
}

// View reports the navigator state for display.
func (n *Navigator) View() View {
	if !n.active {
		return View{}
	}
	clip := n.clips[n.cursor]
	return View{
		Active:  true,
		Index:   n.cursor,
		Count:   len(n.clips),
		Clip:    clip.QuestionIndex,
		Text:    clip.Question,
		Bytes:   len(clip.Media),
		HasPrev: n.cursor > 0,
		HasNext: n.cursor < len(n.clips)-1,
		Playing: n.playing,

		PlaybackError: n.playbackErr,
	}
}
