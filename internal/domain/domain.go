// Package domain holds the shared interview-session types and error sentinels.
package domain

import (
	"errors"
	"time"
)

var (
	ErrDeviceDenied         = errors.New("capture device unavailable")
	ErrNarrationUnavailable = errors.New("narration unavailable")
	ErrQuestionFetchFailed  = errors.New("question fetch failed")
	ErrUploadFailed         = errors.New("upload failed")
	ErrPlaybackUnavailable  = errors.New("answer playback unavailable")
)

// DefaultQuestion is asked when the question source cannot be reached.
const DefaultQuestion = "Tell me about yourself and your experience."

// Params carries the identifiers a session is started with.
type Params struct {
	JobID       string
	InterviewID string
}

// Clip is one recorded answer. It is immutable once created.
type Clip struct {
	QuestionIndex int
	Question      string
	Media         []byte
	CreatedAt     time.Time
}

// Empty reports whether the capture produced no media.
func (c Clip) Empty() bool {
	return len(c.Media) == 0
}
