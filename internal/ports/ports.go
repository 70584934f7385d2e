// Package ports declares the collaborator contracts the session controller drives.
package ports

import (
	"context"

	"github.com/rbright/proctor/internal/domain"
)

// QuestionSource loads the ordered question list for a job.
type QuestionSource interface {
	FetchQuestions(ctx context.Context, jobID string) ([]string, error)
}

// Uploader submits one recorded answer.
type Uploader interface {
	Upload(ctx context.Context, interviewID string, clip domain.Clip) error
}

// CaptureProvider acquires exclusive access to the camera and microphone.
type CaptureProvider interface {
	Acquire(ctx context.Context) (CaptureDevice, error)
}

// CaptureDevice is an acquired capture handle. Release is idempotent.
type CaptureDevice interface {
	Name() string
	StartRecording(ctx context.Context) (Recording, error)
	Release() error
}

// Recording is one in-progress capture.
type Recording interface {
	// Stop finalizes the container and returns the clip bytes.
	Stop(ctx context.Context) ([]byte, error)
}

// Narrator speaks question text aloud.
type Narrator interface {
	Available() bool
	// Speak blocks until playback ends; cancelling ctx stops playback.
	Speak(ctx context.Context, text string) error
}

// ClipPlayer plays a recorded answer back. Play blocks until playback ends;
// cancelling ctx stops it.
type ClipPlayer interface {
	Play(ctx context.Context, clip domain.Clip) error
}

// Indicator surfaces recording cues to the candidate.
type Indicator interface {
	RecordingStarted(ctx context.Context)
	RecordingStopped(ctx context.Context)
	SessionComplete(ctx context.Context)
}
