package session

import (
	"time"

	"github.com/rbright/proctor/internal/domain"
	"github.com/rbright/proctor/internal/fsm"
	"github.com/rbright/proctor/internal/review"
)

// Snapshot is the presentation view of the session.
type Snapshot struct {
	Phase              fsm.Phase   `json:"phase"`
	QuestionIndex      int         `json:"question_index"`
	QuestionCount      int         `json:"question_count"`
	Question           string      `json:"question,omitempty"`
	TimeLeft           int         `json:"time_left"`
	AnswerSeconds      int         `json:"answer_seconds"`
	AutoStartCountdown int         `json:"auto_start_countdown"`
	Narrating          bool        `json:"narrating"`
	NarrationDisabled  bool        `json:"narration_disabled"`
	Recording          bool        `json:"recording"`
	Uploading          bool        `json:"uploading"`
	DeviceReady        bool        `json:"device_ready"`
	DevicePending      bool        `json:"device_pending"`
	StartDeferred      bool        `json:"start_deferred"`
	DeviceName         string      `json:"device_name,omitempty"`
	Error              string      `json:"error,omitempty"`
	Warning            string      `json:"warning,omitempty"`
	FallbackQuestions  bool        `json:"fallback_questions"`
	ClipCount          int         `json:"clip_count"`
	UploadsInFlight    int         `json:"uploads_in_flight"`
	UploadsSucceeded   int         `json:"uploads_succeeded"`
	UploadsFailed      int         `json:"uploads_failed"`
	LastUploadError    string      `json:"last_upload_error,omitempty"`
	CanExitReview      bool        `json:"can_exit_review"`
	Review             review.View `json:"review"`
}

// Result summarizes one Run.
type Result struct {
	Phase             fsm.Phase
	Questions         []string
	Clips             []domain.Clip
	FallbackQuestions bool
	UploadsSucceeded  int
	UploadsFailed     int
	UploadsSkipped    int
	UploadsAbandoned  int
	DeviceError       string
	Err               error
	StartedAt         time.Time
	FinishedAt        time.Time
}
