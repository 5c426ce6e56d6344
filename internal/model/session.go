package model

import (
	"time"

	"github.com/google/uuid"
)

// Phase enumerates the coarse lifecycle states of an exam session.
// Transitions are monotonic: NotStarted → InProgress → Submitted.
type Phase string

const (
	PhaseNotStarted Phase = "NOT_STARTED"
	PhaseInProgress Phase = "IN_PROGRESS"
	PhaseSubmitted  Phase = "SUBMITTED"
)

// ViolationCause enumerates the recognized policy breach categories.
type ViolationCause string

const (
	CauseTabSwitch    ViolationCause = "TAB_SWITCH"
	CauseMediaRevoked ViolationCause = "MEDIA_REVOKED"
)

// Violation is a recorded policy breach. Immutable once created.
type Violation struct {
	Cause     ViolationCause `json:"cause"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
}

// MediaState is the derived health of the candidate's webcam and microphone.
// It is recomputed from track state, never persisted.
type MediaState struct {
	VideoActive bool   `json:"video_active"`
	AudioActive bool   `json:"audio_active"`
	LastError   string `json:"last_error,omitempty"`
}

// SessionSnapshot is the read-only view of a live exam session returned to
// the client.
type SessionSnapshot struct {
	ID                   uuid.UUID   `json:"id"`
	Candidate            string      `json:"candidate"`
	Phase                Phase       `json:"phase"`
	TimeRemainingSeconds int         `json:"time_remaining_seconds"`
	TimedOut             bool        `json:"timed_out"`
	PairingConfirmed     bool        `json:"pairing_confirmed"`
	GuidelinesAccepted   bool        `json:"guidelines_accepted"`
	Media                MediaState  `json:"media"`
	Fullscreen           bool        `json:"fullscreen"`
	ActiveWarning        string      `json:"active_warning,omitempty"`
	Violations           []Violation `json:"violations"`
	AnsweredCount        int         `json:"answered_count"`
	QuestionCount        int         `json:"question_count"`
	Complete             bool        `json:"complete"`
}

// LoginRequest is the credential payload. There is no real identity
// verification: any non-empty pair succeeds.
type LoginRequest struct {
	Username string `json:"username" binding:"required,min=1,max=100"`
	Password string `json:"password" binding:"required,min=1,max=100"`
}

// AnswerRequest records or overwrites the answer to a single question.
type AnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required,max=40"`
	OptionID   string `json:"option_id" binding:"required,max=40"`
}

// GuidelinesRequest toggles the guidelines-accepted checkbox.
type GuidelinesRequest struct {
	Accepted bool `json:"accepted"`
}
