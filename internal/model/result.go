package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamResult is the audit record written when a session reaches its
// terminal phase.
type ExamResult struct {
	SessionID      uuid.UUID `json:"session_id"`
	Candidate      string    `json:"candidate"`
	TimedOut       bool      `json:"timed_out"`
	AnsweredCount  int       `json:"answered_count"`
	QuestionCount  int       `json:"question_count"`
	ViolationCount int       `json:"violation_count"`
	SubmittedAt    time.Time `json:"submitted_at"`

	// Violations holds the session's audited violation rows, attached
	// when the result is read back for the history view.
	Violations []Violation `json:"violations"`
}
