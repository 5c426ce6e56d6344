package websocket

import "github.com/guardianview/guardian-backend/internal/media"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	// ActionVisibility reports that the exam tab was hidden (tab switch
	// or window minimize).
	ActionVisibility Action = "visibility"
	// ActionTrack reports a track transition (ended, mute, unmute).
	ActionTrack Action = "track"
	// ActionDeviceChange reports a system device-set change.
	ActionDeviceChange Action = "devicechange"
	// ActionFullscreen reports the result of a fullscreen request.
	ActionFullscreen Action = "fullscreen"
	// ActionAnswer saves a single answer.
	ActionAnswer Action = "answer"
	// ActionFlag toggles a question's review flag.
	ActionFlag Action = "flag"
	// ActionAck acknowledges the active warning dialog.
	ActionAck Action = "ack"
	// ActionSubmit requests manual submission.
	ActionSubmit Action = "submit"
	ActionPing   Action = "ping"
)

// RequestPayload is the single client message shape; fields are read
// depending on Action.
type RequestPayload struct {
	Action     Action          `json:"action"`
	QuestionID string          `json:"question_id,omitempty"`
	OptionID   string          `json:"option_id,omitempty"`
	Role       media.Role      `json:"role,omitempty"`
	Kind       media.TrackKind `json:"kind,omitempty"`
	Enabled    bool            `json:"enabled,omitempty"`
	Muted      bool            `json:"muted,omitempty"`
	Active     bool            `json:"active,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventWarning   Event = "warning"
	EventState     Event = "state"
	EventSaved     Event = "saved"
	EventSubmitted Event = "submitted"
	EventError     Event = "error"
	EventPong      Event = "pong"
)

// WarningResponse carries the advisory (or fallback) warning text shown in
// the warning dialog.
type WarningResponse struct {
	Event   Event  `json:"event"`
	Message string `json:"message"`
}

// StateResponse carries a fresh session snapshot.
type StateResponse struct {
	Event Event       `json:"event"`
	State interface{} `json:"state"`
}

type SavedResponse struct {
	Event  Event  `json:"event"`
	Status string `json:"status"`
}

type SubmittedResponse struct {
	Event    Event `json:"event"`
	TimedOut bool  `json:"timed_out"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
