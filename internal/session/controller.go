// Package session implements the exam session state machine: phase
// transitions, the countdown, violation recording and the visibility
// warning lifecycle. External event sources (visibility changes, media
// state reports, the per-second timer) feed signals into a Controller;
// the Controller is the single authority over the session's phase.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/guardianview/guardian-backend/internal/advisory"
	"github.com/guardianview/guardian-backend/internal/model"
)

// PairingGate is consulted at start time for the secondary-camera
// confirmation. Confirmation is self-reported by the candidate; there is no
// automated device verification.
type PairingGate interface {
	Confirmed() bool
}

// StartRefusal names the precondition that blocked RequestStart.
// Empty means the session started.
type StartRefusal string

const (
	RefusalNone           StartRefusal = ""
	RefusalMediaInactive  StartRefusal = "MEDIA_INACTIVE"
	RefusalPairingPending StartRefusal = "PAIRING_PENDING"
	RefusalGuidelines     StartRefusal = "GUIDELINES_NOT_ACCEPTED"
	RefusalAlreadyStarted StartRefusal = "ALREADY_STARTED"
)

var (
	// ErrNotInProgress is returned for answer, flag and navigation calls
	// outside the InProgress phase. The session state is left untouched.
	ErrNotInProgress = errors.New("exam session is not in progress")

	// ErrIncomplete blocks manual submission while any question is
	// unanswered. Timeout submission bypasses this check.
	ErrIncomplete = errors.New("not every question has been answered")
)

// Controller owns one candidate's exam session. All methods are safe for
// concurrent use; the internal mutex gives violation recording and phase
// transitions a single total order.
type Controller struct {
	mu sync.Mutex

	id        uuid.UUID
	candidate string

	phase     model.Phase
	remaining int
	timedOut  bool

	guidelinesAccepted bool
	media              model.MediaState
	mediaEpisode       bool

	violations []model.Violation

	// fullscreen models the tab's exclusive presentation resource.
	// Acquire-while-held and release-while-not-held are no-ops.
	fullscreen bool

	warningOpen   bool
	activeWarning string
	warningSeq    uint64

	paper *Paper
	gate  PairingGate
	sink  func(model.Violation)
	now   func() time.Time
	log   zerolog.Logger
}

// New creates a Controller in the NotStarted phase with the full countdown.
// sink, if non-nil, is invoked synchronously for every recorded violation
// and must not call back into the Controller.
func New(candidate string, duration time.Duration, paper *Paper, gate PairingGate, sink func(model.Violation), log zerolog.Logger) *Controller {
	return &Controller{
		id:        uuid.New(),
		candidate: candidate,
		phase:     model.PhaseNotStarted,
		remaining: int(duration / time.Second),
		paper:     paper,
		gate:      gate,
		sink:      sink,
		now:       time.Now,
		log:       log.With().Str("component", "session").Str("candidate", candidate).Logger(),
	}
}

// ID returns the session identifier.
func (c *Controller) ID() uuid.UUID {
	return c.id
}

// Candidate returns the owning candidate's username.
func (c *Controller) Candidate() string {
	return c.candidate
}

// SetGuidelinesAccepted records the guidelines checkbox. Only meaningful
// before the session starts.
func (c *Controller) SetGuidelinesAccepted(accepted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != model.PhaseNotStarted {
		return
	}
	c.guidelinesAccepted = accepted
}

// ApplyMediaState ingests a freshly derived media state. While the exam is
// in progress a degradation opens a MediaRevoked episode and records exactly
// one violation; repeated reports of the same standing condition are
// absorbed until both tracks come back, which closes the episode and
// re-arms detection.
func (c *Controller) ApplyMediaState(ms model.MediaState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase == model.PhaseSubmitted {
		return
	}
	c.media = ms

	if ms.VideoActive && ms.AudioActive {
		c.mediaEpisode = false
		return
	}
	if c.phase != model.PhaseInProgress {
		return
	}
	if c.mediaEpisode {
		return
	}
	msg := ms.LastError
	if msg == "" {
		msg = "Webcam or microphone is no longer active."
	}
	c.recordViolationLocked(model.CauseMediaRevoked, msg)
	c.mediaEpisode = true
}

// RequestStart transitions the session to InProgress when every start
// precondition holds, and returns the blocking refusal otherwise. Starting
// also requests exclusive fullscreen presentation; fullscreen is best-effort
// and its failure does not undo the start.
func (c *Controller) RequestStart() StartRefusal {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != model.PhaseNotStarted {
		return RefusalAlreadyStarted
	}
	if !c.media.VideoActive || !c.media.AudioActive {
		return RefusalMediaInactive
	}
	if c.gate == nil || !c.gate.Confirmed() {
		return RefusalPairingPending
	}
	if !c.guidelinesAccepted {
		return RefusalGuidelines
	}

	c.phase = model.PhaseInProgress
	c.fullscreen = true
	c.log.Info().Int("duration_seconds", c.remaining).Msg("Exam started")
	return RefusalNone
}

// Tick is the once-per-second countdown signal. It decrements the remaining
// time while the exam is in progress; reaching zero submits the session
// exactly once. The returned bool reports whether the session is finished,
// letting the timer loop stop itself.
func (c *Controller) Tick() (done bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != model.PhaseInProgress {
		return c.phase == model.PhaseSubmitted
	}
	if c.remaining > 0 {
		c.remaining--
	}
	if c.remaining == 0 && !c.timedOut {
		c.timedOut = true
		c.log.Info().Msg("Time expired, submitting automatically")
		c.finalizeLocked()
	}
	return c.phase == model.PhaseSubmitted
}

// Submit is the manual submission path. It requires an in-progress session
// with every question answered; calling it on an already submitted session
// is a no-op. Timeout submission happens inside Tick and bypasses the
// completeness check.
func (c *Controller) Submit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.phase {
	case model.PhaseSubmitted:
		return nil
	case model.PhaseNotStarted:
		return ErrNotInProgress
	}
	if !c.paper.IsComplete() {
		return ErrIncomplete
	}
	c.finalizeLocked()
	return nil
}

// finalizeLocked moves the session to its terminal phase and freezes every
// mutable sub-entity. Must be called with the mutex held.
func (c *Controller) finalizeLocked() {
	c.phase = model.PhaseSubmitted
	c.fullscreen = false
	c.warningOpen = false
	c.activeWarning = ""
	c.warningSeq++ // Discard any in-flight advisory text.
	c.paper.Freeze()
	c.log.Info().
		Bool("timed_out", c.timedOut).
		Int("violations", len(c.violations)).
		Msg("Exam submitted")
}

// RecordViolation appends a violation while the exam is in progress.
// Violations reported before the start or after submission are discarded.
func (c *Controller) RecordViolation(cause model.ViolationCause, message string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != model.PhaseInProgress {
		return false
	}
	if cause == model.CauseMediaRevoked {
		if c.mediaEpisode {
			return false
		}
		c.mediaEpisode = true
	}
	c.recordViolationLocked(cause, message)
	return true
}

func (c *Controller) recordViolationLocked(cause model.ViolationCause, message string) {
	v := model.Violation{Cause: cause, Message: message, Timestamp: c.now()}
	c.violations = append(c.violations, v)
	c.log.Warn().Str("cause", string(cause)).Str("message", message).Msg("Violation recorded")
	if c.sink != nil {
		c.sink(v)
	}
}

// OnVisibilityHidden handles a tab switch or window minimize. While the
// exam is in progress and no warning dialog is open, it records a TabSwitch
// violation, opens the dialog with the fixed fallback text and drops
// fullscreen. The returned sequence number lets the caller upgrade the
// dialog text via SetWarningText once the advisory call returns; further
// hidden events are ignored until the candidate acknowledges.
func (c *Controller) OnVisibilityHidden() (opened bool, seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != model.PhaseInProgress || c.warningOpen {
		return false, 0
	}
	c.warningOpen = true
	c.activeWarning = advisory.FallbackTabSwitchWarning
	c.fullscreen = false
	c.recordViolationLocked(model.CauseTabSwitch, "Navigated away from the exam tab.")
	return true, c.warningSeq
}

// SetWarningText replaces the displayed warning with advisory-generated
// text. A result that arrives after the dialog was acknowledged (or after
// submission) carries a stale sequence number and is discarded.
func (c *Controller) SetWarningText(seq uint64, text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.warningOpen || seq != c.warningSeq || text == "" {
		return false
	}
	c.activeWarning = text
	return true
}

// AcknowledgeWarning closes the warning dialog, re-requests fullscreen and
// re-arms visibility detection.
func (c *Controller) AcknowledgeWarning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.warningOpen {
		return false
	}
	c.warningOpen = false
	c.activeWarning = ""
	c.warningSeq++
	if c.phase == model.PhaseInProgress {
		c.fullscreen = true
	}
	return true
}

// ReportFullscreen syncs the fullscreen flag with what the client actually
// achieved. Fullscreen is an enhancement, never a precondition, so a failed
// acquisition changes nothing else.
func (c *Controller) ReportFullscreen(active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == model.PhaseSubmitted {
		return
	}
	c.fullscreen = active
}

// RecordAnswer overwrites the answer to a question. Valid only while the
// exam is in progress.
func (c *Controller) RecordAnswer(questionID, optionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != model.PhaseInProgress {
		return ErrNotInProgress
	}
	return c.paper.RecordAnswer(questionID, optionID)
}

// ToggleFlag flips a question's review flag. Valid only while the exam is
// in progress.
func (c *Controller) ToggleFlag(questionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != model.PhaseInProgress {
		return ErrNotInProgress
	}
	return c.paper.ToggleFlag(questionID)
}

// GoTo moves the current question position, clamped to the paper bounds.
func (c *Controller) GoTo(index int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != model.PhaseInProgress {
		return c.paper.Index(), ErrNotInProgress
	}
	return c.paper.GoTo(index), nil
}

// Questions exposes the static paper for rendering.
func (c *Controller) Questions() []model.Question {
	return c.paper.Questions()
}

// Snapshot returns a consistent read-only view of the session.
func (c *Controller) Snapshot() model.SessionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	violations := make([]model.Violation, len(c.violations))
	copy(violations, c.violations)

	return model.SessionSnapshot{
		ID:                   c.id,
		Candidate:            c.candidate,
		Phase:                c.phase,
		TimeRemainingSeconds: c.remaining,
		TimedOut:             c.timedOut,
		PairingConfirmed:     c.gate != nil && c.gate.Confirmed(),
		GuidelinesAccepted:   c.guidelinesAccepted,
		Media:                c.media,
		Fullscreen:           c.fullscreen,
		ActiveWarning:        c.activeWarning,
		Violations:           violations,
		AnsweredCount:        c.paper.AnsweredCount(),
		QuestionCount:        len(c.paper.Questions()),
		Complete:             c.paper.IsComplete(),
	}
}
