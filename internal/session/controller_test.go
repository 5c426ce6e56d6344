package session

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/guardianview/guardian-backend/internal/advisory"
	"github.com/guardianview/guardian-backend/internal/model"
)

type stubGate struct {
	confirmed bool
}

func (g *stubGate) Confirmed() bool { return g.confirmed }

func activeMedia() model.MediaState {
	return model.MediaState{VideoActive: true, AudioActive: true}
}

// newTestController returns a ready-to-start controller: live media,
// confirmed pairing, accepted guidelines.
func newTestController(t *testing.T) (*Controller, *stubGate) {
	t.Helper()
	gate := &stubGate{confirmed: true}
	c := New("alice", 1800*time.Second, DefaultPaper(), gate, nil, zerolog.Nop())
	c.ApplyMediaState(activeMedia())
	c.SetGuidelinesAccepted(true)
	return c, gate
}

func startController(t *testing.T) *Controller {
	t.Helper()
	c, _ := newTestController(t)
	if refusal := c.RequestStart(); refusal != RefusalNone {
		t.Fatalf("RequestStart refused: %q", refusal)
	}
	return c
}

func answerAll(t *testing.T, c *Controller) {
	t.Helper()
	for _, q := range c.Questions() {
		if err := c.RecordAnswer(q.ID, q.Options[0].ID); err != nil {
			t.Fatalf("RecordAnswer(%s): %v", q.ID, err)
		}
	}
}

func TestRequestStartPreconditions(t *testing.T) {
	tests := []struct {
		name       string
		media      model.MediaState
		pairing    bool
		guidelines bool
		want       StartRefusal
	}{
		{"all satisfied", activeMedia(), true, true, RefusalNone},
		{"video inactive", model.MediaState{AudioActive: true}, true, true, RefusalMediaInactive},
		{"audio inactive", model.MediaState{VideoActive: true}, true, true, RefusalMediaInactive},
		{"pairing pending", activeMedia(), false, true, RefusalPairingPending},
		{"guidelines not accepted", activeMedia(), true, false, RefusalGuidelines},
		// Media is checked before pairing, pairing before guidelines.
		{"media reported first", model.MediaState{}, false, false, RefusalMediaInactive},
		{"pairing reported before guidelines", activeMedia(), false, false, RefusalPairingPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := &stubGate{confirmed: tt.pairing}
			c := New("alice", 1800*time.Second, DefaultPaper(), gate, nil, zerolog.Nop())
			c.ApplyMediaState(tt.media)
			c.SetGuidelinesAccepted(tt.guidelines)

			if got := c.RequestStart(); got != tt.want {
				t.Errorf("RequestStart() = %q, want %q", got, tt.want)
			}

			snap := c.Snapshot()
			if tt.want == RefusalNone {
				if snap.Phase != model.PhaseInProgress {
					t.Errorf("phase = %s, want %s", snap.Phase, model.PhaseInProgress)
				}
				if !snap.Fullscreen {
					t.Error("starting should request fullscreen")
				}
			} else if snap.Phase != model.PhaseNotStarted {
				t.Errorf("refused start must not change phase, got %s", snap.Phase)
			}
		})
	}
}

func TestRequestStartTwice(t *testing.T) {
	c := startController(t)
	if got := c.RequestStart(); got != RefusalAlreadyStarted {
		t.Errorf("second RequestStart() = %q, want %q", got, RefusalAlreadyStarted)
	}
}

func TestGuidelinesLockedAfterStart(t *testing.T) {
	c := startController(t)
	c.SetGuidelinesAccepted(false)
	if !c.Snapshot().GuidelinesAccepted {
		t.Error("guidelines acceptance must not change after start")
	}
}

func TestCountdownAndTimeoutSubmit(t *testing.T) {
	gate := &stubGate{confirmed: true}
	c := New("alice", 3*time.Second, DefaultPaper(), gate, nil, zerolog.Nop())
	c.ApplyMediaState(activeMedia())
	c.SetGuidelinesAccepted(true)
	if refusal := c.RequestStart(); refusal != RefusalNone {
		t.Fatalf("RequestStart refused: %q", refusal)
	}

	if done := c.Tick(); done {
		t.Fatal("session finished with 2s remaining")
	}
	if got := c.Snapshot().TimeRemainingSeconds; got != 2 {
		t.Fatalf("remaining = %d, want 2", got)
	}

	c.Tick()
	if done := c.Tick(); !done {
		t.Fatal("Tick at zero must finish the session")
	}

	snap := c.Snapshot()
	if snap.Phase != model.PhaseSubmitted {
		t.Errorf("phase = %s, want %s", snap.Phase, model.PhaseSubmitted)
	}
	if !snap.TimedOut {
		t.Error("timeout submit must set TimedOut")
	}
	if snap.Complete {
		t.Error("timeout submit must not require completeness")
	}

	// Further ticks are no-ops on a submitted session.
	if done := c.Tick(); !done {
		t.Error("Tick on submitted session must report done")
	}
	if got := c.Snapshot().TimeRemainingSeconds; got != 0 {
		t.Errorf("remaining after extra tick = %d, want 0", got)
	}
}

func TestTickBeforeStart(t *testing.T) {
	c, _ := newTestController(t)
	if done := c.Tick(); done {
		t.Error("Tick before start must not finish the session")
	}
	if got := c.Snapshot().TimeRemainingSeconds; got != 1800 {
		t.Errorf("remaining = %d, countdown must not run before start", got)
	}
}

func TestManualSubmit(t *testing.T) {
	t.Run("before start", func(t *testing.T) {
		c, _ := newTestController(t)
		if err := c.Submit(); !errors.Is(err, ErrNotInProgress) {
			t.Errorf("Submit() = %v, want ErrNotInProgress", err)
		}
	})

	t.Run("incomplete", func(t *testing.T) {
		c := startController(t)
		if err := c.Submit(); !errors.Is(err, ErrIncomplete) {
			t.Errorf("Submit() = %v, want ErrIncomplete", err)
		}
		if c.Snapshot().Phase != model.PhaseInProgress {
			t.Error("refused submit must not change phase")
		}
	})

	t.Run("complete", func(t *testing.T) {
		c := startController(t)
		answerAll(t, c)
		if err := c.Submit(); err != nil {
			t.Fatalf("Submit() = %v", err)
		}
		snap := c.Snapshot()
		if snap.Phase != model.PhaseSubmitted {
			t.Errorf("phase = %s, want %s", snap.Phase, model.PhaseSubmitted)
		}
		if snap.TimedOut {
			t.Error("manual submit must not set TimedOut")
		}
		if snap.Fullscreen {
			t.Error("submission must release fullscreen")
		}

		// Second submit is an idempotent no-op.
		if err := c.Submit(); err != nil {
			t.Errorf("repeat Submit() = %v, want nil", err)
		}
	})
}

func TestAnswersFrozenAfterSubmit(t *testing.T) {
	c := startController(t)
	answerAll(t, c)
	if err := c.Submit(); err != nil {
		t.Fatalf("Submit() = %v", err)
	}

	q := c.Questions()[0]
	if err := c.RecordAnswer(q.ID, q.Options[1].ID); !errors.Is(err, ErrNotInProgress) {
		t.Errorf("RecordAnswer after submit = %v, want ErrNotInProgress", err)
	}
	if err := c.ToggleFlag(q.ID); !errors.Is(err, ErrNotInProgress) {
		t.Errorf("ToggleFlag after submit = %v, want ErrNotInProgress", err)
	}
	if _, err := c.GoTo(2); !errors.Is(err, ErrNotInProgress) {
		t.Errorf("GoTo after submit = %v, want ErrNotInProgress", err)
	}
}

func TestMediaRevokedEpisodeDedup(t *testing.T) {
	c := startController(t)

	degraded := model.MediaState{
		AudioActive: true,
		LastError:   "Webcam has been disconnected or disabled.",
	}

	c.ApplyMediaState(degraded)
	c.ApplyMediaState(degraded)
	c.ApplyMediaState(degraded)

	snap := c.Snapshot()
	if len(snap.Violations) != 1 {
		t.Fatalf("violations = %d, want exactly 1 per episode", len(snap.Violations))
	}
	if snap.Violations[0].Cause != model.CauseMediaRevoked {
		t.Errorf("cause = %s, want %s", snap.Violations[0].Cause, model.CauseMediaRevoked)
	}
	if snap.Violations[0].Message != degraded.LastError {
		t.Errorf("message = %q, want %q", snap.Violations[0].Message, degraded.LastError)
	}

	// Recovery closes the episode; the next degradation is a new violation.
	c.ApplyMediaState(activeMedia())
	c.ApplyMediaState(model.MediaState{VideoActive: true, LastError: "Microphone has been disconnected or disabled."})

	if got := len(c.Snapshot().Violations); got != 2 {
		t.Errorf("violations after recovery and second episode = %d, want 2", got)
	}
}

func TestMediaDegradationOutsideInProgress(t *testing.T) {
	c, _ := newTestController(t)

	c.ApplyMediaState(model.MediaState{AudioActive: true})
	if got := len(c.Snapshot().Violations); got != 0 {
		t.Errorf("violations before start = %d, want 0", got)
	}

	// State is still tracked, so starting is refused.
	if got := c.RequestStart(); got != RefusalMediaInactive {
		t.Errorf("RequestStart() = %q, want %q", got, RefusalMediaInactive)
	}
}

func TestMediaStateIgnoredAfterSubmit(t *testing.T) {
	c := startController(t)
	answerAll(t, c)
	if err := c.Submit(); err != nil {
		t.Fatalf("Submit() = %v", err)
	}

	c.ApplyMediaState(model.MediaState{})
	snap := c.Snapshot()
	if len(snap.Violations) != 0 {
		t.Errorf("violations after submit = %d, want 0", len(snap.Violations))
	}
	if !snap.Media.VideoActive {
		t.Error("media state must not change after submit")
	}
}

func TestVisibilityWarningLifecycle(t *testing.T) {
	c := startController(t)

	opened, seq := c.OnVisibilityHidden()
	if !opened {
		t.Fatal("first hidden event must open the warning")
	}

	snap := c.Snapshot()
	if snap.ActiveWarning != advisory.FallbackTabSwitchWarning {
		t.Errorf("warning = %q, want fallback text", snap.ActiveWarning)
	}
	if snap.Fullscreen {
		t.Error("hidden event must drop fullscreen")
	}
	if len(snap.Violations) != 1 || snap.Violations[0].Cause != model.CauseTabSwitch {
		t.Fatalf("want exactly one TAB_SWITCH violation, got %+v", snap.Violations)
	}

	// While the dialog is open, further hidden events are absorbed.
	if opened, _ := c.OnVisibilityHidden(); opened {
		t.Error("hidden event with open dialog must be ignored")
	}
	if got := len(c.Snapshot().Violations); got != 1 {
		t.Errorf("violations = %d, want 1", got)
	}

	// Advisory text upgrades the dialog while it is open.
	if !c.SetWarningText(seq, "Please stay on the exam tab.") {
		t.Error("SetWarningText with live seq must apply")
	}
	if got := c.Snapshot().ActiveWarning; got != "Please stay on the exam tab." {
		t.Errorf("warning = %q after upgrade", got)
	}

	// Acknowledging closes the dialog, restores fullscreen, re-arms detection.
	if !c.AcknowledgeWarning() {
		t.Fatal("AcknowledgeWarning must report success")
	}
	snap = c.Snapshot()
	if snap.ActiveWarning != "" {
		t.Errorf("warning after ack = %q, want empty", snap.ActiveWarning)
	}
	if !snap.Fullscreen {
		t.Error("ack must re-request fullscreen")
	}

	if opened, _ := c.OnVisibilityHidden(); !opened {
		t.Error("hidden event after ack must open a new warning")
	}
	if got := len(c.Snapshot().Violations); got != 2 {
		t.Errorf("violations = %d, want 2", got)
	}
}

func TestStaleWarningTextDiscarded(t *testing.T) {
	c := startController(t)

	_, seq := c.OnVisibilityHidden()
	c.AcknowledgeWarning()

	if c.SetWarningText(seq, "late advisory text") {
		t.Error("text arriving after ack must be discarded")
	}
	if got := c.Snapshot().ActiveWarning; got != "" {
		t.Errorf("warning = %q, want empty", got)
	}
}

func TestWarningTextEmptyRejected(t *testing.T) {
	c := startController(t)
	_, seq := c.OnVisibilityHidden()

	if c.SetWarningText(seq, "") {
		t.Error("empty warning text must be rejected")
	}
	if got := c.Snapshot().ActiveWarning; got != advisory.FallbackTabSwitchWarning {
		t.Errorf("warning = %q, fallback must survive", got)
	}
}

func TestVisibilityIgnoredOutsideInProgress(t *testing.T) {
	c, _ := newTestController(t)
	if opened, _ := c.OnVisibilityHidden(); opened {
		t.Error("hidden event before start must be ignored")
	}

	c = startController(t)
	answerAll(t, c)
	if err := c.Submit(); err != nil {
		t.Fatalf("Submit() = %v", err)
	}
	if opened, _ := c.OnVisibilityHidden(); opened {
		t.Error("hidden event after submit must be ignored")
	}
}

func TestWarningClearedBySubmit(t *testing.T) {
	c := startController(t)
	answerAll(t, c)

	_, seq := c.OnVisibilityHidden()
	if err := c.Submit(); err != nil {
		t.Fatalf("Submit() = %v", err)
	}

	if got := c.Snapshot().ActiveWarning; got != "" {
		t.Errorf("warning after submit = %q, want empty", got)
	}
	if c.SetWarningText(seq, "late text") {
		t.Error("advisory text landing after submit must be discarded")
	}
	if c.AcknowledgeWarning() {
		t.Error("ack after submit must be a no-op")
	}
}

func TestReportFullscreen(t *testing.T) {
	c := startController(t)

	c.ReportFullscreen(false)
	if c.Snapshot().Fullscreen {
		t.Error("fullscreen report must stick")
	}

	// Fullscreen failure changes nothing else.
	snap := c.Snapshot()
	if snap.Phase != model.PhaseInProgress || len(snap.Violations) != 0 {
		t.Error("fullscreen failure must not affect phase or violations")
	}

	answerAll(t, c)
	if err := c.Submit(); err != nil {
		t.Fatalf("Submit() = %v", err)
	}
	c.ReportFullscreen(true)
	if c.Snapshot().Fullscreen {
		t.Error("fullscreen report after submit must be ignored")
	}
}

func TestViolationSink(t *testing.T) {
	var sunk []model.Violation
	gate := &stubGate{confirmed: true}
	c := New("alice", 1800*time.Second, DefaultPaper(), gate, func(v model.Violation) {
		sunk = append(sunk, v)
	}, zerolog.Nop())
	c.ApplyMediaState(activeMedia())
	c.SetGuidelinesAccepted(true)
	if refusal := c.RequestStart(); refusal != RefusalNone {
		t.Fatalf("RequestStart refused: %q", refusal)
	}

	c.OnVisibilityHidden()
	c.ApplyMediaState(model.MediaState{AudioActive: true, LastError: "Webcam has been disconnected or disabled."})

	if len(sunk) != 2 {
		t.Fatalf("sink received %d violations, want 2", len(sunk))
	}
	if sunk[0].Cause != model.CauseTabSwitch || sunk[1].Cause != model.CauseMediaRevoked {
		t.Errorf("sink order = %s, %s", sunk[0].Cause, sunk[1].Cause)
	}
}

func TestViolationTimestamps(t *testing.T) {
	c := startController(t)
	fixed := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	c.OnVisibilityHidden()
	if got := c.Snapshot().Violations[0].Timestamp; !got.Equal(fixed) {
		t.Errorf("timestamp = %v, want %v", got, fixed)
	}
}

func TestGoToClamped(t *testing.T) {
	c := startController(t)
	n := len(c.Questions())

	tests := []struct {
		in   int
		want int
	}{
		{-5, 0},
		{0, 0},
		{2, 2},
		{n - 1, n - 1},
		{n + 10, n - 1},
	}
	for _, tt := range tests {
		got, err := c.GoTo(tt.in)
		if err != nil {
			t.Fatalf("GoTo(%d): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("GoTo(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
