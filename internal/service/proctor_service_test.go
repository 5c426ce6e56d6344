package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/guardianview/guardian-backend/internal/advisory"
	"github.com/guardianview/guardian-backend/internal/config"
	"github.com/guardianview/guardian-backend/internal/media"
	"github.com/guardianview/guardian-backend/internal/model"
	"github.com/guardianview/guardian-backend/internal/session"
)

func testConfig() *config.Config {
	return &config.Config{
		ExamDuration:     1800 * time.Second,
		PublicOrigin:     "http://localhost:3000",
		MobileStreamPath: "/mobile-stream",
	}
}

func newTestService(adv *advisory.Client) *ProctorService {
	return NewProctorService(testConfig(), adv, nil, nil, zerolog.Nop())
}

// readyCandidate walks a candidate through the full readiness checklist.
func readyCandidate(t *testing.T, s *ProctorService, candidate string) {
	t.Helper()
	s.StartVisit(candidate)
	if _, err := s.Gateway(candidate).Acquire(media.RoleWebcam, media.Constraints{Video: true, Audio: true}, ""); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	s.ConfirmPairing(candidate)
	s.SetGuidelinesAccepted(candidate, true)
}

func TestReadinessFlow(t *testing.T) {
	s := newTestService(nil)
	s.StartVisit("alice")

	// Each missing precondition surfaces in order as it is satisfied.
	if got := s.RequestStart("alice"); got != session.RefusalMediaInactive {
		t.Fatalf("refusal = %q, want media inactive", got)
	}

	if _, err := s.Gateway("alice").Acquire(media.RoleWebcam, media.Constraints{Video: true, Audio: true}, ""); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if got := s.RequestStart("alice"); got != session.RefusalPairingPending {
		t.Fatalf("refusal = %q, want pairing pending", got)
	}

	s.ConfirmPairing("alice")
	if got := s.RequestStart("alice"); got != session.RefusalGuidelines {
		t.Fatalf("refusal = %q, want guidelines", got)
	}

	s.SetGuidelinesAccepted("alice", true)
	if got := s.RequestStart("alice"); got != session.RefusalNone {
		t.Fatalf("refusal = %q, want start", got)
	}
	if got := s.Snapshot("alice").Phase; got != model.PhaseInProgress {
		t.Errorf("phase = %s, want %s", got, model.PhaseInProgress)
	}
}

func TestMediaGatewayFeedsController(t *testing.T) {
	s := newTestService(nil)
	readyCandidate(t, s, "alice")
	if got := s.RequestStart("alice"); got != session.RefusalNone {
		t.Fatalf("refusal = %q", got)
	}

	// A webcam track ending mid-exam flows through the gateway into the
	// controller as a single violation.
	s.Gateway("alice").UpdateTrack(media.RoleWebcam, media.TrackVideo, false, false)
	s.Gateway("alice").UpdateTrack(media.RoleWebcam, media.TrackVideo, false, false)

	snap := s.Snapshot("alice")
	if snap.Media.VideoActive {
		t.Error("controller media state must reflect the dead track")
	}
	if len(snap.Violations) != 1 {
		t.Fatalf("violations = %d, want 1", len(snap.Violations))
	}
	if snap.Violations[0].Cause != model.CauseMediaRevoked {
		t.Errorf("cause = %s", snap.Violations[0].Cause)
	}
}

func TestFailedReacquireBlocksStart(t *testing.T) {
	s := newTestService(nil)
	readyCandidate(t, s, "alice")

	// A failed re-acquisition releases the prior stream; the controller
	// must see the dead hardware and refuse to start.
	if _, err := s.Gateway("alice").Acquire(media.RoleWebcam, media.Constraints{Video: true, Audio: true}, "NotAllowedError"); err == nil {
		t.Fatal("want acquisition failure")
	}

	if got := s.RequestStart("alice"); got != session.RefusalMediaInactive {
		t.Fatalf("refusal = %q, want media inactive", got)
	}
	if got := s.Snapshot("alice").Phase; got != model.PhaseNotStarted {
		t.Errorf("phase = %s, want %s", got, model.PhaseNotStarted)
	}
}

func TestFailedReacquireMidExamOpensViolation(t *testing.T) {
	s := newTestService(nil)
	readyCandidate(t, s, "alice")
	if got := s.RequestStart("alice"); got != session.RefusalNone {
		t.Fatalf("refusal = %q", got)
	}

	if _, err := s.Gateway("alice").Acquire(media.RoleWebcam, media.Constraints{Video: true, Audio: true}, "NotFoundError"); err == nil {
		t.Fatal("want acquisition failure")
	}

	snap := s.Snapshot("alice")
	if snap.Media.VideoActive || snap.Media.AudioActive {
		t.Error("controller media state must reflect the failed re-acquire")
	}
	if len(snap.Violations) != 1 {
		t.Fatalf("violations = %d, want 1", len(snap.Violations))
	}
	if snap.Violations[0].Cause != model.CauseMediaRevoked {
		t.Errorf("cause = %s", snap.Violations[0].Cause)
	}
}

func TestVisibilityHiddenUsesAdvisoryText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "Stay on the exam tab."}},
			},
		})
	}))
	defer srv.Close()

	adv := advisory.NewClient(srv.URL, "", "test-model", nil, zerolog.Nop())
	s := newTestService(adv)
	readyCandidate(t, s, "alice")
	if got := s.RequestStart("alice"); got != session.RefusalNone {
		t.Fatalf("refusal = %q", got)
	}

	warning, opened := s.HandleVisibilityHidden(context.Background(), "alice")
	if !opened {
		t.Fatal("hidden event must open the warning")
	}
	if warning != "Stay on the exam tab." {
		t.Errorf("warning = %q, want advisory text", warning)
	}

	// Duplicate signal while the dialog is open is absorbed.
	if _, opened := s.HandleVisibilityHidden(context.Background(), "alice"); opened {
		t.Error("second hidden event must be ignored")
	}
}

func TestVisibilityHiddenFallbackWithoutAdvisory(t *testing.T) {
	s := newTestService(nil)
	readyCandidate(t, s, "alice")
	if got := s.RequestStart("alice"); got != session.RefusalNone {
		t.Fatalf("refusal = %q", got)
	}

	warning, opened := s.HandleVisibilityHidden(context.Background(), "alice")
	if !opened {
		t.Fatal("hidden event must open the warning")
	}
	if warning != advisory.FallbackTabSwitchWarning {
		t.Errorf("warning = %q, want fallback", warning)
	}
}

func TestStartVisitResetsSession(t *testing.T) {
	s := newTestService(nil)
	readyCandidate(t, s, "alice")
	if got := s.RequestStart("alice"); got != session.RefusalNone {
		t.Fatalf("refusal = %q", got)
	}

	// A fresh login never resumes the prior session.
	s.StartVisit("alice")
	snap := s.Snapshot("alice")
	if snap.Phase != model.PhaseNotStarted {
		t.Errorf("phase after re-login = %s, want %s", snap.Phase, model.PhaseNotStarted)
	}
	if snap.PairingConfirmed || snap.GuidelinesAccepted {
		t.Error("readiness state must reset on a new visit")
	}
}

func TestSubmitStopsSession(t *testing.T) {
	s := newTestService(nil)
	readyCandidate(t, s, "alice")
	if got := s.RequestStart("alice"); got != session.RefusalNone {
		t.Fatalf("refusal = %q", got)
	}

	ctrl := s.Controller("alice")
	for _, q := range ctrl.Questions() {
		if err := ctrl.RecordAnswer(q.ID, q.Options[0].ID); err != nil {
			t.Fatalf("RecordAnswer: %v", err)
		}
	}

	if err := s.Submit("alice"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got := s.Snapshot("alice").Phase; got != model.PhaseSubmitted {
		t.Errorf("phase = %s, want %s", got, model.PhaseSubmitted)
	}

	// Idempotent on repeat.
	if err := s.Submit("alice"); err != nil {
		t.Errorf("repeat Submit: %v", err)
	}
}

func TestHistoryWithoutRepository(t *testing.T) {
	s := newTestService(nil)
	results, err := s.History(context.Background(), "alice")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Errorf("results = %v, want empty slice", results)
	}
}
