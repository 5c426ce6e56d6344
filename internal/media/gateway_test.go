package media

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/guardianview/guardian-backend/internal/model"
)

func fullConstraints() Constraints {
	return Constraints{Video: true, Audio: true}
}

func TestAcquireAndState(t *testing.T) {
	g := NewGateway(zerolog.Nop())

	s, err := g.Acquire(RoleWebcam, fullConstraints(), "")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if len(s.Tracks) != 2 {
		t.Fatalf("tracks = %d, want 2", len(s.Tracks))
	}

	ms := g.State()
	if !ms.VideoActive || !ms.AudioActive {
		t.Errorf("state = %+v, want both active", ms)
	}
	if ms.LastError != "" {
		t.Errorf("LastError = %q, want empty", ms.LastError)
	}
}

func TestAcquireErrorTaxonomy(t *testing.T) {
	tests := []struct {
		errorName string
		want      error
	}{
		{"NotAllowedError", ErrPermissionDenied},
		{"NotFoundError", ErrDeviceNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.errorName, func(t *testing.T) {
			g := NewGateway(zerolog.Nop())
			_, err := g.Acquire(RoleWebcam, fullConstraints(), tt.errorName)
			if !errors.Is(err, tt.want) {
				t.Errorf("Acquire(%s) = %v, want %v", tt.errorName, err, tt.want)
			}
		})
	}

	t.Run("unrecognized name", func(t *testing.T) {
		g := NewGateway(zerolog.Nop())
		_, err := g.Acquire(RoleWebcam, fullConstraints(), "AbortError")
		if err == nil {
			t.Fatal("want error for unrecognized DOMException name")
		}
		if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrDeviceNotFound) {
			t.Errorf("unrecognized name must not map to a typed error, got %v", err)
		}
	})
}

func TestReacquireReleasesPriorStream(t *testing.T) {
	g := NewGateway(zerolog.Nop())

	first, err := g.Acquire(RoleMobile, Constraints{Video: true, Facing: FacingFront}, "")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	second, err := g.Acquire(RoleMobile, Constraints{Video: true, Facing: FacingBack}, "")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	if !first.Released() {
		t.Error("prior stream must be released on re-acquire")
	}
	for _, tr := range first.Tracks {
		if tr.Live() {
			t.Error("prior stream tracks must be stopped")
		}
	}
	if second.Released() {
		t.Error("new stream must be live")
	}
	if got := g.Stream(RoleMobile); got != second {
		t.Error("gateway must track the new stream")
	}
}

func TestFailedReacquireStillReleasesPrior(t *testing.T) {
	g := NewGateway(zerolog.Nop())

	first, err := g.Acquire(RoleWebcam, fullConstraints(), "")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	if _, err := g.Acquire(RoleWebcam, fullConstraints(), "NotAllowedError"); err == nil {
		t.Fatal("want acquisition failure")
	}
	if !first.Released() {
		t.Error("prior stream must be released even when the new acquisition fails")
	}
	if g.Stream(RoleWebcam) != nil {
		t.Error("no live stream should remain after failed re-acquire")
	}
}

func TestFailedReacquireNotifiesSubscriber(t *testing.T) {
	g := NewGateway(zerolog.Nop())

	var last model.MediaState
	g.Subscribe(func(ms model.MediaState) {
		last = ms
	})

	if _, err := g.Acquire(RoleWebcam, fullConstraints(), ""); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !last.VideoActive || !last.AudioActive {
		t.Fatalf("after acquire: %+v", last)
	}

	if _, err := g.Acquire(RoleWebcam, fullConstraints(), "NotAllowedError"); err == nil {
		t.Fatal("want acquisition failure")
	}
	if last.VideoActive || last.AudioActive {
		t.Errorf("subscriber still holds active state after failed re-acquire: %+v", last)
	}
	if last.LastError == "" {
		t.Error("derived state after failed re-acquire must carry an error message")
	}
}

func TestRetryReusesLastConstraints(t *testing.T) {
	g := NewGateway(zerolog.Nop())

	want := Constraints{Video: true, Facing: FacingBack}
	if _, err := g.Acquire(RoleMobile, want, "NotFoundError"); err == nil {
		t.Fatal("want acquisition failure")
	}

	s, err := g.Retry(RoleMobile)
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if s.Constraints != want {
		t.Errorf("retry constraints = %+v, want %+v", s.Constraints, want)
	}

	if _, err := g.Retry(RoleWebcam); err == nil {
		t.Error("Retry without prior acquisition must fail")
	}
}

func TestTrackLiveness(t *testing.T) {
	tests := []struct {
		name                 string
		kind                 TrackKind
		enabled, muted       bool
		wantVideo, wantAudio bool
	}{
		{"video muted", TrackVideo, true, true, false, true},
		{"video disabled", TrackVideo, false, false, false, true},
		{"audio muted", TrackAudio, true, true, true, false},
		{"audio disabled", TrackAudio, false, false, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGateway(zerolog.Nop())
			if _, err := g.Acquire(RoleWebcam, fullConstraints(), ""); err != nil {
				t.Fatalf("Acquire: %v", err)
			}

			g.UpdateTrack(RoleWebcam, tt.kind, tt.enabled, tt.muted)

			ms := g.State()
			if ms.VideoActive != tt.wantVideo || ms.AudioActive != tt.wantAudio {
				t.Errorf("state = %+v, want video=%t audio=%t", ms, tt.wantVideo, tt.wantAudio)
			}
		})
	}
}

func TestDerivedErrorMessages(t *testing.T) {
	g := NewGateway(zerolog.Nop())
	if _, err := g.Acquire(RoleWebcam, fullConstraints(), ""); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	g.UpdateTrack(RoleWebcam, TrackVideo, true, true)
	if got := g.State().LastError; got != "Webcam has been disconnected or disabled." {
		t.Errorf("video-only error = %q", got)
	}

	g.UpdateTrack(RoleWebcam, TrackVideo, true, false)
	g.UpdateTrack(RoleWebcam, TrackAudio, false, false)
	if got := g.State().LastError; got != "Microphone has been disconnected or disabled." {
		t.Errorf("audio-only error = %q", got)
	}

	// Both down: video cause first, then audio.
	g.UpdateTrack(RoleWebcam, TrackVideo, false, false)
	want := "Webcam has been disconnected or disabled. Microphone has been disconnected or disabled."
	if got := g.State().LastError; got != want {
		t.Errorf("combined error = %q, want %q", got, want)
	}
}

func TestSubscribeReceivesTransitions(t *testing.T) {
	g := NewGateway(zerolog.Nop())

	var states []model.MediaState
	g.Subscribe(func(ms model.MediaState) {
		states = append(states, ms)
	})

	if _, err := g.Acquire(RoleWebcam, fullConstraints(), ""); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	g.UpdateTrack(RoleWebcam, TrackVideo, false, false)
	g.Release(RoleWebcam)

	if len(states) != 3 {
		t.Fatalf("received %d states, want 3", len(states))
	}
	if !states[0].VideoActive || !states[0].AudioActive {
		t.Errorf("after acquire: %+v", states[0])
	}
	if states[1].VideoActive {
		t.Errorf("after video end: %+v", states[1])
	}
	if states[2].VideoActive || states[2].AudioActive {
		t.Errorf("after release: %+v", states[2])
	}
}

func TestDeviceChangedRepollsAfterDelay(t *testing.T) {
	g := NewGateway(zerolog.Nop())
	g.repollDelay = time.Millisecond

	notified := make(chan model.MediaState, 1)
	g.Subscribe(func(ms model.MediaState) {
		select {
		case notified <- ms:
		default:
		}
	})

	g.DeviceChanged()

	select {
	case ms := <-notified:
		if ms.VideoActive {
			t.Errorf("no stream acquired, state = %+v", ms)
		}
	case <-time.After(time.Second):
		t.Fatal("device change never re-polled")
	}
}

func TestReleaseIdempotent(t *testing.T) {
	g := NewGateway(zerolog.Nop())

	g.Release(RoleWebcam) // absent role

	if _, err := g.Acquire(RoleWebcam, fullConstraints(), ""); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	g.Release(RoleWebcam)
	g.Release(RoleWebcam)

	if g.Stream(RoleWebcam) != nil {
		t.Error("released stream must not be reported live")
	}
}

// The secondary role never feeds the exam gate: only the webcam role's
// tracks shape the derived state.
func TestMobileRoleDoesNotAffectState(t *testing.T) {
	g := NewGateway(zerolog.Nop())

	if _, err := g.Acquire(RoleWebcam, fullConstraints(), ""); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := g.Acquire(RoleMobile, Constraints{Video: true}, ""); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	g.UpdateTrack(RoleMobile, TrackVideo, false, false)

	ms := g.State()
	if !ms.VideoActive || !ms.AudioActive {
		t.Errorf("webcam state affected by mobile track: %+v", ms)
	}
}
