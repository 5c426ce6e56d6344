// Package media models the candidate's capture devices. The browser
// performs the actual getUserMedia calls; the Gateway mirrors those
// acquisitions server-side so the session controller can gate the exam on
// device health and detect mid-exam degradation. Each logical camera role
// (webcam, secondary room camera) owns at most one live stream: acquiring
// with new constraints releases the previous stream's tracks first, so no
// hardware lock leaks across a constraint change.
package media

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/guardianview/guardian-backend/internal/model"
)

// Typed acquisition failures, mapped from the browser's DOMException names.
var (
	ErrPermissionDenied = errors.New("camera permission was denied")
	ErrDeviceNotFound   = errors.New("no capture device was found")
)

// Role names a logical camera slot.
type Role string

const (
	RoleWebcam Role = "webcam"
	RoleMobile Role = "mobile"
)

// Facing is the camera facing preference for the secondary device.
type Facing string

const (
	FacingFront Facing = "user"
	FacingBack  Facing = "environment"
)

// Constraints describe a requested stream.
type Constraints struct {
	Video  bool   `json:"video"`
	Audio  bool   `json:"audio"`
	Facing Facing `json:"facing,omitempty"`
}

// TrackKind distinguishes video from audio tracks.
type TrackKind string

const (
	TrackVideo TrackKind = "video"
	TrackAudio TrackKind = "audio"
)

// Track is one live capture track of a stream.
type Track struct {
	Kind    TrackKind
	Enabled bool
	Muted   bool
	stopped bool
}

// Live reports whether the track is delivering media. Presence alone is
// not enough: a muted or disabled track counts as inactive.
func (t *Track) Live() bool {
	return !t.stopped && t.Enabled && !t.Muted
}

// Stream is a server-side mirror of one browser media stream.
type Stream struct {
	ID          uuid.UUID
	Role        Role
	Constraints Constraints
	Tracks      []*Track
	released    bool
}

// Released reports whether every track of the stream has been stopped.
func (s *Stream) Released() bool {
	return s.released
}

// Gateway acquires and releases streams per role and derives the combined
// media state consumed by the session controller. Safe for concurrent use.
type Gateway struct {
	mu      sync.Mutex
	streams map[Role]*Stream
	lastReq map[Role]Constraints

	// onState, when set, receives the freshly derived webcam state after
	// every track transition or device-set change.
	onState func(model.MediaState)

	// repollDelay spaces the device-change re-poll, since devicechange
	// events do not always carry the updated track state promptly.
	repollDelay time.Duration

	log zerolog.Logger
}

// NewGateway creates an empty gateway.
func NewGateway(log zerolog.Logger) *Gateway {
	return &Gateway{
		streams:     make(map[Role]*Stream),
		lastReq:     make(map[Role]Constraints),
		repollDelay: 100 * time.Millisecond,
		log:         log.With().Str("component", "media").Logger(),
	}
}

// Subscribe registers the consumer of derived webcam media states.
func (g *Gateway) Subscribe(fn func(model.MediaState)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onState = fn
}

// Acquire registers a stream for the role. errorName carries the browser's
// DOMException name when the acquisition failed client-side; the gateway
// translates it into the typed error taxonomy. A prior stream for the same
// role is released first, even on failure, so a constraint change (for
// example switching the secondary camera's facing) never leaves two live
// streams for one role. A failed acquisition pushes the freshly derived
// state to the subscriber, since the release may have deactivated the
// webcam role.
func (g *Gateway) Acquire(role Role, c Constraints, errorName string) (*Stream, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if prev, ok := g.streams[role]; ok && !prev.released {
		g.releaseLocked(prev)
	}
	g.lastReq[role] = c

	if errorName != "" {
		g.notifyLocked()
		return nil, mapAcquireError(errorName)
	}

	s := &Stream{
		ID:          uuid.New(),
		Role:        role,
		Constraints: c,
	}
	if c.Video {
		s.Tracks = append(s.Tracks, &Track{Kind: TrackVideo, Enabled: true})
	}
	if c.Audio {
		s.Tracks = append(s.Tracks, &Track{Kind: TrackAudio, Enabled: true})
	}
	g.streams[role] = s
	g.log.Debug().Str("role", string(role)).Str("stream_id", s.ID.String()).Msg("Stream acquired")

	g.notifyLocked()
	return s, nil
}

// Retry re-issues the last acquisition for the role with identical
// constraints.
func (g *Gateway) Retry(role Role) (*Stream, error) {
	g.mu.Lock()
	c, ok := g.lastReq[role]
	g.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no prior acquisition for role %q", role)
	}
	return g.Acquire(role, c, "")
}

// Release stops every track of the role's stream. Releasing an absent or
// already released stream is a no-op.
func (g *Gateway) Release(role Role) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.streams[role]; ok {
		g.releaseLocked(s)
		g.notifyLocked()
	}
}

func (g *Gateway) releaseLocked(s *Stream) {
	if s.released {
		return
	}
	for _, t := range s.Tracks {
		t.stopped = true
	}
	s.released = true
	g.log.Debug().Str("role", string(s.Role)).Str("stream_id", s.ID.String()).Msg("Stream released")
}

// UpdateTrack applies a track transition (ended, mute, unmute) reported by
// the client and re-derives the media state.
func (g *Gateway) UpdateTrack(role Role, kind TrackKind, enabled, muted bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.streams[role]
	if !ok || s.released {
		return
	}
	for _, t := range s.Tracks {
		if t.Kind == kind {
			t.Enabled = enabled
			t.Muted = muted
		}
	}
	g.notifyLocked()
}

// DeviceChanged reacts to a system device-set change. The updated state of
// already-open tracks is not always reflected immediately, so the re-poll
// happens after a short delay.
func (g *Gateway) DeviceChanged() {
	time.AfterFunc(g.repollDelay, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.notifyLocked()
	})
}

// State derives the webcam role's media state on demand.
func (g *Gateway) State() model.MediaState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.deriveLocked()
}

// Stream returns the live stream for a role, or nil.
func (g *Gateway) Stream(role Role) *Stream {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.streams[role]; ok && !s.released {
		return s
	}
	return nil
}

func (g *Gateway) notifyLocked() {
	if g.onState != nil {
		g.onState(g.deriveLocked())
	}
}

// deriveLocked computes the combined webcam/microphone state from per-track
// liveness, not mere track presence. The combined error concatenates the
// applicable causes deterministically: video cause first, then audio.
func (g *Gateway) deriveLocked() model.MediaState {
	var video, audio bool
	if s, ok := g.streams[RoleWebcam]; ok && !s.released {
		for _, t := range s.Tracks {
			switch t.Kind {
			case TrackVideo:
				video = video || t.Live()
			case TrackAudio:
				audio = audio || t.Live()
			}
		}
	}

	ms := model.MediaState{VideoActive: video, AudioActive: audio}
	var msg string
	if !video {
		msg = "Webcam has been disconnected or disabled."
	}
	if !audio {
		if msg != "" {
			msg += " "
		}
		msg += "Microphone has been disconnected or disabled."
	}
	ms.LastError = msg
	return ms
}

func mapAcquireError(name string) error {
	switch name {
	case "NotAllowedError":
		return ErrPermissionDenied
	case "NotFoundError":
		return ErrDeviceNotFound
	default:
		return fmt.Errorf("media acquisition failed: %s", name)
	}
}
