package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/guardianview/guardian-backend/internal/advisory"
	"github.com/guardianview/guardian-backend/internal/config"
	"github.com/guardianview/guardian-backend/internal/media"
	"github.com/guardianview/guardian-backend/internal/model"
	"github.com/guardianview/guardian-backend/internal/pairing"
	"github.com/guardianview/guardian-backend/internal/repository"
	"github.com/guardianview/guardian-backend/internal/session"
)

// candidateState bundles one authenticated visit: the session controller,
// its media gateway and its pairing gate, plus the countdown lifecycle.
type candidateState struct {
	controller *session.Controller
	gateway    *media.Gateway
	gate       *pairing.Gate

	stopTimer  chan struct{}
	stopOnce   sync.Once
	finishOnce sync.Once
}

// ProctorService orchestrates live exam sessions. Sessions exist only in
// memory for the duration of the visit; the audit trail (violations,
// results) is pushed out best-effort and never feeds back into session
// behavior.
type ProctorService struct {
	cfg        *config.Config
	advisory   *advisory.Client
	rdb        *redis.Client
	resultRepo *repository.ResultRepository
	log        zerolog.Logger

	mu         sync.Mutex
	candidates map[string]*candidateState
}

// NewProctorService creates a new ProctorService. rdb and resultRepo may be
// nil in tests; the audit path degrades to a no-op.
func NewProctorService(cfg *config.Config, adv *advisory.Client, rdb *redis.Client, resultRepo *repository.ResultRepository, log zerolog.Logger) *ProctorService {
	return &ProctorService{
		cfg:        cfg,
		advisory:   adv,
		rdb:        rdb,
		resultRepo: resultRepo,
		log:        log.With().Str("component", "proctor").Logger(),
		candidates: make(map[string]*candidateState),
	}
}

// StartVisit discards any previous in-memory session for the candidate and
// creates a fresh NotStarted one. Called on login: a session never survives
// across visits, so a reload-and-relogin returns the candidate to the
// readiness check.
func (s *ProctorService) StartVisit(candidate string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.candidates[candidate]; ok {
		prev.stopOnce.Do(func() { close(prev.stopTimer) })
	}
	s.candidates[candidate] = s.newStateLocked(candidate)
}

// EndVisit drops the candidate's session, stopping its timer. Called on
// logout.
func (s *ProctorService) EndVisit(candidate string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.candidates[candidate]; ok {
		st.stopOnce.Do(func() { close(st.stopTimer) })
		delete(s.candidates, candidate)
	}
}

// state returns the candidate's visit, creating one lazily for tokens that
// outlived a server restart.
func (s *ProctorService) state(candidate string) *candidateState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.candidates[candidate]
	if !ok {
		st = s.newStateLocked(candidate)
		s.candidates[candidate] = st
	}
	return st
}

func (s *ProctorService) newStateLocked(candidate string) *candidateState {
	gate := pairing.NewGate(s.cfg.PublicOrigin, s.cfg.MobileStreamPath)
	gateway := media.NewGateway(s.log)

	// The sink closes over ctrl, assigned below before any violation can
	// be recorded.
	var ctrl *session.Controller
	sink := func(v model.Violation) {
		s.queueViolation(ctrl.ID().String(), candidate, v)
	}
	ctrl = session.New(candidate, s.cfg.ExamDuration, session.DefaultPaper(), gate, sink, s.log)

	// Media degradation flows straight into the controller; the controller
	// decides whether it is a violation.
	gateway.Subscribe(ctrl.ApplyMediaState)

	return &candidateState{
		controller: ctrl,
		gateway:    gateway,
		gate:       gate,
		stopTimer:  make(chan struct{}),
	}
}

// queueViolation pushes a recorded violation onto the background
// persistence queue. Strictly best-effort: a queue failure is logged and
// the in-session violation log is unaffected.
func (s *ProctorService) queueViolation(sessionID, candidate string, v model.Violation) {
	if s.rdb == nil {
		return
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"session_id": sessionID,
		"candidate":  candidate,
		"cause":      v.Cause,
		"message":    v.Message,
		"timestamp":  v.Timestamp.Unix(),
	})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.rdb.RPush(ctx, config.WorkerKey.PersistViolationsQueue, payload).Err(); err != nil {
			s.log.Error().Err(err).Str("candidate", candidate).Msg("Failed to queue violation")
		}
	}()
}

// RequestStart runs the readiness gate and, on success, starts the
// per-second countdown.
func (s *ProctorService) RequestStart(candidate string) session.StartRefusal {
	st := s.state(candidate)
	refusal := st.controller.RequestStart()
	if refusal != session.RefusalNone {
		return refusal
	}
	go s.runTimer(candidate, st)
	return session.RefusalNone
}

// runTimer drives the countdown. It stops when the session reaches its
// terminal phase or when the visit ends, so a pending tick can never
// reanimate a submitted session.
func (s *ProctorService) runTimer(candidate string, st *candidateState) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if st.controller.Tick() {
				s.finish(candidate, st)
				return
			}
		case <-st.stopTimer:
			return
		}
	}
}

// Submit is the manual submission path.
func (s *ProctorService) Submit(candidate string) error {
	st := s.state(candidate)
	if err := st.controller.Submit(); err != nil {
		return err
	}
	st.stopOnce.Do(func() { close(st.stopTimer) })
	s.finish(candidate, st)
	return nil
}

// finish persists the terminal session's result exactly once.
func (s *ProctorService) finish(candidate string, st *candidateState) {
	st.finishOnce.Do(func() {
		if s.resultRepo == nil {
			return
		}
		snap := st.controller.Snapshot()
		res := &model.ExamResult{
			SessionID:      snap.ID,
			Candidate:      candidate,
			TimedOut:       snap.TimedOut,
			AnsweredCount:  snap.AnsweredCount,
			QuestionCount:  snap.QuestionCount,
			ViolationCount: len(snap.Violations),
			SubmittedAt:    time.Now(),
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.resultRepo.Create(ctx, res); err != nil {
			s.log.Error().Err(err).Str("candidate", candidate).Msg("Failed to persist result")
		}
	})
}

// HandleVisibilityHidden processes a tab-switch signal. The violation and
// the fallback dialog are in place before the advisory call is attempted;
// the generated text only upgrades the dialog if the candidate has not
// already acknowledged it.
func (s *ProctorService) HandleVisibilityHidden(ctx context.Context, candidate string) (warning string, opened bool) {
	st := s.state(candidate)
	opened, seq := st.controller.OnVisibilityHidden()
	if !opened {
		return "", false
	}

	text := advisory.FallbackTabSwitchWarning
	if s.advisory != nil {
		text = s.advisory.TabSwitchWarning(ctx, true)
	}
	st.controller.SetWarningText(seq, text)

	return st.controller.Snapshot().ActiveWarning, true
}

// AcknowledgeWarning closes the active warning dialog.
func (s *ProctorService) AcknowledgeWarning(candidate string) bool {
	return s.state(candidate).controller.AcknowledgeWarning()
}

// SetGuidelinesAccepted records the guidelines checkbox.
func (s *ProctorService) SetGuidelinesAccepted(candidate string, accepted bool) {
	s.state(candidate).controller.SetGuidelinesAccepted(accepted)
}

// ConfirmPairing marks the secondary camera as connected (one-way).
func (s *ProctorService) ConfirmPairing(candidate string) {
	s.state(candidate).gate.Confirm()
}

// PairingGate exposes the candidate's gate for code rendering.
func (s *ProctorService) PairingGate(candidate string) *pairing.Gate {
	return s.state(candidate).gate
}

// Gateway exposes the candidate's media gateway.
func (s *ProctorService) Gateway(candidate string) *media.Gateway {
	return s.state(candidate).gateway
}

// Controller exposes the candidate's session controller.
func (s *ProctorService) Controller(candidate string) *session.Controller {
	return s.state(candidate).controller
}

// Snapshot returns the candidate's current session view.
func (s *ProctorService) Snapshot(candidate string) model.SessionSnapshot {
	return s.state(candidate).controller.Snapshot()
}

// AnalyzeFrame forwards a captured frame to the vision helper. The result
// is advisory only and is never written to the session record.
func (s *ProctorService) AnalyzeFrame(ctx context.Context, dataURI string) (model.FrameAnalysis, error) {
	if s.advisory == nil {
		return model.FrameAnalysis{}, errors.New("advisory client is not configured")
	}
	return s.advisory.AnalyzeFrame(ctx, dataURI)
}

// History returns the candidate's persisted past results with their
// audited violations.
func (s *ProctorService) History(ctx context.Context, candidate string) ([]model.ExamResult, error) {
	if s.resultRepo == nil {
		return []model.ExamResult{}, nil
	}

	results, err := s.resultRepo.ListByCandidate(ctx, candidate)
	if err != nil {
		return nil, err
	}
	for i := range results {
		violations, err := s.resultRepo.ListViolationsBySession(ctx, results[i].SessionID)
		if err != nil {
			return nil, err
		}
		if violations == nil {
			violations = []model.Violation{}
		}
		results[i].Violations = violations
	}
	return results, nil
}
