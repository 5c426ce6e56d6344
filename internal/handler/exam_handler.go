package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/guardianview/guardian-backend/internal/middleware"
	"github.com/guardianview/guardian-backend/internal/model"
	"github.com/guardianview/guardian-backend/internal/response"
	"github.com/guardianview/guardian-backend/internal/service"
	"github.com/guardianview/guardian-backend/internal/session"
	"github.com/guardianview/guardian-backend/internal/validator"
)

// ExamHandler handles the readiness gate and the exam surface.
type ExamHandler struct {
	proctorService *service.ProctorService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(proctorService *service.ProctorService) *ExamHandler {
	return &ExamHandler{proctorService: proctorService}
}

// GetState godoc
// GET /api/v1/exam/state
// Returns the current session snapshot: phase, countdown, media health,
// warning state, violations and answer progress.
func (h *ExamHandler) GetState(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": h.proctorService.Snapshot(claims.Username)})
}

// GetPaper godoc
// GET /api/v1/exam/paper
// Returns the static question list.
func (h *ExamHandler) GetPaper(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"questions": h.proctorService.Controller(claims.Username).Questions(),
	})
}

// AcceptGuidelines godoc
// POST /api/v1/exam/guidelines
// Records the guidelines checkbox; required before starting.
func (h *ExamHandler) AcceptGuidelines(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.GuidelinesRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	h.proctorService.SetGuidelinesAccepted(claims.Username, req.Accepted)
	response.Success(c, http.StatusOK, gin.H{"accepted": req.Accepted})
}

// Start godoc
// POST /api/v1/exam/start
// Runs the readiness gate. Every unmet precondition maps to a specific
// error code so the client can point at the failing step.
func (h *ExamHandler) Start(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	switch h.proctorService.RequestStart(claims.Username) {
	case session.RefusalNone:
		response.Success(c, http.StatusOK, gin.H{"session": h.proctorService.Snapshot(claims.Username)})
	case session.RefusalMediaInactive:
		response.Fail(c, http.StatusConflict, response.ErrMediaInactive)
	case session.RefusalPairingPending:
		response.Fail(c, http.StatusConflict, response.ErrPairingPending)
	case session.RefusalGuidelines:
		response.Fail(c, http.StatusConflict, response.ErrGuidelinesPending)
	default:
		response.Fail(c, http.StatusConflict, response.ErrAlreadyStarted)
	}
}

// Answer godoc
// POST /api/v1/exam/answer
// Records or overwrites the answer to a single question.
func (h *ExamHandler) Answer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.proctorService.Controller(claims.Username).RecordAnswer(req.QuestionID, req.OptionID); err != nil {
		h.failAnswer(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": h.proctorService.Snapshot(claims.Username)})
}

// ToggleFlag godoc
// POST /api/v1/exam/flag/:question_id
// Flips a question's marked-for-review flag.
func (h *ExamHandler) ToggleFlag(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if err := h.proctorService.Controller(claims.Username).ToggleFlag(c.Param("question_id")); err != nil {
		h.failAnswer(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// GoTo godoc
// POST /api/v1/exam/goto/:index
// Moves the current question position, clamped to the paper bounds.
func (h *ExamHandler) GoTo(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	pos, err := h.proctorService.Controller(claims.Username).GoTo(index)
	if err != nil {
		response.Fail(c, http.StatusConflict, response.ErrNotInProgress)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"index": pos})
}

// Submit godoc
// POST /api/v1/exam/submit
// Manual submission; blocked until every question has an answer.
func (h *ExamHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if err := h.proctorService.Submit(claims.Username); err != nil {
		switch {
		case errors.Is(err, session.ErrIncomplete):
			response.Fail(c, http.StatusConflict, response.ErrExamIncomplete)
		case errors.Is(err, session.ErrNotInProgress):
			response.Fail(c, http.StatusConflict, response.ErrNotInProgress)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": h.proctorService.Snapshot(claims.Username)})
}

// AcknowledgeWarning godoc
// POST /api/v1/exam/warning/ack
// Closes the active warning dialog and re-arms visibility detection.
func (h *ExamHandler) AcknowledgeWarning(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	acknowledged := h.proctorService.AcknowledgeWarning(claims.Username)
	response.Success(c, http.StatusOK, gin.H{"acknowledged": acknowledged})
}

// History godoc
// GET /api/v1/exam/history
// Returns the candidate's persisted past results, each with its audited
// violations attached.
func (h *ExamHandler) History(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	results, err := h.proctorService.History(c.Request.Context(), claims.Username)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if results == nil {
		results = []model.ExamResult{}
	}
	response.Success(c, http.StatusOK, gin.H{"results": results})
}

func (h *ExamHandler) failAnswer(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrNotInProgress):
		response.Fail(c, http.StatusConflict, response.ErrNotInProgress)
	case errors.Is(err, session.ErrUnknownQuestion):
		response.Fail(c, http.StatusNotFound, response.ErrUnknownQuestion)
	default:
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
	}
}
