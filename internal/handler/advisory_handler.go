package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/guardianview/guardian-backend/internal/advisory"
	"github.com/guardianview/guardian-backend/internal/middleware"
	"github.com/guardianview/guardian-backend/internal/model"
	"github.com/guardianview/guardian-backend/internal/response"
	"github.com/guardianview/guardian-backend/internal/service"
	"github.com/guardianview/guardian-backend/internal/validator"
)

// AdvisoryHandler fronts the frame analysis helper.
type AdvisoryHandler struct {
	proctorService *service.ProctorService
}

// NewAdvisoryHandler creates a new AdvisoryHandler.
func NewAdvisoryHandler(proctorService *service.ProctorService) *AdvisoryHandler {
	return &AdvisoryHandler{proctorService: proctorService}
}

// AnalyzeFrame godoc
// POST /api/v1/advisory/frame
// Runs a single captured frame through the vision model and returns the
// gaze/object verdict. Advisory only: failures here never touch the
// session record.
func (h *AdvisoryHandler) AnalyzeFrame(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.AnalyzeFrameRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	analysis, err := h.proctorService.AnalyzeFrame(c.Request.Context(), req.PhotoDataURI)
	if err != nil {
		if errors.Is(err, advisory.ErrInvalidDataURI) {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidFrame)
			return
		}
		response.Fail(c, http.StatusBadGateway, response.ErrAdvisoryUnavailable)
		return
	}
	response.Success(c, http.StatusOK, analysis)
}
