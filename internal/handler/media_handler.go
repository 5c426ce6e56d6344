package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/guardianview/guardian-backend/internal/media"
	"github.com/guardianview/guardian-backend/internal/middleware"
	"github.com/guardianview/guardian-backend/internal/response"
	"github.com/guardianview/guardian-backend/internal/service"
	"github.com/guardianview/guardian-backend/internal/validator"
)

// MediaHandler mirrors the client's capture device lifecycle server-side.
type MediaHandler struct {
	proctorService *service.ProctorService
}

// NewMediaHandler creates a new MediaHandler.
func NewMediaHandler(proctorService *service.ProctorService) *MediaHandler {
	return &MediaHandler{proctorService: proctorService}
}

// AcquireRequest reports the client's getUserMedia outcome for a role.
// ErrorName carries the DOMException name when the acquisition failed.
type AcquireRequest struct {
	Role        media.Role        `json:"role" binding:"required,oneof=webcam mobile"`
	Constraints media.Constraints `json:"constraints"`
	ErrorName   string            `json:"error_name,omitempty"`
}

// Acquire godoc
// POST /api/v1/media/acquire
// Registers a stream acquisition. Switching constraints for a role
// releases the prior stream's tracks first.
func (h *MediaHandler) Acquire(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req AcquireRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	stream, err := h.proctorService.Gateway(claims.Username).Acquire(req.Role, req.Constraints, req.ErrorName)
	if err != nil {
		h.failAcquire(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"stream_id": stream.ID,
		"state":     h.proctorService.Gateway(claims.Username).State(),
	})
}

// Retry godoc
// POST /api/v1/media/retry/:role
// Re-issues the last acquisition for the role with identical constraints.
func (h *MediaHandler) Retry(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	stream, err := h.proctorService.Gateway(claims.Username).Retry(media.Role(c.Param("role")))
	if err != nil {
		h.failAcquire(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"stream_id": stream.ID,
		"state":     h.proctorService.Gateway(claims.Username).State(),
	})
}

// Release godoc
// POST /api/v1/media/release/:role
// Stops every track of the role's stream.
func (h *MediaHandler) Release(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	h.proctorService.Gateway(claims.Username).Release(media.Role(c.Param("role")))
	response.Success(c, http.StatusOK, gin.H{"state": h.proctorService.Gateway(claims.Username).State()})
}

func (h *MediaHandler) failAcquire(c *gin.Context, err error) {
	switch {
	case errors.Is(err, media.ErrPermissionDenied):
		response.Fail(c, http.StatusConflict, response.ErrPermissionDenied)
	case errors.Is(err, media.ErrDeviceNotFound):
		response.Fail(c, http.StatusConflict, response.ErrDeviceNotFound)
	default:
		response.Fail(c, http.StatusConflict, response.ErrMediaFailed)
	}
}
