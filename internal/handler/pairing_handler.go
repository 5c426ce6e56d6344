package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/guardianview/guardian-backend/internal/middleware"
	"github.com/guardianview/guardian-backend/internal/response"
	"github.com/guardianview/guardian-backend/internal/service"
)

// PairingHandler exposes the companion-device pairing flow.
type PairingHandler struct {
	proctorService *service.ProctorService
}

// NewPairingHandler creates a new PairingHandler.
func NewPairingHandler(proctorService *service.ProctorService) *PairingHandler {
	return &PairingHandler{proctorService: proctorService}
}

// Code godoc
// GET /api/v1/pairing/code
// Returns the companion stream URL and the externally rendered code image
// pointing at it.
func (h *PairingHandler) Code(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	gate := h.proctorService.PairingGate(claims.Username)
	response.Success(c, http.StatusOK, gin.H{
		"target_url": gate.TargetURL(),
		"image_url":  gate.CodeImageURL(),
		"confirmed":  gate.Confirmed(),
	})
}

// Confirm godoc
// POST /api/v1/pairing/confirm
// Marks the companion device as connected. One-way: once confirmed the
// gate never re-opens for the visit.
func (h *PairingHandler) Confirm(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	h.proctorService.ConfirmPairing(claims.Username)
	response.Success(c, http.StatusOK, gin.H{"confirmed": true})
}
