package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/guardianview/guardian-backend/internal/middleware"
	"github.com/guardianview/guardian-backend/internal/model"
	"github.com/guardianview/guardian-backend/internal/response"
	"github.com/guardianview/guardian-backend/internal/service"
	"github.com/guardianview/guardian-backend/internal/validator"
)

// AuthHandler handles credential entry and logout.
type AuthHandler struct {
	authService    *service.AuthService
	proctorService *service.ProctorService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService, proctorService *service.ProctorService) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		proctorService: proctorService,
	}
}

// Login godoc
// POST /api/v1/auth/login
// Accepts any non-empty username/password pair, issues a JWT and creates a
// fresh NotStarted exam session for the visit.
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	token, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrEmptyCredentials) {
			response.Fail(c, http.StatusBadRequest, response.ErrEmptyCredentials)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	// A visit always begins at the readiness check; nothing survives a
	// re-login.
	h.proctorService.StartVisit(req.Username)

	response.Success(c, http.StatusOK, gin.H{"token": token})
}

// Logout godoc
// POST /api/v1/auth/logout
// Clears the authenticated marker and drops the in-memory session.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if err := h.authService.Logout(c.Request.Context(), claims.Username); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	h.proctorService.EndVisit(claims.Username)

	response.Success(c, http.StatusOK, gin.H{})
}

// Me godoc
// GET /api/v1/auth/me
// Returns the authenticated candidate identity.
func (h *AuthHandler) Me(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"candidate": gin.H{"username": claims.Username},
	})
}
