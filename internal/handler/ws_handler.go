package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/guardianview/guardian-backend/internal/middleware"
	"github.com/guardianview/guardian-backend/internal/service"
	"github.com/guardianview/guardian-backend/internal/session"
	ws "github.com/guardianview/guardian-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler handles the real-time exam signal stream.
type WSHandler struct {
	proctorService *service.ProctorService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(proctorService *service.ProctorService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		proctorService: proctorService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// ExamStream godoc
// WS /ws/v1/exam/stream
// Upgrades to WebSocket for real-time answer autosave and proctoring
// signals (visibility, tracks, device changes, fullscreen).
func (h *WSHandler) ExamStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	candidate := claims.Username

	wsLog := h.log.With().
		Str("candidate", candidate).
		Logger()

	wsLog.Info().Msg("Candidate connected")

	for {
		var msg ws.RequestPayload
		err := ws.ReadJSON(conn, &msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		switch msg.Action {
		case ws.ActionVisibility:
			h.handleVisibility(c, conn, candidate)
		case ws.ActionTrack:
			h.proctorService.Gateway(candidate).UpdateTrack(msg.Role, msg.Kind, msg.Enabled, msg.Muted)
			h.sendState(conn, candidate)
		case ws.ActionDeviceChange:
			h.proctorService.Gateway(candidate).DeviceChanged()
			ws.WriteTyped(conn, ws.SavedResponse{Event: ws.EventSaved, Status: "reported"})
		case ws.ActionFullscreen:
			h.proctorService.Controller(candidate).ReportFullscreen(msg.Active)
			h.sendState(conn, candidate)
		case ws.ActionAnswer:
			h.handleAnswer(conn, candidate, &msg)
		case ws.ActionFlag:
			if err := h.proctorService.Controller(candidate).ToggleFlag(msg.QuestionID); err != nil {
				ws.WriteError(conn, err.Error())
				continue
			}
			ws.WriteTyped(conn, ws.SavedResponse{Event: ws.EventSaved, Status: "saved"})
		case ws.ActionAck:
			h.proctorService.AcknowledgeWarning(candidate)
			h.sendState(conn, candidate)
		case ws.ActionSubmit:
			h.handleSubmit(conn, wsLog, candidate)
		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			ws.WriteError(conn, "unknown action: "+string(msg.Action))
		}
	}
}

// handleVisibility opens the warning dialog and streams the warning text
// back once the advisory helper (or its fallback) produced it.
func (h *WSHandler) handleVisibility(c *gin.Context, conn *websocket.Conn, candidate string) {
	warning, opened := h.proctorService.HandleVisibilityHidden(c.Request.Context(), candidate)
	if !opened {
		h.sendState(conn, candidate)
		return
	}
	ws.WriteTyped(conn, ws.WarningResponse{Event: ws.EventWarning, Message: warning})
	h.sendState(conn, candidate)
}

// handleAnswer saves a single answer and queues an acknowledgement.
func (h *WSHandler) handleAnswer(conn *websocket.Conn, candidate string, msg *ws.RequestPayload) {
	if msg.QuestionID == "" || msg.OptionID == "" {
		ws.WriteError(conn, "question_id and option_id are required")
		return
	}

	if err := h.proctorService.Controller(candidate).RecordAnswer(msg.QuestionID, msg.OptionID); err != nil {
		ws.WriteError(conn, err.Error())
		return
	}
	ws.WriteTyped(conn, ws.SavedResponse{Event: ws.EventSaved, Status: "saved"})
}

// handleSubmit finalizes the candidate's session.
func (h *WSHandler) handleSubmit(conn *websocket.Conn, wsLog zerolog.Logger, candidate string) {
	if err := h.proctorService.Submit(candidate); err != nil {
		if errors.Is(err, session.ErrIncomplete) {
			ws.WriteError(conn, "all questions must be answered before submitting")
			return
		}
		ws.WriteError(conn, err.Error())
		return
	}

	snapshot := h.proctorService.Snapshot(candidate)
	wsLog.Info().
		Bool("timed_out", snapshot.TimedOut).
		Int("answered", snapshot.AnsweredCount).
		Msg("Exam submitted")

	ws.WriteTyped(conn, ws.SubmittedResponse{Event: ws.EventSubmitted, TimedOut: snapshot.TimedOut})
}

// sendState pushes a fresh session snapshot to the client.
func (h *WSHandler) sendState(conn *websocket.Conn, candidate string) {
	ws.WriteTyped(conn, ws.StateResponse{Event: ws.EventState, State: h.proctorService.Snapshot(candidate)})
}
