package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/guardianview/guardian-backend/internal/config"
	"github.com/guardianview/guardian-backend/internal/handler"
	"github.com/guardianview/guardian-backend/internal/middleware"
	"github.com/guardianview/guardian-backend/internal/response"
	"github.com/guardianview/guardian-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth     *handler.AuthHandler
	Exam     *handler.ExamHandler
	Media    *handler.MediaHandler
	Pairing  *handler.PairingHandler
	Advisory *handler.AdvisoryHandler
	WS       *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/login", handlers.Auth.Login)

		// Authenticated profile routes
		auth.POST("/logout", middleware.RequireJWT(authService), handlers.Auth.Logout)
		auth.GET("/me", middleware.RequireJWT(authService), handlers.Auth.Me)
	}

	// ─── 2. Exam Group (JWT + Single Session) ──────────────────────────
	examAPI := router.Group("/api/v1/exam")
	examAPI.Use(
		middleware.RequireJWT(authService),
		middleware.CheckActiveSession(authService),
	)
	{
		examAPI.GET("/state", handlers.Exam.GetState)
		examAPI.GET("/paper", handlers.Exam.GetPaper)
		examAPI.POST("/guidelines", handlers.Exam.AcceptGuidelines)
		examAPI.POST("/start", handlers.Exam.Start)
		examAPI.POST("/answer", handlers.Exam.Answer)
		examAPI.POST("/flag/:question_id", handlers.Exam.ToggleFlag)
		examAPI.POST("/goto/:index", handlers.Exam.GoTo)
		examAPI.POST("/submit", handlers.Exam.Submit)
		examAPI.POST("/warning/ack", handlers.Exam.AcknowledgeWarning)
		examAPI.GET("/history", handlers.Exam.History)
	}

	// ─── 3. Media Group (JWT + Single Session) ─────────────────────────
	mediaAPI := router.Group("/api/v1/media")
	mediaAPI.Use(
		middleware.RequireJWT(authService),
		middleware.CheckActiveSession(authService),
	)
	{
		mediaAPI.POST("/acquire", handlers.Media.Acquire)
		mediaAPI.POST("/retry/:role", handlers.Media.Retry)
		mediaAPI.POST("/release/:role", handlers.Media.Release)
	}

	// ─── 4. Pairing Group (JWT + Single Session) ───────────────────────
	pairingAPI := router.Group("/api/v1/pairing")
	pairingAPI.Use(
		middleware.RequireJWT(authService),
		middleware.CheckActiveSession(authService),
	)
	{
		pairingAPI.GET("/code", handlers.Pairing.Code)
		pairingAPI.POST("/confirm", handlers.Pairing.Confirm)
	}

	// ─── 5. Advisory Group (JWT + Single Session) ──────────────────────
	advisoryAPI := router.Group("/api/v1/advisory")
	advisoryAPI.Use(
		middleware.RequireJWT(authService),
		middleware.CheckActiveSession(authService),
	)
	{
		advisoryAPI.POST("/frame", handlers.Advisory.AnalyzeFrame)
	}

	// ─── 6. WebSocket Group (WS Auth) ──────────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireWSAuth(authService))
	{
		ws.GET("/exam/stream", handlers.WS.ExamStream)
	}

	return router
}
