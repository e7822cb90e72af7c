package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/learnware/session-gateway/internal/catalog"
	"github.com/learnware/session-gateway/internal/config"
	"github.com/learnware/session-gateway/internal/engine"
	"github.com/learnware/session-gateway/internal/history"
	"github.com/learnware/session-gateway/internal/utils"
	"github.com/learnware/session-gateway/internal/validator"
)

type HandlerManager struct {
	sessionHandler *SessionHandler
	catalogHandler *CatalogHandler
	historyHandler *HistoryHandler
	authMiddleware *CasdoorAuthMiddleware
}

func NewHandlerManager(
	manager *engine.SessionManager,
	catalogService catalog.Service,
	historyService history.Service,
	validator *validator.Validator,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
) *HandlerManager {
	return &HandlerManager{
		sessionHandler: NewSessionHandler(manager, validator, logger),
		catalogHandler: NewCatalogHandler(catalogService, logger),
		historyHandler: NewHistoryHandler(historyService, logger),
		authMiddleware: NewCasdoorAuthMiddleware(casdoorConfig),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		// One session per learner; the learner's identity comes from the
		// token, so no session ID appears in the paths
		sessions := v1.Group("/sessions")
		{
			sessions.POST("/start", hm.sessionHandler.StartSession)
			sessions.GET("/current", hm.sessionHandler.CurrentSession)
			sessions.DELETE("", hm.sessionHandler.AbandonSession)

			sessions.POST("/answers", hm.sessionHandler.SaveAnswer)
			sessions.POST("/flags/:question_id", hm.sessionHandler.FlagQuestion)
			sessions.DELETE("/flags/:question_id", hm.sessionHandler.UnflagQuestion)
			sessions.POST("/goto", hm.sessionHandler.GoTo)
			sessions.GET("/time-remaining", hm.sessionHandler.TimeRemaining)

			sessions.POST("/submit", hm.sessionHandler.SubmitSession)
			sessions.GET("/result", hm.sessionHandler.SessionResult)
		}

		catalogGroup := v1.Group("/catalog")
		{
			catalogGroup.GET("/assessments", hm.catalogHandler.ListAssessments)
			catalogGroup.GET("/attempts", hm.catalogHandler.ListAttempts)
		}

		historyGroup := v1.Group("/history")
		{
			historyGroup.GET("/attempts", hm.historyHandler.ListAttempts)
			historyGroup.GET("/attempts/:id", hm.historyHandler.GetAttempt)
			historyGroup.GET("/export", hm.historyHandler.ExportHistory)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "session-gateway",
		})
	})
}
