package router

import (
	"net/http"

	"chessroam/config"
	"chessroam/internal/handler"
	"chessroam/internal/middleware"
	"chessroam/internal/repository"
	"chessroam/internal/service"
	"chessroam/internal/ws"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func Setup(cfg *config.Config, db *gorm.DB, registry ws.Registry) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	// Repositories
	gameRepo := repository.NewGameRepository(db)
	prefRepo := repository.NewPreferenceRepository(db)

	hub := ws.NewHub(registry)

	// Services
	scorer := service.NewScoreService()

	// Handlers
	suggestionHandler := handler.NewSuggestionHandler(gameRepo, prefRepo, scorer)
	preferenceHandler := handler.NewPreferenceHandler(prefRepo)

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	limiter := middleware.NewInMemoryRateLimiter(cfg.Server.RateLimit, cfg.Server.RateWindow)

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimit(limiter))
	{
		api.GET("/suggestions", suggestionHandler.List)
		api.GET("/preferences", preferenceHandler.Get)
		api.PUT("/preferences", preferenceHandler.Put)
	}

	r.GET("/ws/voice", ws.UpgradeVoiceWS(hub))

	return r
}
