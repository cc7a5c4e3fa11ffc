package routes

import (
	"net/http"
	"time"

	"pdf-term-stats/internal/config"
	"pdf-term-stats/internal/telemetry"
	"pdf-term-stats/middleware"
	"pdf-term-stats/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Dependencies carries the services the HTTP API is built from. Store, Queue
// and Redis are optional.
type Dependencies struct {
	Service    *services.AnalysisService
	Downloader *services.Downloader
	Store      AnalysisRepository
	Queue      TaskEnqueuer
	Redis      redis.Cmdable
	Metrics    *telemetry.Metrics
}

// SetupRouter builds the gin engine with middleware and all routes
func SetupRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddlewareWithOrigins(cfg.CORSOrigins))
	if cfg.OTelEnabled {
		router.Use(middleware.TracingMiddleware(cfg.ServiceName))
		router.Use(middleware.EnrichTrace())
	}
	if deps.Metrics != nil {
		router.Use(middleware.MetricsMiddleware(deps.Metrics))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	api := router.Group("/api/v1")
	// multipart framing adds a little to the file itself
	api.Use(middleware.RequestSizeLimit(cfg.MaxFileSize + 1<<20))
	if deps.Redis != nil {
		api.Use(middleware.RateLimitMiddleware(deps.Redis, cfg))
	}

	SetupExtractionRoutes(api, cfg, deps.Service, deps.Downloader)
	SetupAnalysisRoutes(api, cfg, deps.Store, deps.Queue)

	return router
}
