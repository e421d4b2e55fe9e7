package http

import (
	"github.com/firmscout/backend/config"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger := zap.L().With(zap.String("component", "http"))

	router := gin.New()

	// Global middleware
	router.Use(RequestIDMiddleware())
	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	limiter := RateLimitMiddleware(cfg.RateLimit.PerIP)

	router.GET("/health", handler.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		companies := v1.Group("/companies", limiter)
		{
			companies.POST("/search", handler.SearchCompanies)
			companies.GET("/search", handler.SearchCompanies)
		}
		v1.POST("/cache/clear", handler.ClearCache)
	}

	// Legacy paths still called by the front-end
	router.POST("/api/scrape", limiter, handler.SearchCompanies)
	router.POST("/api/clear-cache", handler.ClearCache)

	return router
}
