package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/materialquote/backend/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterOptions carries the ambient dependencies of the router
type RouterOptions struct {
	Logger   zerolog.Logger
	Observer HTTPObserver        // nil skips HTTP metrics
	Gatherer prometheus.Gatherer // nil hides /metrics
}

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, opts RouterOptions) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.MaxMultipartMemory = cfg.Server.MaxUploadBytes

	// Global middleware
	router.Use(RequestIDMiddleware())
	router.Use(RecoveryMiddleware(opts.Logger))
	router.Use(LoggerMiddleware(opts.Logger, opts.Observer))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	if opts.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))
	{
		prices := v1.Group("/prices")
		{
			prices.GET("", handler.ListPrices)
			prices.POST("/upload", handler.UploadPrices)
		}

		v1.POST("/quotes", handler.CreateQuote)

		whatsapp := v1.Group("/whatsapp")
		{
			whatsapp.POST("", handler.WhatsAppWebhook)
			whatsapp.GET("", handler.WhatsAppStatus)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	})

	return router
}
