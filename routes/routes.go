package routes

import (
	"github.com/gin-gonic/gin"

	"lof_arb_api/config"
	"lof_arb_api/controllers"
	"lof_arb_api/middleware"
	"lof_arb_api/services/fundcache"
	"lof_arb_api/services/stream"
)

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, cfg *config.Config, cache *fundcache.Cache, hub *stream.Hub) {
	fundController := controllers.NewFundController(cache, hub)

	lof := router.Group("/")
	if cfg.ClientRateLimit {
		limiter := middleware.NewRateLimiter(cfg.CacheTTL)
		lof.Use(limiter.Middleware())
	}
	lof.GET("/lof", fundController.GetLOF)

	router.GET("/", fundController.Home)
	router.GET("/health", fundController.Health)
	router.GET("/ws", fundController.Stream)
}
