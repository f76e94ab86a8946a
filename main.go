package main

import (
	"context"
	"html/template"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"lof_arb_api/config"
	"lof_arb_api/logger"
	"lof_arb_api/routes"
	"lof_arb_api/scheduler"
	"lof_arb_api/services/datasource"
	"lof_arb_api/services/fundcache"
	"lof_arb_api/services/pipeline"
	"lof_arb_api/services/stream"
	"lof_arb_api/templates"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("config load failed")
	}

	if err := logger.Configure(cfg.LogLevel, cfg.LogFile); err != nil {
		logger.WithError(err).Fatal("logger configuration failed")
	}

	logger.WithFields(logger.Fields{
		"port":  cfg.Port,
		"debug": cfg.Debug,
		"ttl":   cfg.CacheTTL.String(),
	}).Info("LOF arbitrage API starting")

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestLogger())

	if err := loadTemplates(router); err != nil {
		logger.WithError(err).Fatal("template load failed")
	}

	// Wire the pipeline: adapter -> cache -> stream hub.
	adapter := datasource.NewClient(cfg.UpstreamTimeout)
	cache := fundcache.New(adapter, cfg.CacheTTL, pipeline.Thresholds{
		MinAbsPremium:  cfg.MinAbsPremium,
		MinTradedValue: cfg.MinTradedValue,
	})
	hub := stream.NewHub()
	cache.OnPublish(hub.Publish)

	routes.SetupRoutes(router, cfg, cache, hub)

	// Warm the cache so the first request does not pay the fetch cost. A
	// failure here is fine; the first caller recomputes instead.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.UpstreamTimeout)
		defer cancel()
		if _, err := cache.Get(ctx); err != nil {
			logger.WithComponent("main").WithError(err).Warn("cache warm-up failed")
		}
	}()

	var jobScheduler *scheduler.Scheduler
	if cfg.BackgroundRefresh {
		jobScheduler = scheduler.NewScheduler(cache, cfg.CacheTTL)
		jobScheduler.Start()
	}

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	go func() {
		logger.WithFields(logger.Fields{"addr": server.Addr}).Info("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server error")
		}
	}()

	gracefulShutdown(server, jobScheduler, hub)
}

// loadTemplates parses the embedded HTML templates into the router.
func loadTemplates(router *gin.Engine) error {
	tmpl, err := template.ParseFS(templates.TemplateFS, "*.html")
	if err != nil {
		return err
	}
	router.SetHTMLTemplate(tmpl)
	return nil
}

// corsMiddleware returns a CORS middleware handler
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger returns a request logging middleware
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip health checks to reduce noise.
		path := c.Request.URL.Path
		if path == "/health" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		entry := logger.WithFields(logger.Fields{
			"method":   c.Request.Method,
			"path":     path,
			"status":   c.Writer.Status(),
			"duration": duration.String(),
		})
		if c.Writer.Status() >= 400 || duration > time.Second {
			entry.Warn("request")
		} else {
			entry.Debug("request")
		}
	}
}

// gracefulShutdown handles graceful shutdown of the server
func gracefulShutdown(server *http.Server, jobScheduler *scheduler.Scheduler, hub *stream.Hub) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	logger.WithFields(logger.Fields{"signal": sig.String()}).Info("shutting down")

	if jobScheduler != nil {
		jobScheduler.Stop()
	}
	hub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("server forced to shutdown")
	}

	logger.WithComponent("main").Info("shutdown complete")
}
