package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/gamedeck/api/handler"
	"github.com/use-agent/gamedeck/api/middleware"
	"github.com/use-agent/gamedeck/config"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	Runs:    Auth (if keys configured) → RateLimit
//
// Health is outside auth so monitoring probes always work.
func NewRouter(ctx context.Context, store *handler.RunStore, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(store, startTime))

	runs := v1.Group("/runs")
	runs.Use(middleware.Auth(cfg.Auth.APIKeys))
	runs.Use(middleware.RateLimit(ctx, cfg.RateLimit))

	runs.POST("", handler.PostRun(store, cfg.Catalog.Views))
	runs.GET("/:id", handler.GetRun(store))
	runs.GET("/:id/records", handler.GetRunRecords(store))

	return r
}
