package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/shopee-scraper/api/handler"
	"github.com/use-agent/shopee-scraper/api/middleware"
	"github.com/use-agent/shopee-scraper/config"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
// ctx bounds background work owned by the middleware.
//
// Middleware chain:
//
//	Global:  Recovery → RequestID → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health is outside auth so monitoring probes always work.
func NewRouter(ctx context.Context, sc handler.ProductScraper, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(sc, startTime))

	var guards []gin.HandlerFunc
	if cfg.Auth.Enabled {
		guards = append(guards, middleware.Auth(cfg.Auth.APIKeys))
	}
	guards = append(guards, middleware.RateLimit(ctx, cfg.RateLimit))

	scrape := handler.Scrape(sc)
	v1.Group("", guards...).POST("/scrape", scrape)

	// Unversioned path kept for existing clients.
	r.Group("", guards...).POST("/scrape", scrape)

	return r
}
