package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/shopee-scraper/models"
)

// Version is reported by the health endpoint.
var Version = "0.1.0"

// StatsProvider reports browser session usage.
type StatsProvider interface {
	Stats() models.SessionStats
}

// Health returns a handler for GET /api/v1/health.
//
// Reports session usage and degrades status when > 80% of sessions are active.
func Health(sp StatsProvider, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := sp.Stats()

		status := "healthy"
		if stats.MaxSessions > 0 && float64(stats.ActiveSessions) > float64(stats.MaxSessions)*0.8 {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:       status,
			Uptime:       time.Since(startTime).Round(time.Second).String(),
			SessionStats: stats,
			Version:      Version,
		})
	}
}
