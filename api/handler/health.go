package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/gamedeck/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Health returns a handler for GET /api/v1/health.
//
// Status is "busy" while a run is in progress; new runs would be rejected.
func Health(store *RunStore, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		active := store.Active()
		status := "healthy"
		if active != "" {
			status = "busy"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:    status,
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			ActiveRun: active,
			Version:   Version,
		})
	}
}
