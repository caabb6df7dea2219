// handlers_health.go - Health check handlers
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/medallion-map/backend/internal/upload"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version string
	started time.Time
	panels  PanelManager
	intake  *upload.Manager
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, panels PanelManager, intake *upload.Manager) HealthHandler {
	return &HealthHandlerImpl{
		version: version,
		started: time.Now(),
		panels:  panels,
		intake:  intake,
	}
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	resp := map[string]interface{}{
		"status":  "ok",
		"version": h.version,
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	}
	if h.panels != nil {
		resp["panels"] = len(h.panels.List())
	}
	if h.intake != nil {
		resp["uploads"] = h.intake.Stats()
	}
	return c.JSON(http.StatusOK, resp)
}
