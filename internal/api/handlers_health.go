// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/journal-monitor/backend/internal/parser"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version    string
	sessionMgr SessionManager
	registry   *parser.Registry
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, sessionMgr SessionManager, registry *parser.Registry) HealthHandler {
	return &HealthHandlerImpl{
		version:    version,
		sessionMgr: sessionMgr,
		registry:   registry,
	}
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	resp := map[string]interface{}{
		"status":  "ok",
		"version": h.version,
	}
	if h.sessionMgr != nil {
		resp["sessions"] = len(h.sessionMgr.List())
	}
	if h.registry != nil {
		resp["eventTypes"] = h.registry.Len()
	}
	return c.JSON(http.StatusOK, resp)
}
