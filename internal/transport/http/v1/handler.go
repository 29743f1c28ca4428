// Package v1 provides the v1 HTTP handlers.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/runwatch/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers the routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Projected state
	e.GET("/v1/state", h.GetState)
	e.GET("/v1/agents/:agent_id", h.GetAgent)
	e.GET("/v1/output", h.GetOutput)

	// Runs
	e.POST("/v1/runs", h.StartRun)
	e.POST("/v1/runs/cancel", h.CancelRun)
	e.GET("/v1/runs", h.ListRuns)
	e.GET("/v1/runs/:run_id/events", h.GetRunEvents)

	// Per-agent model overrides
	e.GET("/v1/overrides", h.ListOverrides)
	e.GET("/v1/overrides/:agent_id", h.GetOverride)
	e.PUT("/v1/overrides/:agent_id", h.SetOverride)
	e.DELETE("/v1/overrides/:agent_id", h.DeleteOverride)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	resp := map[string]interface{}{
		"status":  "healthy",
		"version": "0.1.0",
	}
	if run, ok := h.service.ActiveRun(); ok {
		resp["active_run"] = run.RunID
	}
	return c.JSON(http.StatusOK, resp)
}
