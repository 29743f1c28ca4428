package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// GetState returns the projected state of every agent.
// GET /v1/state
func (h *Handler) GetState(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.Snapshot())
}

// GetAgent returns one agent's record.
// GET /v1/agents/:agent_id
func (h *Handler) GetAgent(c echo.Context) error {
	agentID := c.Param("agent_id")

	rec, ok := h.service.Agent(agentID)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "agent not found"})
	}
	return c.JSON(http.StatusOK, rec)
}

// GetOutput returns the current run's final output.
// GET /v1/output
func (h *Handler) GetOutput(c echo.Context) error {
	out, ok := h.service.Output()
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "output not ready"})
	}
	return c.JSON(http.StatusOK, out)
}
