package v1

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/runwatch/internal/domain"
)

// ListOverrides returns every per-agent model override.
// GET /v1/overrides
func (h *Handler) ListOverrides(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"overrides": h.service.Overrides(),
	})
}

// GetOverride returns the model pinned for one agent.
// GET /v1/overrides/:agent_id
func (h *Handler) GetOverride(c echo.Context) error {
	ref := h.service.GetOverride(c.Param("agent_id"))
	if ref == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no override for agent"})
	}
	return c.JSON(http.StatusOK, ref)
}

// SetOverride pins a model for one agent.
// PUT /v1/overrides/:agent_id
func (h *Handler) SetOverride(c echo.Context) error {
	agentID := c.Param("agent_id")

	var ref domain.ModelRef
	if err := c.Bind(&ref); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if strings.TrimSpace(ref.ModelName) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "model_name is required"})
	}

	h.service.SetOverride(agentID, &ref)
	return c.JSON(http.StatusOK, ref)
}

// DeleteOverride clears one agent's override.
// DELETE /v1/overrides/:agent_id
func (h *Handler) DeleteOverride(c echo.Context) error {
	h.service.SetOverride(c.Param("agent_id"), nil)
	return c.NoContent(http.StatusNoContent)
}
