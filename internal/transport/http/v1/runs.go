package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/runwatch/internal/domain"
	"github.com/xiaot623/gogo/runwatch/internal/service"
)

// StartRun starts a new run, replacing the one in flight.
// POST /v1/runs
func (h *Handler) StartRun(c echo.Context) error {
	ctx := c.Request().Context()

	var req domain.RunRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	run, err := h.service.StartRun(ctx, req)
	if err != nil {
		var rejection *service.RejectionError
		if errors.As(err, &rejection) {
			return c.JSON(http.StatusUnprocessableEntity, map[string]interface{}{
				"error":   domain.ErrRunRejected.Error(),
				"reasons": rejection.Reasons,
			})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusAccepted, run)
}

// CancelRun cancels the run in flight.
// POST /v1/runs/cancel
func (h *Handler) CancelRun(c echo.Context) error {
	ctx := c.Request().Context()

	run, err := h.service.CancelRun(ctx)
	if errors.Is(err, domain.ErrNoActiveRun) {
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, run)
}

// ListRuns lists journaled runs, most recent first.
// GET /v1/runs
func (h *Handler) ListRuns(c echo.Context) error {
	limit := 20
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			limit = val
		}
	}

	runs, err := h.service.Runs(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if runs == nil {
		runs = []domain.Run{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"runs": runs,
	})
}

// GetRunEvents retrieves the journaled events of a run.
// GET /v1/runs/:run_id/events
func (h *Handler) GetRunEvents(c echo.Context) error {
	runID := c.Param("run_id")
	limit := 100
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			limit = val
		}
	}
	afterSeq := int64(0)
	if s := c.QueryParam("after_seq"); s != "" {
		if val, err := strconv.ParseInt(s, 10, 64); err == nil {
			afterSeq = val
		}
	}

	events, err := h.service.RunEvents(c.Request().Context(), runID, afterSeq, limit)
	if errors.Is(err, domain.ErrRunNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if events == nil {
		events = []domain.JournalEvent{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"events":   events,
		"has_more": limit > 0 && len(events) == limit,
	})
}
