package v1

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/xiaot623/gogo/traceview/internal/domain"
)

// CreateRun registers a run.
// POST /v1/runs
func (h *Handler) CreateRun(c echo.Context) error {
	var req domain.CreateRunRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	run, err := h.service.CreateRun(c.Request().Context(), req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, run)
}

// UpdateRun sets the status of a run.
// PATCH /v1/runs/:run_id
func (h *Handler) UpdateRun(c echo.Context) error {
	var req domain.UpdateRunRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	run, err := h.service.UpdateRunStatus(c.Request().Context(), c.Param("run_id"), req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, run)
}

// GetRun returns a run.
// GET /v1/runs/:run_id
func (h *Handler) GetRun(c echo.Context) error {
	run, err := h.service.GetRun(c.Request().Context(), c.Param("run_id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, run)
}

// CreateSpan opens a span in a run.
// POST /v1/runs/:run_id/spans
func (h *Handler) CreateSpan(c echo.Context) error {
	var req domain.CreateSpanRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	span, err := h.service.CreateSpan(c.Request().Context(), c.Param("run_id"), req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, span)
}

// RecordEvents stores raw events for a span.
// POST /v1/runs/:run_id/events
func (h *Handler) RecordEvents(c echo.Context) error {
	var req domain.RecordEventsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	resp, err := h.service.RecordEvents(c.Request().Context(), c.Param("run_id"), req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// ImportEvents stores orchestrator run events for a span.
// POST /v1/runs/:run_id/events/import
func (h *Handler) ImportEvents(c echo.Context) error {
	var req domain.ImportEventsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	resp, err := h.service.ImportRunEvents(c.Request().Context(), c.Param("run_id"), req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// GetRunEvents retrieves the raw events of a run.
// GET /v1/runs/:run_id/events?after_ts=&kinds=&limit=
func (h *Handler) GetRunEvents(c echo.Context) error {
	limit := 100
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			limit = val
		}
	}
	afterTs := int64(0)
	if t := c.QueryParam("after_ts"); t != "" {
		if val, err := strconv.ParseInt(t, 10, 64); err == nil {
			afterTs = val
		}
	}
	var kinds []string
	if k := c.QueryParam("kinds"); k != "" {
		kinds = strings.Split(k, ",")
	}

	ctx := c.Request().Context()
	runID := c.Param("run_id")
	if _, err := h.service.GetRun(ctx, runID); err != nil {
		return errorResponse(c, err)
	}

	events, err := h.service.GetRunEvents(ctx, runID, afterTs, kinds, limit)
	if err != nil {
		return errorResponse(c, err)
	}
	if events == nil {
		events = []domain.RawEvent{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"events":   events,
		"has_more": limit > 0 && len(events) == limit,
	})
}

// GetTrace returns the materialized span tree of a run.
// GET /v1/runs/:run_id/trace
func (h *Handler) GetTrace(c echo.Context) error {
	trace, err := h.service.GetTrace(c.Request().Context(), c.Param("run_id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, trace)
}

// GetTree returns the reconstructed execution tree of a run.
// GET /v1/runs/:run_id/tree
func (h *Handler) GetTree(c echo.Context) error {
	view, err := h.service.GetTraceView(c.Request().Context(), c.Param("run_id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, view)
}
