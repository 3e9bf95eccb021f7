package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/xiaot623/gogo/traceview/internal/domain"
	"github.com/xiaot623/gogo/traceview/internal/navigator"
)

// OpenNavigator starts a navigator session over a run.
// POST /v1/runs/:run_id/navigator
func (h *Handler) OpenNavigator(c echo.Context) error {
	view, err := h.service.OpenNavigator(c.Request().Context(), c.Param("run_id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, view)
}

// GetNavigator returns the current view of a session.
// GET /v1/navigator/:session_id
func (h *Handler) GetNavigator(c echo.Context) error {
	view, err := h.service.GetNavigator(c.Param("session_id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// ApplyNavigatorAction runs one navigator action.
// POST /v1/navigator/:session_id/actions
func (h *Handler) ApplyNavigatorAction(c echo.Context) error {
	var cmd navigator.Command
	if err := c.Bind(&cmd); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if cmd.Action == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "action is required"})
	}

	view, err := h.service.ApplyNavigator(c.Param("session_id"), cmd)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// ReloadNavigator rebuilds a session's tree from the stored events. The body
// may name another run to switch to.
// POST /v1/navigator/:session_id/reload
func (h *Handler) ReloadNavigator(c echo.Context) error {
	var req domain.ReloadNavigatorRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	view, err := h.service.ReloadNavigator(c.Request().Context(), c.Param("session_id"), req.RunID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// CloseNavigator ends a session.
// DELETE /v1/navigator/:session_id
func (h *Handler) CloseNavigator(c echo.Context) error {
	if err := h.service.CloseNavigator(c.Param("session_id")); err != nil {
		return errorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
