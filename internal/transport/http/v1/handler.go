// Package v1 provides the HTTP handlers of the trace viewer API.
package v1

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/xiaot623/gogo/traceview/internal/service"
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

// RegisterRoutes registers the API routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Producer API
	e.POST("/v1/runs", h.CreateRun)
	e.PATCH("/v1/runs/:run_id", h.UpdateRun)
	e.POST("/v1/runs/:run_id/spans", h.CreateSpan)
	e.POST("/v1/runs/:run_id/events", h.RecordEvents)
	e.POST("/v1/runs/:run_id/events/import", h.ImportEvents)

	// Read API
	e.GET("/v1/runs/:run_id", h.GetRun)
	e.GET("/v1/runs/:run_id/events", h.GetRunEvents)
	e.GET("/v1/runs/:run_id/trace", h.GetTrace)
	e.GET("/v1/runs/:run_id/tree", h.GetTree)

	// Navigator sessions
	e.POST("/v1/runs/:run_id/navigator", h.OpenNavigator)
	e.GET("/v1/navigator/:session_id", h.GetNavigator)
	e.POST("/v1/navigator/:session_id/actions", h.ApplyNavigatorAction)
	e.POST("/v1/navigator/:session_id/reload", h.ReloadNavigator)
	e.DELETE("/v1/navigator/:session_id", h.CloseNavigator)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

// errorResponse maps service errors onto HTTP status codes.
func errorResponse(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrRunNotFound),
		errors.Is(err, service.ErrSpanNotFound),
		errors.Is(err, service.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, service.ErrTraceTooLarge):
		status = http.StatusRequestEntityTooLarge
	default:
		log.Printf("ERROR: %s %s: %v", c.Request().Method, c.Path(), err)
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}
