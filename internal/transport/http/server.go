// Package http provides the HTTP server of the trace viewer.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/xiaot623/gogo/traceview/internal/config"
	"github.com/xiaot623/gogo/traceview/internal/service"
	v1 "github.com/xiaot623/gogo/traceview/internal/transport/http/v1"
	"github.com/xiaot623/gogo/traceview/internal/transport/ws"
)

// NewServer creates and configures the HTTP server. The WebSocket navigator
// is mounted when wsServer is not nil. Request logs are written only when
// the log level allows INFO lines.
func NewServer(cfg *config.Config, svc *service.Service, wsServer *ws.Server) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(cfg.Level())

	// Middleware
	if cfg.InfoEnabled() {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Handlers
	v1Handler := v1.NewHandler(svc)

	// Register Routes
	v1Handler.RegisterRoutes(e)
	if wsServer != nil {
		e.GET("/v1/runs/:run_id/navigator/ws", wsServer.HandleNavigator)
	}

	return e
}
