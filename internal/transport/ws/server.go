// Package ws serves interactive navigator sessions over WebSocket. Each
// connection owns one navigator, driven only by its read loop.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/traceview/internal/config"
	"github.com/xiaot623/gogo/traceview/internal/navigator"
	"github.com/xiaot623/gogo/traceview/internal/service"
)

const sendBufferSize = 16

// Server handles WebSocket connections.
type Server struct {
	cfg      *config.Config
	service  *service.Service
	upgrader websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(cfg *config.Config, svc *service.Service) *Server {
	return &Server{
		cfg:     cfg,
		service: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

type connection struct {
	conn  *websocket.Conn
	send  chan []byte
	runID string
	nav   *navigator.Navigator
}

// HandleNavigator upgrades the request and starts a navigator session over
// the run named in the path. Unknown runs are rejected before the upgrade.
// GET /v1/runs/:run_id/navigator/ws
func (s *Server) HandleNavigator(c echo.Context) error {
	runID := c.Param("run_id")
	nav, err := s.service.NewNavigator(c.Request().Context(), runID)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, service.ErrRunNotFound):
			status = http.StatusNotFound
		case errors.Is(err, service.ErrTraceTooLarge):
			status = http.StatusRequestEntityTooLarge
		}
		return c.JSON(status, map[string]string{"error": err.Error()})
	}

	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("WARN: failed to upgrade websocket: %v", err)
		return nil
	}
	ws.SetReadLimit(s.cfg.MaxMessageSize)

	conn := &connection{
		conn:  ws,
		send:  make(chan []byte, sendBufferSize),
		runID: runID,
		nav:   nav,
	}
	s.sendView(conn)

	go s.writePump(conn)
	go s.readPump(conn)
	return nil
}

// readPump reads client messages and applies them to the navigator.
func (s *Server) readPump(conn *connection) {
	defer func() {
		close(conn.send)
	}()

	conn.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.conn.SetPongHandler(func(string) error {
		conn.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WARN: websocket error: %v", err)
			}
			return
		}
		s.handleMessage(conn, message)
	}
}

// writePump writes queued messages and keeps the connection alive.
func (s *Server) writePump(conn *connection) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.send:
			conn.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if !ok {
				conn.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WARN: failed to write message: %v", err)
				return
			}

		case <-ticker.C:
			conn.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleMessage(conn *connection, data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	switch msg.Type {
	case TypeAction:
		if !conn.nav.Apply(msg.Command) {
			s.sendError(conn, ErrorCodeUnknownAction, "unknown action: "+string(msg.Action))
			return
		}
	case TypeReload:
		runID := msg.RunID
		if runID == "" {
			runID = conn.runID
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		roots, err := s.service.BuildTree(ctx, runID)
		cancel()
		if err != nil {
			s.sendError(conn, ErrorCodeReloadFailed, err.Error())
			return
		}
		conn.runID = runID
		conn.nav.Reset(roots)
	default:
		s.sendError(conn, ErrorCodeInvalidMessage, "unknown message type: "+msg.Type)
		return
	}
	s.sendView(conn)
}

func (s *Server) sendView(conn *connection) {
	s.sendJSON(conn, ViewMessage{
		Type:  TypeView,
		Ts:    time.Now().UnixMilli(),
		RunID: conn.runID,
		View:  conn.nav.View(),
	})
}

func (s *Server) sendError(conn *connection, code, message string) {
	s.sendJSON(conn, ErrorMessage{
		Type:    TypeError,
		Ts:      time.Now().UnixMilli(),
		Code:    code,
		Message: message,
	})
}

func (s *Server) sendJSON(conn *connection, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("ERROR: failed to marshal message: %v", err)
		return
	}
	select {
	case conn.send <- data:
	default:
		log.Printf("WARN: send buffer full, dropping message for run %s", conn.runID)
	}
}
