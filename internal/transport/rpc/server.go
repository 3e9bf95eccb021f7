package rpc

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"

	"github.com/xiaot623/gogo/traceview/internal/domain"
	"github.com/xiaot623/gogo/traceview/internal/service"
)

// Server exposes the producer API over JSON-RPC for agents that keep a
// long-lived connection instead of posting over HTTP.
type Server struct {
	listener  net.Listener
	rpcServer *rpc.Server
	done      chan struct{}
}

// NewServer creates a new RPC server bound to the trace viewer service.
func NewServer(svc *service.Service) (*Server, error) {
	rpcServer := rpc.NewServer()
	handler := &Handler{service: svc}
	if err := rpcServer.RegisterName("Traceview", handler); err != nil {
		return nil, fmt.Errorf("register rpc handler: %w", err)
	}

	return &Server{
		rpcServer: rpcServer,
		done:      make(chan struct{}),
	}, nil
}

// Start begins accepting RPC connections on the given address.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				close(s.done)
				return nil
			}
			log.Printf("WARN: rpc accept error: %v", err)
			continue
		}

		go s.ServeConn(conn)
	}
}

// ServeConn serves a single connection until the peer hangs up.
func (s *Server) ServeConn(conn net.Conn) {
	s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
}

// Shutdown stops accepting new RPC connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}

	if err := s.listener.Close(); err != nil {
		return err
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handler implements the RPC methods.
type Handler struct {
	service *service.Service
}

// UpdateRunArgs identifies a run and its new status.
type UpdateRunArgs struct {
	RunID   string                  `json:"run_id"`
	Request domain.UpdateRunRequest `json:"request"`
}

// CreateSpanArgs wraps a run id with the span to open.
type CreateSpanArgs struct {
	RunID   string                   `json:"run_id"`
	Request domain.CreateSpanRequest `json:"request"`
}

// RecordEventsArgs wraps a run id with the events to store.
type RecordEventsArgs struct {
	RunID   string                     `json:"run_id"`
	Request domain.RecordEventsRequest `json:"request"`
}

// CreateRun registers a run.
func (h *Handler) CreateRun(req *domain.CreateRunRequest, resp *domain.Run) error {
	if req == nil {
		return errors.New("create run request is required")
	}

	run, err := h.service.CreateRun(context.Background(), *req)
	if err != nil {
		return err
	}
	if resp != nil {
		*resp = *run
	}
	return nil
}

// UpdateRun sets the status of a run.
func (h *Handler) UpdateRun(req *UpdateRunArgs, resp *domain.Run) error {
	if req == nil {
		return errors.New("update run request is required")
	}
	if req.RunID == "" {
		return errors.New("run_id is required")
	}

	run, err := h.service.UpdateRunStatus(context.Background(), req.RunID, req.Request)
	if err != nil {
		return err
	}
	if resp != nil {
		*resp = *run
	}
	return nil
}

// CreateSpan opens a span.
func (h *Handler) CreateSpan(req *CreateSpanArgs, resp *domain.SpanRecord) error {
	if req == nil {
		return errors.New("create span request is required")
	}
	if req.RunID == "" {
		return errors.New("run_id is required")
	}

	span, err := h.service.CreateSpan(context.Background(), req.RunID, req.Request)
	if err != nil {
		return err
	}
	if resp != nil {
		*resp = *span
	}
	return nil
}

// RecordEvents stores events for a span.
func (h *Handler) RecordEvents(req *RecordEventsArgs, resp *domain.RecordEventsResponse) error {
	if req == nil {
		return errors.New("record events request is required")
	}
	if req.RunID == "" {
		return errors.New("run_id is required")
	}

	result, err := h.service.RecordEvents(context.Background(), req.RunID, req.Request)
	if err != nil {
		return err
	}
	if resp != nil {
		*resp = *result
	}
	return nil
}
