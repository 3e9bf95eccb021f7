package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xiaot623/gogo/traceview/internal/domain"
)

// CreateRun registers a new run.
func (s *Service) CreateRun(ctx context.Context, req domain.CreateRunRequest) (*domain.Run, error) {
	runID := req.RunID
	if runID == "" {
		runID = "run_" + uuid.New().String()[:8]
	}
	status := domain.TraceStatusRunning
	if req.Status != "" {
		status = domain.ParseTraceStatus(req.Status)
	}

	existing, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: run %s already exists", ErrConflict, runID)
	}

	run := &domain.Run{
		RunID:     runID,
		Status:    status,
		StartedAt: time.Now(),
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, storeError("create run", err)
	}
	return run, nil
}

// UpdateRunStatus sets the externally derived status of a run.
func (s *Service) UpdateRunStatus(ctx context.Context, runID string, req domain.UpdateRunRequest) (*domain.Run, error) {
	if req.Status == "" {
		return nil, fmt.Errorf("%w: status is required", ErrInvalidRequest)
	}
	if _, err := s.getRun(ctx, runID); err != nil {
		return nil, err
	}
	if err := s.store.UpdateRunStatus(ctx, runID, domain.ParseTraceStatus(req.Status)); err != nil {
		return nil, fmt.Errorf("failed to update run: %w", err)
	}
	return s.getRun(ctx, runID)
}

// CreateSpan opens a span in a run. A parent span must belong to the same run.
func (s *Service) CreateSpan(ctx context.Context, runID string, req domain.CreateSpanRequest) (*domain.SpanRecord, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	if !req.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, req.Status)
	}
	if _, err := s.getRun(ctx, runID); err != nil {
		return nil, err
	}
	if req.ParentSpanID != "" {
		if _, err := s.getSpan(ctx, runID, req.ParentSpanID); err != nil {
			return nil, err
		}
	}

	span := &domain.SpanRecord{
		SpanID:       req.SpanID,
		RunID:        runID,
		ParentSpanID: req.ParentSpanID,
		Name:         req.Name,
		Status:       req.Status,
		StartedAt:    req.StartedAt,
	}
	if span.SpanID == "" {
		span.SpanID = "span_" + uuid.New().String()[:8]
	}
	if err := s.store.CreateSpan(ctx, span); err != nil {
		return nil, storeError("create span", err)
	}
	return span, nil
}

func (s *Service) getRun(ctx context.Context, runID string) (*domain.Run, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, nil
}

func (s *Service) getSpan(ctx context.Context, runID, spanID string) (*domain.SpanRecord, error) {
	span, err := s.store.GetSpan(ctx, spanID)
	if err != nil {
		return nil, fmt.Errorf("failed to get span: %w", err)
	}
	if span == nil || span.RunID != runID {
		return nil, fmt.Errorf("%w: %s", ErrSpanNotFound, spanID)
	}
	return span, nil
}

// GetRun returns a run.
func (s *Service) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	return s.getRun(ctx, runID)
}

// EnsureSpan opens a top-level span unless the run already has it.
func (s *Service) EnsureSpan(ctx context.Context, runID, spanID, name string) error {
	_, err := s.getSpan(ctx, runID, spanID)
	if errors.Is(err, ErrSpanNotFound) {
		_, err = s.CreateSpan(ctx, runID, domain.CreateSpanRequest{SpanID: spanID, Name: name})
	}
	return err
}
