package service

import (
	"context"
	"fmt"

	"github.com/xiaot623/gogo/traceview/internal/domain"
	"github.com/xiaot623/gogo/traceview/internal/errorpath"
	"github.com/xiaot623/gogo/traceview/internal/tree"
)

// TraceView is the reconstructed tree of a run plus its error path.
type TraceView struct {
	Run        *domain.Run  `json:"run"`
	Roots      []*tree.Node `json:"roots"`
	ErrorPath  tree.NodeSet `json:"error_path"`
	FirstError tree.NodeID  `json:"first_error,omitempty"`
}

// GetTrace loads the materialized trace of a run, refusing runs larger than
// the configured event bound.
func (s *Service) GetTrace(ctx context.Context, runID string) (*domain.Trace, error) {
	if _, err := s.getRun(ctx, runID); err != nil {
		return nil, err
	}
	if limit := s.maxEvents(); limit > 0 {
		n, err := s.store.CountEvents(ctx, runID)
		if err != nil {
			return nil, fmt.Errorf("failed to count events: %w", err)
		}
		if n > limit {
			return nil, fmt.Errorf("%w: run %s has %d events, limit is %d", ErrTraceTooLarge, runID, n, limit)
		}
	}

	trace, err := s.store.GetTrace(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get trace: %w", err)
	}
	if trace == nil {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return trace, nil
}

// GetTraceView rebuilds the execution tree of a run from scratch.
func (s *Service) GetTraceView(ctx context.Context, runID string) (*TraceView, error) {
	run, err := s.getRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	trace, err := s.GetTrace(ctx, runID)
	if err != nil {
		return nil, err
	}

	roots := tree.Build(*trace)
	view := &TraceView{
		Run:       run,
		Roots:     roots,
		ErrorPath: errorpath.MarkErrorPaths(roots),
	}
	if id, ok := errorpath.FirstError(roots); ok {
		view.FirstError = id
	}
	return view, nil
}

func (s *Service) maxEvents() int {
	if s.config == nil {
		return 0
	}
	return s.config.MaxEventsPerRun
}
