// Package repository stores runs, spans and their raw events.
package repository

import (
	"context"

	"github.com/xiaot623/gogo/traceview/internal/domain"
)

// Store defines the interface for trace persistence.
type Store interface {
	// Run operations
	CreateRun(ctx context.Context, run *domain.Run) error
	GetRun(ctx context.Context, runID string) (*domain.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status domain.TraceStatus) error

	// Span operations
	CreateSpan(ctx context.Context, span *domain.SpanRecord) error
	GetSpan(ctx context.Context, spanID string) (*domain.SpanRecord, error)

	// Event operations
	CreateEvents(ctx context.Context, runID, spanID string, events []domain.RawEvent) error
	CreateEventsIfAbsent(ctx context.Context, runID, spanID string, events []domain.RawEvent) ([]string, error)
	GetEvents(ctx context.Context, runID string, afterTs int64, kinds []string, limit int) ([]domain.RawEvent, error)
	CountEvents(ctx context.Context, runID string) (int, error)

	// GetTrace materializes the full span tree of a run.
	GetTrace(ctx context.Context, runID string) (*domain.Trace, error)

	// Lifecycle
	Close() error
}
