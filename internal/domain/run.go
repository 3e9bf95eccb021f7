package domain

import (
	"encoding/json"
	"time"
)

// Run represents a single workflow run whose events are stored.
type Run struct {
	RunID     string      `json:"run_id"`
	Status    TraceStatus `json:"status"`
	StartedAt time.Time   `json:"started_at"`
	EndedAt   *time.Time  `json:"ended_at,omitempty"`
}

// RawEvent is one execution event inside a span, ordered by occurrence.
type RawEvent struct {
	EventID        string          `json:"event_id"`
	Kind           EventKind       `json:"kind"`
	Timestamp      int64           `json:"ts"` // Unix milliseconds
	CorrelationID  string          `json:"correlation_id,omitempty"`
	SequenceNumber *int64          `json:"sequence_number,omitempty"`
	Status         Status          `json:"status,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// Span is a bounded unit of workflow execution. Its events are correlated
// independently of its nested spans.
type Span struct {
	SpanID    string     `json:"span_id"`
	Name      string     `json:"name"`
	Status    Status     `json:"status,omitempty"`
	StartedAt int64      `json:"started_at,omitempty"` // Unix milliseconds
	Events    []RawEvent `json:"events"`
	Spans     []Span     `json:"spans,omitempty"`
}

// Trace is the root collection of top-level spans for one run.
type Trace struct {
	RunID  string      `json:"run_id"`
	Status TraceStatus `json:"status"`
	Spans  []Span      `json:"spans"`
}

// EventCount returns the number of raw events across all spans of t.
func (t Trace) EventCount() int {
	n := 0
	var walk func(spans []Span)
	walk = func(spans []Span) {
		for _, s := range spans {
			n += len(s.Events)
			walk(s.Spans)
		}
	}
	walk(t.Spans)
	return n
}

// SpanRecord is a stored span without its events or nested spans.
type SpanRecord struct {
	SpanID       string `json:"span_id"`
	RunID        string `json:"run_id"`
	ParentSpanID string `json:"parent_span_id,omitempty"`
	Name         string `json:"name"`
	Status       Status `json:"status,omitempty"`
	StartedAt    int64  `json:"started_at,omitempty"` // Unix milliseconds
}

// RunEvent is an event as recorded by the orchestrator for replay. Its Type
// is one of the orchestrator event types (llm_call_started, tool_result, ...).
type RunEvent struct {
	EventID string          `json:"event_id"`
	RunID   string          `json:"run_id,omitempty"`
	Ts      int64           `json:"ts"` // Unix milliseconds
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
