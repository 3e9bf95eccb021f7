package domain

// CreateRunRequest represents a request to register a run.
type CreateRunRequest struct {
	RunID  string `json:"run_id,omitempty"`
	Status string `json:"status,omitempty"`
}

// UpdateRunRequest represents a request to change a run's status.
type UpdateRunRequest struct {
	Status string `json:"status"`
}

// CreateSpanRequest represents a request to open a span in a run.
type CreateSpanRequest struct {
	SpanID       string `json:"span_id,omitempty"`
	ParentSpanID string `json:"parent_span_id,omitempty"`
	Name         string `json:"name"`
	Status       Status `json:"status,omitempty"`
	StartedAt    int64  `json:"started_at,omitempty"`
}

// RecordEventsRequest carries raw events for one span.
type RecordEventsRequest struct {
	SpanID string     `json:"span_id"`
	Events []RawEvent `json:"events"`
}

// ImportEventsRequest carries orchestrator run events for one span.
type ImportEventsRequest struct {
	SpanID string     `json:"span_id"`
	Events []RunEvent `json:"events"`
}

// RecordEventsResponse reports the ids assigned to recorded events. Skipped
// counts imported events that were already stored.
type RecordEventsResponse struct {
	EventIDs []string `json:"event_ids"`
	Skipped  int      `json:"skipped,omitempty"`
}

// ReloadNavigatorRequest optionally points a navigator session at another run.
type ReloadNavigatorRequest struct {
	RunID string `json:"run_id,omitempty"`
}
