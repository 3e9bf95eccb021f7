// Package domain defines the core domain models for trace reconstruction.
package domain

// EventKind represents the kind of a raw execution event. Kinds other than
// the ones below are kept as given and treated as EventKindOther.
type EventKind string

const (
	EventKindModelCallBegin EventKind = "model_call_begin"
	EventKindModelCallEnd   EventKind = "model_call_end"
	EventKindToolCall       EventKind = "tool_call"
	EventKindOther          EventKind = "other"
)

// Status represents the status of a span or event as set by the producer.
type Status string

const (
	StatusUnspecified Status = ""
	StatusSuccess     Status = "success"
	StatusError       Status = "error"
	StatusRunning     Status = "running"
)

// Valid reports whether s is a recognized status value.
func (s Status) Valid() bool {
	switch s {
	case StatusUnspecified, StatusSuccess, StatusError, StatusRunning:
		return true
	}
	return false
}

// TraceStatus represents the overall status of a workflow run.
type TraceStatus string

const (
	TraceStatusSuccess TraceStatus = "success"
	TraceStatusError   TraceStatus = "error"
	TraceStatusRunning TraceStatus = "running"
	TraceStatusUnknown TraceStatus = "unknown"
)

// ParseTraceStatus maps s to a TraceStatus, defaulting to unknown.
func ParseTraceStatus(s string) TraceStatus {
	switch TraceStatus(s) {
	case TraceStatusSuccess, TraceStatusError, TraceStatusRunning:
		return TraceStatus(s)
	}
	return TraceStatusUnknown
}
