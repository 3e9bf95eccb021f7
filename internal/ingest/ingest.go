// Package ingest converts orchestrator run events into raw trace events.
package ingest

import (
	"encoding/json"

	"github.com/xiaot623/gogo/traceview/internal/domain"
)

// Orchestrator event types that take part in correlation.
const (
	TypeLLMCallStarted = "llm_call_started"
	TypeLLMCallDone    = "llm_call_done"
	TypeToolResult     = "tool_result"
)

type correlationFields struct {
	RequestID    string `json:"request_id"`
	LLMRequestID string `json:"llm_request_id"`
}

// Normalize maps run events onto raw events, keeping their order. Model
// calls are numbered in order of appearance. Events that cannot be mapped,
// including ones with unreadable payloads, become EventKindOther.
func Normalize(events []domain.RunEvent) []domain.RawEvent {
	out := make([]domain.RawEvent, 0, len(events))
	var seq int64
	for _, e := range events {
		raw := domain.RawEvent{
			EventID:   e.EventID,
			Kind:      domain.EventKindOther,
			Timestamp: e.Ts,
			Payload:   e.Payload,
		}

		var fields correlationFields
		if len(e.Payload) > 0 {
			if err := json.Unmarshal(e.Payload, &fields); err != nil {
				out = append(out, raw)
				continue
			}
		}

		switch e.Type {
		case TypeLLMCallStarted:
			seq++
			n := seq
			raw.Kind = domain.EventKindModelCallBegin
			raw.CorrelationID = fields.RequestID
			raw.SequenceNumber = &n
		case TypeLLMCallDone:
			// An end that names no call cannot be paired.
			if fields.RequestID != "" {
				raw.Kind = domain.EventKindModelCallEnd
				raw.CorrelationID = fields.RequestID
			}
		case TypeToolResult:
			raw.Kind = domain.EventKindToolCall
			raw.CorrelationID = fields.LLMRequestID
		}
		out = append(out, raw)
	}
	return out
}
