package policy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/open-policy-agent/opa/rego"

	"github.com/xiaot623/gogo/traceview/internal/domain"
)

// Engine is the OPA engine that derives a status for events recorded
// without one.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new status engine with the given policy content. The
// policy must define data.trace_status.status.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.trace_status.status"),
		rego.Module("trace_status.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Classify evaluates the policy for ev. Input is {kind, correlation_id,
// payload}. An event that already carries a status is returned unchanged.
func (e *Engine) Classify(ctx context.Context, ev domain.RawEvent) (domain.Status, error) {
	if ev.Status != domain.StatusUnspecified {
		return ev.Status, nil
	}

	input := map[string]interface{}{
		"kind":           string(ev.Kind),
		"correlation_id": ev.CorrelationID,
	}
	if len(ev.Payload) > 0 {
		var payload interface{}
		if err := json.Unmarshal(ev.Payload, &payload); err == nil {
			input["payload"] = payload
		}
	}

	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return domain.StatusUnspecified, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return domain.StatusUnspecified, nil
	}

	s, ok := results[0].Expressions[0].Value.(string)
	if !ok {
		return domain.StatusUnspecified, fmt.Errorf("policy returned %T, want string", results[0].Expressions[0].Value)
	}
	status := domain.Status(s)
	if !status.Valid() {
		return domain.StatusUnspecified, fmt.Errorf("policy returned unknown status %q", s)
	}
	return status, nil
}

// DefaultPolicy is the default status policy content.
const DefaultPolicy = `
package trace_status

default status = ""

# Explicit error strings, as written by llm_call_done.
status = "error" {
	is_string(input.payload.error)
	input.payload.error != ""
} else = "error" {
	input.payload.status == "FAILED"
} else = "error" {
	input.payload.status == "TIMEOUT"
} else = "error" {
	input.payload.status == "BLOCKED"
} else = "success" {
	input.payload.status == "SUCCEEDED"
} else = "success" {
	input.kind == "model_call_end"
}
`
