package domain

import "encoding/json"

// NodeType names a variant of Node in serialized output.
type NodeType string

const (
	NodeTypeToolCall  NodeType = "tool_call"
	NodeTypeModelCall NodeType = "model_call"
	NodeTypeOther     NodeType = "other"
)

// Node is a reconstructed node. The set of implementations is closed:
// ToolCallNode, ModelCallGroup and OtherNode. Consumers switch on the
// concrete type and must handle all three.
type Node interface {
	nodeType() NodeType
}

// ToolCallNode wraps one tool_call event.
type ToolCallNode struct {
	Event RawEvent `json:"event"`
}

// ModelCallGroup pairs a model call's begin and end events with the tool
// calls attributed to it. End is nil while the call is still in flight.
type ModelCallGroup struct {
	Begin     RawEvent       `json:"begin"`
	End       *RawEvent      `json:"end,omitempty"`
	ToolCalls []ToolCallNode `json:"tool_calls"`
}

// InFlight reports whether the model call has not ended yet.
func (g ModelCallGroup) InFlight() bool { return g.End == nil }

// OtherNode preserves an event that takes no part in correlation.
type OtherNode struct {
	Event RawEvent `json:"event"`
}

func (ToolCallNode) nodeType() NodeType   { return NodeTypeToolCall }
func (ModelCallGroup) nodeType() NodeType { return NodeTypeModelCall }
func (OtherNode) nodeType() NodeType      { return NodeTypeOther }

func (n ToolCallNode) MarshalJSON() ([]byte, error) {
	type alias ToolCallNode
	return json.Marshal(struct {
		Type NodeType `json:"type"`
		alias
	}{NodeTypeToolCall, alias(n)})
}

func (g ModelCallGroup) MarshalJSON() ([]byte, error) {
	type alias ModelCallGroup
	return json.Marshal(struct {
		Type     NodeType `json:"type"`
		InFlight bool     `json:"in_flight"`
		alias
	}{NodeTypeModelCall, g.InFlight(), alias(g)})
}

func (n OtherNode) MarshalJSON() ([]byte, error) {
	type alias OtherNode
	return json.Marshal(struct {
		Type NodeType `json:"type"`
		alias
	}{NodeTypeOther, alias(n)})
}

// Events flattens n back into its raw events: begin, attributed tool calls,
// then end for a model call group.
func Events(n Node) []RawEvent {
	switch v := n.(type) {
	case ToolCallNode:
		return []RawEvent{v.Event}
	case OtherNode:
		return []RawEvent{v.Event}
	case ModelCallGroup:
		out := make([]RawEvent, 0, len(v.ToolCalls)+2)
		out = append(out, v.Begin)
		for _, tc := range v.ToolCalls {
			out = append(out, tc.Event)
		}
		if v.End != nil {
			out = append(out, *v.End)
		}
		return out
	default:
		panic("domain: unknown node type")
	}
}

// FirstTimestamp returns the timestamp of the event that opened n.
func FirstTimestamp(n Node) int64 {
	switch v := n.(type) {
	case ToolCallNode:
		return v.Event.Timestamp
	case OtherNode:
		return v.Event.Timestamp
	case ModelCallGroup:
		return v.Begin.Timestamp
	default:
		panic("domain: unknown node type")
	}
}
