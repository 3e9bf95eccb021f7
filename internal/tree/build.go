package tree

import (
	"fmt"
	"strconv"

	"github.com/xiaot623/gogo/traceview/internal/correlate"
	"github.com/xiaot623/gogo/traceview/internal/domain"
)

type builder struct {
	used map[NodeID]bool
}

// Build turns a trace into its execution tree. Each span is correlated on
// its own; nested spans are merged with the correlated nodes by start time,
// and spans without a start time go last.
func Build(trace domain.Trace) []*Node {
	b := &builder{used: make(map[NodeID]bool)}
	roots := make([]*Node, 0, len(trace.Spans))
	for i, s := range trace.Spans {
		roots = append(roots, b.span(s, "", i))
	}
	return roots
}

func (b *builder) span(s domain.Span, parent NodeID, pos int) *Node {
	n := &Node{
		Kind:    KindSpan,
		Label:   s.Name,
		Status:  s.Status,
		StartTs: s.StartedAt,
		SpanID:  s.SpanID,
	}
	if n.Label == "" {
		n.Label = s.SpanID
	}
	var candidate NodeID
	if s.SpanID != "" {
		candidate = NodeID("span:" + s.SpanID)
	}
	n.ID = b.id(candidate, parent, pos)

	items := correlate.Correlate(s.Events)
	n.Children = make([]*Node, 0, len(items)+len(s.Spans))
	i, j := 0, 0
	for i < len(items) || j < len(s.Spans) {
		k := len(n.Children)
		if j < len(s.Spans) && (i == len(items) || spanFirst(s.Spans[j], items[i])) {
			n.Children = append(n.Children, b.span(s.Spans[j], n.ID, k))
			j++
			continue
		}
		n.Children = append(n.Children, b.item(items[i], n.ID, k))
		i++
	}
	return n
}

func spanFirst(s domain.Span, item domain.Node) bool {
	return s.StartedAt != 0 && s.StartedAt < domain.FirstTimestamp(item)
}

func (b *builder) item(item domain.Node, parent NodeID, pos int) *Node {
	switch v := item.(type) {
	case domain.ToolCallNode:
		return b.event(KindToolCall, v.Event, item, parent, pos)
	case domain.OtherNode:
		return b.event(KindOther, v.Event, item, parent, pos)
	case domain.ModelCallGroup:
		begin := v.Begin
		n := &Node{
			Kind:     KindModelCall,
			Label:    modelCallLabel(v),
			Status:   modelCallStatus(v),
			InFlight: v.InFlight(),
			StartTs:  begin.Timestamp,
			Event:    &begin,
			End:      v.End,
			Item:     item,
		}
		n.ID = b.id(NodeID(begin.EventID), parent, pos)
		n.Children = make([]*Node, 0, len(v.ToolCalls))
		for k, tc := range v.ToolCalls {
			n.Children = append(n.Children, b.event(KindToolCall, tc.Event, tc, n.ID, k))
		}
		return n
	default:
		panic(fmt.Sprintf("tree: unknown node type %T", item))
	}
}

func (b *builder) event(kind Kind, ev domain.RawEvent, item domain.Node, parent NodeID, pos int) *Node {
	n := &Node{
		Kind:    kind,
		Label:   eventLabel(kind, ev),
		Status:  ev.Status,
		StartTs: ev.Timestamp,
		Event:   &ev,
		Item:    item,
	}
	n.ID = b.id(NodeID(ev.EventID), parent, pos)
	return n
}

// id returns candidate when it is set and unused, otherwise a path id
// derived from the parent and the child position.
func (b *builder) id(candidate NodeID, parent NodeID, pos int) NodeID {
	if candidate != "" && !b.used[candidate] {
		b.used[candidate] = true
		return candidate
	}
	base := NodeID(string(parent) + "/" + strconv.Itoa(pos))
	id := base
	for k := 1; b.used[id]; k++ {
		id = NodeID(fmt.Sprintf("%s~%d", base, k))
	}
	b.used[id] = true
	return id
}

func modelCallStatus(g domain.ModelCallGroup) domain.Status {
	if g.End != nil && g.End.Status != domain.StatusUnspecified {
		return g.End.Status
	}
	if g.Begin.Status != domain.StatusUnspecified {
		return g.Begin.Status
	}
	if g.InFlight() {
		return domain.StatusRunning
	}
	return domain.StatusUnspecified
}

func modelCallLabel(g domain.ModelCallGroup) string {
	if g.Begin.SequenceNumber != nil {
		return fmt.Sprintf("model call #%d", *g.Begin.SequenceNumber)
	}
	return "model call"
}

func eventLabel(kind Kind, ev domain.RawEvent) string {
	switch kind {
	case KindToolCall:
		return "tool call"
	default:
		if ev.Kind == "" {
			return "event"
		}
		return string(ev.Kind)
	}
}
