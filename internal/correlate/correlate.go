// Package correlate groups the flat event list of a single span into model
// call groups, tool calls and other events.
//
// Attribution of tool calls to model calls is a best-effort heuristic. An
// explicit correlation id always wins. Without one, a tool call goes to the
// most recently opened model call whose time window brackets it, then to the
// most recently opened model call that began before it. A tool call is only
// ever attributed to a model call that appears earlier in the input; anything
// else stays at top level in its original position. Correlate never fails.
package correlate

import (
	"slices"

	"github.com/xiaot623/gogo/traceview/internal/domain"
)

type accumulator struct {
	pos   int
	begin domain.RawEvent
	end   *domain.RawEvent
	// positions of attributed tool calls, kept in input order at assembly
	attributed []int
}

func (a *accumulator) brackets(ev domain.RawEvent) bool {
	if a.begin.Timestamp > ev.Timestamp {
		return false
	}
	return a.end == nil || ev.Timestamp <= a.end.Timestamp
}

func (a *accumulator) group(events []domain.RawEvent) domain.ModelCallGroup {
	g := domain.ModelCallGroup{
		Begin:     a.begin,
		End:       a.end,
		ToolCalls: make([]domain.ToolCallNode, 0, len(a.attributed)),
	}
	slices.Sort(a.attributed)
	for _, i := range a.attributed {
		g.ToolCalls = append(g.ToolCalls, domain.ToolCallNode{Event: events[i]})
	}
	return g
}

// Correlate reconstructs the node sequence for one span's events. It is a
// pure function of its input.
func Correlate(events []domain.RawEvent) []domain.Node {
	out := make([]domain.Node, 0, len(events))
	if len(events) == 0 {
		return out
	}

	var accs []*accumulator
	byID := make(map[string][]*accumulator)
	groupAt := make(map[int]*accumulator)
	consumed := make([]bool, len(events))

	// Pair begin and end events. A repeated correlation id on a later begin
	// takes over that id from then on.
	for i, ev := range events {
		switch ev.Kind {
		case domain.EventKindModelCallBegin:
			acc := &accumulator{pos: i, begin: ev}
			accs = append(accs, acc)
			groupAt[i] = acc
			consumed[i] = true
			if ev.CorrelationID != "" {
				byID[ev.CorrelationID] = append(byID[ev.CorrelationID], acc)
			}
		case domain.EventKindModelCallEnd:
			if ev.CorrelationID == "" {
				continue
			}
			acc := latestBefore(byID[ev.CorrelationID], i)
			if acc != nil && acc.end == nil {
				end := ev
				acc.end = &end
				consumed[i] = true
			}
		}
	}

	if len(accs) == 0 {
		return assemble(events, groupAt, consumed, out)
	}

	// Direct attribution by correlation id.
	for i, ev := range events {
		if ev.Kind != domain.EventKindToolCall || consumed[i] || ev.CorrelationID == "" {
			continue
		}
		if acc := latestBefore(byID[ev.CorrelationID], i); acc != nil {
			acc.attributed = append(acc.attributed, i)
			consumed[i] = true
		}
	}

	// Temporal fallback, most recently opened first.
	for i, ev := range events {
		if ev.Kind != domain.EventKindToolCall || consumed[i] {
			continue
		}
		acc := mostRecent(accs, i, func(a *accumulator) bool { return a.brackets(ev) })
		if acc == nil {
			acc = mostRecent(accs, i, func(a *accumulator) bool { return a.begin.Timestamp <= ev.Timestamp })
		}
		if acc != nil {
			acc.attributed = append(acc.attributed, i)
			consumed[i] = true
		}
	}

	return assemble(events, groupAt, consumed, out)
}

func assemble(events []domain.RawEvent, groupAt map[int]*accumulator, consumed []bool, out []domain.Node) []domain.Node {
	for i, ev := range events {
		if acc, ok := groupAt[i]; ok {
			out = append(out, acc.group(events))
			continue
		}
		if consumed[i] {
			continue
		}
		if ev.Kind == domain.EventKindToolCall {
			out = append(out, domain.ToolCallNode{Event: ev})
		} else {
			out = append(out, domain.OtherNode{Event: ev})
		}
	}
	return out
}

// latestBefore returns the last accumulator opened before position pos.
func latestBefore(accs []*accumulator, pos int) *accumulator {
	for j := len(accs) - 1; j >= 0; j-- {
		if accs[j].pos < pos {
			return accs[j]
		}
	}
	return nil
}

func mostRecent(accs []*accumulator, pos int, match func(*accumulator) bool) *accumulator {
	for j := len(accs) - 1; j >= 0; j-- {
		if accs[j].pos < pos && match(accs[j]) {
			return accs[j]
		}
	}
	return nil
}
