package navigator

import (
	"github.com/xiaot623/gogo/traceview/internal/domain"
	"github.com/xiaot623/gogo/traceview/internal/tree"
)

// Action names a navigator transition.
type Action string

const (
	ActionToggle      Action = "toggle"
	ActionExpandAll   Action = "expand_all"
	ActionCollapseAll Action = "collapse_all"
	ActionNext        Action = "next"
	ActionPrev        Action = "prev"
	ActionExpand      Action = "expand"
	ActionCollapse    Action = "collapse"
	ActionActivate    Action = "activate"
	ActionFocus       Action = "focus"
	ActionSelect      Action = "select"
	ActionJumpToError Action = "jump_to_error"
)

// Command is a serialized navigator action. NodeID is used by toggle, focus
// and select.
type Command struct {
	Action Action      `json:"action"`
	NodeID tree.NodeID `json:"node_id,omitempty"`
}

// Apply runs cmd and reports whether the action was recognized.
func (n *Navigator) Apply(cmd Command) bool {
	switch cmd.Action {
	case ActionToggle:
		n.Toggle(cmd.NodeID)
	case ActionExpandAll:
		n.ExpandAll()
	case ActionCollapseAll:
		n.CollapseAll()
	case ActionNext:
		n.MoveNext()
	case ActionPrev:
		n.MovePrev()
	case ActionExpand:
		n.ExpandFocused()
	case ActionCollapse:
		n.CollapseFocused()
	case ActionActivate:
		n.Activate()
	case ActionFocus:
		n.Focus(cmd.NodeID)
	case ActionSelect:
		n.Select(cmd.NodeID)
	case ActionJumpToError:
		n.JumpToError()
	default:
		return false
	}
	return true
}

// State is the plain, serializable navigator state.
type State struct {
	Expanded []tree.NodeID `json:"expanded"`
	Focused  tree.NodeID   `json:"focused,omitempty"`
	Selected tree.NodeID   `json:"selected,omitempty"`
}

// State returns a snapshot of the navigator state.
func (n *Navigator) State() State {
	return State{
		Expanded: n.expanded.Sorted(),
		Focused:  n.focused,
		Selected: n.selected,
	}
}

// VisibleRow is the serializable form of a Row.
type VisibleRow struct {
	ID          tree.NodeID   `json:"id"`
	Depth       int           `json:"depth"`
	Kind        tree.Kind     `json:"kind"`
	Label       string        `json:"label"`
	Status      domain.Status `json:"status,omitempty"`
	InFlight    bool          `json:"in_flight,omitempty"`
	HasChildren bool          `json:"has_children"`
	Expanded    bool          `json:"expanded"`
}

// View is the state plus the visible rows.
type View struct {
	State
	Rows []VisibleRow `json:"rows"`
}

// View returns the state and the currently visible rows.
func (n *Navigator) View() View {
	rows := n.Flatten()
	v := View{State: n.State(), Rows: make([]VisibleRow, 0, len(rows))}
	for _, r := range rows {
		v.Rows = append(v.Rows, VisibleRow{
			ID:          r.Node.ID,
			Depth:       r.Depth,
			Kind:        r.Node.Kind,
			Label:       r.Node.Label,
			Status:      r.Node.Status,
			InFlight:    r.Node.InFlight,
			HasChildren: r.Node.HasChildren(),
			Expanded:    r.Node.HasChildren() && n.expanded.Has(r.Node.ID),
		})
	}
	return v
}
