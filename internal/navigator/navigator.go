// Package navigator keeps the expand/collapse and cursor state of one
// trace-viewing session over a built execution tree.
//
// A Navigator is not safe for concurrent use. Give each session its own
// instance or serialize access externally.
package navigator

import (
	"github.com/xiaot623/gogo/traceview/internal/errorpath"
	"github.com/xiaot623/gogo/traceview/internal/tree"
)

// Row is one visible node with its depth in the tree.
type Row struct {
	Node  *tree.Node
	Depth int
}

// Navigator holds the session state for one tree.
type Navigator struct {
	roots    []*tree.Node
	index    *tree.Index
	expanded tree.NodeSet
	focused  tree.NodeID
	selected tree.NodeID
}

// New creates a navigator over roots, with every error path expanded.
func New(roots []*tree.Node) *Navigator {
	n := &Navigator{}
	n.Reset(roots)
	return n
}

// Reset switches the navigator to a new tree. Expansion is reseeded from the
// error paths; focus and selection are cleared.
func (n *Navigator) Reset(roots []*tree.Node) {
	n.roots = roots
	n.index = tree.NewIndex(roots)
	n.expanded = make(tree.NodeSet)
	for id := range errorpath.MarkErrorPaths(roots) {
		if n.index.Nodes[id].HasChildren() {
			n.expanded.Add(id)
		}
	}
	n.focused = ""
	n.selected = ""
}

// Roots returns the tree the navigator works on.
func (n *Navigator) Roots() []*tree.Node { return n.roots }

// Focused returns the focused node id, if any.
func (n *Navigator) Focused() (tree.NodeID, bool) { return n.focused, n.focused != "" }

// Selected returns the selected node id, if any.
func (n *Navigator) Selected() (tree.NodeID, bool) { return n.selected, n.selected != "" }

// IsExpanded reports whether id is expanded.
func (n *Navigator) IsExpanded(id tree.NodeID) bool { return n.expanded.Has(id) }

// Toggle flips the expansion of id. Unknown ids and leaves are ignored.
func (n *Navigator) Toggle(id tree.NodeID) {
	node, ok := n.index.Nodes[id]
	if !ok || !node.HasChildren() {
		return
	}
	if n.expanded.Has(id) {
		n.expanded.Remove(id)
		n.clampFocus()
	} else {
		n.expanded.Add(id)
	}
}

// ExpandAll expands every node.
func (n *Navigator) ExpandAll() {
	n.expanded = make(tree.NodeSet, len(n.index.Nodes))
	for id := range n.index.Nodes {
		n.expanded.Add(id)
	}
}

// CollapseAll collapses every node.
func (n *Navigator) CollapseAll() {
	n.expanded = make(tree.NodeSet)
	n.clampFocus()
}

// Flatten returns the visible nodes in document order. Children follow
// their parent only when the parent is expanded.
func (n *Navigator) Flatten() []Row {
	var rows []Row
	var visit func(nodes []*tree.Node, depth int)
	visit = func(nodes []*tree.Node, depth int) {
		for _, node := range nodes {
			rows = append(rows, Row{Node: node, Depth: depth})
			if n.expanded.Has(node.ID) {
				visit(node.Children, depth+1)
			}
		}
	}
	visit(n.roots, 0)
	return rows
}

// MoveNext focuses the next visible node, wrapping to the first.
func (n *Navigator) MoveNext() { n.move(1) }

// MovePrev focuses the previous visible node, wrapping to the last.
func (n *Navigator) MovePrev() { n.move(-1) }

func (n *Navigator) move(step int) {
	rows := n.Flatten()
	if len(rows) == 0 {
		return
	}
	cur := -1
	for i, r := range rows {
		if r.Node.ID == n.focused {
			cur = i
			break
		}
	}
	var next int
	switch {
	case cur < 0 && step > 0:
		next = 0
	case cur < 0:
		next = len(rows) - 1
	default:
		next = (cur + step + len(rows)) % len(rows)
	}
	n.focused = rows[next].Node.ID
}

// ExpandFocused expands the focused node when it has children and is
// collapsed. Focus does not move.
func (n *Navigator) ExpandFocused() {
	if n.focused == "" || n.expanded.Has(n.focused) {
		return
	}
	n.Toggle(n.focused)
}

// CollapseFocused collapses the focused node when it is expanded, otherwise
// moves focus to its parent.
func (n *Navigator) CollapseFocused() {
	if n.focused == "" {
		return
	}
	if n.expanded.Has(n.focused) && n.index.Nodes[n.focused].HasChildren() {
		n.expanded.Remove(n.focused)
		return
	}
	if parent := n.index.Parents[n.focused]; parent != "" {
		n.focused = parent
	}
}

// Focus moves the cursor to id if it is visible.
func (n *Navigator) Focus(id tree.NodeID) {
	if n.visible(id) {
		n.focused = id
	}
}

// Select marks id as selected, as a click does, and focuses it.
func (n *Navigator) Select(id tree.NodeID) {
	if !n.visible(id) {
		return
	}
	n.focused = id
	n.selected = id
}

// Activate selects the focused node and returns it.
func (n *Navigator) Activate() (tree.NodeID, bool) {
	if n.focused == "" {
		return "", false
	}
	n.selected = n.focused
	return n.focused, true
}

// JumpToError expands the ancestors of the first error and focuses it.
func (n *Navigator) JumpToError() (tree.NodeID, bool) {
	id, ok := errorpath.FirstError(n.roots)
	if !ok {
		return "", false
	}
	for _, anc := range n.index.Ancestors(id) {
		n.expanded.Add(anc)
	}
	n.focused = id
	return id, true
}

func (n *Navigator) visible(id tree.NodeID) bool {
	if _, ok := n.index.Nodes[id]; !ok {
		return false
	}
	for _, anc := range n.index.Ancestors(id) {
		if !n.expanded.Has(anc) {
			return false
		}
	}
	return true
}

// clampFocus moves a focus hidden by a collapse to its nearest visible
// ancestor.
func (n *Navigator) clampFocus() {
	if n.focused == "" || n.visible(n.focused) {
		return
	}
	ancestors := n.index.Ancestors(n.focused)
	for i := len(ancestors) - 1; i >= 0; i-- {
		if !n.expanded.Has(ancestors[i]) {
			n.focused = ancestors[i]
			return
		}
	}
}
