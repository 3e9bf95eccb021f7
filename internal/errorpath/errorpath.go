// Package errorpath finds failing nodes in an execution tree.
package errorpath

import (
	"github.com/xiaot623/gogo/traceview/internal/domain"
	"github.com/xiaot623/gogo/traceview/internal/tree"
)

// MarkErrorPaths returns every node whose own status is error or that has a
// descendant in error. Expanding exactly this set reveals every error node.
func MarkErrorPaths(roots []*tree.Node) tree.NodeSet {
	set := make(tree.NodeSet)
	for _, n := range roots {
		mark(n, set)
	}
	return set
}

func mark(n *tree.Node, set tree.NodeSet) bool {
	failing := n.Status == domain.StatusError
	for _, c := range n.Children {
		if mark(c, set) {
			failing = true
		}
	}
	if failing {
		set.Add(n.ID)
	}
	return failing
}

// FirstError returns the earliest failing node in pre-order. When an error
// node has failing descendants, the search continues into them, so the
// result is the root cause rather than a node that only reports a failure
// below it.
func FirstError(roots []*tree.Node) (tree.NodeID, bool) {
	path := MarkErrorPaths(roots)
	nodes := roots
	for {
		next := firstOnPath(nodes, path)
		if next == nil {
			return "", false
		}
		if below := firstOnPath(next.Children, path); below == nil {
			// Only an error node can be on the path without a failing child.
			return next.ID, true
		}
		nodes = next.Children
	}
}

func firstOnPath(nodes []*tree.Node, path tree.NodeSet) *tree.Node {
	for _, n := range nodes {
		if path.Has(n.ID) {
			return n
		}
	}
	return nil
}

// HasError reports whether any node in roots is in error.
func HasError(roots []*tree.Node) bool {
	_, ok := FirstError(roots)
	return ok
}
