// Package tree builds the navigable execution tree of a trace: one node per
// span, with each span's correlated events and nested spans as children.
package tree

import (
	"encoding/json"
	"sort"

	"github.com/xiaot623/gogo/traceview/internal/domain"
)

// NodeID identifies a node within one built tree. Ids are deterministic for
// a given trace.
type NodeID string

// Kind represents the kind of a tree node.
type Kind string

const (
	KindSpan      Kind = "span"
	KindModelCall Kind = "model_call"
	KindToolCall  Kind = "tool_call"
	KindOther     Kind = "other"
)

// Node is one node of the execution tree.
type Node struct {
	ID       NodeID        `json:"id"`
	Kind     Kind          `json:"kind"`
	Label    string        `json:"label"`
	Status   domain.Status `json:"status,omitempty"`
	InFlight bool          `json:"in_flight,omitempty"`
	StartTs  int64         `json:"start_ts,omitempty"`
	SpanID   string        `json:"span_id,omitempty"`

	// Event is the wrapped event of a tool call or other node, or the begin
	// event of a model call. End is set for completed model calls.
	Event *domain.RawEvent `json:"event,omitempty"`
	End   *domain.RawEvent `json:"end,omitempty"`

	// Item is the reconstructed node this tree node came from; nil for spans.
	Item domain.Node `json:"-"`

	Children []*Node `json:"children,omitempty"`
}

// HasChildren reports whether n has any children.
func (n *Node) HasChildren() bool {
	return len(n.Children) > 0
}

// Walk visits nodes in pre-order. Returning false from fn stops the walk.
func Walk(roots []*Node, fn func(n *Node, depth int) bool) {
	var visit func(nodes []*Node, depth int) bool
	visit = func(nodes []*Node, depth int) bool {
		for _, n := range nodes {
			if !fn(n, depth) {
				return false
			}
			if !visit(n.Children, depth+1) {
				return false
			}
		}
		return true
	}
	visit(roots, 0)
}

// Index maps every node id in roots to its node and its parent id. Root
// nodes have an empty parent.
type Index struct {
	Nodes   map[NodeID]*Node
	Parents map[NodeID]NodeID
}

// NewIndex indexes roots.
func NewIndex(roots []*Node) *Index {
	idx := &Index{
		Nodes:   make(map[NodeID]*Node),
		Parents: make(map[NodeID]NodeID),
	}
	var visit func(nodes []*Node, parent NodeID)
	visit = func(nodes []*Node, parent NodeID) {
		for _, n := range nodes {
			idx.Nodes[n.ID] = n
			idx.Parents[n.ID] = parent
			visit(n.Children, n.ID)
		}
	}
	visit(roots, "")
	return idx
}

// Ancestors returns the ids from the parent of id up to its root.
func (idx *Index) Ancestors(id NodeID) []NodeID {
	var out []NodeID
	for p := idx.Parents[id]; p != ""; p = idx.Parents[p] {
		out = append(out, p)
	}
	return out
}

// NodeSet is a set of node ids. It serializes as a sorted array.
type NodeSet map[NodeID]struct{}

func (s NodeSet) Add(id NodeID)      { s[id] = struct{}{} }
func (s NodeSet) Remove(id NodeID)   { delete(s, id) }
func (s NodeSet) Has(id NodeID) bool { _, ok := s[id]; return ok }

// Sorted returns the members of s in ascending order.
func (s NodeSet) Sorted() []NodeID {
	out := make([]NodeID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s NodeSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *NodeSet) UnmarshalJSON(data []byte) error {
	var ids []NodeID
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = make(NodeSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return nil
}
