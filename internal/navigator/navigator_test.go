package navigator

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/traceview/internal/domain"
	"github.com/xiaot623/gogo/traceview/internal/tree"
)

func node(id string, status domain.Status, children ...*tree.Node) *tree.Node {
	return &tree.Node{ID: tree.NodeID(id), Kind: tree.KindSpan, Label: id, Status: status, Children: children}
}

// root
// ├── a
// │   ├── a1
// │   └── a2
// │       └── a2x
// └── b
func testTree() []*tree.Node {
	return []*tree.Node{
		node("root", "",
			node("a", "",
				node("a1", ""),
				node("a2", "", node("a2x", ""))),
			node("b", "")),
	}
}

func ids(rows []Row) []tree.NodeID {
	out := make([]tree.NodeID, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Node.ID)
	}
	return out
}

func TestNewWithoutErrorsStartsCollapsed(t *testing.T) {
	nav := New(testTree())

	assert.Empty(t, nav.State().Expanded)
	_, ok := nav.Focused()
	assert.False(t, ok)
	assert.Equal(t, []tree.NodeID{"root"}, ids(nav.Flatten()))
}

func TestNewSeedsErrorPath(t *testing.T) {
	roots := []*tree.Node{
		node("root", "",
			node("a", "", node("a1", domain.StatusError)),
			node("b", "")),
	}
	nav := New(roots)

	assert.Equal(t, []tree.NodeID{"a", "root"}, nav.State().Expanded)
	assert.Equal(t, []tree.NodeID{"root", "a", "a1", "b"}, ids(nav.Flatten()))
}

func TestExpandAllCollapseAllToggleRoot(t *testing.T) {
	nav := New(testTree())
	nav.ExpandAll()
	assert.Len(t, nav.Flatten(), 6)

	nav.CollapseAll()
	nav.Toggle("root")

	rows := nav.Flatten()
	assert.Equal(t, []tree.NodeID{"root", "a", "b"}, ids(rows))
	assert.Equal(t, []int{0, 1, 1}, []int{rows[0].Depth, rows[1].Depth, rows[2].Depth})
}

func TestMoveNextWrapsAround(t *testing.T) {
	nav := New(testTree())
	nav.ExpandAll()
	nav.Focus("a1")
	start, _ := nav.Focused()

	n := len(nav.Flatten())
	for i := 0; i < n; i++ {
		nav.MoveNext()
	}
	got, _ := nav.Focused()
	assert.Equal(t, start, got)

	for i := 0; i < n; i++ {
		nav.MovePrev()
	}
	got, _ = nav.Focused()
	assert.Equal(t, start, got)
}

func TestMoveFromNoFocus(t *testing.T) {
	nav := New(testTree())
	nav.ExpandAll()

	nav.MoveNext()
	got, _ := nav.Focused()
	assert.Equal(t, tree.NodeID("root"), got)

	nav = New(testTree())
	nav.ExpandAll()
	nav.MovePrev()
	got, _ = nav.Focused()
	assert.Equal(t, tree.NodeID("b"), got)

	nav.MoveNext()
	got, _ = nav.Focused()
	assert.Equal(t, tree.NodeID("root"), got)
}

func TestMisuseIsNoop(t *testing.T) {
	empty := New(nil)
	empty.MoveNext()
	empty.MovePrev()
	empty.ExpandFocused()
	empty.CollapseFocused()
	empty.Toggle("nope")
	_, ok := empty.Activate()
	assert.False(t, ok)
	assert.Empty(t, empty.Flatten())

	nav := New(testTree())
	nav.Toggle("missing")
	nav.Toggle("b") // leaf
	assert.Empty(t, nav.State().Expanded)
	nav.Focus("a1") // hidden
	_, ok = nav.Focused()
	assert.False(t, ok)
}

func TestExpandAndCollapseFocused(t *testing.T) {
	nav := New(testTree())
	nav.MoveNext()

	nav.ExpandFocused()
	assert.True(t, nav.IsExpanded("root"))
	got, _ := nav.Focused()
	assert.Equal(t, tree.NodeID("root"), got)

	nav.MoveNext()
	nav.ExpandFocused()
	nav.MoveNext()
	got, _ = nav.Focused()
	assert.Equal(t, tree.NodeID("a1"), got)

	// Leaf: collapse moves to parent.
	nav.CollapseFocused()
	got, _ = nav.Focused()
	assert.Equal(t, tree.NodeID("a"), got)

	// Expanded: collapse closes it and keeps focus.
	nav.CollapseFocused()
	assert.False(t, nav.IsExpanded("a"))
	got, _ = nav.Focused()
	assert.Equal(t, tree.NodeID("a"), got)

	// Collapsed: collapse moves to parent.
	nav.CollapseFocused()
	got, _ = nav.Focused()
	assert.Equal(t, tree.NodeID("root"), got)
}

func TestCollapseClampsHiddenFocus(t *testing.T) {
	nav := New(testTree())
	nav.ExpandAll()
	nav.Focus("a2x")

	nav.Toggle("a")
	got, _ := nav.Focused()
	assert.Equal(t, tree.NodeID("a"), got)

	nav.ExpandAll()
	nav.Focus("a2x")
	nav.CollapseAll()
	got, _ = nav.Focused()
	assert.Equal(t, tree.NodeID("root"), got)
}

func TestSelectAndActivate(t *testing.T) {
	nav := New(testTree())
	nav.ExpandAll()

	nav.Select("a2")
	sel, ok := nav.Selected()
	require.True(t, ok)
	assert.Equal(t, tree.NodeID("a2"), sel)

	nav.MoveNext()
	sel, _ = nav.Selected()
	assert.Equal(t, tree.NodeID("a2"), sel, "moving focus keeps the selection")

	id, ok := nav.Activate()
	require.True(t, ok)
	assert.Equal(t, tree.NodeID("a2x"), id)
	sel, _ = nav.Selected()
	assert.Equal(t, tree.NodeID("a2x"), sel)
}

func TestJumpToErrorAndReset(t *testing.T) {
	roots := []*tree.Node{
		node("root", "", node("a", "", node("a1", domain.StatusError))),
	}
	nav := New(roots)
	nav.CollapseAll()

	id, ok := nav.JumpToError()
	require.True(t, ok)
	assert.Equal(t, tree.NodeID("a1"), id)
	assert.Contains(t, ids(nav.Flatten()), tree.NodeID("a1"))

	nav.Reset(testTree())
	assert.Empty(t, nav.State().Expanded)
	_, ok = nav.Focused()
	assert.False(t, ok)
	_, ok = nav.JumpToError()
	assert.False(t, ok)
}

func TestApply(t *testing.T) {
	nav := New(testTree())

	assert.True(t, nav.Apply(Command{Action: ActionToggle, NodeID: "root"}))
	assert.True(t, nav.Apply(Command{Action: ActionNext}))
	assert.True(t, nav.Apply(Command{Action: ActionActivate}))
	assert.False(t, nav.Apply(Command{Action: "dance"}))

	v := nav.View()
	assert.Equal(t, tree.NodeID("root"), v.Focused)
	assert.Equal(t, tree.NodeID("root"), v.Selected)
	require.Len(t, v.Rows, 3)
	assert.True(t, v.Rows[0].Expanded)
	assert.True(t, v.Rows[1].HasChildren)
	assert.False(t, v.Rows[1].Expanded)
	assert.Equal(t, 1, v.Rows[2].Depth)
}

func TestVisibleRowsHaveExpandedAncestors(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	all := []tree.NodeID{"root", "a", "a1", "a2", "a2x", "b", "missing"}
	nav := New(testTree())
	idx := tree.NewIndex(nav.Roots())

	for i := 0; i < 500; i++ {
		switch r.Intn(8) {
		case 0:
			nav.ExpandAll()
		case 1:
			nav.CollapseAll()
		case 2:
			nav.MoveNext()
		case 3:
			nav.MovePrev()
		case 4:
			nav.CollapseFocused()
		case 5:
			nav.ExpandFocused()
		default:
			nav.Toggle(all[r.Intn(len(all))])
		}

		rows := nav.Flatten()
		visible := make(map[tree.NodeID]bool, len(rows))
		for _, row := range rows {
			visible[row.Node.ID] = true
			for _, anc := range idx.Ancestors(row.Node.ID) {
				require.True(t, nav.IsExpanded(anc), "step %d: %s shown under collapsed %s", i, row.Node.ID, anc)
			}
		}
		if f, ok := nav.Focused(); ok {
			require.True(t, visible[f], "step %d: focus %s not visible", i, f)
		}
	}
}
