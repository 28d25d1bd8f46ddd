package designer

import (
	"testing"

	"github.com/rendis/jobflow/internal/nodetypes"
	"github.com/rendis/jobflow/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func TestToggleCollapse_CompactAndRestore(t *testing.T) {
	e := newTestEditor(t)
	group := addGroup(t, e, 0, 0, 400, 300, "")
	a := addNode(t, e, "Shell", 40, 40, group)
	b := addNode(t, e, "Shell", 200, 200, group)
	require.Equal(t, Rect{X: 0, Y: 0, W: 400, H: 300}, rectOf(t, e, group))

	collapsed, err := e.ToggleCollapse(group, nil)
	require.NoError(t, err)
	assert.True(t, collapsed)

	g, _ := e.Node(group)
	assert.Equal(t, nodetypes.CompactSize, g.Size)
	assert.Equal(t, schema.Size{Width: 140, Height: 50}, g.Size)
	for _, id := range []string{a, b} {
		n, _ := e.Node(id)
		assert.True(t, n.Hidden, "child %s should be hidden", id)
	}

	collapsed, err = e.ToggleCollapse(group, nil)
	require.NoError(t, err)
	assert.False(t, collapsed)

	g, _ = e.Node(group)
	assert.Equal(t, schema.Size{Width: 400, Height: 300}, g.Size)
	for _, id := range []string{a, b} {
		n, _ := e.Node(id)
		assert.False(t, n.Hidden)
	}
}

func TestToggleCollapse_TwiceRestoresGrownSize(t *testing.T) {
	e := newTestEditor(t)
	group := addNode(t, e, "ForLoop", 0, 0, "")
	addNode(t, e, "Shell", 120, 170, group)
	before := rectOf(t, e, group)
	require.Equal(t, Rect{X: 0, Y: 0, W: 280, H: 240}, before)

	_, err := e.ToggleCollapse(group, nil)
	require.NoError(t, err)
	_, err = e.ToggleCollapse(group, nil)
	require.NoError(t, err)

	assert.Equal(t, before, rectOf(t, e, group))
}

func TestToggleCollapse_ExplicitTargetNoop(t *testing.T) {
	rec := &recorder{}
	e := newTestEditor(t, WithListener(rec))
	group := addNode(t, e, "ForLoop", 0, 0, "")
	before := len(rec.changes)

	state, err := e.ToggleCollapse(group, boolPtr(false))
	require.NoError(t, err)
	assert.False(t, state)
	assert.Len(t, rec.changes, before)

	state, err = e.ToggleCollapse(group, boolPtr(true))
	require.NoError(t, err)
	assert.True(t, state)
	assert.Equal(t, schema.EventNodeCollapsed, rec.changes[len(rec.changes)-1].Type)
}

func TestToggleCollapse_NestedCollapsedStaysHidden(t *testing.T) {
	e := newTestEditor(t)
	outer := addGroup(t, e, 0, 0, 600, 600, "")
	inner := addNode(t, e, "ForLoop", 50, 50, outer)
	leaf := addNode(t, e, "Shell", 80, 80, inner)

	_, err := e.ToggleCollapse(inner, nil)
	require.NoError(t, err)
	_, err = e.ToggleCollapse(outer, nil)
	require.NoError(t, err)
	_, err = e.ToggleCollapse(outer, nil)
	require.NoError(t, err)

	in, _ := e.Node(inner)
	lf, _ := e.Node(leaf)
	assert.False(t, in.Hidden)
	assert.True(t, in.Collapsed)
	assert.True(t, lf.Hidden)
}

func TestToggleCollapse_LeafRejected(t *testing.T) {
	e := newTestEditor(t)
	leaf := addNode(t, e, "Shell", 0, 0, "")

	_, err := e.ToggleCollapse(leaf, nil)
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))
}

func TestToggleCollapse_PrunesHiddenSelection(t *testing.T) {
	e := newTestEditor(t)
	group := addNode(t, e, "ForLoop", 0, 0, "")
	child := addNode(t, e, "Shell", 30, 30, group)
	require.NoError(t, e.Select(group, child))

	_, err := e.ToggleCollapse(group, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{group}, e.Selection())
}

func TestSelect_HiddenNodeRejected(t *testing.T) {
	e := newTestEditor(t)
	group := addNode(t, e, "ForLoop", 0, 0, "")
	child := addNode(t, e, "Shell", 30, 30, group)
	_, err := e.ToggleCollapse(group, nil)
	require.NoError(t, err)
	require.NoError(t, e.Select(group))

	err = e.Select(group, child)
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))
	assert.Equal(t, []string{group}, e.Selection(), "failed select keeps prior selection")

	_, err = e.ToggleCollapse(group, nil)
	require.NoError(t, err)
	require.NoError(t, e.Select(child))
}

// --- Resize constraints ---

func TestResizeConstraints(t *testing.T) {
	e := newTestEditor(t)
	start := addNode(t, e, schema.TypeStart, 0, 0, "")
	leaf := addNode(t, e, "Shell", 0, 100, "")
	group := addNode(t, e, "ForLoop", 0, 300, "")

	c, err := e.ResizeConstraints(start)
	require.NoError(t, err)
	assert.False(t, c.Resizable)

	c, err = e.ResizeConstraints(leaf)
	require.NoError(t, err)
	assert.True(t, c.Resizable)
	assert.Equal(t, nodetypes.LeafBounds.Min, c.Min)
	assert.Equal(t, nodetypes.LeafBounds.Max, c.Max)

	c, err = e.ResizeConstraints(group)
	require.NoError(t, err)
	assert.True(t, c.Resizable)
	assert.Equal(t, nodetypes.GroupBounds.Max, c.Max)

	_, err = e.ToggleCollapse(group, nil)
	require.NoError(t, err)
	c, err = e.ResizeConstraints(group)
	require.NoError(t, err)
	assert.False(t, c.Resizable)

	_, err = e.ResizeConstraints("404")
	assert.True(t, schema.HasCode(err, schema.ErrCodeNodeNotFound))
}

func TestResizeNode_ClampsInsteadOfFailing(t *testing.T) {
	e := newTestEditor(t)
	leaf := addNode(t, e, "Shell", 0, 0, "")
	group := addNode(t, e, "ForLoop", 0, 300, "")

	require.NoError(t, e.ResizeNode(leaf, schema.Size{Width: 1000, Height: 10}))
	n, _ := e.Node(leaf)
	assert.Equal(t, schema.Size{Width: 300, Height: 50}, n.Size)

	require.NoError(t, e.ResizeNode(group, schema.Size{Width: 100, Height: 100}))
	g, _ := e.Node(group)
	assert.Equal(t, schema.Size{Width: 150, Height: 100}, g.Size)
}

func TestResizeNode_NotResizable(t *testing.T) {
	e := newTestEditor(t)
	start := addNode(t, e, schema.TypeStart, 0, 0, "")
	group := addNode(t, e, "ForLoop", 0, 300, "")
	_, err := e.ToggleCollapse(group, nil)
	require.NoError(t, err)

	err = e.ResizeNode(start, schema.Size{Width: 100, Height: 100})
	assert.True(t, schema.HasCode(err, schema.ErrCodeNotResizable))

	err = e.ResizeNode(group, schema.Size{Width: 300, Height: 300})
	assert.True(t, schema.HasCode(err, schema.ErrCodeNotResizable))
}

func TestAddNode_FixedTypeIgnoresSize(t *testing.T) {
	e := newTestEditor(t)
	id, err := e.AddNode(NodeSpec{TypeID: schema.TypeEnd, Size: &schema.Size{Width: 200, Height: 200}})
	require.NoError(t, err)

	n, _ := e.Node(id)
	assert.Equal(t, schema.Size{Width: 60, Height: 60}, n.Size)
}
