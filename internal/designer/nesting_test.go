package designer

import (
	"math/rand"
	"testing"

	"github.com/rendis/jobflow/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Containment refit ---

func TestAddNode_GroupGrowsRight(t *testing.T) {
	e := newTestEditor(t)
	group := addNode(t, e, "ForLoop", 0, 0, "")
	assert.Equal(t, Rect{X: 0, Y: 0, W: 200, H: 200}, rectOf(t, e, group))

	// Inflated child box ends at 210, ten units past the group's right edge.
	addNode(t, e, "Shell", 50, 50, group)

	g, _ := e.Node(group)
	assert.Equal(t, Rect{X: 0, Y: 0, W: 210, H: 200}, g.Rect())
	require.NotNil(t, g.ExpandSize)
	assert.Equal(t, schema.Size{Width: 210, Height: 200}, *g.ExpandSize)
}

func TestAddNode_GroupGrowsLeftAndUp(t *testing.T) {
	e := newTestEditor(t)
	group := addNode(t, e, "ForLoop", 0, 0, "")
	addNode(t, e, "Shell", -10, -5, group)

	assert.Equal(t, Rect{X: -30, Y: -25, W: 230, H: 225}, rectOf(t, e, group))
}

func TestAddNode_RefitIsTransitive(t *testing.T) {
	e := newTestEditor(t)
	outer := addGroup(t, e, 0, 0, 400, 400, "")
	inner := addNode(t, e, "ForLoop", 100, 100, outer)
	assert.Equal(t, Rect{X: 0, Y: 0, W: 400, H: 400}, rectOf(t, e, outer))

	addNode(t, e, "Shell", 250, 250, inner)

	assert.Equal(t, Rect{X: 100, Y: 100, W: 310, H: 220}, rectOf(t, e, inner))
	assert.Equal(t, Rect{X: 0, Y: 0, W: 430, H: 400}, rectOf(t, e, outer))
}

func TestMoveNode_GroupShrinksBackToOrigin(t *testing.T) {
	e := newTestEditor(t)
	group := addNode(t, e, "ForLoop", 0, 0, "")
	child := addNode(t, e, "Shell", 50, 50, group)
	require.Equal(t, 210.0, rectOf(t, e, group).W)

	require.NoError(t, e.MoveNode(child, schema.Point{X: 20, Y: 20}))

	g, _ := e.Node(group)
	assert.Equal(t, Rect{X: 0, Y: 0, W: 200, H: 200}, g.Rect())
	assert.Equal(t, schema.Size{Width: 200, Height: 200}, *g.ExpandSize)
}

func TestResizeNode_OriginKeepsManualSize(t *testing.T) {
	e := newTestEditor(t)
	group := addNode(t, e, "ForLoop", 0, 0, "")
	child := addNode(t, e, "Shell", 40, 40, group)

	require.NoError(t, e.ResizeNode(group, schema.Size{Width: 500, Height: 500}))
	require.NoError(t, e.MoveNode(child, schema.Point{X: 60, Y: 60}))

	assert.Equal(t, Rect{X: 0, Y: 0, W: 500, H: 500}, rectOf(t, e, group))
}

func TestResizeNode_GroupNeverShrinksPastChildren(t *testing.T) {
	e := newTestEditor(t)
	group := addGroup(t, e, 0, 0, 400, 400, "")
	addNode(t, e, "Shell", 200, 200, group)

	require.NoError(t, e.ResizeNode(group, schema.Size{Width: 150, Height: 80}))

	assert.Equal(t, Rect{X: 0, Y: 0, W: 360, H: 270}, rectOf(t, e, group))
}

func TestMoveNode_CarriesDescendants(t *testing.T) {
	e := newTestEditor(t)
	group := addNode(t, e, "ForLoop", 0, 0, "")
	child := addNode(t, e, "Shell", 30, 30, group)

	require.NoError(t, e.MoveNode(group, schema.Point{X: 100, Y: 100}))

	assert.Equal(t, schema.Point{X: 130, Y: 130}, rectOf(t, e, child).Position())
	assert.Equal(t, Rect{X: 100, Y: 100, W: 200, H: 200}, rectOf(t, e, group))
}

// --- Reparent ---

func TestReparent_Rejections(t *testing.T) {
	e := newTestEditor(t)
	outer := addGroup(t, e, 0, 0, 600, 600, "")
	inner := addNode(t, e, "ForLoop", 50, 50, outer)
	leaf := addNode(t, e, "Shell", 400, 400, "")
	closed := addNode(t, e, "ForLoop", 1000, 0, "")
	_, err := e.ToggleCollapse(closed, nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		node   string
		parent string
		code   string
	}{
		{"leaf parent", outer, leaf, schema.ErrCodeInvalidParent},
		{"self", outer, outer, schema.ErrCodeInvalidParent},
		{"descendant", outer, inner, schema.ErrCodeInvalidParent},
		{"collapsed parent", leaf, closed, schema.ErrCodeInvalidParent},
		{"missing parent", leaf, "404", schema.ErrCodeNodeNotFound},
		{"missing node", "404", outer, schema.ErrCodeNodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.Reparent(tt.node, tt.parent)
			require.Error(t, err)
			assert.True(t, schema.HasCode(err, tt.code), err.Error())
		})
	}
}

func TestReparent_AttachAndDetach(t *testing.T) {
	rec := &recorder{}
	e := newTestEditor(t, WithListener(rec))
	group := addNode(t, e, "ForLoop", 0, 0, "")
	leaf := addNode(t, e, "Shell", 150, 100, "")

	require.NoError(t, e.Reparent(leaf, group))
	assert.Equal(t, []string{leaf}, e.Children(group))
	assert.Equal(t, Rect{X: 0, Y: 0, W: 310, H: 200}, rectOf(t, e, group))
	assert.Equal(t, schema.EventNodeReparented, rec.changes[len(rec.changes)-1].Type)

	require.NoError(t, e.Reparent(leaf, ""))
	assert.Empty(t, e.Children(group))
	n, _ := e.Node(leaf)
	assert.Empty(t, n.ParentID)
}

func TestReparent_SameParentIsNoop(t *testing.T) {
	rec := &recorder{}
	e := newTestEditor(t, WithListener(rec))
	group := addNode(t, e, "ForLoop", 0, 0, "")
	leaf := addNode(t, e, "Shell", 30, 30, group)
	before := len(rec.changes)

	require.NoError(t, e.Reparent(leaf, group))
	assert.Len(t, rec.changes, before)
}

func TestAddNode_IntoLeafRejected(t *testing.T) {
	e := newTestEditor(t)
	leaf := addNode(t, e, "Shell", 0, 0, "")

	_, err := e.AddNode(NodeSpec{TypeID: "Shell", ParentID: leaf})
	assert.True(t, schema.HasCode(err, schema.ErrCodeInvalidParent))
	assert.Len(t, e.Nodes(), 1)
}

func TestParentCandidates(t *testing.T) {
	e := newTestEditor(t)
	group := addNode(t, e, "ForLoop", 0, 0, "")
	near := addNode(t, e, "Shell", 150, 150, "")
	far := addNode(t, e, "Shell", 500, 500, "")

	got, err := e.ParentCandidates(near)
	require.NoError(t, err)
	assert.Equal(t, []string{group}, got)

	got, err = e.ParentCandidates(far)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = e.ParentCandidates(group)
	require.NoError(t, err)
	assert.Empty(t, got, "a group never nests in itself")
}

// --- Removal ---

func TestRemoveNode_RemovesSubtreeAndEdges(t *testing.T) {
	e := newTestEditor(t)
	group := addNode(t, e, "ForLoop", 0, 0, "")
	child := addNode(t, e, "Shell", 30, 30, group)
	other := addNode(t, e, "Shell", 0, 400, "")
	_, err := connect(e, child, "out", other, "in")
	require.NoError(t, err)
	require.NoError(t, e.Select(child))

	require.NoError(t, e.RemoveNode(group))

	assert.Len(t, e.Nodes(), 1)
	assert.Empty(t, e.Edges())
	assert.Empty(t, e.Selection())
	_, ok := e.Node(child)
	assert.False(t, ok)
}

// --- Property: containment holds after random edits ---

func TestContainment_RandomEdits(t *testing.T) {
	e := newTestEditor(t)
	rng := rand.New(rand.NewSource(7))
	var ids []string
	pick := func() string { return ids[rng.Intn(len(ids))] }
	coord := func() float64 { return float64(rng.Intn(1200) - 200) }

	for i := 0; i < 400; i++ {
		switch op := rng.Intn(6); {
		case op == 0 || len(ids) < 3:
			typeID := "Shell"
			if rng.Intn(3) == 0 {
				typeID = "ForLoop"
			}
			parent := ""
			if len(ids) > 0 && rng.Intn(2) == 0 {
				parent = pick()
			}
			if id, err := e.AddNode(NodeSpec{TypeID: typeID, Position: schema.Point{X: coord(), Y: coord()}, ParentID: parent}); err == nil {
				ids = append(ids, id)
			}
		case op == 1:
			_ = e.MoveNode(pick(), schema.Point{X: coord(), Y: coord()})
		case op == 2:
			_ = e.ResizeNode(pick(), schema.Size{Width: float64(rng.Intn(1000)), Height: float64(rng.Intn(1000))})
		case op == 3:
			parent := ""
			if rng.Intn(3) > 0 {
				parent = pick()
			}
			_ = e.Reparent(pick(), parent)
		case op == 4:
			_, _ = e.ToggleCollapse(pick(), nil)
		case op == 5 && len(ids) > 10:
			id := pick()
			if e.RemoveNode(id) == nil {
				ids = ids[:0]
				for _, n := range e.Nodes() {
					ids = append(ids, n.ID)
				}
			}
		}
		require.NoError(t, checkContainment(e.g), "after step %d", i)
	}
}
