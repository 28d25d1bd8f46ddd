package designer

import (
	"testing"

	"github.com/rendis/jobflow/internal/nodetypes"
	"github.com/rendis/jobflow/pkg/schema"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) *nodetypes.Registry {
	t.Helper()
	reg := nodetypes.NewRegistry()
	require.NoError(t, reg.RegisterTypes(
		schema.NodeTypeDescriptor{ID: "Shell", Kind: schema.KindLeaf},
		schema.NodeTypeDescriptor{ID: "ForLoop", Kind: schema.KindGroup},
		schema.NodeTypeDescriptor{
			ID: schema.TypeStart, Kind: schema.KindLeaf, Fixed: true, Hidden: true,
			Width: 60, Height: 60, MinWidth: 60, MinHeight: 60, MaxWidth: 60, MaxHeight: 60,
			Ports: []schema.PortSpec{{ID: "out", Group: schema.PortOut}},
		},
		schema.NodeTypeDescriptor{
			ID: schema.TypeEnd, Kind: schema.KindLeaf, Fixed: true, Hidden: true,
			Width: 60, Height: 60, MinWidth: 60, MinHeight: 60, MaxWidth: 60, MaxHeight: 60,
			Ports: []schema.PortSpec{{ID: "in", Group: schema.PortIn}},
		},
		schema.NodeTypeDescriptor{
			ID: "Inbox", Kind: schema.KindLeaf,
			Ports: []schema.PortSpec{
				{ID: "in", Group: schema.PortIn, MaxConnections: 1},
				{ID: "out", Group: schema.PortOut},
			},
		},
		schema.NodeTypeDescriptor{
			ID: "Fork", Kind: schema.KindLeaf,
			Ports: []schema.PortSpec{
				{ID: "in", Group: schema.PortIn},
				{ID: "out", Group: schema.PortOut, MaxConnections: 1},
			},
		},
	))
	return reg
}

func newTestEditor(t *testing.T, opts ...Option) *Editor {
	t.Helper()
	e, err := NewEditor(testRegistry(t), opts...)
	require.NoError(t, err)
	return e
}

func addNode(t *testing.T, e *Editor, typeID string, x, y float64, parent string) string {
	t.Helper()
	id, err := e.AddNode(NodeSpec{TypeID: typeID, Position: schema.Point{X: x, Y: y}, ParentID: parent})
	require.NoError(t, err)
	return id
}

func addGroup(t *testing.T, e *Editor, x, y, w, h float64, parent string) string {
	t.Helper()
	id, err := e.AddNode(NodeSpec{
		TypeID:   "ForLoop",
		Position: schema.Point{X: x, Y: y},
		Size:     &schema.Size{Width: w, Height: h},
		ParentID: parent,
	})
	require.NoError(t, err)
	return id
}

func connect(e *Editor, from, fromPort, to, toPort string) (string, error) {
	return e.Connect(EdgeSpec{
		Source: schema.Endpoint{NodeID: from, PortID: fromPort},
		Target: schema.Endpoint{NodeID: to, PortID: toPort},
	})
}

func rectOf(t *testing.T, e *Editor, id string) Rect {
	t.Helper()
	n, ok := e.Node(id)
	require.True(t, ok)
	return n.Rect()
}

// recorder captures listener calls.
type recorder struct {
	changes    []Change
	selections [][]string
	rejected   []*schema.FlowError
}

func (r *recorder) DocumentChanged(c Change)                 { r.changes = append(r.changes, c) }
func (r *recorder) SelectionChanged(ids []string)            { r.selections = append(r.selections, ids) }
func (r *recorder) ValidationRejected(err *schema.FlowError) { r.rejected = append(r.rejected, err) }
