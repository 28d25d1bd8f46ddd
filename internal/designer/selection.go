package designer

import (
	"slices"

	"github.com/rendis/jobflow/pkg/schema"
)

// Select replaces the selection with ids. Unknown ids and nodes hidden under a
// collapsed group reject the whole call.
func (e *Editor) Select(ids ...string) error {
	next := make([]string, 0, len(ids))
	for _, id := range ids {
		if !e.g.has(id) {
			return e.reject(schema.NewErrorf(schema.ErrCodeNotFound, "cell %q does not exist", id))
		}
		if n, ok := e.g.nodes[id]; ok && n.Hidden {
			return e.reject(schema.NewErrorf(schema.ErrCodeValidation, "node %q is hidden inside a collapsed group", id).WithNode(id))
		}
		if !slices.Contains(next, id) {
			next = append(next, id)
		}
	}
	e.setSelection(next)
	return nil
}

// ClearSelection empties the selection.
func (e *Editor) ClearSelection() {
	e.setSelection(nil)
}

// Selection returns the selected cell ids in selection order.
func (e *Editor) Selection() []string {
	return append([]string(nil), e.selection...)
}

// SelectionView projects the selection onto the graph: which selected cells
// are nodes or edges, and which edges enter or leave the selected nodes.
type SelectionView struct {
	Nodes    []string `json:"nodes"`
	Edges    []string `json:"edges"`
	Incoming []string `json:"incoming"`
	Outgoing []string `json:"outgoing"`
}

// SelectionProjection computes the SelectionView for the current selection.
func (e *Editor) SelectionProjection() SelectionView {
	var v SelectionView
	selected := make(map[string]bool, len(e.selection))
	for _, id := range e.selection {
		if _, ok := e.g.nodes[id]; ok {
			v.Nodes = append(v.Nodes, id)
			selected[id] = true
		} else {
			v.Edges = append(v.Edges, id)
		}
	}
	for _, eid := range e.g.edgeOrder {
		ed := e.g.edges[eid]
		if selected[ed.Target.NodeID] {
			v.Incoming = append(v.Incoming, eid)
		}
		if selected[ed.Source.NodeID] {
			v.Outgoing = append(v.Outgoing, eid)
		}
	}
	return v
}

// pruneSelection drops removed or hidden cells from the selection.
func (e *Editor) pruneSelection() {
	next := slices.DeleteFunc(slices.Clone(e.selection), func(id string) bool {
		if n, ok := e.g.nodes[id]; ok {
			return n.Hidden
		}
		_, ok := e.g.edges[id]
		return !ok
	})
	if len(next) != len(e.selection) {
		e.setSelection(next)
	}
}

func (e *Editor) setSelection(ids []string) {
	if slices.Equal(ids, e.selection) {
		return
	}
	e.selection = ids
	for _, l := range e.listeners {
		l.SelectionChanged(e.Selection())
	}
}
