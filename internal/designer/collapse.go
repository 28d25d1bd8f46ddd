package designer

import (
	"github.com/rendis/jobflow/internal/nodetypes"
	"github.com/rendis/jobflow/pkg/schema"
)

// ToggleCollapse switches group id between its collapsed and expanded states.
// A nil target flips the current state; asking for the current state is a
// no-op. Returns the resulting state.
func (e *Editor) ToggleCollapse(id string, target *bool) (bool, error) {
	n, ok := e.g.nodes[id]
	if !ok {
		return false, e.reject(schema.NewErrorf(schema.ErrCodeNodeNotFound, "node %q does not exist", id))
	}
	if !n.typ.IsGroup() {
		return false, e.reject(schema.NewErrorf(schema.ErrCodeValidation, "node of type %q is not a group", n.TypeID).WithNode(id))
	}

	want := !n.Collapsed
	if target != nil {
		want = *target
	}
	if want == n.Collapsed {
		return n.Collapsed, nil
	}

	changed := []string{id}
	event := schema.EventNodeExpanded
	if want {
		event = schema.EventNodeCollapsed
		s := n.Size
		n.ExpandSize = &s
		n.Size = nodetypes.CompactSize
		n.Collapsed = true
	} else {
		n.Collapsed = false
		if n.ExpandSize != nil {
			n.Size = *n.ExpandSize
		} else {
			n.Size = n.typ.Bounds.Default
		}
	}

	descendants := e.g.descendants(id)
	e.g.refreshHidden(id)
	changed = append(changed, descendants...)

	if !want && len(n.children) > 0 {
		e.fit(n)
	}
	changed = append(changed, e.settleAncestors(id)...)
	e.assertContainment()

	e.commit(Change{Type: event, NodeIDs: changed})
	if want {
		e.pruneSelection()
	}
	return n.Collapsed, nil
}
