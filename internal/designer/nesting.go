package designer

import (
	"fmt"

	"github.com/rendis/jobflow/pkg/schema"
)

// Reparent moves node id under parentID, or to the top level when parentID
// is empty. Both the old and the new ancestor chains are refitted.
func (e *Editor) Reparent(id, parentID string) error {
	n, ok := e.g.nodes[id]
	if !ok {
		return e.reject(schema.NewErrorf(schema.ErrCodeNodeNotFound, "node %q does not exist", id))
	}
	if n.ParentID == parentID {
		return nil
	}
	if parentID != "" {
		if err := e.checkParent(id, parentID); err != nil {
			return e.reject(err)
		}
	}

	oldParent := n.ParentID
	e.g.detach(n)
	if parentID != "" {
		n.ParentID = parentID
		p := e.g.nodes[parentID]
		p.children = append(p.children, id)
	}
	e.g.refreshHidden(id)

	changed := []string{id}
	if oldParent != "" {
		changed = append(changed, e.settleFrom(oldParent)...)
	}
	changed = append(changed, e.settleAncestors(id)...)
	e.assertContainment()
	e.commit(Change{Type: schema.EventNodeReparented, NodeIDs: changed})
	return nil
}

// checkParent verifies parentID may adopt id. An empty id checks a node
// that does not exist yet.
func (e *Editor) checkParent(id, parentID string) error {
	p, ok := e.g.nodes[parentID]
	if !ok {
		return schema.NewErrorf(schema.ErrCodeNodeNotFound, "parent %q does not exist", parentID)
	}
	switch {
	case parentID == id:
		return schema.NewError(schema.ErrCodeInvalidParent, "a node cannot be its own parent").WithNode(id)
	case !p.typ.IsGroup():
		return schema.NewErrorf(schema.ErrCodeInvalidParent, "parent %q of type %q is not a group", parentID, p.TypeID).WithNode(id)
	case id != "" && e.g.isAncestor(id, parentID):
		return schema.NewErrorf(schema.ErrCodeInvalidParent, "parent %q is a descendant of the node", parentID).WithNode(id)
	case p.Collapsed || p.Hidden:
		return schema.NewErrorf(schema.ErrCodeInvalidParent, "parent %q is collapsed", parentID).WithNode(id)
	}
	return nil
}

// ParentCandidates lists expanded groups whose box intersects node id and
// that could adopt it.
func (e *Editor) ParentCandidates(id string) ([]string, error) {
	n, ok := e.g.nodes[id]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNodeNotFound, "node %q does not exist", id)
	}
	box := n.rect()
	var out []string
	for _, gid := range e.g.nodeOrder {
		if gid == id {
			continue
		}
		g := e.g.nodes[gid]
		if !g.typ.IsGroup() || g.Collapsed || g.Hidden || e.g.isAncestor(id, gid) {
			continue
		}
		if box.Intersects(g.rect()) {
			out = append(out, gid)
		}
	}
	return out, nil
}

// settleAncestors refits the groups above id, innermost first.
func (e *Editor) settleAncestors(id string) []string {
	pid := e.g.nodes[id].ParentID
	if pid == "" {
		return nil
	}
	return e.settleFrom(pid)
}

// settleFrom refits group id and walks up while boxes keep changing.
// Collapsed groups stop the walk: their box does not depend on children.
func (e *Editor) settleFrom(id string) []string {
	var changed []string
	for gid := id; gid != ""; gid = e.g.nodes[gid].ParentID {
		g := e.g.nodes[gid]
		if g.Collapsed || !e.fit(g) {
			break
		}
		changed = append(changed, gid)
	}
	return changed
}

// fit sets g's box to the union of its origin and each child's box inflated
// by Margin. The origin is cached from the current box on first use.
func (e *Editor) fit(g *node) bool {
	cur := g.rect()
	if g.origin == nil {
		o := cur
		g.origin = &o
	}
	box := *g.origin
	for _, cid := range g.children {
		box = box.Union(e.g.nodes[cid].rect().Inflate(Margin))
	}
	if box.Equal(cur) {
		return false
	}
	g.Position = box.Position()
	g.Size = box.Size()
	s := g.Size
	g.ExpandSize = &s
	return true
}

// normalize refits every expanded group deepest first without leaving an
// origin behind. Valid documents come out unchanged.
func (e *Editor) normalize(g *graph) {
	groups := make([]*node, 0)
	for _, id := range g.nodeOrder {
		n := g.nodes[id]
		if n.typ.IsGroup() && len(n.children) > 0 {
			groups = append(groups, n)
		}
	}
	depth := make(map[string]int, len(groups))
	for _, n := range groups {
		depth[n.ID] = g.depth(n.ID)
	}
	for d := maxDepth(depth); d >= 0; d-- {
		for _, n := range groups {
			if depth[n.ID] != d || n.Collapsed {
				continue
			}
			box := n.rect()
			for _, cid := range n.children {
				box = box.Union(g.nodes[cid].rect().Inflate(Margin))
			}
			if !box.Equal(n.rect()) {
				n.Position, n.Size = box.Position(), box.Size()
				s := n.Size
				n.ExpandSize = &s
			}
		}
	}
}

func maxDepth(depth map[string]int) int {
	m := -1
	for _, d := range depth {
		if d > m {
			m = d
		}
	}
	return m
}

// assertContainment panics when a visible child pokes out of its parent.
func (e *Editor) assertContainment() {
	if err := checkContainment(e.g); err != nil {
		panic(err)
	}
}

func checkContainment(g *graph) error {
	for _, id := range g.nodeOrder {
		n := g.nodes[id]
		if n.ParentID == "" || n.Hidden {
			continue
		}
		p := g.nodes[n.ParentID]
		if !p.rect().Contains(n.rect().Inflate(Margin)) {
			return fmt.Errorf("designer: containment broken: node %s %+v outside parent %s %+v",
				id, n.rect(), p.ID, p.rect())
		}
	}
	return nil
}
