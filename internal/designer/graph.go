package designer

import (
	"maps"
	"slices"

	"github.com/rendis/jobflow/internal/nodetypes"
	"github.com/rendis/jobflow/pkg/schema"
)

// Node is a snapshot of a placed node.
type Node struct {
	ID         string
	TypeID     string
	Position   schema.Point
	Size       schema.Size
	ParentID   string
	Collapsed  bool
	ExpandSize *schema.Size
	Data       map[string]any
	// Hidden is derived: true while any ancestor is collapsed.
	Hidden bool
}

// Rect returns the node's bounding box.
func (n Node) Rect() Rect {
	return RectOf(n.Position, n.Size)
}

// Edge is a snapshot of a directed connection.
type Edge struct {
	ID     string
	Source schema.Endpoint
	Target schema.Endpoint
	Label  string
	Data   map[string]any
}

type node struct {
	Node
	typ      *nodetypes.NodeType
	children []string
	// origin is the last explicitly set box; the floor of containment refits.
	origin *Rect
}

func (n *node) rect() Rect {
	return RectOf(n.Position, n.Size)
}

func (n *node) snapshot() Node {
	out := n.Node
	out.Data = maps.Clone(n.Data)
	if n.ExpandSize != nil {
		s := *n.ExpandSize
		out.ExpandSize = &s
	}
	return out
}

// graph holds cells in insertion order.
type graph struct {
	nodes     map[string]*node
	nodeOrder []string
	edges     map[string]*Edge
	edgeOrder []string
}

func newGraph() *graph {
	return &graph{
		nodes: make(map[string]*node),
		edges: make(map[string]*Edge),
	}
}

func (g *graph) has(id string) bool {
	_, n := g.nodes[id]
	_, e := g.edges[id]
	return n || e
}

func (g *graph) addNode(n *node) {
	g.nodes[n.ID] = n
	g.nodeOrder = append(g.nodeOrder, n.ID)
	if n.ParentID != "" {
		p := g.nodes[n.ParentID]
		p.children = append(p.children, n.ID)
	}
}

func (g *graph) removeNode(id string) {
	n, ok := g.nodes[id]
	if !ok {
		return
	}
	g.detach(n)
	delete(g.nodes, id)
	g.nodeOrder = slices.DeleteFunc(g.nodeOrder, func(s string) bool { return s == id })
}

func (g *graph) detach(n *node) {
	if n.ParentID == "" {
		return
	}
	if p, ok := g.nodes[n.ParentID]; ok {
		p.children = slices.DeleteFunc(p.children, func(s string) bool { return s == n.ID })
	}
	n.ParentID = ""
}

func (g *graph) addEdge(e *Edge) {
	g.edges[e.ID] = e
	g.edgeOrder = append(g.edgeOrder, e.ID)
}

func (g *graph) removeEdge(id string) {
	delete(g.edges, id)
	g.edgeOrder = slices.DeleteFunc(g.edgeOrder, func(s string) bool { return s == id })
}

// descendants lists every node below id, depth first in child order.
func (g *graph) descendants(id string) []string {
	var out []string
	var walk func(string)
	walk = func(pid string) {
		for _, cid := range g.nodes[pid].children {
			out = append(out, cid)
			walk(cid)
		}
	}
	walk(id)
	return out
}

// isAncestor reports whether anc is on id's parent chain.
func (g *graph) isAncestor(anc, id string) bool {
	for p := g.nodes[id].ParentID; p != ""; p = g.nodes[p].ParentID {
		if p == anc {
			return true
		}
	}
	return false
}

// depth is the number of ancestors above id.
func (g *graph) depth(id string) int {
	d := 0
	for p := g.nodes[id].ParentID; p != ""; p = g.nodes[p].ParentID {
		d++
	}
	return d
}

// refreshHidden recomputes the derived Hidden flag for id and its subtree.
func (g *graph) refreshHidden(id string) {
	n := g.nodes[id]
	hidden := false
	if n.ParentID != "" {
		p := g.nodes[n.ParentID]
		hidden = p.Hidden || p.Collapsed
	}
	n.Hidden = hidden
	for _, cid := range n.children {
		g.refreshHidden(cid)
	}
}

// incident returns ids of edges touching any of the given nodes.
func (g *graph) incident(nodeIDs ...string) []string {
	set := make(map[string]bool, len(nodeIDs))
	for _, id := range nodeIDs {
		set[id] = true
	}
	var out []string
	for _, eid := range g.edgeOrder {
		e := g.edges[eid]
		if set[e.Source.NodeID] || set[e.Target.NodeID] {
			out = append(out, eid)
		}
	}
	return out
}

// countAt counts edges whose source (or target) is exactly ep.
func (g *graph) countAt(ep schema.Endpoint, asSource bool) int {
	count := 0
	for _, e := range g.edges {
		if asSource && e.Source == ep || !asSource && e.Target == ep {
			count++
		}
	}
	return count
}
