package diagram

// NodeKind classifies a diagram node.
type NodeKind string

const (
	NodeKindTask  NodeKind = "task"
	NodeKindGroup NodeKind = "group"
	NodeKindStart NodeKind = "start"
	NodeKindEnd   NodeKind = "end"
)

// DiagramModel is the intermediate representation used by all renderers.
// Nodes holds the top-level nodes; group members hang off their group.
type DiagramModel struct {
	Title string
	Nodes []*Node
	Edges []Edge
}

// Node is one designer node. An expanded group carries its members in
// Children and renders as a subgraph; a collapsed group renders as a box.
type Node struct {
	ID        string
	Label     string
	Type      string
	Kind      NodeKind
	Disabled  bool
	Collapsed bool
	Children  []*Node
}

// IsSubgraph reports whether the node renders as a container.
func (n *Node) IsSubgraph() bool {
	return n.Kind == NodeKindGroup && !n.Collapsed
}

// Edge is a connection between two rendered nodes.
type Edge struct {
	From  string
	To    string
	Label string
}

// Walk visits every node depth-first in document order.
func (m *DiagramModel) Walk(fn func(n *Node, depth int)) {
	var visit func(nodes []*Node, depth int)
	visit = func(nodes []*Node, depth int) {
		for _, n := range nodes {
			fn(n, depth)
			visit(n.Children, depth+1)
		}
	}
	visit(m.Nodes, 0)
}
