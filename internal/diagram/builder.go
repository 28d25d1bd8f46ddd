package diagram

import (
	"fmt"
	"strings"

	"github.com/rendis/jobflow/internal/validation"
	"github.com/rendis/jobflow/pkg/schema"
)

// Build constructs a DiagramModel from a designer document. Groups become
// subgraphs. Members of a collapsed group are folded into the group, and
// edges touching them are redirected to it; edges that end up internal to a
// collapsed group are dropped. types may be nil, in which case node labels
// fall back to the shape and no node is treated as a group unless it has
// children.
func Build(doc *schema.Document, types validation.TypeLookup) (*DiagramModel, error) {
	if doc == nil {
		return nil, schema.NewError(schema.ErrCodeMalformedDocument, "diagram: document is nil")
	}

	index := make(map[string]*Node)
	cells := make(map[string]schema.Cell)
	var order []string
	for _, c := range doc.Cells {
		if c.IsEdge() {
			continue
		}
		if _, dup := index[c.ID]; dup {
			return nil, schema.NewErrorf(schema.ErrCodeIDCollision, "diagram: duplicate node id %q", c.ID)
		}
		index[c.ID] = toNode(c, types)
		cells[c.ID] = c
		order = append(order, c.ID)
	}

	model := &DiagramModel{}
	for _, id := range order {
		n := index[id]
		parent, ok := index[cells[id].ParentID]
		if !ok || parent == n {
			model.Nodes = append(model.Nodes, n)
			continue
		}
		parent.Kind = NodeKindGroup
		parent.Children = append(parent.Children, n)
	}

	// visible maps every node to the node it is drawn as.
	visible := make(map[string]string, len(index))
	var fold func(nodes []*Node, into string)
	fold = func(nodes []*Node, into string) {
		for _, n := range nodes {
			target := into
			if target == "" {
				target = n.ID
			}
			visible[n.ID] = target
			next := into
			if next == "" && n.Kind == NodeKindGroup && n.Collapsed {
				next = n.ID
			}
			fold(n.Children, next)
			if n.Collapsed {
				n.Children = nil
			}
		}
	}
	fold(model.Nodes, "")

	seen := make(map[Edge]bool)
	for _, c := range doc.Cells {
		if !c.IsEdge() || c.Source == nil || c.Target == nil {
			continue
		}
		from, okFrom := visible[c.Source.NodeID]
		to, okTo := visible[c.Target.NodeID]
		if !okFrom || !okTo {
			return nil, schema.NewErrorf(schema.ErrCodeNodeNotFound,
				"diagram: edge %q references a missing node", c.ID)
		}
		if from == to {
			continue
		}
		e := Edge{From: from, To: to, Label: edgeLabel(c)}
		if seen[e] {
			continue
		}
		seen[e] = true
		model.Edges = append(model.Edges, e)
	}

	return model, nil
}

func toNode(c schema.Cell, types validation.TypeLookup) *Node {
	n := &Node{ID: c.ID, Type: c.Shape, Kind: NodeKindTask, Collapsed: c.Collapsed, Label: c.Shape}
	switch c.Shape {
	case schema.TypeStart:
		n.Kind = NodeKindStart
	case schema.TypeEnd:
		n.Kind = NodeKindEnd
	}
	if types != nil {
		if nt, err := types.Get(c.Shape); err == nil {
			if nt.Name != "" {
				n.Label = nt.Name
			}
			if nt.IsGroup() {
				n.Kind = NodeKindGroup
			}
		}
	}
	if label, ok := c.Data["label"].(string); ok && strings.TrimSpace(label) != "" {
		n.Label = label
	}
	if enabled, ok := c.Data["enabled"].(bool); ok && !enabled {
		n.Disabled = true
	}
	return n
}

func edgeLabel(c schema.Cell) string {
	if c.Label != "" {
		return c.Label
	}
	if label, ok := c.Data["label"].(string); ok && label != "" {
		return label
	}
	if expr, ok := c.Data["expr"].(string); ok && expr != "" {
		return fmt.Sprintf("[%s]", expr)
	}
	return ""
}

// firstLine returns the first line of s.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
