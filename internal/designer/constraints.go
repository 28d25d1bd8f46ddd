package designer

import (
	"math"

	"github.com/rendis/jobflow/pkg/schema"
)

// Constraints bound what an explicit resize may do to a node.
type Constraints struct {
	Resizable bool        `json:"resizable"`
	Min       schema.Size `json:"min"`
	Max       schema.Size `json:"max"`
}

// Clamp pulls s into [Min, Max] on both axes.
func (c Constraints) Clamp(s schema.Size) schema.Size {
	return schema.Size{
		Width:  math.Min(math.Max(s.Width, c.Min.Width), c.Max.Width),
		Height: math.Min(math.Max(s.Height, c.Min.Height), c.Max.Height),
	}
}

// ResizeConstraints returns the bounds for node id. Fixed types and
// collapsed groups are not resizable.
func (e *Editor) ResizeConstraints(id string) (Constraints, error) {
	n, ok := e.g.nodes[id]
	if !ok {
		return Constraints{}, schema.NewErrorf(schema.ErrCodeNodeNotFound, "node %q does not exist", id)
	}
	return constraintsFor(n), nil
}

func constraintsFor(n *node) Constraints {
	b := n.typ.Bounds
	return Constraints{
		Resizable: !n.typ.Fixed && !n.Collapsed,
		Min:       b.Min,
		Max:       b.Max,
	}
}
