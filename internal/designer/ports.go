package designer

import (
	"github.com/rendis/jobflow/pkg/schema"
)

// Connection is a candidate edge between two ports.
type Connection struct {
	Source schema.Endpoint
	Target schema.Endpoint
}

// ValidateConnection decides whether c may be added to the current document.
// It never mutates state and is cheap enough to call on every drag frame.
func (e *Editor) ValidateConnection(c Connection) error {
	return validateConnection(e.g, c)
}

// validateConnection applies the rules in order; the first failure wins.
// Source and target caps share one rule: a port already holding
// maxConnections edges in its direction refuses another.
func validateConnection(g *graph, c Connection) error {
	src, ok := g.nodes[c.Source.NodeID]
	if !ok {
		return schema.NewErrorf(schema.ErrCodeNodeNotFound, "source node %q does not exist", c.Source.NodeID)
	}
	dst, ok := g.nodes[c.Target.NodeID]
	if !ok {
		return schema.NewErrorf(schema.ErrCodeNodeNotFound, "target node %q does not exist", c.Target.NodeID)
	}
	srcPort, ok := src.typ.Port(c.Source.PortID)
	if !ok {
		return schema.NewErrorf(schema.ErrCodePortNotFound, "port %q not declared by type %q", c.Source.PortID, src.TypeID).
			WithNode(src.ID)
	}
	dstPort, ok := dst.typ.Port(c.Target.PortID)
	if !ok {
		return schema.NewErrorf(schema.ErrCodePortNotFound, "port %q not declared by type %q", c.Target.PortID, dst.TypeID).
			WithNode(dst.ID)
	}

	if src.ID == dst.ID {
		return schema.NewError(schema.ErrCodeSelfConnection, "a node cannot connect to itself").WithNode(src.ID)
	}

	if srcPort.Group != schema.PortOut || dstPort.Group != schema.PortIn {
		return schema.NewErrorf(schema.ErrCodeDirectionMismatch,
			"edges run from an out port to an in port, got %s -> %s", srcPort.Group, dstPort.Group).
			WithDetails(map[string]any{"source_group": srcPort.Group, "target_group": dstPort.Group})
	}

	for _, e := range g.edges {
		if e.Source == c.Source && e.Target == c.Target {
			return schema.NewErrorf(schema.ErrCodeDuplicateEdge, "edge %s already joins these ports", e.ID)
		}
	}

	if limit := dstPort.MaxConnections; limit > 0 {
		if n := g.countAt(c.Target, false); n >= limit {
			return capacityError(dst.ID, dstPort, n)
		}
	}
	if limit := srcPort.MaxConnections; limit > 0 {
		if n := g.countAt(c.Source, true); n >= limit {
			return capacityError(src.ID, srcPort, n)
		}
	}
	return nil
}

func capacityError(nodeID string, port schema.PortSpec, count int) *schema.FlowError {
	return schema.NewErrorf(schema.ErrCodePortCapacity, "port %q accepts at most %d connections", port.ID, port.MaxConnections).
		WithNode(nodeID).
		WithDetails(map[string]any{"port": port.ID, "max": port.MaxConnections, "count": count})
}
