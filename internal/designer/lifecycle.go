package designer

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/rendis/jobflow/pkg/schema"
)

// LoadDocument replaces the current graph with doc. The document must pass
// the structural and semantic checks and every edge must satisfy the
// connection rules; otherwise nothing changes. The id counter then advances
// past every loaded integer id below IDCeiling.
func (e *Editor) LoadDocument(doc *schema.Document) error {
	result := e.validator.Validate(doc)
	if !result.Valid() {
		return e.reject(result.ToErrorCode(schema.ErrCodeMalformedDocument))
	}

	g := newGraph()
	for _, c := range doc.Cells {
		if c.IsEdge() {
			continue
		}
		nt, err := e.types.Get(c.Shape)
		if err != nil {
			return e.reject(err)
		}
		n := &node{typ: nt}
		n.ID = c.ID
		n.TypeID = c.Shape
		n.Position = *c.Position
		n.Size = *c.Size
		n.ParentID = c.ParentID
		n.Collapsed = c.Collapsed
		n.Data = maps.Clone(c.Data)
		if n.Data == nil {
			n.Data = make(map[string]any)
		}
		if c.ExpandSize != nil {
			s := *c.ExpandSize
			n.ExpandSize = &s
		}
		g.nodes[n.ID] = n
		g.nodeOrder = append(g.nodeOrder, n.ID)
	}
	for _, id := range g.nodeOrder {
		n := g.nodes[id]
		if n.ParentID != "" {
			p := g.nodes[n.ParentID]
			p.children = append(p.children, id)
		}
	}
	for _, id := range g.nodeOrder {
		if g.nodes[id].ParentID == "" {
			g.refreshHidden(id)
		}
	}

	for i, c := range doc.Cells {
		if !c.IsEdge() {
			continue
		}
		conn := Connection{Source: *c.Source, Target: *c.Target}
		if err := validateConnection(g, conn); err != nil {
			if fe, ok := schema.AsFlowError(err); ok {
				result.AddError(fmt.Sprintf("cells[%d]", i), fe.Code, fe.Message)
			} else {
				result.AddError(fmt.Sprintf("cells[%d]", i), schema.ErrCodeMalformedDocument, err.Error())
			}
			continue
		}
		g.addEdge(&Edge{
			ID:     c.ID,
			Source: *c.Source,
			Target: *c.Target,
			Label:  c.Label,
			Data:   maps.Clone(c.Data),
		})
	}
	if !result.Valid() {
		return e.reject(result.ToErrorCode(schema.ErrCodeMalformedDocument))
	}

	e.normalize(g)
	if err := checkContainment(g); err != nil {
		panic(err)
	}

	e.g = g
	for _, c := range doc.Cells {
		e.ids.Observe(c.ID)
	}
	e.logger.Debug("document loaded",
		slog.Int("nodes", len(g.nodeOrder)),
		slog.Int("edges", len(g.edgeOrder)),
		slog.Int("id_counter", e.ids.Current()),
	)

	e.commit(Change{Type: schema.EventDocumentLoaded, NodeIDs: slices.Clone(g.nodeOrder), EdgeIDs: slices.Clone(g.edgeOrder)})
	e.setSelection(nil)
	return nil
}

// Coord computes one seed coordinate from the canvas size.
type Coord func(canvas schema.Size) float64

// At is a constant Coord.
func At(v float64) Coord {
	return func(schema.Size) float64 { return v }
}

// Seed is a node placed on a brand-new document.
type Seed struct {
	ID     string
	TypeID string
	X, Y   Coord
	Data   map[string]any
}

// InitializeFromSeed clears the document, resets the id counter and places
// seeds in order. Seed coordinates are evaluated once against canvas.
// If any seed fails the previous document is kept.
func (e *Editor) InitializeFromSeed(seeds []Seed, canvas schema.Size) error {
	prevGraph, prevCounter := e.g, e.ids.counter
	e.g = newGraph()
	e.ids.Reset()

	for _, s := range seeds {
		spec := NodeSpec{ID: s.ID, TypeID: s.TypeID, Data: s.Data}
		if s.X != nil {
			spec.Position.X = s.X(canvas)
		}
		if s.Y != nil {
			spec.Position.Y = s.Y(canvas)
		}
		if _, _, err := e.addNode(spec); err != nil {
			e.g, e.ids.counter = prevGraph, prevCounter
			return e.reject(err)
		}
	}

	e.commit(Change{Type: schema.EventDocumentInitialized, NodeIDs: slices.Clone(e.g.nodeOrder)})
	e.setSelection(nil)
	return nil
}

// Serialize snapshots the document: nodes then edges, each in insertion
// order. Derived state (hidden flags, origin boxes, components) is dropped.
func (e *Editor) Serialize() *schema.Document {
	doc := &schema.Document{Cells: make([]schema.Cell, 0, len(e.g.nodeOrder)+len(e.g.edgeOrder))}
	for _, id := range e.g.nodeOrder {
		n := e.g.nodes[id]
		pos, size := n.Position, n.Size
		c := schema.Cell{
			ID:        n.ID,
			Shape:     n.TypeID,
			Position:  &pos,
			Size:      &size,
			ParentID:  n.ParentID,
			Collapsed: n.Collapsed,
			Data:      cloneData(n.Data),
		}
		if n.ExpandSize != nil {
			s := *n.ExpandSize
			c.ExpandSize = &s
		}
		doc.Cells = append(doc.Cells, c)
	}
	for _, id := range e.g.edgeOrder {
		ed := e.g.edges[id]
		src, dst := ed.Source, ed.Target
		doc.Cells = append(doc.Cells, schema.Cell{
			ID:     ed.ID,
			Shape:  schema.ShapeEdge,
			Source: &src,
			Target: &dst,
			Label:  ed.Label,
			Data:   cloneData(ed.Data),
		})
	}
	return doc
}

// cloneData copies a data bag, mapping empty to nil so empty bags and absent
// bags serialize the same way.
func cloneData(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	return maps.Clone(m)
}
