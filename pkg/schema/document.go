package schema

import "encoding/json"

// Cell shapes that mark an edge record. Every other shape is a node type id.
const (
	ShapeEdge       = "edge"
	ShapeLegacyEdge = "dag-edge"
)

// Document is the persisted graph format: an ordered list of cells,
// nodes first, then edges.
type Document struct {
	Cells []Cell `json:"cells"`
}

// Cell is either a node record or an edge record, distinguished by Shape.
type Cell struct {
	ID    string `json:"id"`
	Shape string `json:"shape"`

	// Node fields.
	Position   *Point         `json:"position,omitempty"`
	Size       *Size          `json:"size,omitempty"`
	ParentID   string         `json:"parentId,omitempty"`
	Collapsed  bool           `json:"collapsed,omitempty"`
	ExpandSize *Size          `json:"expandSize,omitempty"`
	Data       map[string]any `json:"data,omitempty"`

	// Edge fields.
	Source *Endpoint `json:"source,omitempty"`
	Target *Endpoint `json:"target,omitempty"`
	Label  string    `json:"label,omitempty"`
}

// IsEdge reports whether the cell is an edge record.
func (c Cell) IsEdge() bool {
	return c.Shape == ShapeEdge || c.Shape == ShapeLegacyEdge
}

// UnmarshalJSON also accepts the legacy "parent" key for ParentID.
func (c *Cell) UnmarshalJSON(b []byte) error {
	type plain Cell
	raw := struct {
		*plain
		Parent string `json:"parent"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if c.ParentID == "" {
		c.ParentID = raw.Parent
	}
	return nil
}

// Point is a canvas position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a width/height pair.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Endpoint is one end of an edge.
type Endpoint struct {
	NodeID string `json:"nodeId"`
	PortID string `json:"portId"`
}

// Nodes returns the node cells in document order.
func (d *Document) Nodes() []Cell {
	var out []Cell
	for _, c := range d.Cells {
		if !c.IsEdge() {
			out = append(out, c)
		}
	}
	return out
}

// Edges returns the edge cells in document order.
func (d *Document) Edges() []Cell {
	var out []Cell
	for _, c := range d.Cells {
		if c.IsEdge() {
			out = append(out, c)
		}
	}
	return out
}

// Find returns the cell with the given id.
func (d *Document) Find(id string) (Cell, bool) {
	for _, c := range d.Cells {
		if c.ID == id {
			return c, true
		}
	}
	return Cell{}, false
}

// UnmarshalJSON accepts both {nodeId, portId} and the legacy {cell, port} form.
func (e *Endpoint) UnmarshalJSON(b []byte) error {
	var raw struct {
		NodeID string `json:"nodeId"`
		PortID string `json:"portId"`
		Cell   string `json:"cell"`
		Port   string `json:"port"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	e.NodeID, e.PortID = raw.NodeID, raw.PortID
	if e.NodeID == "" {
		e.NodeID = raw.Cell
	}
	if e.PortID == "" {
		e.PortID = raw.Port
	}
	return nil
}

// ParseDocument decodes a document from JSON.
func ParseDocument(b []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, NewError(ErrCodeMalformedDocument, "document is not valid JSON").WithCause(err)
	}
	return &doc, nil
}
