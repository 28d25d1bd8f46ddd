package nodetypes

import "github.com/rendis/jobflow/pkg/schema"

// Bounds is a default/min/max size triple.
type Bounds struct {
	Default schema.Size
	Min     schema.Size
	Max     schema.Size
}

// Size templates applied to descriptors that leave sizes unset.
var (
	LeafBounds = Bounds{
		Default: schema.Size{Width: 140, Height: 50},
		Min:     schema.Size{Width: 120, Height: 50},
		Max:     schema.Size{Width: 300, Height: 50},
	}
	GroupBounds = Bounds{
		Default: schema.Size{Width: 200, Height: 200},
		Min:     schema.Size{Width: 150, Height: 80},
		Max:     schema.Size{Width: 900, Height: 900},
	}
)

// CompactSize is the size a collapsed group shrinks to.
var CompactSize = LeafBounds.Default

// DefaultComponent is the leaf component used when a descriptor names none.
const DefaultComponent = "task-node"

// NodeType is a resolved registry entry.
type NodeType struct {
	ID        string
	Name      string
	Kind      schema.NodeKind
	Icon      string
	Category  string
	Hidden    bool
	Fixed     bool
	Bounds    Bounds
	Ports     []schema.PortSpec
	Fields    []schema.FieldSpec
	Component string
}

// IsGroup reports whether nodes of this type may contain children.
func (t *NodeType) IsGroup() bool {
	return t.Kind == schema.KindGroup
}

// Port looks up a port by id.
func (t *NodeType) Port(id string) (schema.PortSpec, bool) {
	for _, p := range t.Ports {
		if p.ID == id {
			return p, true
		}
	}
	return schema.PortSpec{}, false
}

// FirstPort returns the first port in the given group.
func (t *NodeType) FirstPort(group schema.PortGroup) (schema.PortSpec, bool) {
	for _, p := range t.Ports {
		if p.Group == group {
			return p, true
		}
	}
	return schema.PortSpec{}, false
}

// Descriptor converts the entry back to its catalog form with every size resolved.
func (t *NodeType) Descriptor() schema.NodeTypeDescriptor {
	return schema.NodeTypeDescriptor{
		ID:        t.ID,
		Name:      t.Name,
		Kind:      t.Kind,
		Icon:      t.Icon,
		Category:  t.Category,
		Hidden:    t.Hidden,
		Fixed:     t.Fixed,
		Width:     t.Bounds.Default.Width,
		Height:    t.Bounds.Default.Height,
		MinWidth:  t.Bounds.Min.Width,
		MinHeight: t.Bounds.Min.Height,
		MaxWidth:  t.Bounds.Max.Width,
		MaxHeight: t.Bounds.Max.Height,
		Ports:     append([]schema.PortSpec(nil), t.Ports...),
		Fields:    append([]schema.FieldSpec(nil), t.Fields...),
		Component: t.Component,
	}
}
