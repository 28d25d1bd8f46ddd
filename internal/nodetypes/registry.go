package nodetypes

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rendis/jobflow/pkg/schema"
)

// Registry is a thread-safe table of node types. Each workspace owns its own.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*NodeType
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		types: make(map[string]*NodeType),
	}
}

// RegisterTypes resolves and validates every descriptor, then upserts all of
// them. If any descriptor is invalid nothing is registered.
func (r *Registry) RegisterTypes(descs ...schema.NodeTypeDescriptor) error {
	result := &schema.ValidationResult{}
	resolved := make([]*NodeType, 0, len(descs))
	seen := make(map[string]bool, len(descs))

	for i, d := range descs {
		path := fmt.Sprintf("descriptors[%d]", i)
		if d.ID != "" && seen[d.ID] {
			result.AddError(path+".id", schema.ErrCodeConflict, fmt.Sprintf("node type %q listed twice", d.ID))
			continue
		}
		seen[d.ID] = true

		nt := resolve(d)
		checkType(nt, path, result)
		resolved = append(resolved, nt)
	}
	if err := result.ToError(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, nt := range resolved {
		r.types[nt.ID] = nt
	}
	return nil
}

// Get retrieves a node type by id.
func (r *Registry) Get(id string) (*NodeType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	nt, ok := r.types[id]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeInvalidNodeType, "node type %q not registered", id)
	}
	return nt, nil
}

// Has checks if a node type is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.types[id]
	return ok
}

// Count returns the number of registered node types.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.types)
}

// List returns all node types sorted by id.
func (r *Registry) List() []*NodeType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*NodeType, 0, len(r.types))
	for _, nt := range r.types {
		out = append(out, nt)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

// Category is one palette section.
type Category struct {
	Name  string      `json:"name"`
	Types []*NodeType `json:"types"`
}

// Categories groups visible node types by category, both sorted by name.
// Types without a category land in "other".
func (r *Registry) Categories() []Category {
	byName := make(map[string][]*NodeType)
	for _, nt := range r.List() {
		if nt.Hidden {
			continue
		}
		name := nt.Category
		if name == "" {
			name = "other"
		}
		byName[name] = append(byName[name], nt)
	}

	out := make([]Category, 0, len(byName))
	for name, types := range byName {
		out = append(out, Category{Name: name, Types: types})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

// resolve merges a descriptor with the template of its kind.
func resolve(d schema.NodeTypeDescriptor) *NodeType {
	kind := d.Kind
	if kind == "" {
		kind = schema.KindLeaf
	}

	tmpl := LeafBounds
	if kind == schema.KindGroup {
		tmpl = GroupBounds
	}

	nt := &NodeType{
		ID:       d.ID,
		Name:     d.Name,
		Kind:     kind,
		Icon:     d.Icon,
		Category: d.Category,
		Hidden:   d.Hidden,
		Fixed:    d.Fixed,
		Bounds: Bounds{
			Default: schema.Size{Width: orDefault(d.Width, tmpl.Default.Width), Height: orDefault(d.Height, tmpl.Default.Height)},
			Min:     schema.Size{Width: orDefault(d.MinWidth, tmpl.Min.Width), Height: orDefault(d.MinHeight, tmpl.Min.Height)},
			Max:     schema.Size{Width: orDefault(d.MaxWidth, tmpl.Max.Width), Height: orDefault(d.MaxHeight, tmpl.Max.Height)},
		},
		Fields: append([]schema.FieldSpec(nil), d.Fields...),
	}
	if nt.Name == "" {
		nt.Name = d.ID
	}

	if len(d.Ports) > 0 {
		nt.Ports = append([]schema.PortSpec(nil), d.Ports...)
	} else {
		nt.Ports = []schema.PortSpec{
			{ID: schema.DefaultInPort, Group: schema.PortIn},
			{ID: schema.DefaultOutPort, Group: schema.PortOut},
		}
	}

	if kind == schema.KindLeaf {
		nt.Component = d.Component
		if nt.Component == "" {
			nt.Component = DefaultComponent
		}
	}
	return nt
}

func orDefault(v, def float64) float64 {
	if v > 0 {
		return v
	}
	return def
}

func checkType(nt *NodeType, path string, result *schema.ValidationResult) {
	if nt.ID == "" {
		result.AddError(path+".id", schema.ErrCodeValidation, "node type id is empty")
	}
	if nt.ID == schema.ShapeEdge || nt.ID == schema.ShapeLegacyEdge {
		result.AddError(path+".id", schema.ErrCodeValidation, fmt.Sprintf("node type id %q is reserved for edges", nt.ID))
	}
	if nt.Kind != schema.KindLeaf && nt.Kind != schema.KindGroup {
		result.AddError(path+".kind", schema.ErrCodeValidation, fmt.Sprintf("unknown node kind %q", nt.Kind))
	}

	b := nt.Bounds
	if b.Min.Width > b.Default.Width || b.Default.Width > b.Max.Width {
		result.AddError(path+".width", schema.ErrCodeValidation,
			fmt.Sprintf("width bounds violate min <= default <= max (%g, %g, %g)", b.Min.Width, b.Default.Width, b.Max.Width))
	}
	if b.Min.Height > b.Default.Height || b.Default.Height > b.Max.Height {
		result.AddError(path+".height", schema.ErrCodeValidation,
			fmt.Sprintf("height bounds violate min <= default <= max (%g, %g, %g)", b.Min.Height, b.Default.Height, b.Max.Height))
	}

	ports := make(map[string]bool, len(nt.Ports))
	for j, p := range nt.Ports {
		pp := fmt.Sprintf("%s.ports[%d]", path, j)
		switch {
		case p.ID == "":
			result.AddError(pp+".id", schema.ErrCodeValidation, "port id is empty")
		case ports[p.ID]:
			result.AddError(pp+".id", schema.ErrCodeValidation, fmt.Sprintf("duplicate port id %q", p.ID))
		}
		ports[p.ID] = true
		if p.Group != schema.PortIn && p.Group != schema.PortOut {
			result.AddError(pp+".group", schema.ErrCodeValidation, fmt.Sprintf("port group must be in or out, got %q", p.Group))
		}
		if p.MaxConnections < 0 {
			result.AddError(pp+".maxConnections", schema.ErrCodeValidation, "maxConnections must not be negative")
		}
	}

	fields := make(map[string]bool, len(nt.Fields))
	for j, f := range nt.Fields {
		if f.Prop == "" {
			result.AddError(fmt.Sprintf("%s.fields[%d].prop", path, j), schema.ErrCodeValidation, "field prop is empty")
			continue
		}
		if fields[f.Prop] {
			result.AddError(fmt.Sprintf("%s.fields[%d].prop", path, j), schema.ErrCodeValidation, fmt.Sprintf("duplicate field %q", f.Prop))
		}
		fields[f.Prop] = true
	}
}
