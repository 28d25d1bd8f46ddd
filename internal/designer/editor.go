package designer

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/rendis/jobflow/internal/nodetypes"
	"github.com/rendis/jobflow/internal/validation"
	"github.com/rendis/jobflow/pkg/schema"
)

// Editor owns one graph document and applies every mutation to it.
// An Editor is not safe for concurrent use.
type Editor struct {
	types     *nodetypes.Registry
	validator *validation.DocumentValidator
	ids       *IDAllocator
	g         *graph
	selection []string
	listeners []Listener
	logger    *slog.Logger
}

// Option configures an Editor.
type Option func(*Editor)

// WithListener registers a listener at construction.
func WithListener(l Listener) Option {
	return func(e *Editor) { e.listeners = append(e.listeners, l) }
}

// WithLogger sets the editor's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Editor) { e.logger = l }
}

// WithValidator shares a document validator between editors.
func WithValidator(v *validation.DocumentValidator) Option {
	return func(e *Editor) { e.validator = v }
}

// NewEditor creates an empty editor over the given registry.
func NewEditor(types *nodetypes.Registry, opts ...Option) (*Editor, error) {
	e := &Editor{
		types:  types,
		ids:    NewIDAllocator(),
		g:      newGraph(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.validator == nil {
		v, err := validation.NewDocumentValidator(types)
		if err != nil {
			return nil, fmt.Errorf("document validator: %w", err)
		}
		e.validator = v
	}
	return e, nil
}

// AddListener registers l for future notifications.
func (e *Editor) AddListener(l Listener) {
	e.listeners = append(e.listeners, l)
}

// Registry returns the node type registry the editor resolves against.
func (e *Editor) Registry() *nodetypes.Registry {
	return e.types
}

// NewID allocates the next cell id. Ids held by cells the counter never
// observed (legacy ids at or above IDCeiling) are skipped.
func (e *Editor) NewID() string {
	id := e.ids.Next()
	for e.g.has(id) {
		id = e.ids.Next()
	}
	return id
}

// Node returns a snapshot of node id.
func (e *Editor) Node(id string) (Node, bool) {
	n, ok := e.g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return n.snapshot(), true
}

// Nodes returns snapshots of all nodes in insertion order.
func (e *Editor) Nodes() []Node {
	out := make([]Node, 0, len(e.g.nodeOrder))
	for _, id := range e.g.nodeOrder {
		out = append(out, e.g.nodes[id].snapshot())
	}
	return out
}

// Edge returns a snapshot of edge id.
func (e *Editor) Edge(id string) (Edge, bool) {
	ed, ok := e.g.edges[id]
	if !ok {
		return Edge{}, false
	}
	out := *ed
	out.Data = maps.Clone(ed.Data)
	return out, true
}

// Edges returns snapshots of all edges in insertion order.
func (e *Editor) Edges() []Edge {
	out := make([]Edge, 0, len(e.g.edgeOrder))
	for _, id := range e.g.edgeOrder {
		ed, _ := e.Edge(id)
		out = append(out, ed)
	}
	return out
}

// Children returns the direct children of node id.
func (e *Editor) Children(id string) []string {
	n, ok := e.g.nodes[id]
	if !ok {
		return nil
	}
	return append([]string(nil), n.children...)
}

// NodeSpec describes a node to add. Empty ID allocates one; nil Size takes
// the type default.
type NodeSpec struct {
	ID       string         `json:"id,omitempty"`
	TypeID   string         `json:"type"`
	Position schema.Point   `json:"position"`
	Size     *schema.Size   `json:"size,omitempty"`
	ParentID string         `json:"parentId,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// AddNode places a new node and refits its ancestors.
func (e *Editor) AddNode(spec NodeSpec) (string, error) {
	id, changed, err := e.addNode(spec)
	if err != nil {
		return "", e.reject(err)
	}
	e.commit(Change{Type: schema.EventNodeAdded, NodeIDs: append([]string{id}, changed...)})
	return id, nil
}

func (e *Editor) addNode(spec NodeSpec) (string, []string, error) {
	nt, err := e.types.Get(spec.TypeID)
	if err != nil {
		return "", nil, err
	}
	if spec.ParentID != "" {
		if err := e.checkParent("", spec.ParentID); err != nil {
			return "", nil, err
		}
	}
	if spec.ID != "" && e.g.has(spec.ID) {
		return "", nil, schema.NewErrorf(schema.ErrCodeIDCollision, "id %q already in use", spec.ID)
	}

	n := &node{typ: nt}
	n.TypeID = nt.ID
	n.Position = spec.Position
	n.ParentID = spec.ParentID
	n.Data = maps.Clone(spec.Data)
	if n.Data == nil {
		n.Data = make(map[string]any)
	}
	n.Size = nt.Bounds.Default
	if spec.Size != nil {
		n.Size = constraintsFor(n).Clamp(*spec.Size)
		if nt.Fixed {
			n.Size = nt.Bounds.Default
		}
	}

	if spec.ID != "" {
		n.ID = spec.ID
		e.ids.Observe(spec.ID)
	} else {
		n.ID = e.NewID()
	}

	e.g.addNode(n)
	e.g.refreshHidden(n.ID)
	changed := e.settleAncestors(n.ID)
	e.assertContainment()
	return n.ID, changed, nil
}

// RemoveNode deletes a node, its descendants and every edge touching them.
func (e *Editor) RemoveNode(id string) error {
	n, ok := e.g.nodes[id]
	if !ok {
		return e.reject(schema.NewErrorf(schema.ErrCodeNodeNotFound, "node %q does not exist", id))
	}

	removed := append([]string{id}, e.g.descendants(id)...)
	edges := e.g.incident(removed...)
	for _, eid := range edges {
		e.g.removeEdge(eid)
	}

	parentID := n.ParentID
	for i := len(removed) - 1; i >= 0; i-- {
		e.g.removeNode(removed[i])
	}

	var changed []string
	if parentID != "" {
		changed = e.settleFrom(parentID)
	}
	e.assertContainment()

	e.commit(Change{Type: schema.EventNodeRemoved, NodeIDs: append(slices.Clone(removed), changed...), EdgeIDs: edges, Removed: removed})
	e.pruneSelection()
	return nil
}

// EdgeSpec describes an edge to add. Empty ID allocates one.
type EdgeSpec struct {
	ID     string          `json:"id,omitempty"`
	Source schema.Endpoint `json:"source"`
	Target schema.Endpoint `json:"target"`
	Label  string          `json:"label,omitempty"`
	Data   map[string]any  `json:"data,omitempty"`
}

// Connect adds an edge after it passes ValidateConnection.
func (e *Editor) Connect(spec EdgeSpec) (string, error) {
	id, err := e.connect(spec)
	if err != nil {
		return "", e.reject(err)
	}
	e.commit(Change{Type: schema.EventEdgeAdded, EdgeIDs: []string{id}})
	return id, nil
}

func (e *Editor) connect(spec EdgeSpec) (string, error) {
	if err := validateConnection(e.g, Connection{Source: spec.Source, Target: spec.Target}); err != nil {
		return "", err
	}
	if spec.ID != "" && e.g.has(spec.ID) {
		return "", schema.NewErrorf(schema.ErrCodeIDCollision, "id %q already in use", spec.ID)
	}

	ed := &Edge{
		ID:     spec.ID,
		Source: spec.Source,
		Target: spec.Target,
		Label:  spec.Label,
		Data:   maps.Clone(spec.Data),
	}
	if ed.ID != "" {
		e.ids.Observe(ed.ID)
	} else {
		ed.ID = e.NewID()
	}
	e.g.addEdge(ed)
	return ed.ID, nil
}

// Disconnect removes an edge.
func (e *Editor) Disconnect(id string) error {
	if _, ok := e.g.edges[id]; !ok {
		return e.reject(schema.NewErrorf(schema.ErrCodeNotFound, "edge %q does not exist", id))
	}
	e.g.removeEdge(id)
	e.commit(Change{Type: schema.EventEdgeRemoved, EdgeIDs: []string{id}})
	e.pruneSelection()
	return nil
}

// SetNodeData replaces a node's form data.
func (e *Editor) SetNodeData(id string, data map[string]any) error {
	n, ok := e.g.nodes[id]
	if !ok {
		return e.reject(schema.NewErrorf(schema.ErrCodeNodeNotFound, "node %q does not exist", id))
	}
	n.Data = maps.Clone(data)
	if n.Data == nil {
		n.Data = make(map[string]any)
	}
	e.commit(Change{Type: schema.EventNodeDataChanged, NodeIDs: []string{id}})
	return nil
}

// SetEdgeData replaces an edge's label and data.
func (e *Editor) SetEdgeData(id, label string, data map[string]any) error {
	ed, ok := e.g.edges[id]
	if !ok {
		return e.reject(schema.NewErrorf(schema.ErrCodeNotFound, "edge %q does not exist", id))
	}
	ed.Label = label
	ed.Data = maps.Clone(data)
	e.commit(Change{Type: schema.EventEdgeDataChanged, EdgeIDs: []string{id}})
	return nil
}

// MoveNode places node id at pos, carrying its descendants along.
func (e *Editor) MoveNode(id string, pos schema.Point) error {
	n, ok := e.g.nodes[id]
	if !ok {
		return e.reject(schema.NewErrorf(schema.ErrCodeNodeNotFound, "node %q does not exist", id))
	}

	dx, dy := pos.X-n.Position.X, pos.Y-n.Position.Y
	moved := append([]string{id}, e.g.descendants(id)...)
	for _, mid := range moved {
		m := e.g.nodes[mid]
		m.Position = schema.Point{X: m.Position.X + dx, Y: m.Position.Y + dy}
		if m.origin != nil {
			o := m.origin.Translate(dx, dy)
			m.origin = &o
		}
	}

	changed := e.settleAncestors(id)
	e.assertContainment()
	e.commit(Change{Type: schema.EventNodeMoved, NodeIDs: append(moved, changed...)})
	return nil
}

// ResizeNode sets an explicit size, clamped to the node's constraints.
// A group never shrinks past its children.
func (e *Editor) ResizeNode(id string, size schema.Size) error {
	n, ok := e.g.nodes[id]
	if !ok {
		return e.reject(schema.NewErrorf(schema.ErrCodeNodeNotFound, "node %q does not exist", id))
	}
	c := constraintsFor(n)
	if !c.Resizable {
		return e.reject(schema.NewErrorf(schema.ErrCodeNotResizable, "node of type %q cannot be resized", n.TypeID).WithNode(id))
	}

	n.Size = c.Clamp(size)
	changed := []string{id}
	if n.typ.IsGroup() {
		r := n.rect()
		n.origin = &r
		s := n.Size
		n.ExpandSize = &s
		if len(n.children) > 0 {
			e.fit(n)
		}
	}
	changed = append(changed, e.settleAncestors(id)...)
	e.assertContainment()
	e.commit(Change{Type: schema.EventNodeResized, NodeIDs: changed})
	return nil
}

func (e *Editor) reject(err error) error {
	fe, ok := schema.AsFlowError(err)
	if !ok {
		return err
	}
	e.logger.Debug("edit rejected",
		slog.String("code", fe.Code),
		slog.String("node_id", fe.NodeID),
		slog.String("error", fe.Message),
	)
	for _, l := range e.listeners {
		l.ValidationRejected(fe)
	}
	return err
}

func (e *Editor) commit(change Change) {
	for _, l := range e.listeners {
		l.DocumentChanged(change)
	}
}
