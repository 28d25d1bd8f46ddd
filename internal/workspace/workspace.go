// Package workspace hosts designer sessions over stored flows: it owns the
// node type registry, the store, the event hub and every open editor.
package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/jobflow/internal/catalog"
	"github.com/rendis/jobflow/internal/designer"
	"github.com/rendis/jobflow/internal/diagram"
	"github.com/rendis/jobflow/internal/expressions"
	"github.com/rendis/jobflow/internal/flow"
	"github.com/rendis/jobflow/internal/forms"
	"github.com/rendis/jobflow/internal/logging"
	"github.com/rendis/jobflow/internal/nodetypes"
	"github.com/rendis/jobflow/internal/scheduler"
	"github.com/rendis/jobflow/internal/store"
	"github.com/rendis/jobflow/internal/streaming"
	"github.com/rendis/jobflow/internal/validation"
	"github.com/rendis/jobflow/pkg/schema"
)

// DefaultCanvas is the canvas new documents are seeded against.
var DefaultCanvas = schema.Size{Width: 1000, Height: 700}

// Options configures a Workspace. Store is required.
type Options struct {
	Store  store.Store
	Events *store.EventLog // derived from Store when it is a *store.LibSQLStore
	Hub    streaming.EventHub
	Logger *slog.Logger
	Canvas schema.Size
}

// Workspace is safe for concurrent use. Each Session serialises access to
// its own editor.
type Workspace struct {
	store     store.Store
	events    *store.EventLog
	hub       streaming.EventHub
	logger    *slog.Logger
	canvas    schema.Size
	registry  *nodetypes.Registry
	validator *validation.DocumentValidator
	forms     *forms.Engine
	compiler  *flow.Compiler

	catalogMu sync.RWMutex
	catalog   *catalog.Catalog

	mu       sync.RWMutex
	sessions map[string]*Session
}

// New creates a Workspace with an empty registry. Call LoadCatalog before
// opening flows.
func New(opts Options) (*Workspace, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("workspace: store is required")
	}
	if opts.Hub == nil {
		opts.Hub = streaming.NewMemoryHub()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Canvas.Width <= 0 || opts.Canvas.Height <= 0 {
		opts.Canvas = DefaultCanvas
	}
	if opts.Events == nil {
		if ls, ok := opts.Store.(*store.LibSQLStore); ok {
			opts.Events = store.NewEventLog(ls)
		}
	}

	registry := nodetypes.NewRegistry()
	validator, err := validation.NewDocumentValidator(registry)
	if err != nil {
		return nil, fmt.Errorf("workspace: document validator: %w", err)
	}
	compiler, err := flow.NewCompiler(registry)
	if err != nil {
		return nil, fmt.Errorf("workspace: compiler: %w", err)
	}
	eval, err := expressions.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("workspace: expressions: %w", err)
	}

	return &Workspace{
		store:     opts.Store,
		events:    opts.Events,
		hub:       opts.Hub,
		logger:    opts.Logger,
		canvas:    opts.Canvas,
		registry:  registry,
		validator: validator,
		forms:     forms.NewEngine(eval),
		compiler:  compiler,
		catalog:   &catalog.Catalog{},
		sessions:  make(map[string]*Session),
	}, nil
}

// Registry returns the node type registry.
func (w *Workspace) Registry() *nodetypes.Registry { return w.registry }

// Forms returns the form engine.
func (w *Workspace) Forms() *forms.Engine { return w.forms }

// Hub returns the event hub sessions publish to.
func (w *Workspace) Hub() streaming.EventHub { return w.hub }

// --- Catalog ---

// LoadCatalog installs the built-in catalog, then each catalog file in
// order, then the custom types saved in the store. Nothing is registered if
// any part is invalid.
func (w *Workspace) LoadCatalog(ctx context.Context, files ...string) error {
	cat, err := catalog.Builtin()
	if err != nil {
		return err
	}
	for _, f := range files {
		extra, err := catalog.LoadFile(f)
		if err != nil {
			return err
		}
		cat.Merge(extra)
	}

	custom, err := w.store.ListNodeTypes(ctx)
	if err != nil {
		return fmt.Errorf("list custom node types: %w", err)
	}
	cat.Types = mergeTypes(cat.Types, custom)

	if err := cat.Validate(w.validator, w.forms); err != nil {
		return err
	}
	if err := cat.Install(w.registry); err != nil {
		return err
	}

	w.catalogMu.Lock()
	w.catalog = cat
	w.catalogMu.Unlock()

	w.logger.InfoContext(ctx, "catalog loaded",
		slog.Int("types", len(cat.Types)), slog.Int("custom", len(custom)), slog.Int("files", len(files)))
	return nil
}

// mergeTypes overlays extra onto base: same-id entries are replaced in
// place, new ones appended.
func mergeTypes(base, extra []schema.NodeTypeDescriptor) []schema.NodeTypeDescriptor {
	index := make(map[string]int, len(base))
	for i, d := range base {
		index[d.ID] = i
	}
	for _, d := range extra {
		if i, ok := index[d.ID]; ok {
			base[i] = d
			continue
		}
		index[d.ID] = len(base)
		base = append(base, d)
	}
	return base
}

// Catalog returns a snapshot of the loaded catalog.
func (w *Workspace) Catalog() catalog.Catalog {
	w.catalogMu.RLock()
	defer w.catalogMu.RUnlock()
	c := *w.catalog
	c.Types = append([]schema.NodeTypeDescriptor(nil), c.Types...)
	return c
}

// Palette returns the visible node types grouped by category.
func (w *Workspace) Palette() []catalog.PaletteGroup {
	w.catalogMu.RLock()
	defer w.catalogMu.RUnlock()
	return w.catalog.Palette(w.registry)
}

// RegisterType validates desc, registers it and persists it as a custom
// type. Re-registering an id replaces the previous definition for editors
// opened afterwards; its kind must stay the same, since stored flows may hold
// children of a group type.
func (w *Workspace) RegisterType(ctx context.Context, desc schema.NodeTypeDescriptor) error {
	w.catalogMu.Lock()
	defer w.catalogMu.Unlock()

	if prev, err := w.registry.Get(desc.ID); err == nil {
		kind := desc.Kind
		if kind == "" {
			kind = schema.KindLeaf
		}
		if prev.Kind != kind {
			return schema.NewErrorf(schema.ErrCodeValidation,
				"node type %q is already registered as %s and cannot become %s", desc.ID, prev.Kind, kind)
		}
	}

	single := &catalog.Catalog{
		CommonFields: w.catalog.CommonFields,
		Types:        []schema.NodeTypeDescriptor{desc},
	}
	if err := single.Validate(w.validator, w.forms); err != nil {
		return err
	}
	if err := single.Install(w.registry); err != nil {
		return err
	}
	if err := w.store.UpsertNodeType(ctx, &desc); err != nil {
		return fmt.Errorf("save node type %s: %w", desc.ID, err)
	}
	w.catalog.Types = mergeTypes(w.catalog.Types, []schema.NodeTypeDescriptor{desc})

	w.publish(ctx, "", schema.EventNodeTypeRegistered, map[string]any{"type": desc.ID})
	w.logger.InfoContext(ctx, "node type registered", slog.String("type", desc.ID))
	return nil
}

// --- Flows ---

// CreateFlow stores a new flow seeded with the start and end nodes.
func (w *Workspace) CreateFlow(ctx context.Context, name, remark string) (*store.Flow, error) {
	if name == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "flow name is required")
	}
	ed, err := w.newEditor()
	if err != nil {
		return nil, err
	}
	if err := ed.InitializeFromSeed(catalog.DefaultSeeds(), w.canvas); err != nil {
		return nil, err
	}

	f := &store.Flow{
		ID:      uuid.New().String(),
		Name:    name,
		Remark:  remark,
		Content: ed.Serialize(),
	}
	if err := w.store.CreateFlow(ctx, f); err != nil {
		return nil, fmt.Errorf("create flow: %w", err)
	}
	ctx = logging.WithFlowID(ctx, f.ID)
	w.record(ctx, &store.Event{FlowID: f.ID, Type: schema.EventFlowCreated})
	w.publish(ctx, f.ID, schema.EventFlowCreated, map[string]any{"name": name})
	w.logger.InfoContext(ctx, "flow created", slog.String("name", name))
	return f, nil
}

// GetFlow returns a stored flow.
func (w *Workspace) GetFlow(ctx context.Context, id string) (*store.Flow, error) {
	return w.store.GetFlow(ctx, id)
}

// ListFlows lists stored flows.
func (w *Workspace) ListFlows(ctx context.Context, filter store.FlowFilter) ([]*store.Flow, error) {
	return w.store.ListFlows(ctx, filter)
}

// DeleteFlow closes every session on the flow and deletes it with its log.
func (w *Workspace) DeleteFlow(ctx context.Context, id string) error {
	if err := w.store.DeleteFlow(ctx, id); err != nil {
		return err
	}
	for _, s := range w.sessionsFor(id) {
		_ = w.Close(ctx, s.ID)
	}
	ctx = logging.WithFlowID(ctx, id)
	w.publish(ctx, id, schema.EventFlowDeleted, nil)
	w.logger.InfoContext(ctx, "flow deleted")
	return nil
}

// ReplaceContent stores doc as the flow's content if version is current.
// The document is loaded into a scratch editor first, so only documents an
// editor accepts are stored, in the editor's normalised form.
func (w *Workspace) ReplaceContent(ctx context.Context, id string, doc *schema.Document, version int) (int, error) {
	ed, err := w.newEditor()
	if err != nil {
		return 0, err
	}
	if err := ed.LoadDocument(doc); err != nil {
		return 0, err
	}
	next, err := w.store.UpdateFlowContent(ctx, id, ed.Serialize(), version)
	if err != nil {
		return 0, err
	}
	ctx = logging.WithFlowID(ctx, id)
	w.recordSaved(ctx, id, "", next)
	return next, nil
}

// Compile converts a document into an executable flow description.
func (w *Workspace) Compile(_ context.Context, doc *schema.Document) (*flow.Flow, error) {
	return w.compiler.Compile(doc)
}

// CompileFlow compiles a stored flow.
func (w *Workspace) CompileFlow(ctx context.Context, id string) (*flow.Flow, error) {
	f, err := w.store.GetFlow(ctx, id)
	if err != nil {
		return nil, err
	}
	compiled, err := w.compiler.Compile(f.Content)
	if err != nil {
		return nil, err
	}
	compiled.ID, compiled.Name, compiled.Description = f.ID, f.Name, f.Remark
	return compiled, nil
}

// Diagram renders a document in the given format.
func (w *Workspace) Diagram(ctx context.Context, doc *schema.Document, title string, format diagram.Format) ([]byte, error) {
	model, err := diagram.Build(doc, w.registry)
	if err != nil {
		return nil, err
	}
	model.Title = title
	return diagram.Render(ctx, model, format)
}

// Activity summarises the design log of a flow per node.
func (w *Workspace) Activity(ctx context.Context, flowID string) ([]store.NodeActivity, error) {
	if w.events == nil {
		return nil, schema.NewError(schema.ErrCodeStore, "store keeps no design log")
	}
	if _, err := w.store.GetFlow(ctx, flowID); err != nil {
		return nil, err
	}
	return w.events.Activity(ctx, flowID)
}

// Events returns a flow's design log after sequence since.
func (w *Workspace) Events(ctx context.Context, flowID string, since int64) ([]*store.Event, error) {
	if _, err := w.store.GetFlow(ctx, flowID); err != nil {
		return nil, err
	}
	return w.store.GetEvents(ctx, flowID, since)
}

// ValidateNodeData checks a node's form against its type's fields.
func (w *Workspace) ValidateNodeData(ctx context.Context, typeID string, data map[string]any) error {
	nt, err := w.registry.Get(typeID)
	if err != nil {
		return err
	}
	return w.forms.Validate(ctx, nt, data).ToError()
}

// --- Housekeeping ---

// Housekeeping schedules idle-session reaping every minute and a store
// vacuum on vacuumSpec (skipped when empty).
func (w *Workspace) Housekeeping(s *scheduler.Scheduler, idle time.Duration, vacuumSpec string) error {
	if idle > 0 {
		err := s.Add(scheduler.Job{Name: "reap-sessions", Spec: "@every 1m", Run: func(ctx context.Context) error {
			if n := w.ReapIdle(ctx, idle); n > 0 {
				w.logger.InfoContext(ctx, "closed idle sessions", slog.Int("count", n))
			}
			return nil
		}})
		if err != nil {
			return err
		}
	}
	if vacuumSpec != "" {
		return s.Add(scheduler.Job{Name: "vacuum", Spec: vacuumSpec, Run: w.store.Vacuum})
	}
	return nil
}

// --- internals ---

func (w *Workspace) newEditor(opts ...designer.Option) (*designer.Editor, error) {
	base := []designer.Option{designer.WithValidator(w.validator), designer.WithLogger(w.logger)}
	return designer.NewEditor(w.registry, append(base, opts...)...)
}

// record appends to the design log. Failures are logged, not returned:
// the log is an audit trail, not the source of truth.
func (w *Workspace) record(ctx context.Context, e *store.Event) {
	var err error
	if w.events != nil {
		err = w.events.AppendEvent(ctx, e)
	} else {
		err = w.store.AppendEvent(ctx, e)
	}
	if err != nil {
		w.logger.WarnContext(ctx, "design log append failed", slog.String("event_type", e.Type), slog.String("error", err.Error()))
	}
}

func (w *Workspace) recordSaved(ctx context.Context, flowID, sessionID string, version int) {
	payload, _ := json.Marshal(map[string]any{"version": version})
	w.record(ctx, &store.Event{FlowID: flowID, SessionID: sessionID, Type: schema.EventFlowSaved, Payload: payload})
	w.publish(ctx, flowID, schema.EventFlowSaved, map[string]any{"version": version, "session_id": sessionID})
}

func (w *Workspace) publish(ctx context.Context, flowID, eventType string, payload any) {
	err := w.hub.Publish(ctx, streaming.StreamEvent{
		FlowID:    flowID,
		SessionID: logging.SessionID(ctx),
		EventType: eventType,
		Payload:   payload,
	})
	if err != nil {
		w.logger.WarnContext(ctx, "stream publish failed", slog.String("event_type", eventType), slog.String("error", err.Error()))
	}
}

func (w *Workspace) sessionsFor(flowID string) []*Session {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var out []*Session
	for _, s := range w.sessions {
		if s.FlowID == flowID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
