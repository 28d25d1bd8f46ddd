package workspace

import (
	"context"
	"log/slog"
	"maps"

	"github.com/rendis/jobflow/internal/designer"
	"github.com/rendis/jobflow/internal/logging"
	"github.com/rendis/jobflow/pkg/schema"
)

// Edit operations accepted by Apply.
const (
	OpAddNode    = "add_node"
	OpRemoveNode = "remove_node"
	OpConnect    = "connect"
	OpDisconnect = "disconnect"
	OpMove       = "move"
	OpResize     = "resize"
	OpReparent   = "reparent"
	OpCollapse   = "collapse"
	OpSetData    = "set_data"
	OpSelect     = "select"
)

// EditOps lists every supported operation.
var EditOps = []string{
	OpAddNode, OpRemoveNode, OpConnect, OpDisconnect, OpMove,
	OpResize, OpReparent, OpCollapse, OpSetData, OpSelect,
}

// EditRequest is one editor operation. Which fields are read depends on Op.
type EditRequest struct {
	Op        string           `json:"op"`
	ID        string           `json:"id,omitempty"`
	Type      string           `json:"type,omitempty"`
	ParentID  string           `json:"parentId,omitempty"`
	Position  *schema.Point    `json:"position,omitempty"`
	Size      *schema.Size     `json:"size,omitempty"`
	Source    *schema.Endpoint `json:"source,omitempty"`
	Target    *schema.Endpoint `json:"target,omitempty"`
	Label     string           `json:"label,omitempty"`
	Data      map[string]any   `json:"data,omitempty"`
	Collapsed *bool            `json:"collapsed,omitempty"`
	IDs       []string         `json:"ids,omitempty"`
}

// EditResult reports what an operation produced.
type EditResult struct {
	ID        string                  `json:"id,omitempty"`
	Collapsed *bool                   `json:"collapsed,omitempty"`
	Selection *designer.SelectionView `json:"selection,omitempty"`
}

// Apply runs req against an open session. New nodes start from their
// type's form defaults, overlaid with req.Data.
func (w *Workspace) Apply(ctx context.Context, sessionID string, req EditRequest) (*EditResult, error) {
	s, err := w.Session(sessionID)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithSession(ctx, s.FlowID, s.ID)

	var res *EditResult
	err = s.Do(func(ed *designer.Editor) error {
		var err error
		res, err = w.apply(ed, req)
		return err
	})
	if err != nil {
		w.logger.DebugContext(ctx, "edit failed", slog.String("op", req.Op), slog.String("error", err.Error()))
		return nil, err
	}
	return res, nil
}

func (w *Workspace) apply(ed *designer.Editor, req EditRequest) (*EditResult, error) {
	needID := func() error {
		if req.ID == "" {
			return schema.NewErrorf(schema.ErrCodeValidation, "%s requires id", req.Op)
		}
		return nil
	}

	switch req.Op {
	case OpAddNode:
		nt, err := w.registry.Get(req.Type)
		if err != nil {
			return nil, err
		}
		data := w.forms.Defaults(nt)
		maps.Copy(data, req.Data)
		spec := designer.NodeSpec{ID: req.ID, TypeID: req.Type, Size: req.Size, ParentID: req.ParentID, Data: data}
		if req.Position != nil {
			spec.Position = *req.Position
		}
		id, err := ed.AddNode(spec)
		if err != nil {
			return nil, err
		}
		return &EditResult{ID: id}, nil

	case OpRemoveNode:
		if err := needID(); err != nil {
			return nil, err
		}
		return &EditResult{ID: req.ID}, ed.RemoveNode(req.ID)

	case OpConnect:
		if req.Source == nil || req.Target == nil {
			return nil, schema.NewError(schema.ErrCodeValidation, "connect requires source and target")
		}
		id, err := ed.Connect(designer.EdgeSpec{ID: req.ID, Source: *req.Source, Target: *req.Target, Label: req.Label, Data: req.Data})
		if err != nil {
			return nil, err
		}
		return &EditResult{ID: id}, nil

	case OpDisconnect:
		if err := needID(); err != nil {
			return nil, err
		}
		return &EditResult{ID: req.ID}, ed.Disconnect(req.ID)

	case OpMove:
		if err := needID(); err != nil {
			return nil, err
		}
		if req.Position == nil {
			return nil, schema.NewError(schema.ErrCodeValidation, "move requires position")
		}
		return &EditResult{ID: req.ID}, ed.MoveNode(req.ID, *req.Position)

	case OpResize:
		if err := needID(); err != nil {
			return nil, err
		}
		if req.Size == nil {
			return nil, schema.NewError(schema.ErrCodeValidation, "resize requires size")
		}
		return &EditResult{ID: req.ID}, ed.ResizeNode(req.ID, *req.Size)

	case OpReparent:
		if err := needID(); err != nil {
			return nil, err
		}
		return &EditResult{ID: req.ID}, ed.Reparent(req.ID, req.ParentID)

	case OpCollapse:
		if err := needID(); err != nil {
			return nil, err
		}
		collapsed, err := ed.ToggleCollapse(req.ID, req.Collapsed)
		if err != nil {
			return nil, err
		}
		return &EditResult{ID: req.ID, Collapsed: &collapsed}, nil

	case OpSetData:
		if err := needID(); err != nil {
			return nil, err
		}
		if _, ok := ed.Node(req.ID); ok {
			return &EditResult{ID: req.ID}, ed.SetNodeData(req.ID, req.Data)
		}
		return &EditResult{ID: req.ID}, ed.SetEdgeData(req.ID, req.Label, req.Data)

	case OpSelect:
		if len(req.IDs) == 0 {
			ed.ClearSelection()
		} else if err := ed.Select(req.IDs...); err != nil {
			return nil, err
		}
		view := ed.SelectionProjection()
		return &EditResult{Selection: &view}, nil
	}

	return nil, schema.NewErrorf(schema.ErrCodeValidation, "unknown edit op %q", req.Op).
		WithDetails(map[string]any{"supported": EditOps})
}
