package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/jobflow/internal/designer"
	"github.com/rendis/jobflow/internal/diagram"
	"github.com/rendis/jobflow/internal/workspace"
	"github.com/rendis/jobflow/pkg/schema"
)

// Views accepted by jobflow.inspect.
const (
	inspectDocument  = "document"
	inspectSelection = "selection"
	inspectActivity  = "activity"
	inspectEvents    = "events"
	inspectCompile   = "compile"
	inspectSessions  = "sessions"
)

// handleCatalog lists the palette or describes one type.
func (s *DesignerServer) handleCatalog(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typeID := req.GetString("type", "")
	if typeID == "" {
		return marshalResult(s.ws.Palette())
	}
	nt, err := s.ws.Registry().Get(typeID)
	if err != nil {
		return toolError(err), nil
	}
	return marshalResult(map[string]any{
		"type":     nt.Descriptor(),
		"defaults": s.ws.Forms().Defaults(nt),
	})
}

// handleCreate stores a new seeded flow.
func (s *DesignerServer) handleCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name is required"), nil
	}
	f, err := s.ws.CreateFlow(ctx, name, req.GetString("remark", ""))
	if err != nil {
		return toolError(err), nil
	}
	return marshalResult(f)
}

// handleOpen opens a session and binds it to the calling client.
func (s *DesignerServer) handleOpen(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	flowID, err := req.RequireString("flow_id")
	if err != nil {
		return mcp.NewToolResultError("flow_id is required"), nil
	}
	sess, err := s.ws.Open(ctx, flowID)
	if err != nil {
		return toolError(err), nil
	}
	s.captureSession(ctx, sess)

	doc, err := sess.Document()
	if err != nil {
		return toolError(err), nil
	}
	info := sess.Info()
	return marshalResult(map[string]any{
		"session_id": info.ID,
		"flow_id":    info.FlowID,
		"version":    info.Version,
		"document":   doc,
	})
}

// editArgs is the argument object of jobflow.edit.
type editArgs struct {
	SessionID string `json:"session_id"`
	workspace.EditRequest
}

// handleEdit applies one edit operation.
func (s *DesignerServer) handleEdit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args editArgs
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if args.SessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}
	if args.Op == "" {
		return mcp.NewToolResultError("op is required"), nil
	}
	res, err := s.ws.Apply(ctx, args.SessionID, args.EditRequest)
	if err != nil {
		return toolError(err), nil
	}
	return marshalResult(res)
}

// handleSave stores a session and optionally closes it.
func (s *DesignerServer) handleSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id is required"), nil
	}
	version, err := s.ws.Save(ctx, sessionID)
	if err != nil {
		return toolError(err), nil
	}
	closed := req.GetBool("close", false)
	if closed {
		if err := s.ws.Close(ctx, sessionID); err != nil {
			return toolError(err), nil
		}
		s.sessions.Forget(sessionID)
	}
	return marshalResult(map[string]any{"ok": true, "version": version, "closed": closed})
}

// handleInspect reads a view of a session or flow, then applies the
// optional jq query to its JSON form.
func (s *DesignerServer) handleInspect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	what, err := req.RequireString("what")
	if err != nil {
		return mcp.NewToolResultError("what is required"), nil
	}
	sessionID := req.GetString("session_id", "")
	flowID := req.GetString("flow_id", "")

	var view any
	switch what {
	case inspectDocument:
		switch {
		case sessionID != "":
			view, err = s.sessionDocument(sessionID)
		case flowID != "":
			f, ferr := s.ws.GetFlow(ctx, flowID)
			if ferr == nil {
				view = f.Content
			}
			err = ferr
		default:
			return mcp.NewToolResultError("session_id or flow_id is required"), nil
		}
	case inspectSelection:
		if sessionID == "" {
			return mcp.NewToolResultError("session_id is required"), nil
		}
		view, err = s.sessionSelection(sessionID)
	case inspectActivity:
		if flowID == "" {
			return mcp.NewToolResultError("flow_id is required"), nil
		}
		view, err = s.ws.Activity(ctx, flowID)
	case inspectEvents:
		if flowID == "" {
			return mcp.NewToolResultError("flow_id is required"), nil
		}
		view, err = s.ws.Events(ctx, flowID, int64(req.GetInt("since", 0)))
	case inspectCompile:
		switch {
		case sessionID != "":
			doc, derr := s.sessionDocument(sessionID)
			if derr != nil {
				return toolError(derr), nil
			}
			view, err = s.ws.Compile(ctx, doc)
		case flowID != "":
			view, err = s.ws.CompileFlow(ctx, flowID)
		default:
			return mcp.NewToolResultError("session_id or flow_id is required"), nil
		}
	case inspectSessions:
		view = s.ws.Sessions()
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown view: %s", what)), nil
	}
	if err != nil {
		return toolError(err), nil
	}

	query := req.GetString("query", "")
	if query == "" {
		return marshalResult(view)
	}
	return s.runQuery(ctx, query, view)
}

// runQuery evaluates a jq expression over the JSON form of view.
func (s *DesignerServer) runQuery(ctx context.Context, query string, view any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(view)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	var input any
	if err := json.Unmarshal(data, &input); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to decode result: %v", err)), nil
	}
	out, err := s.jq.EvaluateAll(ctx, query, input)
	if err != nil {
		return toolError(err), nil
	}
	if out == nil {
		out = []any{}
	}
	return marshalResult(out)
}

// handleDiagram renders a stored flow or a live session.
func (s *DesignerServer) handleDiagram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format, err := diagram.ParseFormat(req.GetString("format", ""))
	if err != nil {
		return toolError(err), nil
	}

	var doc *schema.Document
	title := ""
	switch flowID, sessionID := req.GetString("flow_id", ""), req.GetString("session_id", ""); {
	case sessionID != "":
		if doc, err = s.sessionDocument(sessionID); err != nil {
			return toolError(err), nil
		}
	case flowID != "":
		f, ferr := s.ws.GetFlow(ctx, flowID)
		if ferr != nil {
			return toolError(ferr), nil
		}
		doc, title = f.Content, f.Name
	default:
		return mcp.NewToolResultError("at least one of flow_id or session_id is required"), nil
	}

	out, err := s.ws.Diagram(ctx, doc, title, format)
	if err != nil {
		return toolError(err), nil
	}
	if format == diagram.FormatPNG {
		encoded := base64.StdEncoding.EncodeToString(out)
		return mcp.NewToolResultImage("flow diagram", encoded, format.ContentType()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// --- helpers ---

func (s *DesignerServer) sessionDocument(id string) (*schema.Document, error) {
	sess, err := s.ws.Session(id)
	if err != nil {
		return nil, err
	}
	return sess.Document()
}

func (s *DesignerServer) sessionSelection(id string) (designer.SelectionView, error) {
	var view designer.SelectionView
	sess, err := s.ws.Session(id)
	if err != nil {
		return view, err
	}
	err = sess.Do(func(ed *designer.Editor) error {
		view = ed.SelectionProjection()
		return nil
	})
	return view, err
}

// captureSession binds the designer session to the calling MCP client for
// notifications.
func (s *DesignerServer) captureSession(ctx context.Context, sess *workspace.Session) {
	if session := server.ClientSessionFromContext(ctx); session != nil {
		s.sessions.Register(sess.ID, sess.FlowID, session.SessionID())
	}
}

// toolError renders err as a tool error. FlowErrors keep their code and
// details in a JSON body.
func toolError(err error) *mcp.CallToolResult {
	fe, ok := schema.AsFlowError(err)
	if !ok {
		return mcp.NewToolResultError(err.Error())
	}
	data, mErr := json.Marshal(fe)
	if mErr != nil {
		return mcp.NewToolResultError(fe.Error())
	}
	return mcp.NewToolResultError(string(data))
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
