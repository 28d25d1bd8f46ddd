package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/jobflow/internal/store"
	"github.com/rendis/jobflow/internal/streaming"
	"github.com/rendis/jobflow/internal/workspace"
	"github.com/rendis/jobflow/pkg/schema"
)

// --- Fixtures ---

func newTestServer(t *testing.T) *DesignerServer {
	t.Helper()
	ctx := context.Background()
	st, err := store.NewLibSQLStore("file:" + filepath.Join(t.TempDir(), "mcp.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	t.Cleanup(func() { _ = st.Close() })

	ws, err := workspace.New(workspace.Options{Store: st, Hub: streaming.NewMemoryHub()})
	require.NoError(t, err)
	require.NoError(t, ws.LoadCatalog(ctx))
	return NewDesignerServer(DesignerServerDeps{Workspace: ws})
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls map[string][]map[string]any
}

func (n *recordingNotifier) Notify(_ context.Context, client string, payload map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.calls == nil {
		n.calls = make(map[string][]map[string]any)
	}
	n.calls[client] = append(n.calls[client], payload)
	return nil
}

func (n *recordingNotifier) count(client string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls[client])
}

// --- Helper ---

func buildRequest(toolName string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      toolName,
			Arguments: args,
		},
	}
}

type openResult struct {
	SessionID string           `json:"session_id"`
	FlowID    string           `json:"flow_id"`
	Version   int              `json:"version"`
	Document  *schema.Document `json:"document"`
}

func createAndOpen(t *testing.T, s *DesignerServer) openResult {
	t.Helper()
	ctx := context.Background()

	res, err := s.handleCreate(ctx, buildRequest("jobflow.create", map[string]any{"name": "nightly"}))
	require.NoError(t, err)
	require.False(t, res.IsError, extractText(t, res))
	var f store.Flow
	unmarshalResult(t, res, &f)

	res, err = s.handleOpen(ctx, buildRequest("jobflow.open", map[string]any{"flow_id": f.ID}))
	require.NoError(t, err)
	require.False(t, res.IsError, extractText(t, res))
	var opened openResult
	unmarshalResult(t, res, &opened)
	return opened
}

func shapeID(t *testing.T, doc *schema.Document, shape string) string {
	t.Helper()
	for _, c := range doc.Nodes() {
		if c.Shape == shape {
			return c.ID
		}
	}
	t.Fatalf("no %s node", shape)
	return ""
}

func edit(t *testing.T, s *DesignerServer, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := s.handleEdit(context.Background(), buildRequest("jobflow.edit", args))
	require.NoError(t, err)
	return res
}

// --- Tests ---

func TestCatalogTool(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleCatalog(ctx, buildRequest("jobflow.catalog", nil))
	require.NoError(t, err)
	require.False(t, res.IsError)
	var palette []map[string]any
	unmarshalResult(t, res, &palette)
	assert.NotEmpty(t, palette)

	res, err = s.handleCatalog(ctx, buildRequest("jobflow.catalog", map[string]any{"type": "Shell"}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	var described struct {
		Type     schema.NodeTypeDescriptor `json:"type"`
		Defaults map[string]any            `json:"defaults"`
	}
	unmarshalResult(t, res, &described)
	assert.Equal(t, "Command", described.Type.Name)
	assert.Equal(t, "UTF-8", described.Defaults["encoding"])

	res, err = s.handleCatalog(ctx, buildRequest("jobflow.catalog", map[string]any{"type": "Nope"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, extractText(t, res), schema.ErrCodeInvalidNodeType)
}

func TestCreateToolMissingName(t *testing.T) {
	s := newTestServer(t)
	res, err := s.handleCreate(context.Background(), buildRequest("jobflow.create", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, extractText(t, res), "name is required")
}

func TestOpenToolNotFound(t *testing.T) {
	s := newTestServer(t)
	res, err := s.handleOpen(context.Background(), buildRequest("jobflow.open", map[string]any{"flow_id": "missing"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, extractText(t, res), schema.ErrCodeNotFound)
}

func TestEditTool_BuildAndSave(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	opened := createAndOpen(t, s)
	assert.Equal(t, 1, opened.Version)
	start := shapeID(t, opened.Document, schema.TypeStart)
	end := shapeID(t, opened.Document, schema.TypeEnd)

	res := edit(t, s, map[string]any{
		"session_id": opened.SessionID,
		"op":         "add_node",
		"type":       "Shell",
		"position":   map[string]any{"x": 430, "y": 300},
		"data":       map[string]any{"shell": []any{"echo", "hi"}},
	})
	require.False(t, res.IsError, extractText(t, res))
	var added workspace.EditResult
	unmarshalResult(t, res, &added)
	require.NotEmpty(t, added.ID)

	for _, pair := range [][2]string{{start, added.ID}, {added.ID, end}} {
		res = edit(t, s, map[string]any{
			"session_id": opened.SessionID,
			"op":         "connect",
			"source":     map[string]any{"nodeId": pair[0], "portId": "out"},
			"target":     map[string]any{"nodeId": pair[1], "portId": "in"},
		})
		require.False(t, res.IsError, extractText(t, res))
	}

	res, err := s.handleSave(ctx, buildRequest("jobflow.save", map[string]any{"session_id": opened.SessionID, "close": true}))
	require.NoError(t, err)
	require.False(t, res.IsError, extractText(t, res))
	var saved map[string]any
	unmarshalResult(t, res, &saved)
	assert.Equal(t, float64(2), saved["version"])
	assert.Equal(t, true, saved["closed"])

	res, err = s.handleInspect(ctx, buildRequest("jobflow.inspect", map[string]any{"what": "compile", "flow_id": opened.FlowID}))
	require.NoError(t, err)
	require.False(t, res.IsError, extractText(t, res))
	var compiled struct {
		Nodes []map[string]any `json:"nodes"`
		Edges []map[string]any `json:"edges"`
	}
	unmarshalResult(t, res, &compiled)
	assert.Len(t, compiled.Nodes, 3)
	assert.Len(t, compiled.Edges, 2)

	res = edit(t, s, map[string]any{"session_id": opened.SessionID, "op": "select"})
	assert.True(t, res.IsError, "closed session")
}

func TestEditTool_Rejected(t *testing.T) {
	s := newTestServer(t)
	opened := createAndOpen(t, s)
	start := shapeID(t, opened.Document, schema.TypeStart)

	res := edit(t, s, map[string]any{
		"session_id": opened.SessionID,
		"op":         "connect",
		"source":     map[string]any{"nodeId": start, "portId": "out"},
		"target":     map[string]any{"nodeId": start, "portId": "out"},
	})
	require.True(t, res.IsError)
	var fe schema.FlowError
	unmarshalResult(t, res, &fe)
	assert.Equal(t, schema.ErrCodeSelfConnection, fe.Code)

	res = edit(t, s, map[string]any{"op": "select"})
	assert.True(t, res.IsError)
	assert.Contains(t, extractText(t, res), "session_id is required")

	res = edit(t, s, map[string]any{"session_id": opened.SessionID})
	assert.True(t, res.IsError)
	assert.Contains(t, extractText(t, res), "op is required")
}

func TestInspectTool_Query(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	opened := createAndOpen(t, s)

	res, err := s.handleInspect(ctx, buildRequest("jobflow.inspect", map[string]any{
		"what":       "document",
		"session_id": opened.SessionID,
		"query":      ".cells[] | .shape",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, extractText(t, res))
	var shapes []string
	unmarshalResult(t, res, &shapes)
	assert.ElementsMatch(t, []string{schema.TypeStart, schema.TypeEnd}, shapes)

	res, err = s.handleInspect(ctx, buildRequest("jobflow.inspect", map[string]any{
		"what":       "document",
		"session_id": opened.SessionID,
		"query":      ".cells[",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestInspectTool_Views(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	opened := createAndOpen(t, s)

	res, err := s.handleInspect(ctx, buildRequest("jobflow.inspect", map[string]any{"what": "activity", "flow_id": opened.FlowID}))
	require.NoError(t, err)
	require.False(t, res.IsError, extractText(t, res))
	var activity []store.NodeActivity
	unmarshalResult(t, res, &activity)
	assert.Len(t, activity, 2)

	res, err = s.handleInspect(ctx, buildRequest("jobflow.inspect", map[string]any{"what": "events", "flow_id": opened.FlowID}))
	require.NoError(t, err)
	var events []store.Event
	unmarshalResult(t, res, &events)
	require.Len(t, events, 2)
	assert.Equal(t, schema.EventFlowCreated, events[0].Type)
	assert.Equal(t, schema.EventDocumentLoaded, events[1].Type)

	res, err = s.handleInspect(ctx, buildRequest("jobflow.inspect", map[string]any{"what": "selection", "session_id": opened.SessionID}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	res, err = s.handleInspect(ctx, buildRequest("jobflow.inspect", map[string]any{"what": "sessions"}))
	require.NoError(t, err)
	var sessions []workspace.SessionInfo
	unmarshalResult(t, res, &sessions)
	require.Len(t, sessions, 1)
	assert.Equal(t, opened.SessionID, sessions[0].ID)

	res, err = s.handleInspect(ctx, buildRequest("jobflow.inspect", map[string]any{"what": "activity"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestDiagramTool(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	opened := createAndOpen(t, s)

	res, err := s.handleDiagram(ctx, buildRequest("jobflow.diagram", map[string]any{"flow_id": opened.FlowID}))
	require.NoError(t, err)
	require.False(t, res.IsError, extractText(t, res))
	text := extractText(t, res)
	assert.Contains(t, text, "graph TD")
	assert.Contains(t, text, "%% nightly")

	res, err = s.handleDiagram(ctx, buildRequest("jobflow.diagram", map[string]any{"session_id": opened.SessionID}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	res, err = s.handleDiagram(ctx, buildRequest("jobflow.diagram", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = s.handleDiagram(ctx, buildRequest("jobflow.diagram", map[string]any{"flow_id": opened.FlowID, "format": "gif"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestForward_NotifiesOtherWatchers(t *testing.T) {
	s := newTestServer(t)
	rec := &recordingNotifier{}
	s.notifier = rec
	opened := createAndOpen(t, s)

	s.sessions.Register(opened.SessionID, opened.FlowID, "client-a")
	s.sessions.Register("other-session", opened.FlowID, "client-b")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Forward(ctx) }()

	// Wait for the subscription before editing.
	hub := s.ws.Hub().(*streaming.MemoryHub)
	require.Eventually(t, func() bool { return hub.Subscribers() > 0 }, time.Second, 5*time.Millisecond)

	res := edit(t, s, map[string]any{"session_id": opened.SessionID, "op": "select", "ids": []any{shapeID(t, opened.Document, schema.TypeStart)}})
	require.False(t, res.IsError, extractText(t, res))

	require.Eventually(t, func() bool { return rec.count("client-b") > 0 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, rec.count("client-a"), "the editing client is not echoed")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Forward did not stop")
	}
}

// --- Test helpers ---

func extractText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	return mcp.GetTextFromContent(result.Content[0])
}

func unmarshalResult(t *testing.T, result *mcp.CallToolResult, target any) {
	t.Helper()
	text := extractText(t, result)
	require.NoError(t, json.Unmarshal([]byte(text), target))
}
