package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/jobflow/internal/expressions"
	"github.com/rendis/jobflow/internal/workspace"
)

// DesignerServerDeps holds the dependencies for creating a DesignerServer.
type DesignerServerDeps struct {
	Workspace *workspace.Workspace
	Logger    *slog.Logger
	Version   string
}

// DesignerServer wraps an MCP server with tools that drive designer
// sessions.
type DesignerServer struct {
	ws        *workspace.Workspace
	logger    *slog.Logger
	jq        *expressions.GoJQEngine
	sessions  *SessionRegistry
	notifier  FlowNotifier
	mcpServer *server.MCPServer
}

// NewDesignerServer creates a new DesignerServer with every tool registered.
func NewDesignerServer(deps DesignerServerDeps) *DesignerServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s := &DesignerServer{
		ws:       deps.Workspace,
		logger:   logger,
		jq:       expressions.NewGoJQEngine(),
		sessions: NewSessionRegistry(),
	}

	mcpSrv := server.NewMCPServer(
		"jobflow",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Jobflow designs job flows as graphs of typed nodes. Use jobflow.catalog to list node types, "+
			"jobflow.create to start a flow, jobflow.open to edit one, jobflow.edit to change it, jobflow.save to store it, "+
			"jobflow.inspect to read documents, activity and compiled flows, and jobflow.diagram to render them."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	s.notifier = NewMCPNotifier(mcpSrv, s.sessions)
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *DesignerServer) Serve(ctx context.Context) error {
	go func() {
		if err := s.Forward(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("event forwarding stopped", "error", err)
		}
	}()
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *DesignerServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the registered MCP tools as ServerTool entries.
func (s *DesignerServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: catalogTool(), Handler: s.handleCatalog},
		{Tool: createTool(), Handler: s.handleCreate},
		{Tool: openTool(), Handler: s.handleOpen},
		{Tool: editTool(), Handler: s.handleEdit},
		{Tool: saveTool(), Handler: s.handleSave},
		{Tool: inspectTool(), Handler: s.handleInspect},
		{Tool: diagramTool(), Handler: s.handleDiagram},
	}
}

// --- Tool definitions ---

func catalogTool() mcp.Tool {
	return mcp.NewTool("jobflow.catalog",
		mcp.WithDescription("List the node type palette, or describe one node type with its form defaults"),
		mcp.WithString("type", mcp.Description("Node type id to describe (default: the whole palette)")),
	)
}

func createTool() mcp.Tool {
	return mcp.NewTool("jobflow.create",
		mcp.WithDescription("Create a flow seeded with start and end nodes"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Flow name")),
		mcp.WithString("remark", mcp.Description("Free-form description")),
	)
}

func openTool() mcp.Tool {
	return mcp.NewTool("jobflow.open",
		mcp.WithDescription("Open an editing session on a stored flow"),
		mcp.WithString("flow_id", mcp.Required(), mcp.Description("ID of the flow to edit")),
	)
}

func editTool() mcp.Tool {
	return mcp.NewTool("jobflow.edit",
		mcp.WithDescription("Apply one edit to an open session"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session returned by jobflow.open")),
		mcp.WithString("op", mcp.Required(),
			mcp.Enum(workspace.EditOps...),
			mcp.Description("Edit operation"),
		),
		mcp.WithString("id", mcp.Description("Target node or edge id; optional explicit id for add_node and connect")),
		mcp.WithString("type", mcp.Description("Node type for add_node")),
		mcp.WithString("parentId", mcp.Description("Group to place the node in (add_node, reparent); empty detaches")),
		mcp.WithObject("position", mcp.Description("{x, y} for add_node and move")),
		mcp.WithObject("size", mcp.Description("{width, height} for add_node and resize")),
		mcp.WithObject("source", mcp.Description("{nodeId, portId} for connect")),
		mcp.WithObject("target", mcp.Description("{nodeId, portId} for connect")),
		mcp.WithString("label", mcp.Description("Edge label for connect and set_data")),
		mcp.WithObject("data", mcp.Description("Form data for add_node, connect and set_data")),
		mcp.WithBoolean("collapsed", mcp.Description("Target state for collapse (default: toggle)")),
		mcp.WithArray("ids", mcp.WithStringItems(), mcp.Description("Cells to select; empty clears the selection")),
	)
}

func saveTool() mcp.Tool {
	return mcp.NewTool("jobflow.save",
		mcp.WithDescription("Store a session's document; fails if the flow changed since the session loaded it"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to save")),
		mcp.WithBoolean("close", mcp.Description("Close the session after saving")),
	)
}

func inspectTool() mcp.Tool {
	return mcp.NewTool("jobflow.inspect",
		mcp.WithDescription("Read a session or stored flow, optionally filtered through a jq query"),
		mcp.WithString("what", mcp.Required(),
			mcp.Enum(inspectDocument, inspectSelection, inspectActivity, inspectEvents, inspectCompile, inspectSessions),
			mcp.Description("What to read"),
		),
		mcp.WithString("session_id", mcp.Description("Open session (document, selection)")),
		mcp.WithString("flow_id", mcp.Description("Stored flow (document, activity, events, compile)")),
		mcp.WithNumber("since", mcp.Description("Only events after this sequence number")),
		mcp.WithString("query", mcp.Description("jq expression applied to the result, e.g. .cells[] | select(.shape == \"Shell\") | .id")),
	)
}

func diagramTool() mcp.Tool {
	return mcp.NewTool("jobflow.diagram",
		mcp.WithDescription("Render a flow as Mermaid flowchart syntax, SVG, or a PNG image"),
		mcp.WithString("flow_id", mcp.Description("Stored flow to render")),
		mcp.WithString("session_id", mcp.Description("Open session to render, including unsaved edits")),
		mcp.WithString("format", mcp.Enum("mermaid", "svg", "png"), mcp.Description("Output format (default: mermaid)")),
	)
}
