package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/jobflow/internal/streaming"
)

// FlowNotifier pushes notifications to connected clients.
type FlowNotifier interface {
	Notify(ctx context.Context, clientSession string, payload map[string]any) error
}

// MCPNotifier implements FlowNotifier using MCP server push.
type MCPNotifier struct {
	mcpServer *server.MCPServer
	sessions  *SessionRegistry
}

// NewMCPNotifier creates a notifier that pushes via the MCP server.
func NewMCPNotifier(mcpServer *server.MCPServer, sessions *SessionRegistry) *MCPNotifier {
	return &MCPNotifier{mcpServer: mcpServer, sessions: sessions}
}

// Notify sends a notification to one client session. A client that has
// gone away is forgotten and not reported as an error.
func (n *MCPNotifier) Notify(_ context.Context, clientSession string, payload map[string]any) error {
	err := n.mcpServer.SendNotificationToSpecificClient(clientSession, "notifications/message", payload)
	if errors.Is(err, server.ErrSessionNotFound) {
		n.sessions.Remove(clientSession)
		return nil
	}
	return err
}

// Forward relays hub events to every client with a session open on the
// event's flow, except the client whose session caused it. It blocks until
// ctx is done.
func (s *DesignerServer) Forward(ctx context.Context) error {
	ch, cancel, err := s.ws.Hub().Subscribe(ctx, streaming.EventFilter{})
	if err != nil {
		return err
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			s.forward(ctx, ev)
		}
	}
}

func (s *DesignerServer) forward(ctx context.Context, ev streaming.StreamEvent) {
	if ev.FlowID == "" {
		return
	}
	payload := map[string]any{
		"level":  "info",
		"logger": "jobflow",
		"data": map[string]any{
			"flow_id":    ev.FlowID,
			"session_id": ev.SessionID,
			"event_type": ev.EventType,
			"payload":    ev.Payload,
		},
	}
	for _, client := range s.sessions.Watchers(ev.FlowID, ev.SessionID) {
		if err := s.notifier.Notify(ctx, client, payload); err != nil {
			s.logger.Debug("notify failed", "client", client, "error", err)
		}
	}
}
