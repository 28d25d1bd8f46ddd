package streaming

import (
	"context"
	"log/slog"

	"github.com/rendis/jobflow/internal/designer"
	"github.com/rendis/jobflow/internal/logging"
	"github.com/rendis/jobflow/pkg/schema"
)

// Bridge is a designer.Listener that republishes editor notifications for
// one session on an EventHub.
type Bridge struct {
	ctx       context.Context
	hub       EventHub
	flowID    string
	sessionID string
	logger    *slog.Logger
}

var _ designer.Listener = (*Bridge)(nil)

// NewBridge creates a Bridge. ctx bounds every publish.
func NewBridge(ctx context.Context, hub EventHub, flowID, sessionID string, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		ctx:       logging.WithSession(ctx, flowID, sessionID),
		hub:       hub,
		flowID:    flowID,
		sessionID: sessionID,
		logger:    logger,
	}
}

// SelectionPayload is the payload of selection_changed events.
type SelectionPayload struct {
	Selected []string `json:"selected"`
}

func (b *Bridge) DocumentChanged(change designer.Change) {
	b.publish(EventDocumentChanged, change)
}

func (b *Bridge) SelectionChanged(selected []string) {
	if selected == nil {
		selected = []string{}
	}
	b.publish(EventSelectionChanged, SelectionPayload{Selected: selected})
}

func (b *Bridge) ValidationRejected(err *schema.FlowError) {
	b.publish(EventValidationRejected, err)
}

func (b *Bridge) publish(eventType string, payload any) {
	err := b.hub.Publish(b.ctx, StreamEvent{
		FlowID:    b.flowID,
		SessionID: b.sessionID,
		EventType: eventType,
		Payload:   payload,
	})
	if err != nil {
		b.logger.WarnContext(b.ctx, "stream publish failed", "event_type", eventType, "error", err)
	}
}
