package streaming

import (
	"context"
	"slices"
)

// Stream event types published by the Bridge.
const (
	EventDocumentChanged    = "document_changed"
	EventSelectionChanged   = "selection_changed"
	EventValidationRejected = "validation_rejected"
)

// StreamEvent is a real-time event emitted while a flow is being edited.
type StreamEvent struct {
	FlowID    string `json:"flow_id"`
	SessionID string `json:"session_id,omitempty"`
	EventType string `json:"event_type"`
	Payload   any    `json:"payload,omitempty"`
}

// EventFilter specifies which events a subscriber wants to receive.
type EventFilter struct {
	FlowID     string   `json:"flow_id,omitempty"`
	EventTypes []string `json:"event_types,omitempty"`
}

// EventHub provides pub/sub for real-time design events.
type EventHub interface {
	Publish(ctx context.Context, event StreamEvent) error
	Subscribe(ctx context.Context, filter EventFilter) (<-chan StreamEvent, func(), error)
}

// matchFilter reports whether e passes f. Empty criteria match everything.
func matchFilter(f EventFilter, e StreamEvent) bool {
	if f.FlowID != "" && f.FlowID != e.FlowID {
		return false
	}
	return len(f.EventTypes) == 0 || slices.Contains(f.EventTypes, e.EventType)
}
