package store

import (
	"encoding/json"
	"time"

	"github.com/rendis/jobflow/pkg/schema"
)

// Flow is a saved designer document with its metadata.
type Flow struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Remark    string           `json:"remark,omitempty"`
	Content   *schema.Document `json:"content"`
	Version   int              `json:"version"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// FlowUpdate holds optional metadata changes. Content goes through
// UpdateFlowContent.
type FlowUpdate struct {
	Name   *string `json:"name,omitempty"`
	Remark *string `json:"remark,omitempty"`
}

// FlowFilter selects flows for listing.
type FlowFilter struct {
	Name   string // substring match
	Limit  int
	Offset int
}

// Event is an immutable entry in a flow's design log.
type Event struct {
	ID        int64           `json:"id"`
	FlowID    string          `json:"flow_id"`
	NodeID    string          `json:"node_id,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Type      string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Sequence  int64           `json:"sequence"`
}

// EventFilter narrows GetEventsByType.
type EventFilter struct {
	FlowID string
	NodeID string
	Since  *time.Time
	Limit  int
}

// NodeActivity summarises the design log entries that touched one node.
type NodeActivity struct {
	NodeID    string    `json:"node_id"`
	Changes   int       `json:"changes"`
	LastEvent string    `json:"last_event"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Removed   bool      `json:"removed"`
}
