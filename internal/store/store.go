package store

import (
	"context"

	"github.com/rendis/jobflow/pkg/schema"
)

// Store defines the persistence layer contract.
// All implementations must be safe for concurrent use.
type Store interface {
	// Flows
	CreateFlow(ctx context.Context, f *Flow) error
	GetFlow(ctx context.Context, id string) (*Flow, error)
	ListFlows(ctx context.Context, filter FlowFilter) ([]*Flow, error)
	UpdateFlow(ctx context.Context, id string, update FlowUpdate) error
	UpdateFlowContent(ctx context.Context, id string, doc *schema.Document, version int) (int, error)
	DeleteFlow(ctx context.Context, id string) error

	// Custom node types
	UpsertNodeType(ctx context.Context, desc *schema.NodeTypeDescriptor) error
	ListNodeTypes(ctx context.Context) ([]schema.NodeTypeDescriptor, error)
	DeleteNodeType(ctx context.Context, id string) error

	// Design log (append-only)
	AppendEvent(ctx context.Context, event *Event) error
	GetEvents(ctx context.Context, flowID string, since int64) ([]*Event, error)
	GetEventsByType(ctx context.Context, eventType string, filter EventFilter) ([]*Event, error)

	// Maintenance
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error

	// Lifecycle
	Close() error
}
