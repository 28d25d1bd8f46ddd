package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rendis/jobflow/pkg/schema"
)

// EventLog provides design-log operations on top of a LibSQLStore.
type EventLog struct {
	store *LibSQLStore
}

// NewEventLog wraps a LibSQLStore to provide design-log operations.
func NewEventLog(s *LibSQLStore) *EventLog {
	return &EventLog{store: s}
}

// AppendEvent appends an event with a monotonically increasing per-flow sequence.
// The write lock is taken before the sequence is read so concurrent
// sessions saving the same flow never collide on a sequence number.
func (el *EventLog) AppendEvent(ctx context.Context, event *Event) error {
	db := el.store.DB()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin immediate tx: %w", err)
	}
	defer tx.Rollback()

	// In WAL mode BeginTx starts a deferred transaction; a throwaway write
	// forces lock acquisition.
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO jobflow_migrations (version, name) VALUES (-1, 'write_lock')`); err != nil {
		return fmt.Errorf("acquire write lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM jobflow_migrations WHERE version = -1`); err != nil {
		return fmt.Errorf("cleanup write lock: %w", err)
	}

	if err := insertEvent(ctx, tx, event); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event: %w", err)
	}
	return nil
}

// GetEvents returns events for a flow with sequence > since, ordered by sequence ASC.
func (el *EventLog) GetEvents(ctx context.Context, flowID string, since int64) ([]*Event, error) {
	return el.store.GetEvents(ctx, flowID, since)
}

// GetEventsByType returns events of a specific type matching the filter.
func (el *EventLog) GetEventsByType(ctx context.Context, eventType string, filter EventFilter) ([]*Event, error) {
	return el.store.GetEventsByType(ctx, eventType, filter)
}

// ChangePayload is the payload recorded for document change events.
type ChangePayload struct {
	NodeIDs []string `json:"node_ids,omitempty"`
	EdgeIDs []string `json:"edge_ids,omitempty"`
	Removed []string `json:"removed,omitempty"`
}

// Activity replays a flow's design log and summarises, per node, how often it
// was touched and whether its last appearance removed it. Results are sorted
// by node id. A gap in the sequence numbers is reported as STORE_ERROR.
func (el *EventLog) Activity(ctx context.Context, flowID string) ([]NodeActivity, error) {
	events, err := el.store.GetEvents(ctx, flowID, 0)
	if err != nil {
		return nil, fmt.Errorf("get events for replay: %w", err)
	}

	for i, e := range events {
		expected := int64(i + 1)
		if e.Sequence != expected {
			return nil, schema.NewErrorf(schema.ErrCodeStore,
				"sequence gap in flow %s: expected %d, got %d", flowID, expected, e.Sequence)
		}
	}

	nodes := make(map[string]*NodeActivity)
	touch := func(id string, e *Event) *NodeActivity {
		a, ok := nodes[id]
		if !ok {
			a = &NodeActivity{NodeID: id, FirstSeen: e.Timestamp}
			nodes[id] = a
		}
		a.Changes++
		a.LastEvent = e.Type
		a.LastSeen = e.Timestamp
		a.Removed = false
		return a
	}

	for _, e := range events {
		var p ChangePayload
		if len(e.Payload) > 0 {
			// Payloads of non-change events (flow_saved, ...) have no node ids.
			_ = json.Unmarshal(e.Payload, &p)
		}
		ids := p.NodeIDs
		if len(ids) == 0 && e.NodeID != "" {
			ids = []string{e.NodeID}
		}
		for _, id := range ids {
			touch(id, e)
		}
		for _, id := range p.Removed {
			if a, ok := nodes[id]; ok {
				a.Removed = true
			}
		}
	}

	out := make([]NodeActivity, 0, len(nodes))
	for _, a := range nodes {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out, nil
}
