package streaming

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/jobflow/internal/designer"
	"github.com/rendis/jobflow/pkg/schema"
)

func TestBridge_Publishes(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{FlowID: "flow-1"})
	require.NoError(t, err)
	defer cancel()

	b := NewBridge(ctx, hub, "flow-1", "sess-1", nil)
	b.DocumentChanged(designer.Change{Type: schema.EventNodeAdded, NodeIDs: []string{"4"}})
	b.SelectionChanged(nil)
	b.ValidationRejected(schema.NewError(schema.ErrCodeSelfConnection, "no loops"))

	got := receive(t, ch)
	assert.Equal(t, EventDocumentChanged, got.EventType)
	assert.Equal(t, "sess-1", got.SessionID)
	change, ok := got.Payload.(designer.Change)
	require.True(t, ok)
	assert.Equal(t, []string{"4"}, change.NodeIDs)

	got = receive(t, ch)
	assert.Equal(t, EventSelectionChanged, got.EventType)
	assert.Equal(t, SelectionPayload{Selected: []string{}}, got.Payload)

	got = receive(t, ch)
	assert.Equal(t, EventValidationRejected, got.EventType)
	flowErr, ok := got.Payload.(*schema.FlowError)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeSelfConnection, flowErr.Code)
}

func TestBridge_CancelledContextIsLogged(t *testing.T) {
	hub := NewMemoryHub()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewBridge(ctx, hub, "flow-1", "sess-1", nil)
	assert.NotPanics(t, func() { b.SelectionChanged([]string{"4"}) })
}
