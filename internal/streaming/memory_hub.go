package streaming

import (
	"context"
	"sync"
	"sync/atomic"
)

const defaultChannelBuffer = 64

// subscription is one Subscribe call. Subscriptions without a flow id live
// under the "" bucket and see every flow.
type subscription struct {
	ch    chan StreamEvent
	types []string
}

// MemoryHub fans events out to in-process subscribers over buffered
// channels. A subscriber whose buffer is full misses the event; Dropped
// counts those misses.
type MemoryHub struct {
	mu      sync.RWMutex
	byFlow  map[string]map[*subscription]struct{}
	count   int
	dropped atomic.Int64
}

func NewMemoryHub() *MemoryHub {
	return &MemoryHub{byFlow: make(map[string]map[*subscription]struct{})}
}

// Publish never blocks on a subscriber.
func (h *MemoryHub) Publish(ctx context.Context, event StreamEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	h.deliver(h.byFlow[""], event)
	if event.FlowID != "" {
		h.deliver(h.byFlow[event.FlowID], event)
	}
	return nil
}

func (h *MemoryHub) deliver(bucket map[*subscription]struct{}, event StreamEvent) {
	for sub := range bucket {
		if !matchFilter(EventFilter{EventTypes: sub.types}, event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribe registers a filtered subscription. The cancel function removes
// it and closes the channel; calling it again does nothing.
func (h *MemoryHub) Subscribe(ctx context.Context, filter EventFilter) (<-chan StreamEvent, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	sub := &subscription{
		ch:    make(chan StreamEvent, defaultChannelBuffer),
		types: append([]string(nil), filter.EventTypes...),
	}

	h.mu.Lock()
	if h.byFlow[filter.FlowID] == nil {
		h.byFlow[filter.FlowID] = make(map[*subscription]struct{})
	}
	h.byFlow[filter.FlowID][sub] = struct{}{}
	h.count++
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if b := h.byFlow[filter.FlowID]; b != nil {
				delete(b, sub)
				if len(b) == 0 {
					delete(h.byFlow, filter.FlowID)
				}
			}
			h.count--
			h.mu.Unlock()
			close(sub.ch)
		})
	}, nil
}

// Subscribers returns the number of live subscriptions.
func (h *MemoryHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Dropped returns how many deliveries were skipped because a subscriber's
// buffer was full.
func (h *MemoryHub) Dropped() int64 { return h.dropped.Load() }
