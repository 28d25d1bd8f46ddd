package mcp

import (
	"sort"
	"sync"
)

// SessionRegistry maps designer sessions to the MCP client sessions that
// opened them. Populated when a client calls jobflow.open.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]binding // designer session → client
}

type binding struct {
	client string
	flowID string
}

// NewSessionRegistry creates a new empty SessionRegistry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]binding)}
}

// Register associates a designer session on flowID with a client session.
func (r *SessionRegistry) Register(designerSession, flowID, clientSession string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[designerSession] = binding{client: clientSession, flowID: flowID}
}

// ClientFor returns the client session that opened a designer session.
func (r *SessionRegistry) ClientFor(designerSession string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.sessions[designerSession]
	return b.client, ok
}

// Watchers returns the clients with a session open on flowID, excluding the
// client that owns designer session except. Sorted, without duplicates.
func (r *SessionRegistry) Watchers(flowID, except string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	skip := r.sessions[except].client
	seen := make(map[string]bool)
	var out []string
	for _, b := range r.sessions {
		if b.flowID != flowID || b.client == skip || seen[b.client] {
			continue
		}
		seen[b.client] = true
		out = append(out, b.client)
	}
	sort.Strings(out)
	return out
}

// Forget drops one designer session.
func (r *SessionRegistry) Forget(designerSession string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, designerSession)
}

// Remove deletes every designer session bound to the given client session.
// Called when a client disconnects.
func (r *SessionRegistry) Remove(clientSession string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ds, b := range r.sessions {
		if b.client == clientSession {
			delete(r.sessions, ds)
		}
	}
}
