package workspace

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/jobflow/internal/designer"
	"github.com/rendis/jobflow/internal/logging"
	"github.com/rendis/jobflow/internal/store"
	"github.com/rendis/jobflow/internal/streaming"
	"github.com/rendis/jobflow/pkg/schema"
)

// Session is one open editor over a stored flow.
type Session struct {
	ID       string
	FlowID   string
	OpenedAt time.Time

	mu       sync.Mutex
	editor   *designer.Editor
	version  int
	lastUsed time.Time
	closed   bool
}

// SessionInfo describes an open session.
type SessionInfo struct {
	ID       string    `json:"id"`
	FlowID   string    `json:"flow_id"`
	Version  int       `json:"version"`
	OpenedAt time.Time `json:"opened_at"`
	LastUsed time.Time `json:"last_used"`
}

// Do runs fn with exclusive access to the session's editor.
func (s *Session) Do(fn func(ed *designer.Editor) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return schema.NewErrorf(schema.ErrCodeNotFound, "session %q is closed", s.ID)
	}
	s.lastUsed = time.Now()
	return fn(s.editor)
}

// Document returns a snapshot of the session's document.
func (s *Session) Document() (*schema.Document, error) {
	var doc *schema.Document
	err := s.Do(func(ed *designer.Editor) error {
		doc = ed.Serialize()
		return nil
	})
	return doc, err
}

// Info returns the session's metadata.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{ID: s.ID, FlowID: s.FlowID, Version: s.version, OpenedAt: s.OpenedAt, LastUsed: s.lastUsed}
}

// Open loads a stored flow into a new session. Editor notifications are
// published on the hub and document changes are appended to the design log.
func (w *Workspace) Open(ctx context.Context, flowID string) (*Session, error) {
	f, err := w.store.GetFlow(ctx, flowID)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	sctx := logging.WithSession(context.WithoutCancel(ctx), flowID, id)
	ed, err := w.newEditor(
		designer.WithLogger(logging.LogWith(sctx, w.logger)),
		designer.WithListener(streaming.NewBridge(sctx, w.hub, flowID, id, w.logger)),
		designer.WithListener(&recorder{ctx: sctx, ws: w, flowID: flowID, sessionID: id}),
	)
	if err != nil {
		return nil, err
	}
	if err := ed.LoadDocument(f.Content); err != nil {
		return nil, err
	}

	now := time.Now()
	s := &Session{ID: id, FlowID: flowID, OpenedAt: now, editor: ed, version: f.Version, lastUsed: now}

	w.mu.Lock()
	w.sessions[id] = s
	w.mu.Unlock()

	w.logger.InfoContext(sctx, "session opened", slog.Int("version", f.Version))
	return s, nil
}

// Session returns an open session.
func (w *Workspace) Session(id string) (*Session, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s, ok := w.sessions[id]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "session %q not found", id)
	}
	return s, nil
}

// Sessions lists open sessions ordered by opening time.
func (w *Workspace) Sessions() []SessionInfo {
	w.mu.RLock()
	out := make([]SessionInfo, 0, len(w.sessions))
	for _, s := range w.sessions {
		out = append(out, s.Info())
	}
	w.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].OpenedAt.Before(out[j].OpenedAt)
	})
	return out
}

// Save writes the session's document back to the store. It fails with
// CONFLICT when the flow was saved elsewhere since the session loaded or
// last saved it.
func (w *Workspace) Save(ctx context.Context, sessionID string) (int, error) {
	s, err := w.Session(sessionID)
	if err != nil {
		return 0, err
	}
	ctx = logging.WithSession(ctx, s.FlowID, s.ID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, schema.NewErrorf(schema.ErrCodeNotFound, "session %q is closed", s.ID)
	}

	next, err := w.store.UpdateFlowContent(ctx, s.FlowID, s.editor.Serialize(), s.version)
	if err != nil {
		w.logger.WarnContext(ctx, "save rejected", slog.String("error", err.Error()))
		return 0, err
	}
	s.version = next
	s.lastUsed = time.Now()

	w.recordSaved(ctx, s.FlowID, s.ID, next)
	w.logger.InfoContext(ctx, "flow saved", slog.Int("version", next))
	return next, nil
}

// Close discards a session without saving.
func (w *Workspace) Close(ctx context.Context, sessionID string) error {
	w.mu.Lock()
	s, ok := w.sessions[sessionID]
	delete(w.sessions, sessionID)
	w.mu.Unlock()
	if !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "session %q not found", sessionID)
	}

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	w.logger.InfoContext(logging.WithSession(ctx, s.FlowID, s.ID), "session closed")
	return nil
}

// ReapIdle closes sessions unused for longer than idle and reports how many
// it closed.
func (w *Workspace) ReapIdle(ctx context.Context, idle time.Duration) int {
	cutoff := time.Now().Add(-idle)
	var stale []string
	for _, info := range w.Sessions() {
		if info.LastUsed.Before(cutoff) {
			stale = append(stale, info.ID)
		}
	}
	closed := 0
	for _, id := range stale {
		if w.Close(ctx, id) == nil {
			closed++
		}
	}
	return closed
}

// recorder appends document changes to the design log.
type recorder struct {
	ctx       context.Context
	ws        *Workspace
	flowID    string
	sessionID string
}

func (r *recorder) DocumentChanged(change designer.Change) {
	payload, err := json.Marshal(store.ChangePayload{NodeIDs: change.NodeIDs, EdgeIDs: change.EdgeIDs, Removed: change.Removed})
	if err != nil {
		return
	}
	e := &store.Event{FlowID: r.flowID, SessionID: r.sessionID, Type: change.Type, Payload: payload}
	if len(change.NodeIDs) > 0 {
		e.NodeID = change.NodeIDs[0]
	}
	r.ws.record(r.ctx, e)
}

func (r *recorder) SelectionChanged([]string) {}

func (r *recorder) ValidationRejected(err *schema.FlowError) {
	r.ws.logger.DebugContext(r.ctx, "edit rejected", slog.String("code", err.Code), slog.String("error", err.Message))
}
