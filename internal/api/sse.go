package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rendis/jobflow/internal/streaming"
)

// handleSSEGlobal streams all events to the client via Server-Sent Events.
func (s *Server) handleSSEGlobal(w http.ResponseWriter, r *http.Request) {
	s.serveSSE(w, r, streaming.EventFilter{EventTypes: eventTypes(r)})
}

// handleSSEFlow streams events for one flow.
func (s *Server) handleSSEFlow(w http.ResponseWriter, r *http.Request) {
	s.serveSSE(w, r, streaming.EventFilter{FlowID: r.PathValue("id"), EventTypes: eventTypes(r)})
}

// eventTypes reads the comma-separated ?types= filter.
func eventTypes(r *http.Request) []string {
	raw := r.URL.Query().Get("types")
	if raw == "" {
		return nil
	}
	var out []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// sseHeartbeat keeps idle connections open through proxies.
const sseHeartbeat = 15 * time.Second

// serveSSE writes matching hub events as "id/event/data" frames until the
// client goes away or the hub closes the subscription.
func (s *Server) serveSSE(w http.ResponseWriter, r *http.Request, filter streaming.EventFilter) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	ctx := r.Context()
	ch, cancel, err := s.ws.Hub().Subscribe(ctx, filter)
	if err != nil {
		s.logger.ErrorContext(ctx, "sse subscribe failed", "error", err, "flow_id", filter.FlowID)
		writeError(w, http.StatusInternalServerError, "subscribe failed")
		return
	}
	defer cancel()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, ": connected\n\n")
	flusher.Flush()

	tick := time.NewTicker(sseHeartbeat)
	defer tick.Stop()

	var seq int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			io.WriteString(w, ": ping\n\n")
		case event, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				s.logger.WarnContext(ctx, "sse event not encodable", "error", err, "event_type", event.EventType)
				continue
			}
			seq++
			fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", seq, event.EventType, data)
		}
		flusher.Flush()
	}
}
