// Package api serves the designer over HTTP: the node catalog, stored
// flows, editing sessions and a server-sent event stream of design events.
package api

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/rendis/jobflow/internal/workspace"
)

// Deps holds the dependencies for the API server.
type Deps struct {
	Workspace *workspace.Workspace
	Logger    *slog.Logger
}

// Server serves the JSON API and the SSE streams.
type Server struct {
	ws     *workspace.Workspace
	logger *slog.Logger
}

// NewServer creates a Server.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return &Server{ws: deps.Workspace, logger: deps.Logger}
}

// Handler returns the HTTP handler for every route.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Catalog.
	mux.HandleFunc("GET /api/catalog", s.handleCatalog)
	mux.HandleFunc("POST /api/catalog/types", s.handleRegisterType)
	mux.HandleFunc("POST /api/catalog/types/{id}/validate", s.handleValidateNodeData)

	// Flows.
	mux.HandleFunc("GET /api/flows", s.handleListFlows)
	mux.HandleFunc("POST /api/flows", s.handleCreateFlow)
	mux.HandleFunc("GET /api/flows/{id}", s.handleGetFlow)
	mux.HandleFunc("DELETE /api/flows/{id}", s.handleDeleteFlow)
	mux.HandleFunc("PUT /api/flows/{id}/content", s.handleReplaceContent)
	mux.HandleFunc("POST /api/flows/{id}/compile", s.handleCompileFlow)
	mux.HandleFunc("GET /api/flows/{id}/diagram", s.handleDiagram)
	mux.HandleFunc("GET /api/flows/{id}/events", s.handleEvents)
	mux.HandleFunc("GET /api/flows/{id}/activity", s.handleActivity)

	// Sessions.
	mux.HandleFunc("POST /api/flows/{id}/sessions", s.handleOpenSession)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("POST /api/sessions/{id}/edit", s.handleEdit)
	mux.HandleFunc("POST /api/sessions/{id}/save", s.handleSave)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleCloseSession)

	// SSE streams.
	mux.HandleFunc("GET /sse/events", s.handleSSEGlobal)
	mux.HandleFunc("GET /sse/flows/{id}", s.handleSSEFlow)

	return s.logRequests(mux)
}

// logRequests logs every request at debug level.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.DebugContext(r.Context(), "http request", slog.String("method", r.Method), slog.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}
