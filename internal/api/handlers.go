package api

import (
	"net/http"
	"strconv"

	"github.com/rendis/jobflow/internal/catalog"
	"github.com/rendis/jobflow/internal/diagram"
	"github.com/rendis/jobflow/internal/store"
	"github.com/rendis/jobflow/pkg/schema"
)

// --- Catalog ---

type catalogResponse struct {
	Categories   []catalog.Category     `json:"categories"`
	CommonFields []schema.FieldSpec     `json:"commonFields"`
	EdgeFields   []schema.FieldSpec     `json:"edgeFields"`
	Palette      []catalog.PaletteGroup `json:"palette"`
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	cat := s.ws.Catalog()
	writeJSON(w, http.StatusOK, catalogResponse{
		Categories:   cat.Categories,
		CommonFields: cat.CommonFields,
		EdgeFields:   cat.EdgeFields,
		Palette:      s.ws.Palette(),
	})
}

func (s *Server) handleRegisterType(w http.ResponseWriter, r *http.Request) {
	var desc schema.NodeTypeDescriptor
	if !decodeBody(w, r, &desc) {
		return
	}
	if desc.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	if err := s.ws.RegisterType(r.Context(), desc); err != nil {
		s.writeFlowError(w, r, err)
		return
	}
	nt, err := s.ws.Registry().Get(desc.ID)
	if err != nil {
		s.writeFlowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, nt.Descriptor())
}

func (s *Server) handleValidateNodeData(w http.ResponseWriter, r *http.Request) {
	var form map[string]any
	if !decodeBody(w, r, &form) {
		return
	}
	if err := s.ws.ValidateNodeData(r.Context(), r.PathValue("id"), form); err != nil {
		s.writeFlowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

// --- Flows ---

func (s *Server) handleListFlows(w http.ResponseWriter, r *http.Request) {
	flows, err := s.ws.ListFlows(r.Context(), store.FlowFilter{
		Name:   r.URL.Query().Get("name"),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	})
	if err != nil {
		s.writeFlowError(w, r, err)
		return
	}
	if flows == nil {
		flows = []*store.Flow{}
	}
	writeJSON(w, http.StatusOK, flows)
}

func (s *Server) handleCreateFlow(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name   string `json:"name"`
		Remark string `json:"remark"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	f, err := s.ws.CreateFlow(r.Context(), body.Name, body.Remark)
	if err != nil {
		s.writeFlowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleGetFlow(w http.ResponseWriter, r *http.Request) {
	f, err := s.ws.GetFlow(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFlowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleDeleteFlow(w http.ResponseWriter, r *http.Request) {
	if err := s.ws.DeleteFlow(r.Context(), r.PathValue("id")); err != nil {
		s.writeFlowError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReplaceContent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content *schema.Document `json:"content"`
		Version int              `json:"version"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Content == nil || body.Version < 1 {
		writeError(w, http.StatusBadRequest, "content and version are required")
		return
	}
	v, err := s.ws.ReplaceContent(r.Context(), r.PathValue("id"), body.Content, body.Version)
	if err != nil {
		s.writeFlowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"version": v})
}

func (s *Server) handleCompileFlow(w http.ResponseWriter, r *http.Request) {
	compiled, err := s.ws.CompileFlow(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFlowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, compiled)
}

func (s *Server) handleDiagram(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	format, err := diagram.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.writeFlowError(w, r, err)
		return
	}
	f, err := s.ws.GetFlow(ctx, r.PathValue("id"))
	if err != nil {
		s.writeFlowError(w, r, err)
		return
	}
	out, err := s.ws.Diagram(ctx, f.Content, f.Name, format)
	if err != nil {
		s.writeFlowError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	since, _ := strconv.ParseInt(r.URL.Query().Get("since"), 10, 64)
	events, err := s.ws.Events(r.Context(), r.PathValue("id"), since)
	if err != nil {
		s.writeFlowError(w, r, err)
		return
	}
	if events == nil {
		events = []*store.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	activity, err := s.ws.Activity(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFlowError(w, r, err)
		return
	}
	if activity == nil {
		activity = []store.NodeActivity{}
	}
	writeJSON(w, http.StatusOK, activity)
}
