package api

import (
	"net/http"

	"github.com/rendis/jobflow/internal/designer"
	"github.com/rendis/jobflow/internal/workspace"
	"github.com/rendis/jobflow/pkg/schema"
)

type sessionView struct {
	workspace.SessionInfo
	Document  *schema.Document       `json:"document"`
	Selection designer.SelectionView `json:"selection"`
}

func (s *Server) sessionView(sess *workspace.Session) (*sessionView, error) {
	v := &sessionView{}
	err := sess.Do(func(ed *designer.Editor) error {
		v.Document = ed.Serialize()
		v.Selection = ed.SelectionProjection()
		return nil
	})
	if err != nil {
		return nil, err
	}
	v.SessionInfo = sess.Info()
	return v, nil
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.ws.Open(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFlowError(w, r, err)
		return
	}
	v, err := s.sessionView(sess)
	if err != nil {
		s.writeFlowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ws.Sessions())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.ws.Session(r.PathValue("id"))
	if err != nil {
		s.writeFlowError(w, r, err)
		return
	}
	v, err := s.sessionView(sess)
	if err != nil {
		s.writeFlowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	var req workspace.EditRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.ws.Apply(r.Context(), r.PathValue("id"), req)
	if err != nil {
		s.writeFlowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	v, err := s.ws.Save(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFlowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"version": v})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.ws.Close(r.Context(), r.PathValue("id")); err != nil {
		s.writeFlowError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
