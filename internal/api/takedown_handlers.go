package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/piracy"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/takedown"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/templates"
)

type takedownStatusRequest struct {
	Status   piracy.TakedownStatus `json:"status"`
	Response map[string]any        `json:"response,omitempty"`
}

func (s *Server) createTakedown(w http.ResponseWriter, r *http.Request) {
	var in takedown.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := s.takedowns.Create(r.Context(), tenantFromContext(r.Context()), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (s *Server) listTakedowns(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	status := piracy.TakedownStatus(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status"))))
	reqs, total, err := s.takedowns.List(r.Context(), tenantFromContext(r.Context()), status, page)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(reqs, total, page))
}

func (s *Server) getTakedown(w http.ResponseWriter, r *http.Request) {
	req, err := s.takedowns.Get(r.Context(), chi.URLParam(r, "id"), tenantFromContext(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) retryTakedown(w http.ResponseWriter, r *http.Request) {
	req, err := s.takedowns.Retry(r.Context(), chi.URLParam(r, "id"), tenantFromContext(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, req)
}

func (s *Server) updateTakedownStatus(w http.ResponseWriter, r *http.Request) {
	var in takedownStatusRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := s.takedowns.UpdateStatus(r.Context(), chi.URLParam(r, "id"), tenantFromContext(r.Context()), in.Status, in.Response)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) listTemplates(w http.ResponseWriter, r *http.Request) {
	platform := piracy.TakedownPlatform(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("platform"))))
	if platform != "" && !platform.Valid() {
		writeError(w, http.StatusBadRequest, "invalid platform")
		return
	}
	tmpls := s.takedowns.Templates(platform)
	if tmpls == nil {
		tmpls = []templates.Template{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": tmpls})
}
