package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/jobs"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/piracy"
)

type triggerRequest struct {
	Queries []string `json:"queries,omitempty"`
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	var in jobs.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	task, err := s.jobs.Create(r.Context(), tenantFromContext(r.Context()), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tasks, total, err := s.jobs.List(r.Context(), tenantFromContext(r.Context()), page)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(tasks, total, page))
}

func (s *Server) jobStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.jobs.Stats(r.Context(), tenantFromContext(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	task, err := s.jobs.Get(r.Context(), chi.URLParam(r, "id"), tenantFromContext(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) updateJob(w http.ResponseWriter, r *http.Request) {
	var in jobs.UpdateInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	task, err := s.jobs.Update(r.Context(), chi.URLParam(r, "id"), tenantFromContext(r.Context()), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) deleteJob(w http.ResponseWriter, r *http.Request) {
	if err := s.jobs.Delete(r.Context(), chi.URLParam(r, "id"), tenantFromContext(r.Context())); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// triggerJob accepts an empty body to crawl the task's own queries.
func (s *Server) triggerJob(w http.ResponseWriter, r *http.Request) {
	var in triggerRequest
	if err := decodeJSON(w, r, &in); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := chi.URLParam(r, "id")
	queued, err := s.jobs.Trigger(r.Context(), id, tenantFromContext(r.Context()), in.Queries)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"jobId": id, "queued": queued})
}

type detectionStatusRequest struct {
	Status piracy.DetectionStatus `json:"status"`
}

func (s *Server) updateDetectionStatus(w http.ResponseWriter, r *http.Request) {
	var in detectionStatusRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	d, err := s.detections.UpdateStatus(r.Context(), chi.URLParam(r, "id"), tenantFromContext(r.Context()), in.Status)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
