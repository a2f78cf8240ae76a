package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/piracy"
)

const maxBodyBytes = 1 << 20

// listResponse wraps a page of results.
type listResponse[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func newListResponse[T any](items []T, total int, page piracy.Page) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Data: items, Total: total, Page: page.Number, Limit: page.Limit}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps domain sentinels to status codes. Unexpected errors
// are logged and hidden behind a generic message.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, piracy.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, piracy.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, piracy.ErrConflict),
		errors.Is(err, piracy.ErrNotRetriable),
		errors.Is(err, piracy.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func parsePage(r *http.Request) (piracy.Page, error) {
	q := r.URL.Query()
	var page piracy.Page
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return piracy.Page{}, errors.New("invalid page")
		}
		page.Number = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return piracy.Page{}, errors.New("invalid limit")
		}
		page.Limit = n
	}
	return page.Normalize(), nil
}
