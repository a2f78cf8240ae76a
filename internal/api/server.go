package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/detections"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/jobs"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/metrics"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/piracy"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/takedown"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/templates"
)

const (
	defaultRequestTimeout = 30 * time.Second
	readyTimeout          = 3 * time.Second
)

// JobService is the monitoring job API consumed by the handlers.
type JobService interface {
	Create(ctx context.Context, tenantID string, in jobs.CreateInput) (piracy.MonitoringTask, error)
	Get(ctx context.Context, id, tenantID string) (piracy.MonitoringTask, error)
	List(ctx context.Context, tenantID string, page piracy.Page) ([]piracy.MonitoringTask, int, error)
	Update(ctx context.Context, id, tenantID string, in jobs.UpdateInput) (piracy.MonitoringTask, error)
	Delete(ctx context.Context, id, tenantID string) error
	Trigger(ctx context.Context, id, tenantID string, queries []string) (int, error)
	Stats(ctx context.Context, tenantID string) (piracy.TaskStats, error)
}

// DetectionService reviews detections.
type DetectionService interface {
	UpdateStatus(ctx context.Context, id, tenantID string, status piracy.DetectionStatus) (piracy.Detection, error)
}

// TakedownService manages takedown requests.
type TakedownService interface {
	Create(ctx context.Context, tenantID string, in takedown.CreateInput) (piracy.TakedownRequest, error)
	Get(ctx context.Context, id, tenantID string) (piracy.TakedownRequest, error)
	List(ctx context.Context, tenantID string, status piracy.TakedownStatus, page piracy.Page) ([]piracy.TakedownRequest, int, error)
	Retry(ctx context.Context, id, tenantID string) (piracy.TakedownRequest, error)
	UpdateStatus(ctx context.Context, id, tenantID string, status piracy.TakedownStatus, response map[string]any) (piracy.TakedownRequest, error)
	Templates(platform piracy.TakedownPlatform) []templates.Template
}

var (
	_ JobService       = (*jobs.Service)(nil)
	_ DetectionService = (*detections.Service)(nil)
	_ TakedownService  = (*takedown.Service)(nil)
)

// Options configures a Server.
type Options struct {
	// APIKey guards /v1 when non-empty.
	APIKey         string
	RequestTimeout time.Duration
	// Ready reports downstream health for /readyz. Nil means always ready.
	Ready func(ctx context.Context) error
}

// Server wires HTTP handlers to the domain services.
type Server struct {
	router     chi.Router
	jobs       JobService
	detections DetectionService
	takedowns  TakedownService
	ready      func(ctx context.Context) error
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	jobSvc JobService,
	detectionSvc DetectionService,
	takedownSvc TakedownService,
	opts Options,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	s := &Server{
		jobs:       jobSvc,
		detections: detectionSvc,
		takedowns:  takedownSvc,
		ready:      opts.Ready,
		logger:     logger.Named("api"),
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(timeoutMiddleware(opts.RequestTimeout))
		if opts.APIKey != "" {
			r.Use(apiKeyMiddleware(opts.APIKey))
		}
		r.Use(tenantMiddleware)

		r.Route("/monitoring-jobs", func(r chi.Router) {
			r.Post("/", s.createJob)
			r.Get("/", s.listJobs)
			r.Get("/stats", s.jobStats)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getJob)
				r.Patch("/", s.updateJob)
				r.Delete("/", s.deleteJob)
				r.Post("/trigger", s.triggerJob)
			})
		})

		r.Patch("/detections/{id}/status", s.updateDetectionStatus)

		r.Route("/takedowns", func(r chi.Router) {
			r.Post("/", s.createTakedown)
			r.Get("/", s.listTakedowns)
			r.Get("/templates", s.listTemplates)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getTakedown)
				r.Post("/retry", s.retryTakedown)
				r.Patch("/status", s.updateTakedownStatus)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
