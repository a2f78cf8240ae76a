// Package server builds the application graph and owns its lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/api"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/config"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/detections"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/dispatcher"
	headlessfetcher "github.com/CarlaKobielski/projeto-antipirataria/internal/fetcher/headless"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/jobs"
	kafkapublisher "github.com/CarlaKobielski/projeto-antipirataria/internal/publisher/kafka"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/piracy"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/scheduler"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/takedown"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/telemetry"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Store is the full repository surface; both the memory and Postgres
// stores implement it.
type Store interface {
	piracy.WorkStore
	piracy.TaskStore
	piracy.CrawlResultStore
	piracy.DetectionStore
	piracy.CaseStore
	piracy.TakedownStore
	SaveTenant(ctx context.Context, t piracy.Tenant) error
	SaveWork(ctx context.Context, w piracy.Work) error
}

// App contains the application's dependencies.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	store     Store
	queue     piracy.Queue
	blobs     piracy.BlobStore
	publisher piracy.Publisher

	jobs       *jobs.Service
	detections *detections.Service
	takedowns  *takedown.Service
	scheduler  *scheduler.Scheduler
	dispatch   *dispatcher.Dispatcher
	apiServer  *api.Server

	pool            *pgxpool.Pool
	gcs             *storage.Client
	pubsubClient    *pubsub.Client
	pubsubPublisher *pubsub.Publisher
	kafka           *kafkapublisher.Publisher
	capturer        *headlessfetcher.Capturer
	telemetry       telemetry.Providers

	closeOnce sync.Once
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Store returns the repository used by every component.
func (a *App) Store() Store { return a.store }

// ScheduleOnce runs a single scheduler pass and reports how many tasks were
// enqueued.
func (a *App) ScheduleOnce(ctx context.Context) (int, error) {
	return a.scheduler.RunOnce(ctx)
}

// Handler returns the HTTP API handler.
func (a *App) Handler() http.Handler { return a.apiServer.Handler() }

// Run starts the stage consumers, the scheduler when enabled, and the HTTP
// server, then blocks until ctx is canceled or a termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	a.logger.Info("application started")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.dispatch.Run(ctx)
		a.logger.Info("dispatcher stopped")
	}()
	if a.cfg.Scheduler.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.scheduler.Run(ctx)
		}()
	} else {
		a.logger.Info("scheduler disabled")
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	wg.Wait()
	return a.Close(shutdownCtx)
}

// Close releases infrastructure. It is safe to call more than once.
func (a *App) Close(ctx context.Context) error {
	a.closeOnce.Do(func() {
		a.closeInfrastructure()
		a.closeObservability(ctx)
		a.logger.Info("shutdown complete")
	})
	return nil
}

func (a *App) closeInfrastructure() {
	if closer, ok := a.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			a.logger.Warn("queue close failed", zap.Error(err))
		}
	}
	if a.capturer != nil {
		a.capturer.Close()
	}
	if a.pubsubPublisher != nil {
		a.pubsubPublisher.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.kafka != nil {
		if err := a.kafka.Close(); err != nil {
			a.logger.Warn("kafka writer close failed", zap.Error(err))
		}
	}
	if a.gcs != nil {
		if err := a.gcs.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

func (a *App) closeObservability(ctx context.Context) {
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Warn("telemetry shutdown failed", zap.Error(err))
	}
	// Sync on stderr-backed loggers returns EINVAL on some platforms.
	_ = a.logger.Sync()
}
