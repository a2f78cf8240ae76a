package server

import (
	"context"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/api"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/classifier"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/clock/system"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/config"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/detections"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/dispatcher"
	collyfetcher "github.com/CarlaKobielski/projeto-antipirataria/internal/fetcher/colly"
	headlessfetcher "github.com/CarlaKobielski/projeto-antipirataria/internal/fetcher/headless"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/hash/sha256"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/id/uuid"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/jobs"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/logging"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/mail"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/metrics"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/piracy"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/policy/ratelimit"
	kafkapublisher "github.com/CarlaKobielski/projeto-antipirataria/internal/publisher/kafka"
	memorypublisher "github.com/CarlaKobielski/projeto-antipirataria/internal/publisher/memory"
	gcppublisher "github.com/CarlaKobielski/projeto-antipirataria/internal/publisher/pubsub"
	memqueue "github.com/CarlaKobielski/projeto-antipirataria/internal/queue/memory"
	pgqueue "github.com/CarlaKobielski/projeto-antipirataria/internal/queue/postgres"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/scheduler"
	gcsstorage "github.com/CarlaKobielski/projeto-antipirataria/internal/storage/gcs"
	localstorage "github.com/CarlaKobielski/projeto-antipirataria/internal/storage/local"
	memorystorage "github.com/CarlaKobielski/projeto-antipirataria/internal/storage/memory"
	pgstore "github.com/CarlaKobielski/projeto-antipirataria/internal/storage/postgres"
	s3storage "github.com/CarlaKobielski/projeto-antipirataria/internal/storage/s3"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/takedown"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/telemetry"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/templates"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/worker"
)

// Option customizes Build.
type Option func(*buildOptions)

type buildOptions struct {
	registerer prometheus.Registerer
}

// WithRegisterer sets the registry the OTel metrics bridge registers on.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *buildOptions) { o.registerer = reg }
}

// Build creates the application's dependencies. On error every resource
// opened so far is released.
func Build(ctx context.Context, cfg config.Config, opts ...Option) (app *App, err error) {
	bo := buildOptions{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&bo)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	metrics.Init()

	app = &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = app.Close(context.Background())
			app = nil
		}
	}()

	logger.Info("building application",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("queue_backend", cfg.Queue.Backend),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.String("publisher_backend", cfg.Publisher.Backend),
		zap.Bool("database", cfg.Database.DSN != ""),
	)

	app.telemetry, err = telemetry.Init(ctx, cfg.Telemetry, bo.registerer)
	if err != nil {
		return nil, fmt.Errorf("telemetry init failed: %w", err)
	}

	clock := system.New()
	ids := uuid.NewUUIDGenerator()

	if err = setupDatabase(ctx, app); err != nil {
		return nil, err
	}
	app.queue = setupQueue(app, clock, ids)
	if app.blobs, err = setupStorage(ctx, app); err != nil {
		return nil, err
	}
	if app.publisher, err = setupPublisher(ctx, app); err != nil {
		return nil, err
	}

	registry := templates.New()
	app.jobs = jobs.New(app.store, app.store, app.queue, clock, ids, logger)
	app.detections = detections.New(app.store, app.store, app.store, clock, ids, logger)
	app.takedowns = takedown.New(takedown.Deps{
		Takedowns:  app.store,
		Cases:      app.store,
		Detections: app.store,
		Works:      app.store,
		Queue:      app.queue,
		Templates:  registry,
		Clock:      clock,
		IDs:        ids,
	}, logger)
	app.scheduler = scheduler.New(app.store, app.queue, clock, scheduler.Config{
		Interval:  cfg.Scheduler.Interval,
		BatchSize: cfg.Scheduler.BatchSize,
	}, logger)

	if app.dispatch, err = setupDispatcher(app, registry, clock, ids); err != nil {
		return nil, err
	}

	app.apiServer = api.NewServer(app.jobs, app.detections, app.takedowns, api.Options{
		APIKey:         cfg.Server.APIKey,
		RequestTimeout: cfg.Server.RequestTimeout,
		Ready:          app.ready,
	}, logger)
	return app, nil
}

func (a *App) ready(ctx context.Context) error {
	if a.pool == nil {
		return nil
	}
	if err := a.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

func setupDatabase(ctx context.Context, app *App) error {
	if app.cfg.Database.DSN == "" {
		app.logger.Warn("no database DSN configured, using in-memory stores")
		app.store = memorystorage.NewStore()
		return nil
	}
	if app.cfg.Database.AutoMigrate {
		if err := pgstore.Migrate(app.cfg.Database.DSN, app.logger); err != nil {
			return err
		}
	}
	pool, err := pgstore.Connect(ctx, app.cfg.Database)
	if err != nil {
		return err
	}
	app.pool = pool
	app.store = pgstore.New(pool)
	app.logger.Info("postgres store initialized", zap.Int32("max_conns", pool.Config().MaxConns))
	return nil
}

func setupQueue(app *App, clock piracy.Clock, ids piracy.IDGenerator) piracy.Queue {
	if app.cfg.Queue.Backend == "postgres" {
		app.logger.Info("using postgres queue",
			zap.Duration("poll_interval", app.cfg.Queue.PollInterval),
			zap.Duration("visibility", app.cfg.Queue.Visibility),
		)
		return pgqueue.New(app.pool, pgqueue.Config{
			PollInterval: app.cfg.Queue.PollInterval,
			Visibility:   app.cfg.Queue.Visibility,
		}, clock, ids)
	}
	app.logger.Info("using in-memory queue")
	return memqueue.New(memqueue.WithClock(clock), memqueue.WithIDGenerator(ids))
}

func setupStorage(ctx context.Context, app *App) (piracy.BlobStore, error) {
	cfg := app.cfg.Storage
	switch cfg.Backend {
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		app.gcs = client
		blobs, err := gcsstorage.New(client, cfg.Bucket)
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		app.logger.Info("using GCS storage backend", zap.String("bucket", cfg.Bucket))
		return blobs, nil
	case "s3":
		client, err := s3storage.Connect(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		blobs, err := s3storage.New(client, cfg.Bucket)
		if err != nil {
			return nil, fmt.Errorf("s3 blob store init failed: %w", err)
		}
		app.logger.Info("using S3 storage backend",
			zap.String("bucket", cfg.Bucket),
			zap.String("endpoint", cfg.S3.Endpoint),
		)
		return blobs, nil
	case "local":
		blobs, err := localstorage.New(cfg.Local.BaseDir)
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		app.logger.Info("using local storage backend", zap.String("path", cfg.Local.BaseDir))
		return blobs, nil
	default:
		app.logger.Info("using in-memory storage backend")
		return memorystorage.NewBlobStore(), nil
	}
}

// setupPublisher returns nil for the "none" backend; detection events are
// then skipped.
func setupPublisher(ctx context.Context, app *App) (piracy.Publisher, error) {
	cfg := app.cfg.Publisher
	switch cfg.Backend {
	case "pubsub":
		client, err := pubsub.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("pubsub client init failed: %w", err)
		}
		app.pubsubClient = client
		app.pubsubPublisher = client.Publisher(cfg.Topic)
		app.logger.Info("pubsub publisher initialized",
			zap.String("project", cfg.ProjectID),
			zap.String("topic", cfg.Topic),
		)
		return gcppublisher.New(app.pubsubPublisher), nil
	case "kafka":
		app.kafka = kafkapublisher.New(kafkapublisher.NewWriter(cfg.Brokers, cfg.Topic), cfg.Topic)
		app.logger.Info("kafka publisher initialized",
			zap.Strings("brokers", cfg.Brokers),
			zap.String("topic", cfg.Topic),
		)
		return app.kafka, nil
	case "none":
		app.logger.Info("detection events disabled")
		return nil, nil
	default:
		app.logger.Info("using in-memory publisher")
		return memorypublisher.New(), nil
	}
}

func setupDispatcher(app *App, registry *templates.Registry, clock piracy.Clock, ids piracy.IDGenerator) (*dispatcher.Dispatcher, error) {
	cfg := app.cfg
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Fetcher.UserAgent,
		Timeout:       cfg.Fetcher.Timeout,
		MaxTextLength: cfg.Fetcher.MaxTextLength,
	})
	robots := collyfetcher.NewRobotsChecker(collyfetcher.RobotsConfig{
		UserAgent: cfg.Fetcher.UserAgent,
		Timeout:   cfg.Fetcher.RobotsTimeout,
		CacheTTL:  cfg.Fetcher.RobotsCacheTTL,
		Mode:      cfg.Fetcher.RobotsMode,
	}, app.logger)
	limiter := ratelimit.New(ratelimit.Config{
		PerDomainQPS:   cfg.Fetcher.PerDomainQPS,
		PerDomainBurst: cfg.Fetcher.PerDomainBurst,
	})
	app.logger.Info("fetcher configured",
		zap.String("user_agent", cfg.Fetcher.UserAgent),
		zap.String("robots_mode", cfg.Fetcher.RobotsMode),
		zap.Float64("per_domain_qps", cfg.Fetcher.PerDomainQPS),
	)

	crawlDeps := worker.CrawlDeps{
		Fetcher: fetcher,
		Robots:  robots,
		Limiter: limiter,
		Blobs:   app.blobs,
		Results: app.store,
		Queue:   app.queue,
		Hasher:  sha256.New(),
		Clock:   clock,
		IDs:     ids,
	}
	if cfg.Fetcher.Screenshots {
		capturer, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel: cfg.Workers.Crawl,
			UserAgent:   cfg.Fetcher.UserAgent,
		})
		if err != nil {
			app.logger.Warn("screenshot capturer init failed, continuing without screenshots", zap.Error(err))
		} else {
			app.capturer = capturer
			crawlDeps.Screenshot = capturer
			app.logger.Info("screenshots enabled")
		}
	}

	extractDeps := worker.ExtractDeps{
		Results:       app.store,
		Tasks:         app.store,
		Works:         app.store,
		Detections:    app.store,
		Blobs:         app.blobs,
		Classifier:    classifier.New(app.store),
		Clock:         clock,
		IDs:           ids,
		MaxTextLength: cfg.Fetcher.MaxTextLength,
	}
	if app.publisher != nil {
		extractDeps.Publisher = app.publisher
	}

	client, err := mail.NewClient(cfg.SMTP)
	if err != nil {
		return nil, err
	}
	takedownHandler := worker.NewTakedown(worker.TakedownDeps{
		Takedowns: app.store,
		Templates: registry,
		Mailer:    mail.New(client, cfg.SMTP.From),
		Clock:     clock,
		Config:    cfg.Takedown,
	}, app.logger)

	d := dispatcher.New(app.queue, app.logger)
	d.Register(piracy.TopicCrawl, worker.NewCrawl(crawlDeps, app.logger), cfg.Workers.Crawl)
	d.Register(piracy.TopicExtract, worker.NewExtract(extractDeps, app.logger), cfg.Workers.Extract)
	d.Register(piracy.TopicTakedown, takedownHandler, cfg.Workers.Takedown)
	return d, nil
}
