// Package scheduler turns due monitoring tasks into crawl messages.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/metrics"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/piracy"
)

const (
	defaultInterval  = 60 * time.Second
	defaultBatchSize = 100

	// DefaultScheduleSpec is applied to tasks created without a schedule.
	DefaultScheduleSpec = "0 */6 * * *"
	// DefaultPeriod is used for schedule specs outside the recognized set.
	DefaultPeriod = 6 * time.Hour
)

var knownSpecs = map[string]time.Duration{
	"0 */6 * * *":  6 * time.Hour,
	"0 */12 * * *": 12 * time.Hour,
	"0 0 * * *":    24 * time.Hour,
}

// NextRun maps a schedule spec to the next run after from. Only a fixed set
// of interval patterns is recognized; anything else runs every DefaultPeriod.
func NextRun(spec string, from time.Time) time.Time {
	period, ok := knownSpecs[spec]
	if !ok {
		period = DefaultPeriod
	}
	return from.Add(period)
}

// KnownSpec reports whether spec is one of the recognized interval patterns.
func KnownSpec(spec string) bool {
	_, ok := knownSpecs[spec]
	return ok
}

// Config tunes the scan loop.
type Config struct {
	Interval  time.Duration
	BatchSize int
}

// Scheduler periodically scans for due tasks. Run exactly one per deployment.
type Scheduler struct {
	tasks  piracy.TaskStore
	queue  piracy.Queue
	clock  piracy.Clock
	cfg    Config
	logger *zap.Logger
}

// New constructs a Scheduler.
func New(tasks piracy.TaskStore, queue piracy.Queue, clock piracy.Clock, cfg Config, logger *zap.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		tasks:  tasks,
		queue:  queue,
		clock:  clock,
		cfg:    cfg,
		logger: logger.Named("scheduler"),
	}
}

// Run executes one cycle immediately and then one per interval until ctx ends.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started", zap.Duration("interval", s.cfg.Interval), zap.Int("batch_size", s.cfg.BatchSize))
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("scheduler cycle failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce processes one batch of due tasks and returns how many were
// scheduled. Per-task failures are logged and skipped.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	now := s.clock.Now()
	due, err := s.tasks.DueTasks(ctx, now, s.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("load due tasks: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}
	s.logger.Info("scheduling due tasks", zap.Int("count", len(due)))

	scheduled, messages := 0, 0
	for _, task := range due {
		n, err := s.schedule(ctx, task, now)
		messages += n
		if err != nil {
			s.logger.Error("schedule task failed", zap.String("job_id", task.ID), zap.Error(err))
			continue
		}
		scheduled++
	}
	metrics.ObserveScheduled(messages)
	return scheduled, nil
}

func (s *Scheduler) schedule(ctx context.Context, task piracy.MonitoringTask, now time.Time) (int, error) {
	n, err := Enqueue(ctx, s.queue, task, task.Queries)
	if err != nil {
		return n, err
	}
	next := NextRun(task.ScheduleSpec, now)
	if err := s.tasks.RecordRun(ctx, task.ID, now, &next); err != nil {
		return n, fmt.Errorf("record run: %w", err)
	}
	s.logger.Debug("task scheduled",
		zap.String("job_id", task.ID),
		zap.Int("queries", len(task.Queries)),
		zap.Time("next_run_at", next),
	)
	return n, nil
}

// Enqueue emits one CrawlMessage per query with priority equal to its index.
func Enqueue(ctx context.Context, queue piracy.Queue, task piracy.MonitoringTask, queries []string) (int, error) {
	for i, query := range queries {
		msg := piracy.CrawlMessage{
			JobID:    task.ID,
			WorkID:   task.WorkID,
			TenantID: task.TenantID,
			Query:    query,
			Priority: i,
		}
		opts := piracy.CrawlDelivery
		opts.Priority = i
		if _, err := piracy.Publish(ctx, queue, piracy.TopicCrawl, msg, opts); err != nil {
			return i, fmt.Errorf("enqueue query %d of task %s: %w", i, task.ID, err)
		}
	}
	return len(queries), nil
}
