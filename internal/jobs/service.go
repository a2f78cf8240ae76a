// Package jobs manages monitoring tasks on behalf of a tenant.
package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/piracy"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/scheduler"
)

// CreateInput registers a work for monitoring.
type CreateInput struct {
	WorkID       string   `json:"workId"`
	Queries      []string `json:"queries"`
	ScheduleSpec string   `json:"scheduleSpec,omitempty"`
}

// UpdateInput changes the mutable task fields. Nil fields are kept.
type UpdateInput struct {
	Queries      *[]string         `json:"queries,omitempty"`
	ScheduleSpec *string           `json:"scheduleSpec,omitempty"`
	Status       *piracy.JobStatus `json:"status,omitempty"`
}

// Service implements the monitoring job operations.
type Service struct {
	tasks  piracy.TaskStore
	works  piracy.WorkStore
	queue  piracy.Queue
	clock  piracy.Clock
	ids    piracy.IDGenerator
	logger *zap.Logger
}

// New constructs a Service.
func New(
	tasks piracy.TaskStore,
	works piracy.WorkStore,
	queue piracy.Queue,
	clock piracy.Clock,
	ids piracy.IDGenerator,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		tasks:  tasks,
		works:  works,
		queue:  queue,
		clock:  clock,
		ids:    ids,
		logger: logger.Named("jobs"),
	}
}

// Create stores an ACTIVE task due now and triggers its first run.
func (s *Service) Create(ctx context.Context, tenantID string, in CreateInput) (piracy.MonitoringTask, error) {
	queries := cleanQueries(in.Queries)
	if in.WorkID == "" || len(queries) == 0 {
		return piracy.MonitoringTask{}, fmt.Errorf("%w: workId and at least one query are required", piracy.ErrValidation)
	}
	work, err := s.works.GetWork(ctx, in.WorkID)
	if err != nil {
		return piracy.MonitoringTask{}, fmt.Errorf("load work: %w", err)
	}
	if work.TenantID != tenantID {
		return piracy.MonitoringTask{}, fmt.Errorf("work %s: %w", in.WorkID, piracy.ErrNotFound)
	}

	id, err := s.ids.NewID()
	if err != nil {
		return piracy.MonitoringTask{}, fmt.Errorf("generate id: %w", err)
	}
	spec := in.ScheduleSpec
	if spec == "" {
		spec = scheduler.DefaultScheduleSpec
	}
	now := s.clock.Now()
	task := piracy.MonitoringTask{
		ID:           id,
		WorkID:       work.ID,
		TenantID:     tenantID,
		Queries:      queries,
		ScheduleSpec: spec,
		Status:       piracy.JobStatusActive,
		NextRunAt:    &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.tasks.CreateTask(ctx, task); err != nil {
		return piracy.MonitoringTask{}, fmt.Errorf("create task: %w", err)
	}
	// The first run happens now, so the scheduler picks the task up one
	// period later.
	next := scheduler.NextRun(spec, now)
	if _, err := s.trigger(ctx, task, nil, &next); err != nil {
		return piracy.MonitoringTask{}, err
	}
	s.logger.Info("monitoring job created", zap.String("job_id", id), zap.String("work", work.Title))
	return s.tasks.GetTask(ctx, id)
}

// Get returns a tenant's task.
func (s *Service) Get(ctx context.Context, id, tenantID string) (piracy.MonitoringTask, error) {
	task, err := s.tasks.GetTask(ctx, id)
	if err != nil {
		return piracy.MonitoringTask{}, fmt.Errorf("load task: %w", err)
	}
	if task.TenantID != tenantID {
		return piracy.MonitoringTask{}, fmt.Errorf("task %s: %w", id, piracy.ErrNotFound)
	}
	return task, nil
}

// List returns one page of a tenant's tasks and the total count.
func (s *Service) List(ctx context.Context, tenantID string, page piracy.Page) ([]piracy.MonitoringTask, int, error) {
	tasks, total, err := s.tasks.ListTasks(ctx, tenantID, page.Normalize())
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, total, nil
}

// Update applies the non-nil fields of in.
func (s *Service) Update(ctx context.Context, id, tenantID string, in UpdateInput) (piracy.MonitoringTask, error) {
	task, err := s.Get(ctx, id, tenantID)
	if err != nil {
		return piracy.MonitoringTask{}, err
	}
	if in.Queries != nil {
		queries := cleanQueries(*in.Queries)
		if len(queries) == 0 {
			return piracy.MonitoringTask{}, fmt.Errorf("%w: at least one query is required", piracy.ErrValidation)
		}
		task.Queries = queries
	}
	if in.ScheduleSpec != nil {
		task.ScheduleSpec = strings.TrimSpace(*in.ScheduleSpec)
		if task.ScheduleSpec == "" {
			task.ScheduleSpec = scheduler.DefaultScheduleSpec
		}
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return piracy.MonitoringTask{}, fmt.Errorf("%w: unknown status %q", piracy.ErrValidation, *in.Status)
		}
		task.Status = *in.Status
	}
	task.UpdatedAt = s.clock.Now()
	if err := s.tasks.UpdateTask(ctx, task); err != nil {
		return piracy.MonitoringTask{}, fmt.Errorf("update task: %w", err)
	}
	return task, nil
}

// Delete removes a task. Messages already queued still run.
func (s *Service) Delete(ctx context.Context, id, tenantID string) error {
	if _, err := s.Get(ctx, id, tenantID); err != nil {
		return err
	}
	if err := s.tasks.DeleteTask(ctx, id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// Trigger queues a crawl of queries, or of all task queries when queries is
// empty, and returns how many messages were queued. nextRunAt is kept.
func (s *Service) Trigger(ctx context.Context, id, tenantID string, queries []string) (int, error) {
	task, err := s.Get(ctx, id, tenantID)
	if err != nil {
		return 0, err
	}
	return s.trigger(ctx, task, queries, nil)
}

// trigger queues the crawl and records the run. A nil nextRunAt keeps the
// stored schedule.
func (s *Service) trigger(ctx context.Context, task piracy.MonitoringTask, queries []string, nextRunAt *time.Time) (int, error) {
	id := task.ID
	run := cleanQueries(queries)
	if len(run) == 0 {
		run = task.Queries
	}
	n, err := scheduler.Enqueue(ctx, s.queue, task, run)
	if err != nil {
		return n, fmt.Errorf("trigger task %s: %w", id, err)
	}
	if err := s.tasks.RecordRun(ctx, id, s.clock.Now(), nextRunAt); err != nil {
		return n, fmt.Errorf("record run: %w", err)
	}
	s.logger.Info("monitoring job triggered", zap.String("job_id", id), zap.Int("queries", n))
	return n, nil
}

// Stats aggregates a tenant's task counters.
func (s *Service) Stats(ctx context.Context, tenantID string) (piracy.TaskStats, error) {
	st, err := s.tasks.TaskStats(ctx, tenantID)
	if err != nil {
		return piracy.TaskStats{}, fmt.Errorf("task stats: %w", err)
	}
	return st, nil
}

func cleanQueries(in []string) []string {
	out := make([]string, 0, len(in))
	for _, q := range in {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	return out
}
