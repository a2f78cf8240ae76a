package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/piracy"
)

const taskColumns = `id, work_id, tenant_id, queries, schedule_spec, status,
	last_run_at, next_run_at, run_count, created_at, updated_at`

func scanTask(row pgx.Row) (piracy.MonitoringTask, error) {
	var (
		t      piracy.MonitoringTask
		status string
	)
	err := row.Scan(&t.ID, &t.WorkID, &t.TenantID, &t.Queries, &t.ScheduleSpec, &status,
		&t.LastRunAt, &t.NextRunAt, &t.RunCount, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return piracy.MonitoringTask{}, err
	}
	t.Status = piracy.JobStatus(status)
	return t, nil
}

// CreateTask implements piracy.TaskStore.
func (s *Store) CreateTask(ctx context.Context, t piracy.MonitoringTask) error {
	const q = `INSERT INTO monitoring_jobs (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := s.db.Exec(ctx, q, t.ID, t.WorkID, t.TenantID, nonNil(t.Queries), t.ScheduleSpec,
		string(t.Status), t.LastRunAt, t.NextRunAt, t.RunCount, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create task %s: %w", t.ID, mapError(err))
	}
	return nil
}

// GetTask implements piracy.TaskStore.
func (s *Store) GetTask(ctx context.Context, id string) (piracy.MonitoringTask, error) {
	const q = `SELECT ` + taskColumns + ` FROM monitoring_jobs WHERE id = $1`
	t, err := scanTask(s.db.QueryRow(ctx, q, id))
	if err != nil {
		return piracy.MonitoringTask{}, fmt.Errorf("get task %s: %w", id, mapError(err))
	}
	return t, nil
}

// UpdateTask writes the mutable task fields.
func (s *Store) UpdateTask(ctx context.Context, t piracy.MonitoringTask) error {
	const q = `UPDATE monitoring_jobs
		SET queries = $2, schedule_spec = $3, status = $4, next_run_at = $5, updated_at = $6
		WHERE id = $1`
	tag, err := s.db.Exec(ctx, q, t.ID, nonNil(t.Queries), t.ScheduleSpec, string(t.Status), t.NextRunAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update task %s: %w", t.ID, mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update task %s: %w", t.ID, piracy.ErrNotFound)
	}
	return nil
}

// DeleteTask implements piracy.TaskStore.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM monitoring_jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete task %s: %w", id, piracy.ErrNotFound)
	}
	return nil
}

// ListTasks returns one page of a tenant's tasks, newest first, and the total.
func (s *Store) ListTasks(ctx context.Context, tenantID string, page piracy.Page) ([]piracy.MonitoringTask, int, error) {
	page = page.Normalize()
	const q = `SELECT ` + taskColumns + ` FROM monitoring_jobs
		WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := s.db.Query(ctx, q, tenantID, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", mapError(err))
	}
	tasks, err := collectTasks(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}

	var total int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM monitoring_jobs WHERE tenant_id = $1`, tenantID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", mapError(err))
	}
	return tasks, total, nil
}

// DueTasks implements piracy.TaskStore.
func (s *Store) DueTasks(ctx context.Context, now time.Time, limit int) ([]piracy.MonitoringTask, error) {
	const q = `SELECT ` + taskColumns + ` FROM monitoring_jobs
		WHERE status = 'ACTIVE' AND next_run_at <= $1
		ORDER BY next_run_at LIMIT $2`
	rows, err := s.db.Query(ctx, q, now, limit)
	if err != nil {
		return nil, fmt.Errorf("due tasks: %w", mapError(err))
	}
	tasks, err := collectTasks(rows)
	if err != nil {
		return nil, fmt.Errorf("due tasks: %w", err)
	}
	return tasks, nil
}

// RecordRun implements piracy.TaskStore. A nil nextRunAt keeps the stored value.
func (s *Store) RecordRun(ctx context.Context, id string, ranAt time.Time, nextRunAt *time.Time) error {
	const q = `UPDATE monitoring_jobs
		SET last_run_at = $2, next_run_at = COALESCE($3, next_run_at),
			run_count = run_count + 1, updated_at = $2
		WHERE id = $1`
	tag, err := s.db.Exec(ctx, q, id, ranAt, nextRunAt)
	if err != nil {
		return fmt.Errorf("record run %s: %w", id, mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("record run %s: %w", id, piracy.ErrNotFound)
	}
	return nil
}

// TaskStats implements piracy.TaskStore.
func (s *Store) TaskStats(ctx context.Context, tenantID string) (piracy.TaskStats, error) {
	const q = `SELECT count(*),
			count(*) FILTER (WHERE status = 'ACTIVE'),
			COALESCE(sum(run_count), 0)
		FROM monitoring_jobs WHERE tenant_id = $1`
	var st piracy.TaskStats
	if err := s.db.QueryRow(ctx, q, tenantID).Scan(&st.TotalJobs, &st.ActiveJobs, &st.TotalRuns); err != nil {
		return piracy.TaskStats{}, fmt.Errorf("task stats: %w", mapError(err))
	}
	return st, nil
}

func collectTasks(rows pgx.Rows) ([]piracy.MonitoringTask, error) {
	defer rows.Close()
	tasks := []piracy.MonitoringTask{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}
