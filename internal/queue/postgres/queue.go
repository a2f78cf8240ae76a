// Package postgres implements a durable stage queue on a Postgres table.
// Jobs are claimed with FOR UPDATE SKIP LOCKED and stay invisible for a
// visibility window; a consumer that dies mid-job releases it when the
// window lapses.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/clock/system"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/id/uuid"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/piracy"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultVisibility   = 5 * time.Minute
)

// DB is the subset of pgxpool.Pool the queue needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Config tunes polling and redelivery.
type Config struct {
	PollInterval time.Duration
	Visibility   time.Duration
}

// Queue implements piracy.Queue on the queue_jobs table.
type Queue struct {
	db    DB
	cfg   Config
	clock piracy.Clock
	ids   piracy.IDGenerator
}

// New builds a Queue. Nil clock or ids fall back to the system defaults.
func New(db DB, cfg Config, clock piracy.Clock, ids piracy.IDGenerator) *Queue {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Visibility <= 0 {
		cfg.Visibility = defaultVisibility
	}
	if clock == nil {
		clock = system.New()
	}
	if ids == nil {
		ids = uuid.NewUUIDGenerator()
	}
	return &Queue{db: db, cfg: cfg, clock: clock, ids: ids}
}

const insertJob = `INSERT INTO queue_jobs
	(id, topic, payload, priority, attempts, max_attempts, backoff_ms, visible_at, status, created_at, updated_at)
	VALUES ($1, $2, $3, $4, 0, $5, $6, $7, 'waiting', $8, $8)`

// Enqueue implements piracy.Queue.
func (q *Queue) Enqueue(ctx context.Context, topic piracy.Topic, payload []byte, opts piracy.EnqueueOptions) (string, error) {
	id, err := q.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("job id: %w", err)
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	now := q.clock.Now()
	_, err = q.db.Exec(ctx, insertJob, id, string(topic), payload, opts.Priority, maxAttempts,
		opts.Backoff.Milliseconds(), now.Add(opts.Delay), now)
	if err != nil {
		return "", fmt.Errorf("insert %s job: %w", topic, err)
	}
	return id, nil
}

// LapsedError is recorded on jobs whose consumer never settled the final
// attempt.
const LapsedError = "visibility timeout lapsed on final attempt"

// buryLapsed dead-letters active rows whose visibility lapsed with no
// attempts left.
const buryLapsed = `UPDATE queue_jobs
	SET status = 'dead', last_error = $3, updated_at = $2
	WHERE topic = $1 AND status = 'active' AND visible_at <= $2 AND attempts >= max_attempts`

// claimJob takes the best visible row. Active rows whose visibility lapsed
// are eligible again while attempts remain.
const claimJob = `UPDATE queue_jobs
	SET status = 'active', attempts = attempts + 1, visible_at = $3, updated_at = $2
	WHERE id = (
		SELECT id FROM queue_jobs
		WHERE topic = $1 AND visible_at <= $2
			AND (status = 'waiting' OR (status = 'active' AND attempts < max_attempts))
		ORDER BY priority, visible_at, created_at
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	)
	RETURNING id, payload, priority, attempts, max_attempts, backoff_ms, created_at`

// Claim returns the next visible job or ok=false when none is ready.
func (q *Queue) Claim(ctx context.Context, topic piracy.Topic) (piracy.Job, bool, error) {
	now := q.clock.Now()
	if _, err := q.db.Exec(ctx, buryLapsed, string(topic), now, LapsedError); err != nil {
		return piracy.Job{}, false, fmt.Errorf("bury lapsed %s jobs: %w", topic, err)
	}
	job := piracy.Job{Topic: topic}
	var backoffMS int64
	err := q.db.QueryRow(ctx, claimJob, string(topic), now, now.Add(q.cfg.Visibility)).Scan(
		&job.ID, &job.Payload, &job.Priority, &job.Attempt, &job.MaxAttempts, &backoffMS, &job.EnqueuedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return piracy.Job{}, false, nil
	}
	if err != nil {
		return piracy.Job{}, false, fmt.Errorf("claim %s job: %w", topic, err)
	}
	job.Backoff = time.Duration(backoffMS) * time.Millisecond
	return job, true, nil
}

// Dequeue polls Claim until a job is available or ctx ends.
func (q *Queue) Dequeue(ctx context.Context, topic piracy.Topic) (piracy.Job, error) {
	ticker := time.NewTicker(q.cfg.PollInterval)
	defer ticker.Stop()
	for {
		job, ok, err := q.Claim(ctx, topic)
		if err != nil {
			return piracy.Job{}, err
		}
		if ok {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return piracy.Job{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// Complete deletes the job row.
func (q *Queue) Complete(ctx context.Context, job piracy.Job) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM queue_jobs WHERE id = $1 AND status = 'active'`, job.ID)
	if err != nil {
		return fmt.Errorf("complete job %s: %w", job.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("complete job %s: %w", job.ID, piracy.ErrNotFound)
	}
	return nil
}

const (
	retryJob = `UPDATE queue_jobs
		SET status = 'waiting', visible_at = $2, last_error = $3, updated_at = $4
		WHERE id = $1 AND status = 'active'`
	buryJob = `UPDATE queue_jobs
		SET status = 'dead', last_error = $2, updated_at = $3
		WHERE id = $1 AND status = 'active'`
)

// Fail reschedules with exponential backoff or marks the job dead.
func (q *Queue) Fail(ctx context.Context, job piracy.Job, cause error) error {
	now := q.clock.Now()
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	var (
		tag pgconn.CommandTag
		err error
	)
	if piracy.ShouldRetry(cause, job.Attempt, job.MaxAttempts) {
		delay := piracy.ExponentialBackoff{Base: job.Backoff}.Delay(job.Attempt)
		tag, err = q.db.Exec(ctx, retryJob, job.ID, now.Add(delay), msg, now)
	} else {
		tag, err = q.db.Exec(ctx, buryJob, job.ID, msg, now)
	}
	if err != nil {
		return fmt.Errorf("fail job %s: %w", job.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("fail job %s: %w", job.ID, piracy.ErrNotFound)
	}
	return nil
}

// DeadCount reports dead-lettered jobs on topic.
func (q *Queue) DeadCount(ctx context.Context, topic piracy.Topic) (int, error) {
	var n int
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM queue_jobs WHERE topic = $1 AND status = 'dead'`, string(topic)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count dead %s jobs: %w", topic, err)
	}
	return n, nil
}
