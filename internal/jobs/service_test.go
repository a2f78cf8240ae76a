package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/clock/system"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/piracy"
	memqueue "github.com/CarlaKobielski/projeto-antipirataria/internal/queue/memory"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/scheduler"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/storage/memory"
)

type seqIDs struct{ n int }

func (s *seqIDs) NewID() (string, error) {
	s.n++
	return fmt.Sprintf("id-%d", s.n), nil
}

func newService(t *testing.T) (*Service, *memory.Store, *memqueue.Queue, time.Time) {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.SaveTenant(ctx, piracy.Tenant{ID: "t1", Name: "Editora"}))
	require.NoError(t, store.SaveWork(ctx, piracy.Work{ID: "w1", TenantID: "t1", Title: "Título A"}))
	require.NoError(t, store.SaveWork(ctx, piracy.Work{ID: "w2", TenantID: "t2", Title: "Outro"}))
	queue := memqueue.New(memqueue.WithClock(system.Fixed{At: now}))
	svc := New(store, store, queue, system.Fixed{At: now}, &seqIDs{}, zap.NewNop())
	return svc, store, queue, now
}

func TestCreateTriggersFirstRun(t *testing.T) {
	t.Parallel()

	svc, _, queue, now := newService(t)
	task, err := svc.Create(context.Background(), "t1", CreateInput{
		WorkID:  "w1",
		Queries: []string{"https://libgen.example/a", " ", "titulo a pdf"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"https://libgen.example/a", "titulo a pdf"}, task.Queries)
	require.Equal(t, "0 */6 * * *", task.ScheduleSpec)
	require.Equal(t, piracy.JobStatusActive, task.Status)
	require.Equal(t, 1, task.RunCount)
	require.True(t, task.LastRunAt.Equal(now))
	require.True(t, task.NextRunAt.Equal(now.Add(6*time.Hour)))
	require.Equal(t, 2, queue.Stats(piracy.TopicCrawl).Ready)
}

func TestCreateIsNotDueOnNextTick(t *testing.T) {
	t.Parallel()

	svc, store, queue, now := newService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, "t1", CreateInput{WorkID: "w1", Queries: []string{"a", "b"}, ScheduleSpec: "0 0 * * *"})
	require.NoError(t, err)

	tick := now.Add(time.Minute)
	sched := scheduler.New(store, queue, system.Fixed{At: tick}, scheduler.Config{Interval: time.Minute, BatchSize: 10}, zap.NewNop())
	n, err := sched.RunOnce(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Equal(t, 2, queue.Stats(piracy.TopicCrawl).Ready)

	due, err := store.DueTasks(ctx, now.Add(24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
}

func TestTriggerKeepsSchedule(t *testing.T) {
	t.Parallel()

	svc, _, _, now := newService(t)
	ctx := context.Background()
	task, err := svc.Create(ctx, "t1", CreateInput{WorkID: "w1", Queries: []string{"a"}})
	require.NoError(t, err)

	_, err = svc.Trigger(ctx, task.ID, "t1", nil)
	require.NoError(t, err)
	got, err := svc.Get(ctx, task.ID, "t1")
	require.NoError(t, err)
	require.Equal(t, 2, got.RunCount)
	require.True(t, got.NextRunAt.Equal(now.Add(6*time.Hour)))
}

func TestCreateRejectsForeignWork(t *testing.T) {
	t.Parallel()

	svc, _, _, _ := newService(t)
	_, err := svc.Create(context.Background(), "t1", CreateInput{WorkID: "w2", Queries: []string{"q"}})
	require.ErrorIs(t, err, piracy.ErrNotFound)

	_, err = svc.Create(context.Background(), "t1", CreateInput{WorkID: "missing", Queries: []string{"q"}})
	require.ErrorIs(t, err, piracy.ErrNotFound)

	_, err = svc.Create(context.Background(), "t1", CreateInput{WorkID: "w1"})
	require.ErrorIs(t, err, piracy.ErrValidation)
}

func TestTriggerWithSpecificQueries(t *testing.T) {
	t.Parallel()

	svc, _, queue, _ := newService(t)
	ctx := context.Background()
	task, err := svc.Create(ctx, "t1", CreateInput{WorkID: "w1", Queries: []string{"a", "b", "c"}})
	require.NoError(t, err)

	n, err := svc.Trigger(ctx, task.ID, "t1", []string{"only"})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, 4, queue.Stats(piracy.TopicCrawl).Ready)

	got, err := svc.Get(ctx, task.ID, "t1")
	require.NoError(t, err)
	require.Equal(t, 2, got.RunCount)

	_, err = svc.Trigger(ctx, task.ID, "t2", nil)
	require.ErrorIs(t, err, piracy.ErrNotFound)
}

func TestUpdateAndDelete(t *testing.T) {
	t.Parallel()

	svc, _, _, _ := newService(t)
	ctx := context.Background()
	task, err := svc.Create(ctx, "t1", CreateInput{WorkID: "w1", Queries: []string{"a"}})
	require.NoError(t, err)

	paused := piracy.JobStatusPaused
	spec := "0 0 * * *"
	queries := []string{"x", "y"}
	updated, err := svc.Update(ctx, task.ID, "t1", UpdateInput{Queries: &queries, ScheduleSpec: &spec, Status: &paused})
	require.NoError(t, err)
	require.Equal(t, piracy.JobStatusPaused, updated.Status)
	require.Equal(t, spec, updated.ScheduleSpec)
	require.Equal(t, queries, updated.Queries)

	bogus := piracy.JobStatus("RUNNING")
	_, err = svc.Update(ctx, task.ID, "t1", UpdateInput{Status: &bogus})
	require.ErrorIs(t, err, piracy.ErrValidation)
	empty := []string{}
	_, err = svc.Update(ctx, task.ID, "t1", UpdateInput{Queries: &empty})
	require.ErrorIs(t, err, piracy.ErrValidation)

	require.ErrorIs(t, svc.Delete(ctx, task.ID, "t2"), piracy.ErrNotFound)
	require.NoError(t, svc.Delete(ctx, task.ID, "t1"))
	_, err = svc.Get(ctx, task.ID, "t1")
	require.True(t, errors.Is(err, piracy.ErrNotFound))
}

func TestListAndStats(t *testing.T) {
	t.Parallel()

	svc, _, _, _ := newService(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, "t1", CreateInput{WorkID: "w1", Queries: []string{"q"}})
		require.NoError(t, err)
	}
	tasks, total, err := svc.List(ctx, "t1", piracy.Page{Number: 1, Limit: 2})
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, tasks, 2)

	st, err := svc.Stats(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, piracy.TaskStats{TotalJobs: 3, ActiveJobs: 3, TotalRuns: 3}, st)
}
