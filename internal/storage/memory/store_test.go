package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/piracy"
)

func TestStoreTaskLifecycle(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	tasks := []piracy.MonitoringTask{
		{ID: "due-old", TenantID: "t1", Status: piracy.JobStatusActive, NextRunAt: &past, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "due-now", TenantID: "t1", Status: piracy.JobStatusActive, NextRunAt: &now, CreatedAt: now.Add(-time.Hour)},
		{ID: "later", TenantID: "t1", Status: piracy.JobStatusActive, NextRunAt: &future, CreatedAt: now},
		{ID: "paused", TenantID: "t2", Status: piracy.JobStatusPaused, NextRunAt: &past, CreatedAt: now},
	}
	for _, task := range tasks {
		if err := store.CreateTask(ctx, task); err != nil {
			t.Fatalf("CreateTask(%s) error = %v", task.ID, err)
		}
	}
	if err := store.CreateTask(ctx, tasks[0]); !errors.Is(err, piracy.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	due, err := store.DueTasks(ctx, now, 10)
	if err != nil {
		t.Fatalf("DueTasks() error = %v", err)
	}
	if len(due) != 2 || due[0].ID != "due-old" || due[1].ID != "due-now" {
		t.Fatalf("unexpected due tasks: %+v", due)
	}

	next := now.Add(6 * time.Hour)
	if err := store.RecordRun(ctx, "due-old", now, &next); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}
	if err := store.RecordRun(ctx, "due-now", now, nil); err != nil {
		t.Fatalf("RecordRun(nil) error = %v", err)
	}
	got, err := store.GetTask(ctx, "due-old")
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if got.RunCount != 1 || !got.NextRunAt.Equal(next) || !got.LastRunAt.Equal(now) {
		t.Fatalf("unexpected task after run: %+v", got)
	}
	kept, _ := store.GetTask(ctx, "due-now")
	if !kept.NextRunAt.Equal(now) {
		t.Fatalf("nil nextRunAt should keep stored value, got %v", kept.NextRunAt)
	}

	stats, err := store.TaskStats(ctx, "t1")
	if err != nil {
		t.Fatalf("TaskStats() error = %v", err)
	}
	if stats != (piracy.TaskStats{TotalJobs: 3, ActiveJobs: 3, TotalRuns: 2}) {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	list, total, err := store.ListTasks(ctx, "t1", piracy.Page{Number: 1, Limit: 2})
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if total != 3 || len(list) != 2 || list[0].ID != "later" {
		t.Fatalf("unexpected page: total=%d %+v", total, list)
	}
	list, _, _ = store.ListTasks(ctx, "t1", piracy.Page{Number: 5, Limit: 2})
	if len(list) != 0 {
		t.Fatalf("expected empty page, got %d", len(list))
	}

	if err := store.DeleteTask(ctx, "later"); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	if _, err := store.GetTask(ctx, "later"); !errors.Is(err, piracy.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.UpdateTask(ctx, piracy.MonitoringTask{ID: "later"}); !errors.Is(err, piracy.ErrNotFound) {
		t.Fatalf("expected not found on update, got %v", err)
	}
}

func TestStoreDetectionUniqueness(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	d := piracy.Detection{ID: "d1", CrawlResultID: "cr1", WorkID: "w1", Status: piracy.DetectionStatusNew}
	if err := store.CreateDetection(ctx, d); err != nil {
		t.Fatalf("CreateDetection() error = %v", err)
	}
	d.ID = "d2"
	if err := store.CreateDetection(ctx, d); !errors.Is(err, piracy.ErrConflict) {
		t.Fatalf("expected conflict for duplicate pair, got %v", err)
	}

	ev := piracy.Evidence{ID: "ev-dup", StoragePath: "memory://evidence/x"}
	if err := store.RecordDetection(ctx, ev, piracy.Detection{ID: "d3", CrawlResultID: "cr1", WorkID: "w1"}); !errors.Is(err, piracy.ErrConflict) {
		t.Fatalf("expected conflict from RecordDetection, got %v", err)
	}
	if _, err := store.GetEvidence(ctx, "ev-dup"); !errors.Is(err, piracy.ErrNotFound) {
		t.Fatalf("conflicting RecordDetection left evidence behind: %v", err)
	}
	if err := store.RecordDetection(ctx, ev, piracy.Detection{ID: "d4", CrawlResultID: "cr2", WorkID: "w1"}); err != nil {
		t.Fatalf("RecordDetection() error = %v", err)
	}
	if got, _ := store.GetDetection(ctx, "d4"); got.EvidenceID != "ev-dup" {
		t.Fatalf("detection not linked to evidence: %+v", got)
	}

	reviewed := time.Now().UTC()
	if err := store.UpdateDetectionStatus(ctx, "d1", piracy.DetectionStatusValidated, reviewed); err != nil {
		t.Fatalf("UpdateDetectionStatus() error = %v", err)
	}
	got, _ := store.GetDetection(ctx, "d1")
	if got.Status != piracy.DetectionStatusValidated || got.ReviewedAt == nil {
		t.Fatalf("unexpected detection: %+v", got)
	}
}

func TestStoreCaseAndTakedowns(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	if err := store.CreateCase(ctx, piracy.Case{ID: "c1", DetectionID: "d1", Status: piracy.CaseStatusNew}); err != nil {
		t.Fatalf("CreateCase() error = %v", err)
	}
	if err := store.CreateCase(ctx, piracy.Case{ID: "c2", DetectionID: "d1"}); !errors.Is(err, piracy.ErrConflict) {
		t.Fatalf("expected one case per detection, got %v", err)
	}
	c, err := store.CaseForDetection(ctx, "d1")
	if err != nil || c.ID != "c1" {
		t.Fatalf("CaseForDetection() = %+v, %v", c, err)
	}
	if _, err := store.CaseForDetection(ctx, "d9"); !errors.Is(err, piracy.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, status := range []piracy.TakedownStatus{piracy.TakedownPending, piracy.TakedownFailed, piracy.TakedownPending} {
		req := piracy.TakedownRequest{
			ID: string(rune('a' + i)), TenantID: "t1", CaseID: "c1", Status: status,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.CreateTakedown(ctx, req); err != nil {
			t.Fatalf("CreateTakedown() error = %v", err)
		}
	}
	pending, total, err := store.ListTakedowns(ctx, "t1", piracy.TakedownPending, piracy.Page{})
	if err != nil {
		t.Fatalf("ListTakedowns() error = %v", err)
	}
	if total != 2 || pending[0].ID != "c" {
		t.Fatalf("unexpected pending list: total=%d %+v", total, pending)
	}
	_, total, _ = store.ListTakedowns(ctx, "t1", "", piracy.Page{})
	if total != 3 {
		t.Fatalf("expected 3 takedowns without filter, got %d", total)
	}

	sent := base.Add(time.Hour)
	if err := store.SaveTakedownState(ctx, piracy.TakedownRequest{
		ID: "a", Status: piracy.TakedownSent, Attempts: 1, SentAt: &sent,
		Response: map[string]any{"type": "email"},
	}); err != nil {
		t.Fatalf("SaveTakedownState() error = %v", err)
	}
	got, _ := store.GetTakedown(ctx, "a")
	if got.Status != piracy.TakedownSent || got.Attempts != 1 || got.CaseID != "c1" || got.Response["type"] != "email" {
		t.Fatalf("unexpected takedown: %+v", got)
	}
}

func TestStoreCrawlResults(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	result := piracy.CrawlResult{ID: "cr1", Headers: map[string]string{"server": "nginx"}}
	if err := store.CreateCrawlResult(ctx, result); err != nil {
		t.Fatalf("CreateCrawlResult() error = %v", err)
	}
	result.Headers["server"] = "mutated"

	at := time.Now().UTC()
	if err := store.MarkProcessed(ctx, "cr1", at); err != nil {
		t.Fatalf("MarkProcessed() error = %v", err)
	}
	got, err := store.GetCrawlResult(ctx, "cr1")
	if err != nil {
		t.Fatalf("GetCrawlResult() error = %v", err)
	}
	if got.Headers["server"] != "nginx" || got.ProcessedAt == nil {
		t.Fatalf("unexpected crawl result: %+v", got)
	}
	if err := store.MarkProcessed(ctx, "missing", at); !errors.Is(err, piracy.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStoreWorksAndTenants(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	if err := store.SaveTenant(ctx, piracy.Tenant{ID: "t1", Name: "Editora"}); err != nil {
		t.Fatalf("SaveTenant() error = %v", err)
	}
	if err := store.SaveWork(ctx, piracy.Work{ID: "w1", TenantID: "t1", Title: "Livro"}); err != nil {
		t.Fatalf("SaveWork() error = %v", err)
	}
	if w, err := store.GetWork(ctx, "w1"); err != nil || w.Title != "Livro" {
		t.Fatalf("GetWork() = %+v, %v", w, err)
	}
	if _, err := store.GetTenant(ctx, "t9"); !errors.Is(err, piracy.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
