package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/piracy"
)

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, New(mock)
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestGetWork(t *testing.T) {
	t.Parallel()

	mock, store := newMock(t)
	mock.ExpectQuery("SELECT id, tenant_id, title").
		WithArgs("w1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "tenant_id", "title", "author", "isbn", "keywords", "reference_simhash"}).
			AddRow("w1", "t1", "Título A", "Ana", "978", []string{"livro"}, ""))

	w, err := store.GetWork(context.Background(), "w1")
	require.NoError(t, err)
	require.Equal(t, piracy.Work{ID: "w1", TenantID: "t1", Title: "Título A", Author: "Ana", ISBN: "978", Keywords: []string{"livro"}}, w)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetWorkNotFound(t *testing.T) {
	t.Parallel()

	mock, store := newMock(t)
	mock.ExpectQuery("SELECT id, tenant_id, title").WithArgs("missing").WillReturnError(pgx.ErrNoRows)

	_, err := store.GetWork(context.Background(), "missing")
	require.ErrorIs(t, err, piracy.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDetectionConflict(t *testing.T) {
	t.Parallel()

	mock, store := newMock(t)
	mock.ExpectExec("INSERT INTO detections").
		WithArgs(anyArgs(13)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "detections_crawl_result_work_key"})

	err := store.CreateDetection(context.Background(), piracy.Detection{ID: "d1", Status: piracy.DetectionStatusNew})
	require.ErrorIs(t, err, piracy.ErrConflict)
	require.Contains(t, err.Error(), "detections_crawl_result_work_key")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDetectionInsertsRow(t *testing.T) {
	t.Parallel()

	mock, store := newMock(t)
	now := time.Unix(1700000000, 0).UTC()
	match := 0.9
	d := piracy.Detection{
		ID: "d1", WorkID: "w1", CrawlResultID: "c1", URL: "https://x.example/p", Domain: "x.example",
		Score: 0.75, Confidence: piracy.ConfidenceHigh, Reasons: []string{"Title match: 100%"},
		FingerprintMatch: &match, EvidenceID: "e1", Status: piracy.DetectionStatusNew, CreatedAt: now,
	}
	mock.ExpectExec("INSERT INTO detections").
		WithArgs("d1", "w1", "c1", "https://x.example/p", "x.example", 0.75, "HIGH",
			[]string{"Title match: 100%"}, &match, "e1", "NEW", (*time.Time)(nil), now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.CreateDetection(context.Background(), d))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordDetectionSingleStatement(t *testing.T) {
	t.Parallel()

	mock, store := newMock(t)
	now := time.Unix(1700000000, 0).UTC()
	ev := piracy.Evidence{ID: "e1", StoragePath: "s3://b/k", ContentType: "text/html", SHA256: "abc", Simhash: "00ff", CreatedAt: now}
	d := piracy.Detection{
		ID: "d1", WorkID: "w1", CrawlResultID: "c1", URL: "https://x.example/p", Domain: "x.example",
		Score: 0.75, Confidence: piracy.ConfidenceHigh, Reasons: []string{"Title match: 100%"},
		Status: piracy.DetectionStatusNew, CreatedAt: now,
	}
	mock.ExpectExec(`WITH ev AS \(\s*INSERT INTO evidence`).
		WithArgs(anyArgs(19)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, store.RecordDetection(context.Background(), ev, d))

	mock.ExpectExec(`WITH ev AS`).
		WithArgs(anyArgs(19)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "detections_crawl_result_work_key"})
	err := store.RecordDetection(context.Background(), ev, d)
	require.ErrorIs(t, err, piracy.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDueTasks(t *testing.T) {
	t.Parallel()

	mock, store := newMock(t)
	now := time.Unix(1700000000, 0).UTC()
	last := now.Add(-6 * time.Hour)
	cols := []string{"id", "work_id", "tenant_id", "queries", "schedule_spec", "status",
		"last_run_at", "next_run_at", "run_count", "created_at", "updated_at"}
	mock.ExpectQuery("FROM monitoring_jobs").
		WithArgs(now, 100).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("j1", "w1", "t1", []string{"https://a.example"}, "0 */6 * * *", "ACTIVE", &last, &now, 3, last, last).
			AddRow("j2", "w2", "t1", []string{"q"}, "0 0 * * *", "ACTIVE", nil, &now, 0, last, last))

	tasks, err := store.DueTasks(context.Background(), now, 100)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	require.Equal(t, piracy.JobStatusActive, tasks[0].Status)
	require.Equal(t, 3, tasks[0].RunCount)
	require.NotNil(t, tasks[0].LastRunAt)
	require.Nil(t, tasks[1].LastRunAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRun(t *testing.T) {
	t.Parallel()

	mock, store := newMock(t)
	ranAt := time.Unix(1700000000, 0).UTC()
	next := ranAt.Add(6 * time.Hour)
	mock.ExpectExec("UPDATE monitoring_jobs").
		WithArgs("j1", ranAt, &next).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE monitoring_jobs").
		WithArgs("gone", ranAt, (*time.Time)(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, store.RecordRun(context.Background(), "j1", ranAt, &next))
	err := store.RecordRun(context.Background(), "gone", ranAt, nil)
	require.ErrorIs(t, err, piracy.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskStats(t *testing.T) {
	t.Parallel()

	mock, store := newMock(t)
	mock.ExpectQuery("FROM monitoring_jobs WHERE tenant_id").
		WithArgs("t1").
		WillReturnRows(pgxmock.NewRows([]string{"count", "active", "runs"}).AddRow(4, 3, 17))

	st, err := store.TaskStats(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, piracy.TaskStats{TotalJobs: 4, ActiveJobs: 3, TotalRuns: 17}, st)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListTakedownsWithStatusFilter(t *testing.T) {
	t.Parallel()

	mock, store := newMock(t)
	created := time.Unix(1700000000, 0).UTC()
	cols := []string{"id", "case_id", "tenant_id", "platform", "template_used", "request_payload",
		"evidence_urls", "status", "response", "attempts", "last_attempt_at", "sent_at", "responded_at", "created_at"}
	payload := []byte(`{"subject":"S","body":"B","templateData":{"workTitle":"T","infringingUrl":"u","domain":"d","claimantName":"n","claimantEmail":"e","detectionDate":"2026-01-01"}}`)
	mock.ExpectQuery("FROM takedown_requests").
		WithArgs("t1", "FAILED", 20, 0).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("r1", "c1", "t1", "GENERIC_DMCA", "generic-dmca-email", payload,
				[]string{"s3://b/k"}, "FAILED", []byte(`{"error":"smtp down"}`), 3, &created, nil, nil, created))
	mock.ExpectQuery("SELECT count").
		WithArgs("t1", "FAILED").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := store.ListTakedowns(context.Background(), "t1", piracy.TakedownFailed, piracy.Page{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, items, 1)
	got := items[0]
	require.Equal(t, piracy.PlatformGenericDMCA, got.Platform)
	require.Equal(t, piracy.TakedownFailed, got.Status)
	require.Equal(t, "S", got.RequestPayload.Subject)
	require.Equal(t, "T", got.RequestPayload.TemplateData.WorkTitle)
	require.Equal(t, "smtp down", got.Response["error"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveTakedownStateNotFound(t *testing.T) {
	t.Parallel()

	mock, store := newMock(t)
	mock.ExpectExec("UPDATE takedown_requests").
		WithArgs(anyArgs(7)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.SaveTakedownState(context.Background(), piracy.TakedownRequest{ID: "r1", Status: piracy.TakedownSent})
	require.ErrorIs(t, err, piracy.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteTask(t *testing.T) {
	t.Parallel()

	mock, store := newMock(t)
	mock.ExpectExec("DELETE FROM monitoring_jobs").WithArgs("j1").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, store.DeleteTask(context.Background(), "j1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMapError(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, mapError(pgx.ErrNoRows), piracy.ErrNotFound)
	require.ErrorIs(t, mapError(&pgconn.PgError{Code: "23505"}), piracy.ErrConflict)
	other := errors.New("boom")
	require.Equal(t, other, mapError(other))
}

func TestMigrateURL(t *testing.T) {
	t.Parallel()

	require.Equal(t, "pgx5://u:p@db:5432/app?sslmode=disable", MigrateURL("postgres://u:p@db:5432/app?sslmode=disable"))
	require.Equal(t, "pgx5://u@db/app", MigrateURL("postgresql://u@db/app"))
	require.Equal(t, "pgx5://already", MigrateURL("pgx5://already"))
}

func TestMigrationsEmbedded(t *testing.T) {
	t.Parallel()

	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)
	require.Len(t, entries, 2)
}
