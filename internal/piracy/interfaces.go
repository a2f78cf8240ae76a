package piracy

import (
	"context"
	"time"
)

// Queue provides at-least-once delivery of stage jobs.
type Queue interface {
	Enqueue(ctx context.Context, topic Topic, payload []byte, opts EnqueueOptions) (string, error)
	// Dequeue blocks until a job on topic is visible or ctx ends.
	Dequeue(ctx context.Context, topic Topic) (Job, error)
	Complete(ctx context.Context, job Job) error
	// Fail schedules a retry with backoff or dead-letters the job.
	Fail(ctx context.Context, job Job, cause error) error
}

// Handler processes one job. A returned error is reported to Queue.Fail.
type Handler interface {
	Handle(ctx context.Context, job Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job Job) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, job Job) error {
	return f(ctx, job)
}

// WorkStore reads works and tenants owned by tenant administration.
type WorkStore interface {
	GetWork(ctx context.Context, id string) (Work, error)
	GetTenant(ctx context.Context, id string) (Tenant, error)
}

// TaskStore persists monitoring tasks.
type TaskStore interface {
	CreateTask(ctx context.Context, task MonitoringTask) error
	GetTask(ctx context.Context, id string) (MonitoringTask, error)
	UpdateTask(ctx context.Context, task MonitoringTask) error
	DeleteTask(ctx context.Context, id string) error
	ListTasks(ctx context.Context, tenantID string, page Page) ([]MonitoringTask, int, error)
	// DueTasks returns ACTIVE tasks with nextRunAt <= now, oldest first.
	DueTasks(ctx context.Context, now time.Time, limit int) ([]MonitoringTask, error)
	// RecordRun sets lastRunAt and nextRunAt and increments runCount atomically.
	RecordRun(ctx context.Context, id string, ranAt time.Time, nextRunAt *time.Time) error
	TaskStats(ctx context.Context, tenantID string) (TaskStats, error)
}

// CrawlResultStore persists fetched pages.
type CrawlResultStore interface {
	CreateCrawlResult(ctx context.Context, result CrawlResult) error
	GetCrawlResult(ctx context.Context, id string) (CrawlResult, error)
	MarkProcessed(ctx context.Context, id string, at time.Time) error
}

// DetectionStore persists evidence and detections.
type DetectionStore interface {
	CreateEvidence(ctx context.Context, evidence Evidence) error
	GetEvidence(ctx context.Context, id string) (Evidence, error)
	// CreateDetection returns ErrConflict when the (crawlResultId, workId)
	// pair already has a detection.
	CreateDetection(ctx context.Context, detection Detection) error
	// RecordDetection stores evidence and its detection atomically. On
	// ErrConflict neither is written.
	RecordDetection(ctx context.Context, evidence Evidence, detection Detection) error
	GetDetection(ctx context.Context, id string) (Detection, error)
	UpdateDetectionStatus(ctx context.Context, id string, status DetectionStatus, reviewedAt time.Time) error
}

// CaseStore persists infringement cases.
type CaseStore interface {
	CreateCase(ctx context.Context, c Case) error
	GetCase(ctx context.Context, id string) (Case, error)
	CaseForDetection(ctx context.Context, detectionID string) (Case, error)
	UpdateCaseStatus(ctx context.Context, id string, status CaseStatus, at time.Time) error
}

// TakedownStore persists takedown requests.
type TakedownStore interface {
	CreateTakedown(ctx context.Context, req TakedownRequest) error
	GetTakedown(ctx context.Context, id string) (TakedownRequest, error)
	ListTakedowns(ctx context.Context, tenantID string, status TakedownStatus, page Page) ([]TakedownRequest, int, error)
	// SaveTakedownState writes status, response, attempts and timestamps.
	SaveTakedownState(ctx context.Context, req TakedownRequest) error
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, key, contentType string, data []byte, metadata map[string]string) (string, error)
	GetObject(ctx context.Context, uri string) ([]byte, error)
}

// Publisher pushes domain events to an outbound stream.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Mailer delivers a plain-text message.
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

// MailMessage is an outbound notice.
type MailMessage struct {
	To      string
	Subject string
	Body    string
}

// Hasher computes digests for integrity.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record IDs.
type IDGenerator interface {
	NewID() (string, error)
}
