// Package piracy defines the records, queue messages and collaborator
// interfaces shared by the crawl, detection and takedown stages.
package piracy

import "time"

// JobStatus is the lifecycle state of a MonitoringTask.
type JobStatus string

// Monitoring task states.
const (
	JobStatusActive    JobStatus = "ACTIVE"
	JobStatusPaused    JobStatus = "PAUSED"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
)

// Valid reports whether s is a known monitoring task state.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusActive, JobStatusPaused, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// DetectionStatus is the analyst review state of a Detection.
type DetectionStatus string

// Detection review states.
const (
	DetectionStatusNew       DetectionStatus = "NEW"
	DetectionStatusReviewing DetectionStatus = "REVIEWING"
	DetectionStatusValidated DetectionStatus = "VALIDATED"
	DetectionStatusRejected  DetectionStatus = "REJECTED"
	DetectionStatusArchived  DetectionStatus = "ARCHIVED"
)

// Valid reports whether s is a known detection state.
func (s DetectionStatus) Valid() bool {
	switch s {
	case DetectionStatusNew, DetectionStatusReviewing, DetectionStatusValidated,
		DetectionStatusRejected, DetectionStatusArchived:
		return true
	}
	return false
}

// ConfidenceLevel buckets a continuous classification score.
type ConfidenceLevel string

// Confidence buckets.
const (
	ConfidenceLow    ConfidenceLevel = "LOW"
	ConfidenceMedium ConfidenceLevel = "MEDIUM"
	ConfidenceHigh   ConfidenceLevel = "HIGH"
)

// CaseStatus is the lifecycle state of an infringement case.
type CaseStatus string

// Case states.
const (
	CaseStatusNew              CaseStatus = "NEW"
	CaseStatusValidated        CaseStatus = "VALIDATED"
	CaseStatusRemovalRequested CaseStatus = "REMOVAL_REQUESTED"
	CaseStatusRemoved          CaseStatus = "REMOVED"
	CaseStatusRejected         CaseStatus = "REJECTED"
	CaseStatusClosed           CaseStatus = "CLOSED"
)

// TakedownPlatform identifies the party a takedown is addressed to.
type TakedownPlatform string

// Takedown platforms.
const (
	PlatformGoogleSearch TakedownPlatform = "GOOGLE_SEARCH"
	PlatformGoogleDrive  TakedownPlatform = "GOOGLE_DRIVE"
	PlatformScribd       TakedownPlatform = "SCRIBD"
	PlatformTelegram     TakedownPlatform = "TELEGRAM"
	PlatformGenericDMCA  TakedownPlatform = "GENERIC_DMCA"
	PlatformOther        TakedownPlatform = "OTHER"
)

// Valid reports whether p is a known platform.
func (p TakedownPlatform) Valid() bool {
	switch p {
	case PlatformGoogleSearch, PlatformGoogleDrive, PlatformScribd,
		PlatformTelegram, PlatformGenericDMCA, PlatformOther:
		return true
	}
	return false
}

// Tenant is the rights holder account owning works and tasks.
type Tenant struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Work is a registered written work. It is owned by tenant administration
// and only read by this service.
type Work struct {
	ID       string   `json:"id"`
	TenantID string   `json:"tenantId"`
	Title    string   `json:"title"`
	Author   string   `json:"author,omitempty"`
	ISBN     string   `json:"isbn,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
	// ReferenceSimhash is the simhash of an authoritative copy of the work,
	// when one has been registered.
	ReferenceSimhash string `json:"referenceSimhash,omitempty"`
}

// MonitoringTask drives periodic crawling for one work.
type MonitoringTask struct {
	ID           string     `json:"id"`
	WorkID       string     `json:"workId"`
	TenantID     string     `json:"tenantId"`
	Queries      []string   `json:"queries"`
	ScheduleSpec string     `json:"scheduleSpec"`
	Status       JobStatus  `json:"status"`
	LastRunAt    *time.Time `json:"lastRunAt,omitempty"`
	NextRunAt    *time.Time `json:"nextRunAt,omitempty"`
	RunCount     int        `json:"runCount"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// TaskStats aggregates monitoring task counters for a tenant.
type TaskStats struct {
	TotalJobs  int `json:"totalJobs"`
	ActiveJobs int `json:"activeJobs"`
	TotalRuns  int `json:"totalRuns"`
}

// CrawlResult records one fetched page.
type CrawlResult struct {
	ID            string            `json:"id"`
	JobID         string            `json:"jobId"`
	URL           string            `json:"url"`
	Domain        string            `json:"domain"`
	StatusCode    int               `json:"statusCode"`
	ContentType   string            `json:"contentType"`
	Headers       map[string]string `json:"headers"`
	RawContentRef string            `json:"rawContentRef"`
	ScreenshotRef string            `json:"screenshotRef,omitempty"`
	CrawledAt     time.Time         `json:"crawledAt"`
	ProcessedAt   *time.Time        `json:"processedAt,omitempty"`
}

// Evidence is an immutable snapshot backing a detection.
type Evidence struct {
	ID          string         `json:"id"`
	StoragePath string         `json:"storagePath"`
	ContentType string         `json:"contentType"`
	SHA256      string         `json:"sha256"`
	Simhash     string         `json:"simhash"`
	Metadata    map[string]any `json:"metadata"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// Detection is a scored suspicion that a crawled page republishes a work.
type Detection struct {
	ID               string          `json:"id"`
	WorkID           string          `json:"workId"`
	CrawlResultID    string          `json:"crawlResultId"`
	URL              string          `json:"url"`
	Domain           string          `json:"domain"`
	Score            float64         `json:"score"`
	Confidence       ConfidenceLevel `json:"confidence"`
	Reasons          []string        `json:"reasons"`
	FingerprintMatch *float64        `json:"fingerprintMatch,omitempty"`
	EvidenceID       string          `json:"evidenceId"`
	Status           DetectionStatus `json:"status"`
	ReviewedAt       *time.Time      `json:"reviewedAt,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// Case groups a validated detection for removal work.
type Case struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenantId"`
	DetectionID string     `json:"detectionId"`
	WorkID      string     `json:"workId"`
	Status      CaseStatus `json:"status"`
	Priority    int        `json:"priority"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// TakedownPayload is the rendered notice persisted on a request.
type TakedownPayload struct {
	Subject      string     `json:"subject"`
	Body         string     `json:"body"`
	TemplateData NoticeData `json:"templateData"`
}

// TakedownRequest tracks delivery of one removal notice.
type TakedownRequest struct {
	ID             string           `json:"id"`
	CaseID         string           `json:"caseId"`
	TenantID       string           `json:"tenantId"`
	Platform       TakedownPlatform `json:"platform"`
	TemplateUsed   string           `json:"templateUsed"`
	RequestPayload TakedownPayload  `json:"requestPayload"`
	EvidenceURLs   []string         `json:"evidenceUrls"`
	Status         TakedownStatus   `json:"status"`
	Response       map[string]any   `json:"response,omitempty"`
	Attempts       int              `json:"attempts"`
	LastAttemptAt  *time.Time       `json:"lastAttemptAt,omitempty"`
	SentAt         *time.Time       `json:"sentAt,omitempty"`
	RespondedAt    *time.Time       `json:"respondedAt,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// Page selects a window of a listing.
type Page struct {
	Number int
	Limit  int
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	if p.Number <= 1 {
		return 0
	}
	return (p.Number - 1) * p.Limit
}

// Normalize applies listing defaults.
func (p Page) Normalize() Page {
	if p.Number <= 0 {
		p.Number = 1
	}
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	return p
}
