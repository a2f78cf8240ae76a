package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/piracy"
)

var (
	_ piracy.WorkStore        = (*Store)(nil)
	_ piracy.TaskStore        = (*Store)(nil)
	_ piracy.CrawlResultStore = (*Store)(nil)
	_ piracy.DetectionStore   = (*Store)(nil)
	_ piracy.CaseStore        = (*Store)(nil)
	_ piracy.TakedownStore    = (*Store)(nil)
)

// Store keeps every record type in maps guarded by one mutex. Records are
// copied on the way in and out.
type Store struct {
	mu         sync.RWMutex
	tenants    map[string]piracy.Tenant
	works      map[string]piracy.Work
	tasks      map[string]piracy.MonitoringTask
	results    map[string]piracy.CrawlResult
	evidence   map[string]piracy.Evidence
	detections map[string]piracy.Detection
	cases      map[string]piracy.Case
	takedowns  map[string]piracy.TakedownRequest
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		tenants:    make(map[string]piracy.Tenant),
		works:      make(map[string]piracy.Work),
		tasks:      make(map[string]piracy.MonitoringTask),
		results:    make(map[string]piracy.CrawlResult),
		evidence:   make(map[string]piracy.Evidence),
		detections: make(map[string]piracy.Detection),
		cases:      make(map[string]piracy.Case),
		takedowns:  make(map[string]piracy.TakedownRequest),
	}
}

// SaveTenant upserts a tenant.
func (s *Store) SaveTenant(_ context.Context, t piracy.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[t.ID] = t
	return nil
}

// SaveWork upserts a work.
func (s *Store) SaveWork(_ context.Context, w piracy.Work) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w.Keywords = append([]string(nil), w.Keywords...)
	s.works[w.ID] = w
	return nil
}

// GetWork implements piracy.WorkStore.
func (s *Store) GetWork(_ context.Context, id string) (piracy.Work, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.works[id]
	if !ok {
		return piracy.Work{}, fmt.Errorf("work %s: %w", id, piracy.ErrNotFound)
	}
	w.Keywords = append([]string(nil), w.Keywords...)
	return w, nil
}

// GetTenant implements piracy.WorkStore.
func (s *Store) GetTenant(_ context.Context, id string) (piracy.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[id]
	if !ok {
		return piracy.Tenant{}, fmt.Errorf("tenant %s: %w", id, piracy.ErrNotFound)
	}
	return t, nil
}

func cloneTask(t piracy.MonitoringTask) piracy.MonitoringTask {
	t.Queries = append([]string(nil), t.Queries...)
	t.LastRunAt = cloneTime(t.LastRunAt)
	t.NextRunAt = cloneTime(t.NextRunAt)
	return t
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// CreateTask implements piracy.TaskStore.
func (s *Store) CreateTask(_ context.Context, t piracy.MonitoringTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[t.ID]; exists {
		return fmt.Errorf("task %s: %w", t.ID, piracy.ErrConflict)
	}
	s.tasks[t.ID] = cloneTask(t)
	return nil
}

// GetTask implements piracy.TaskStore.
func (s *Store) GetTask(_ context.Context, id string) (piracy.MonitoringTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return piracy.MonitoringTask{}, fmt.Errorf("task %s: %w", id, piracy.ErrNotFound)
	}
	return cloneTask(t), nil
}

// UpdateTask writes the mutable task fields.
func (s *Store) UpdateTask(_ context.Context, t piracy.MonitoringTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.tasks[t.ID]
	if !ok {
		return fmt.Errorf("update task %s: %w", t.ID, piracy.ErrNotFound)
	}
	cur.Queries = append([]string(nil), t.Queries...)
	cur.ScheduleSpec = t.ScheduleSpec
	cur.Status = t.Status
	cur.NextRunAt = cloneTime(t.NextRunAt)
	cur.UpdatedAt = t.UpdatedAt
	s.tasks[t.ID] = cur
	return nil
}

// DeleteTask implements piracy.TaskStore.
func (s *Store) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return fmt.Errorf("delete task %s: %w", id, piracy.ErrNotFound)
	}
	delete(s.tasks, id)
	return nil
}

// ListTasks returns one page of a tenant's tasks, newest first.
func (s *Store) ListTasks(_ context.Context, tenantID string, page piracy.Page) ([]piracy.MonitoringTask, int, error) {
	page = page.Normalize()
	s.mu.RLock()
	var all []piracy.MonitoringTask
	for _, t := range s.tasks {
		if t.TenantID == tenantID {
			all = append(all, cloneTask(t))
		}
	}
	s.mu.RUnlock()
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return window(all, page), len(all), nil
}

// DueTasks implements piracy.TaskStore.
func (s *Store) DueTasks(_ context.Context, now time.Time, limit int) ([]piracy.MonitoringTask, error) {
	s.mu.RLock()
	var due []piracy.MonitoringTask
	for _, t := range s.tasks {
		if t.Status == piracy.JobStatusActive && t.NextRunAt != nil && !t.NextRunAt.After(now) {
			due = append(due, cloneTask(t))
		}
	}
	s.mu.RUnlock()
	sort.Slice(due, func(i, j int) bool { return due[i].NextRunAt.Before(*due[j].NextRunAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// RecordRun implements piracy.TaskStore. A nil nextRunAt keeps the stored value.
func (s *Store) RecordRun(_ context.Context, id string, ranAt time.Time, nextRunAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("record run %s: %w", id, piracy.ErrNotFound)
	}
	t.LastRunAt = cloneTime(&ranAt)
	if nextRunAt != nil {
		t.NextRunAt = cloneTime(nextRunAt)
	}
	t.RunCount++
	t.UpdatedAt = ranAt
	s.tasks[id] = t
	return nil
}

// TaskStats implements piracy.TaskStore.
func (s *Store) TaskStats(_ context.Context, tenantID string) (piracy.TaskStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st piracy.TaskStats
	for _, t := range s.tasks {
		if t.TenantID != tenantID {
			continue
		}
		st.TotalJobs++
		st.TotalRuns += t.RunCount
		if t.Status == piracy.JobStatusActive {
			st.ActiveJobs++
		}
	}
	return st, nil
}

// CreateCrawlResult implements piracy.CrawlResultStore.
func (s *Store) CreateCrawlResult(_ context.Context, r piracy.CrawlResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.results[r.ID]; exists {
		return fmt.Errorf("crawl result %s: %w", r.ID, piracy.ErrConflict)
	}
	s.results[r.ID] = cloneResult(r)
	return nil
}

// GetCrawlResult implements piracy.CrawlResultStore.
func (s *Store) GetCrawlResult(_ context.Context, id string) (piracy.CrawlResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[id]
	if !ok {
		return piracy.CrawlResult{}, fmt.Errorf("crawl result %s: %w", id, piracy.ErrNotFound)
	}
	return cloneResult(r), nil
}

// MarkProcessed implements piracy.CrawlResultStore.
func (s *Store) MarkProcessed(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[id]
	if !ok {
		return fmt.Errorf("mark processed %s: %w", id, piracy.ErrNotFound)
	}
	r.ProcessedAt = cloneTime(&at)
	s.results[id] = r
	return nil
}

func cloneResult(r piracy.CrawlResult) piracy.CrawlResult {
	headers := make(map[string]string, len(r.Headers))
	for k, v := range r.Headers {
		headers[k] = v
	}
	r.Headers = headers
	r.ProcessedAt = cloneTime(r.ProcessedAt)
	return r
}

// CreateEvidence implements piracy.DetectionStore.
func (s *Store) CreateEvidence(_ context.Context, e piracy.Evidence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.evidence[e.ID]; exists {
		return fmt.Errorf("evidence %s: %w", e.ID, piracy.ErrConflict)
	}
	s.evidence[e.ID] = e
	return nil
}

// GetEvidence implements piracy.DetectionStore.
func (s *Store) GetEvidence(_ context.Context, id string) (piracy.Evidence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.evidence[id]
	if !ok {
		return piracy.Evidence{}, fmt.Errorf("evidence %s: %w", id, piracy.ErrNotFound)
	}
	return e, nil
}

// CreateDetection enforces one detection per (crawl result, work) pair.
func (s *Store) CreateDetection(_ context.Context, d piracy.Detection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.detections {
		if existing.CrawlResultID == d.CrawlResultID && existing.WorkID == d.WorkID {
			return fmt.Errorf("detection for %s/%s: %w", d.CrawlResultID, d.WorkID, piracy.ErrConflict)
		}
	}
	d.Reasons = append([]string(nil), d.Reasons...)
	s.detections[d.ID] = d
	return nil
}

// RecordDetection implements piracy.DetectionStore.
func (s *Store) RecordDetection(_ context.Context, e piracy.Evidence, d piracy.Detection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.evidence[e.ID]; exists {
		return fmt.Errorf("evidence %s: %w", e.ID, piracy.ErrConflict)
	}
	for _, existing := range s.detections {
		if existing.CrawlResultID == d.CrawlResultID && existing.WorkID == d.WorkID {
			return fmt.Errorf("detection for %s/%s: %w", d.CrawlResultID, d.WorkID, piracy.ErrConflict)
		}
	}
	s.evidence[e.ID] = e
	d.EvidenceID = e.ID
	d.Reasons = append([]string(nil), d.Reasons...)
	s.detections[d.ID] = d
	return nil
}

// GetDetection implements piracy.DetectionStore.
func (s *Store) GetDetection(_ context.Context, id string) (piracy.Detection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.detections[id]
	if !ok {
		return piracy.Detection{}, fmt.Errorf("detection %s: %w", id, piracy.ErrNotFound)
	}
	d.Reasons = append([]string(nil), d.Reasons...)
	return d, nil
}

// UpdateDetectionStatus implements piracy.DetectionStore.
func (s *Store) UpdateDetectionStatus(_ context.Context, id string, status piracy.DetectionStatus, reviewedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.detections[id]
	if !ok {
		return fmt.Errorf("update detection %s: %w", id, piracy.ErrNotFound)
	}
	d.Status = status
	d.ReviewedAt = cloneTime(&reviewedAt)
	s.detections[id] = d
	return nil
}

// CreateCase enforces one case per detection.
func (s *Store) CreateCase(_ context.Context, c piracy.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.cases[c.ID]; exists {
		return fmt.Errorf("case %s: %w", c.ID, piracy.ErrConflict)
	}
	for _, existing := range s.cases {
		if existing.DetectionID == c.DetectionID {
			return fmt.Errorf("case for detection %s: %w", c.DetectionID, piracy.ErrConflict)
		}
	}
	s.cases[c.ID] = c
	return nil
}

// GetCase implements piracy.CaseStore.
func (s *Store) GetCase(_ context.Context, id string) (piracy.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[id]
	if !ok {
		return piracy.Case{}, fmt.Errorf("case %s: %w", id, piracy.ErrNotFound)
	}
	return c, nil
}

// CaseForDetection implements piracy.CaseStore.
func (s *Store) CaseForDetection(_ context.Context, detectionID string) (piracy.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.cases {
		if c.DetectionID == detectionID {
			return c, nil
		}
	}
	return piracy.Case{}, fmt.Errorf("case for detection %s: %w", detectionID, piracy.ErrNotFound)
}

// UpdateCaseStatus implements piracy.CaseStore.
func (s *Store) UpdateCaseStatus(_ context.Context, id string, status piracy.CaseStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cases[id]
	if !ok {
		return fmt.Errorf("update case %s: %w", id, piracy.ErrNotFound)
	}
	c.Status = status
	c.UpdatedAt = at
	s.cases[id] = c
	return nil
}

func cloneTakedown(r piracy.TakedownRequest) piracy.TakedownRequest {
	r.EvidenceURLs = append([]string(nil), r.EvidenceURLs...)
	if r.Response != nil {
		resp := make(map[string]any, len(r.Response))
		for k, v := range r.Response {
			resp[k] = v
		}
		r.Response = resp
	}
	r.LastAttemptAt = cloneTime(r.LastAttemptAt)
	r.SentAt = cloneTime(r.SentAt)
	r.RespondedAt = cloneTime(r.RespondedAt)
	return r
}

// CreateTakedown implements piracy.TakedownStore.
func (s *Store) CreateTakedown(_ context.Context, r piracy.TakedownRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.takedowns[r.ID]; exists {
		return fmt.Errorf("takedown %s: %w", r.ID, piracy.ErrConflict)
	}
	s.takedowns[r.ID] = cloneTakedown(r)
	return nil
}

// GetTakedown implements piracy.TakedownStore.
func (s *Store) GetTakedown(_ context.Context, id string) (piracy.TakedownRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.takedowns[id]
	if !ok {
		return piracy.TakedownRequest{}, fmt.Errorf("takedown %s: %w", id, piracy.ErrNotFound)
	}
	return cloneTakedown(r), nil
}

// ListTakedowns filters by tenant and, when non-empty, status. Newest first.
func (s *Store) ListTakedowns(_ context.Context, tenantID string, status piracy.TakedownStatus, page piracy.Page) ([]piracy.TakedownRequest, int, error) {
	page = page.Normalize()
	s.mu.RLock()
	var all []piracy.TakedownRequest
	for _, r := range s.takedowns {
		if r.TenantID != tenantID || (status != "" && r.Status != status) {
			continue
		}
		all = append(all, cloneTakedown(r))
	}
	s.mu.RUnlock()
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return window(all, page), len(all), nil
}

// SaveTakedownState writes status, response, attempts and timestamps.
func (s *Store) SaveTakedownState(_ context.Context, r piracy.TakedownRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.takedowns[r.ID]
	if !ok {
		return fmt.Errorf("save takedown %s: %w", r.ID, piracy.ErrNotFound)
	}
	next := cloneTakedown(r)
	cur.Status = next.Status
	cur.Response = next.Response
	cur.Attempts = next.Attempts
	cur.LastAttemptAt = next.LastAttemptAt
	cur.SentAt = next.SentAt
	cur.RespondedAt = next.RespondedAt
	s.takedowns[r.ID] = cur
	return nil
}

func window[T any](items []T, page piracy.Page) []T {
	start := page.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
