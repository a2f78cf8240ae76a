// Package takedown creates takedown requests and manages their lifecycle
// outside the delivery worker.
package takedown

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/piracy"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/templates"
)

const defaultClaimant = "Rights Holder"

// Deps groups the collaborators of Service.
type Deps struct {
	Takedowns  piracy.TakedownStore
	Cases      piracy.CaseStore
	Detections piracy.DetectionStore
	Works      piracy.WorkStore
	Queue      piracy.Queue
	Templates  *templates.Registry
	Clock      piracy.Clock
	IDs        piracy.IDGenerator
}

// Service is the takedown request API.
type Service struct {
	deps   Deps
	logger *zap.Logger
}

// CreateInput describes a new takedown request.
type CreateInput struct {
	CaseID     string                  `json:"caseId"`
	Platform   piracy.TakedownPlatform `json:"platform"`
	TemplateID string                  `json:"templateId"`
	// AdditionalData overrides the defaults derived from the case.
	AdditionalData map[string]string `json:"additionalData,omitempty"`
}

// New constructs a Service.
func New(deps Deps, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{deps: deps, logger: logger.Named("takedown")}
}

// Create renders a notice for a case, persists it as PENDING and queues
// delivery. Nothing is persisted or queued when required fields are missing.
func (s *Service) Create(ctx context.Context, tenantID string, in CreateInput) (piracy.TakedownRequest, error) {
	c, err := s.deps.Cases.GetCase(ctx, in.CaseID)
	if err != nil {
		return piracy.TakedownRequest{}, fmt.Errorf("load case: %w", err)
	}
	if c.TenantID != tenantID {
		return piracy.TakedownRequest{}, fmt.Errorf("case %s: %w", in.CaseID, piracy.ErrNotFound)
	}
	tmpl, ok := s.deps.Templates.Get(in.TemplateID)
	if !ok {
		return piracy.TakedownRequest{}, fmt.Errorf("%w: template %q not found", piracy.ErrValidation, in.TemplateID)
	}
	platform := in.Platform
	if platform == "" {
		platform = tmpl.Platform
	}
	if !platform.Valid() {
		return piracy.TakedownRequest{}, fmt.Errorf("%w: unknown platform %q", piracy.ErrValidation, platform)
	}

	data, evidenceURLs, err := s.noticeData(ctx, c)
	if err != nil {
		return piracy.TakedownRequest{}, err
	}
	data = data.Merge(in.AdditionalData)
	if missing := s.deps.Templates.Validate(tmpl.ID, data); len(missing) > 0 {
		return piracy.TakedownRequest{}, fmt.Errorf("%w: Missing required fields: %s", piracy.ErrValidation, strings.Join(missing, ", "))
	}
	rendered, err := s.deps.Templates.Render(tmpl.ID, data)
	if err != nil {
		return piracy.TakedownRequest{}, fmt.Errorf("render notice: %w", err)
	}

	id, err := s.deps.IDs.NewID()
	if err != nil {
		return piracy.TakedownRequest{}, fmt.Errorf("generate id: %w", err)
	}
	now := s.deps.Clock.Now()
	req := piracy.TakedownRequest{
		ID:           id,
		CaseID:       c.ID,
		TenantID:     tenantID,
		Platform:     platform,
		TemplateUsed: tmpl.ID,
		RequestPayload: piracy.TakedownPayload{
			Subject:      rendered.Subject,
			Body:         rendered.Body,
			TemplateData: data,
		},
		EvidenceURLs: evidenceURLs,
		Status:       piracy.TakedownPending,
		CreatedAt:    now,
	}
	if err := s.deps.Takedowns.CreateTakedown(ctx, req); err != nil {
		return piracy.TakedownRequest{}, fmt.Errorf("create takedown: %w", err)
	}
	if err := s.deps.Cases.UpdateCaseStatus(ctx, c.ID, piracy.CaseStatusRemovalRequested, now); err != nil {
		return piracy.TakedownRequest{}, fmt.Errorf("update case: %w", err)
	}
	if err := s.enqueue(ctx, req, 1, piracy.TakedownDelivery); err != nil {
		return piracy.TakedownRequest{}, err
	}
	s.logger.Info("takedown created",
		zap.String("takedown_id", id),
		zap.String("case_id", c.ID),
		zap.String("platform", string(platform)),
		zap.String("template", tmpl.ID),
	)
	return req, nil
}

func (s *Service) noticeData(ctx context.Context, c piracy.Case) (piracy.NoticeData, []string, error) {
	d, err := s.deps.Detections.GetDetection(ctx, c.DetectionID)
	if err != nil {
		return piracy.NoticeData{}, nil, fmt.Errorf("load detection: %w", err)
	}
	work, err := s.deps.Works.GetWork(ctx, c.WorkID)
	if err != nil {
		return piracy.NoticeData{}, nil, fmt.Errorf("load work: %w", err)
	}
	data := piracy.NoticeData{
		WorkTitle:     work.Title,
		WorkAuthor:    work.Author,
		WorkISBN:      work.ISBN,
		InfringingURL: d.URL,
		Domain:        d.Domain,
		ClaimantName:  defaultClaimant,
		DetectionDate: d.CreatedAt.UTC().Format("2006-01-02"),
	}
	tenant, err := s.deps.Works.GetTenant(ctx, c.TenantID)
	switch {
	case err == nil:
		if tenant.Name != "" {
			data.ClaimantName = tenant.Name
		}
		data.ClaimantEmail = tenant.Email
	case !errors.Is(err, piracy.ErrNotFound):
		return piracy.NoticeData{}, nil, fmt.Errorf("load tenant: %w", err)
	}

	var evidenceURLs []string
	if d.EvidenceID != "" {
		ev, err := s.deps.Detections.GetEvidence(ctx, d.EvidenceID)
		switch {
		case err == nil:
			evidenceURLs = append(evidenceURLs, ev.StoragePath)
			data.EvidenceURL = ev.StoragePath
		case !errors.Is(err, piracy.ErrNotFound):
			return piracy.NoticeData{}, nil, fmt.Errorf("load evidence: %w", err)
		}
	}
	return data, evidenceURLs, nil
}

func (s *Service) enqueue(ctx context.Context, req piracy.TakedownRequest, attempt int, opts piracy.EnqueueOptions) error {
	msg := piracy.TakedownMessage{
		CaseID:            req.CaseID,
		TakedownRequestID: req.ID,
		Platform:          req.Platform,
		Attempt:           attempt,
	}
	if _, err := piracy.Publish(ctx, s.deps.Queue, piracy.TopicTakedown, msg, opts); err != nil {
		return err
	}
	return nil
}

// Get returns a takedown request owned by tenantID.
func (s *Service) Get(ctx context.Context, id, tenantID string) (piracy.TakedownRequest, error) {
	req, err := s.deps.Takedowns.GetTakedown(ctx, id)
	if err != nil {
		return piracy.TakedownRequest{}, fmt.Errorf("load takedown: %w", err)
	}
	if req.TenantID != tenantID {
		return piracy.TakedownRequest{}, fmt.Errorf("takedown %s: %w", id, piracy.ErrNotFound)
	}
	return req, nil
}

// List pages through a tenant's requests, optionally filtered by status.
func (s *Service) List(ctx context.Context, tenantID string, status piracy.TakedownStatus, page piracy.Page) ([]piracy.TakedownRequest, int, error) {
	if status != "" && !status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", piracy.ErrValidation, status)
	}
	reqs, total, err := s.deps.Takedowns.ListTakedowns(ctx, tenantID, status, page.Normalize())
	if err != nil {
		return nil, 0, fmt.Errorf("list takedowns: %w", err)
	}
	return reqs, total, nil
}

// Retry re-queues a FAILED or REJECTED request for one more delivery.
func (s *Service) Retry(ctx context.Context, id, tenantID string) (piracy.TakedownRequest, error) {
	req, err := s.Get(ctx, id, tenantID)
	if err != nil {
		return piracy.TakedownRequest{}, err
	}
	if !req.Status.Retriable() {
		return piracy.TakedownRequest{}, fmt.Errorf("takedown %s is %s: %w", id, req.Status, piracy.ErrNotRetriable)
	}
	req.Status = piracy.TakedownPending
	if err := s.deps.Takedowns.SaveTakedownState(ctx, req); err != nil {
		return piracy.TakedownRequest{}, fmt.Errorf("save takedown: %w", err)
	}
	if err := s.enqueue(ctx, req, req.Attempts+1, piracy.ManualRetryDelivery); err != nil {
		return piracy.TakedownRequest{}, err
	}
	s.logger.Info("takedown retry queued", zap.String("takedown_id", id), zap.Int("attempt", req.Attempts+1))
	return req, nil
}

// UpdateStatus records a platform response: ACKNOWLEDGED, REMOVED, REJECTED
// or FAILED. PENDING and SENT belong to delivery; requeueing goes through Retry.
func (s *Service) UpdateStatus(ctx context.Context, id, tenantID string, status piracy.TakedownStatus, response map[string]any) (piracy.TakedownRequest, error) {
	req, err := s.Get(ctx, id, tenantID)
	if err != nil {
		return piracy.TakedownRequest{}, err
	}
	switch status {
	case piracy.TakedownPending:
		return piracy.TakedownRequest{}, fmt.Errorf("%w: %s -> %s: use POST /v1/takedowns/%s/retry to requeue",
			piracy.ErrInvalidTransition, req.Status, status, id)
	case piracy.TakedownSent:
		return piracy.TakedownRequest{}, fmt.Errorf("%w: %s -> %s: SENT is only set by delivery",
			piracy.ErrInvalidTransition, req.Status, status)
	}
	next, err := piracy.Transition(req.Status, status)
	if err != nil {
		return piracy.TakedownRequest{}, err
	}
	now := s.deps.Clock.Now()
	req.Status = next
	req.RespondedAt = &now
	if response != nil {
		req.Response = response
	}
	if err := s.deps.Takedowns.SaveTakedownState(ctx, req); err != nil {
		return piracy.TakedownRequest{}, fmt.Errorf("save takedown: %w", err)
	}
	if next == piracy.TakedownRemoved {
		if err := s.deps.Cases.UpdateCaseStatus(ctx, req.CaseID, piracy.CaseStatusRemoved, now); err != nil {
			return piracy.TakedownRequest{}, fmt.Errorf("update case: %w", err)
		}
	}
	return req, nil
}

// Templates lists the available notices, optionally for one platform.
func (s *Service) Templates(platform piracy.TakedownPlatform) []templates.Template {
	if platform == "" {
		return s.deps.Templates.All()
	}
	return s.deps.Templates.ForPlatform(platform)
}
