// Package detections implements analyst review of detections.
package detections

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/piracy"
)

// Service reviews detections and opens cases for validated ones.
type Service struct {
	detections piracy.DetectionStore
	cases      piracy.CaseStore
	works      piracy.WorkStore
	clock      piracy.Clock
	ids        piracy.IDGenerator
	logger     *zap.Logger
}

// New constructs a Service.
func New(
	detections piracy.DetectionStore,
	cases piracy.CaseStore,
	works piracy.WorkStore,
	clock piracy.Clock,
	ids piracy.IDGenerator,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		detections: detections,
		cases:      cases,
		works:      works,
		clock:      clock,
		ids:        ids,
		logger:     logger.Named("detections"),
	}
}

// Get returns a detection whose work belongs to tenantID.
func (s *Service) Get(ctx context.Context, id, tenantID string) (piracy.Detection, piracy.Work, error) {
	d, err := s.detections.GetDetection(ctx, id)
	if err != nil {
		return piracy.Detection{}, piracy.Work{}, fmt.Errorf("load detection: %w", err)
	}
	work, err := s.works.GetWork(ctx, d.WorkID)
	if err != nil {
		return piracy.Detection{}, piracy.Work{}, fmt.Errorf("load work: %w", err)
	}
	if work.TenantID != tenantID {
		return piracy.Detection{}, piracy.Work{}, fmt.Errorf("detection %s: %w", id, piracy.ErrNotFound)
	}
	return d, work, nil
}

// UpdateStatus records a review decision. VALIDATED opens a case unless the
// detection already has one.
func (s *Service) UpdateStatus(ctx context.Context, id, tenantID string, status piracy.DetectionStatus) (piracy.Detection, error) {
	if !status.Valid() {
		return piracy.Detection{}, fmt.Errorf("%w: unknown detection status %q", piracy.ErrValidation, status)
	}
	d, work, err := s.Get(ctx, id, tenantID)
	if err != nil {
		return piracy.Detection{}, err
	}
	now := s.clock.Now()
	if err := s.detections.UpdateDetectionStatus(ctx, id, status, now); err != nil {
		return piracy.Detection{}, fmt.Errorf("update detection: %w", err)
	}
	d.Status = status
	d.ReviewedAt = &now

	if status == piracy.DetectionStatusValidated {
		if err := s.openCase(ctx, d, work, now); err != nil {
			return piracy.Detection{}, err
		}
	}
	return d, nil
}

func (s *Service) openCase(ctx context.Context, d piracy.Detection, work piracy.Work, now time.Time) error {
	_, err := s.cases.CaseForDetection(ctx, d.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, piracy.ErrNotFound) {
		return fmt.Errorf("load case: %w", err)
	}
	id, err := s.ids.NewID()
	if err != nil {
		return fmt.Errorf("generate id: %w", err)
	}
	c := piracy.Case{
		ID:          id,
		TenantID:    work.TenantID,
		DetectionID: d.ID,
		WorkID:      d.WorkID,
		Status:      piracy.CaseStatusNew,
		Priority:    int(math.Round(d.Score * 10)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.cases.CreateCase(ctx, c)
	if errors.Is(err, piracy.ErrConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create case: %w", err)
	}
	s.logger.Info("case created", zap.String("case_id", id), zap.String("detection_id", d.ID), zap.Int("priority", c.Priority))
	return nil
}
