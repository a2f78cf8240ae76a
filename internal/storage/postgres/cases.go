package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/piracy"
)

const caseColumns = `id, tenant_id, detection_id, work_id, status, priority, created_at, updated_at`

func scanCase(row pgx.Row) (piracy.Case, error) {
	var (
		c      piracy.Case
		status string
	)
	if err := row.Scan(&c.ID, &c.TenantID, &c.DetectionID, &c.WorkID, &status, &c.Priority, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return piracy.Case{}, err
	}
	c.Status = piracy.CaseStatus(status)
	return c, nil
}

// CreateCase implements piracy.CaseStore. A second case for the same
// detection surfaces as ErrConflict.
func (s *Store) CreateCase(ctx context.Context, c piracy.Case) error {
	const q = `INSERT INTO cases (` + caseColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.db.Exec(ctx, q, c.ID, c.TenantID, c.DetectionID, c.WorkID, string(c.Status), c.Priority, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create case %s: %w", c.ID, mapError(err))
	}
	return nil
}

// GetCase implements piracy.CaseStore.
func (s *Store) GetCase(ctx context.Context, id string) (piracy.Case, error) {
	c, err := scanCase(s.db.QueryRow(ctx, `SELECT `+caseColumns+` FROM cases WHERE id = $1`, id))
	if err != nil {
		return piracy.Case{}, fmt.Errorf("get case %s: %w", id, mapError(err))
	}
	return c, nil
}

// CaseForDetection implements piracy.CaseStore.
func (s *Store) CaseForDetection(ctx context.Context, detectionID string) (piracy.Case, error) {
	c, err := scanCase(s.db.QueryRow(ctx, `SELECT `+caseColumns+` FROM cases WHERE detection_id = $1`, detectionID))
	if err != nil {
		return piracy.Case{}, fmt.Errorf("case for detection %s: %w", detectionID, mapError(err))
	}
	return c, nil
}

// UpdateCaseStatus implements piracy.CaseStore.
func (s *Store) UpdateCaseStatus(ctx context.Context, id string, status piracy.CaseStatus, at time.Time) error {
	tag, err := s.db.Exec(ctx, `UPDATE cases SET status = $2, updated_at = $3 WHERE id = $1`, id, string(status), at)
	if err != nil {
		return fmt.Errorf("update case %s: %w", id, mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update case %s: %w", id, piracy.ErrNotFound)
	}
	return nil
}
