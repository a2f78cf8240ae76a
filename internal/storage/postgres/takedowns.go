package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/piracy"
)

const takedownColumns = `id, case_id, tenant_id, platform, template_used, request_payload,
	evidence_urls, status, response, attempts, last_attempt_at, sent_at, responded_at, created_at`

func scanTakedown(row pgx.Row) (piracy.TakedownRequest, error) {
	var (
		r                 piracy.TakedownRequest
		platform, status  string
		payload, response []byte
	)
	err := row.Scan(&r.ID, &r.CaseID, &r.TenantID, &platform, &r.TemplateUsed, &payload,
		&r.EvidenceURLs, &status, &response, &r.Attempts, &r.LastAttemptAt, &r.SentAt,
		&r.RespondedAt, &r.CreatedAt)
	if err != nil {
		return piracy.TakedownRequest{}, err
	}
	r.Platform = piracy.TakedownPlatform(platform)
	r.Status = piracy.TakedownStatus(status)
	if err := unmarshalJSON(payload, &r.RequestPayload); err != nil {
		return piracy.TakedownRequest{}, err
	}
	if err := unmarshalJSON(response, &r.Response); err != nil {
		return piracy.TakedownRequest{}, err
	}
	return r, nil
}

// responseColumn encodes a nil response as SQL NULL.
func responseColumn(resp map[string]any) ([]byte, error) {
	if resp == nil {
		return nil, nil
	}
	return marshalJSON(resp)
}

// CreateTakedown implements piracy.TakedownStore.
func (s *Store) CreateTakedown(ctx context.Context, r piracy.TakedownRequest) error {
	payload, err := marshalJSON(r.RequestPayload)
	if err != nil {
		return err
	}
	response, err := responseColumn(r.Response)
	if err != nil {
		return err
	}
	const q = `INSERT INTO takedown_requests (` + takedownColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err = s.db.Exec(ctx, q, r.ID, r.CaseID, r.TenantID, string(r.Platform), r.TemplateUsed, payload,
		nonNil(r.EvidenceURLs), string(r.Status), response, r.Attempts, r.LastAttemptAt, r.SentAt,
		r.RespondedAt, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("create takedown %s: %w", r.ID, mapError(err))
	}
	return nil
}

// GetTakedown implements piracy.TakedownStore.
func (s *Store) GetTakedown(ctx context.Context, id string) (piracy.TakedownRequest, error) {
	r, err := scanTakedown(s.db.QueryRow(ctx, `SELECT `+takedownColumns+` FROM takedown_requests WHERE id = $1`, id))
	if err != nil {
		return piracy.TakedownRequest{}, fmt.Errorf("get takedown %s: %w", id, mapError(err))
	}
	return r, nil
}

// ListTakedowns implements piracy.TakedownStore. An empty status lists all.
func (s *Store) ListTakedowns(ctx context.Context, tenantID string, status piracy.TakedownStatus, page piracy.Page) ([]piracy.TakedownRequest, int, error) {
	page = page.Normalize()
	const q = `SELECT ` + takedownColumns + ` FROM takedown_requests
		WHERE tenant_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`
	rows, err := s.db.Query(ctx, q, tenantID, string(status), page.Limit, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list takedowns: %w", mapError(err))
	}
	defer rows.Close()
	out := []piracy.TakedownRequest{}
	for rows.Next() {
		r, err := scanTakedown(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan takedown: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate takedowns: %w", err)
	}

	var total int
	const countQ = `SELECT count(*) FROM takedown_requests WHERE tenant_id = $1 AND ($2 = '' OR status = $2)`
	if err := s.db.QueryRow(ctx, countQ, tenantID, string(status)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count takedowns: %w", mapError(err))
	}
	return out, total, nil
}

// SaveTakedownState implements piracy.TakedownStore.
func (s *Store) SaveTakedownState(ctx context.Context, r piracy.TakedownRequest) error {
	response, err := responseColumn(r.Response)
	if err != nil {
		return err
	}
	const q = `UPDATE takedown_requests
		SET status = $2, response = $3, attempts = $4, last_attempt_at = $5, sent_at = $6, responded_at = $7
		WHERE id = $1`
	tag, err := s.db.Exec(ctx, q, r.ID, string(r.Status), response, r.Attempts, r.LastAttemptAt, r.SentAt, r.RespondedAt)
	if err != nil {
		return fmt.Errorf("save takedown %s: %w", r.ID, mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("save takedown %s: %w", r.ID, piracy.ErrNotFound)
	}
	return nil
}
