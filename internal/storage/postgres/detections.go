package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/piracy"
)

// CreateEvidence implements piracy.DetectionStore.
func (s *Store) CreateEvidence(ctx context.Context, e piracy.Evidence) error {
	metadata, err := marshalJSON(e.Metadata)
	if err != nil {
		return err
	}
	const q = `INSERT INTO evidence (id, storage_path, content_type, sha256, simhash, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := s.db.Exec(ctx, q, e.ID, e.StoragePath, e.ContentType, e.SHA256, e.Simhash, metadata, e.CreatedAt); err != nil {
		return fmt.Errorf("create evidence %s: %w", e.ID, mapError(err))
	}
	return nil
}

// GetEvidence implements piracy.DetectionStore.
func (s *Store) GetEvidence(ctx context.Context, id string) (piracy.Evidence, error) {
	const q = `SELECT id, storage_path, content_type, sha256, simhash, metadata, created_at
		FROM evidence WHERE id = $1`
	var (
		e        piracy.Evidence
		metadata []byte
	)
	err := s.db.QueryRow(ctx, q, id).Scan(&e.ID, &e.StoragePath, &e.ContentType, &e.SHA256,
		&e.Simhash, &metadata, &e.CreatedAt)
	if err != nil {
		return piracy.Evidence{}, fmt.Errorf("get evidence %s: %w", id, mapError(err))
	}
	if err := unmarshalJSON(metadata, &e.Metadata); err != nil {
		return piracy.Evidence{}, fmt.Errorf("get evidence %s: %w", id, err)
	}
	return e, nil
}

// CreateDetection implements piracy.DetectionStore. The
// (crawl_result_id, work_id) constraint surfaces as ErrConflict.
func (s *Store) CreateDetection(ctx context.Context, d piracy.Detection) error {
	const q = `INSERT INTO detections (id, work_id, crawl_result_id, url, domain, score, confidence,
			reasons, fingerprint_match, evidence_id, status, reviewed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := s.db.Exec(ctx, q, d.ID, d.WorkID, d.CrawlResultID, d.URL, d.Domain, d.Score,
		string(d.Confidence), nonNil(d.Reasons), d.FingerprintMatch, d.EvidenceID, string(d.Status),
		d.ReviewedAt, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("create detection %s: %w", d.ID, mapError(err))
	}
	return nil
}

// RecordDetection implements piracy.DetectionStore. Both rows are written by
// one statement, so a uniqueness violation on the detection also discards
// the evidence row.
func (s *Store) RecordDetection(ctx context.Context, e piracy.Evidence, d piracy.Detection) error {
	metadata, err := marshalJSON(e.Metadata)
	if err != nil {
		return err
	}
	const q = `WITH ev AS (
			INSERT INTO evidence (id, storage_path, content_type, sha256, simhash, metadata, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		)
		INSERT INTO detections (id, work_id, crawl_result_id, url, domain, score, confidence,
			reasons, fingerprint_match, evidence_id, status, reviewed_at, created_at)
		SELECT $8, $9, $10, $11, $12, $13, $14, $15, $16, ev.id, $17, $18, $19 FROM ev`
	_, err = s.db.Exec(ctx, q,
		e.ID, e.StoragePath, e.ContentType, e.SHA256, e.Simhash, metadata, e.CreatedAt,
		d.ID, d.WorkID, d.CrawlResultID, d.URL, d.Domain, d.Score, string(d.Confidence),
		nonNil(d.Reasons), d.FingerprintMatch, string(d.Status), d.ReviewedAt, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("record detection %s: %w", d.ID, mapError(err))
	}
	return nil
}

// GetDetection implements piracy.DetectionStore.
func (s *Store) GetDetection(ctx context.Context, id string) (piracy.Detection, error) {
	const q = `SELECT id, work_id, crawl_result_id, url, domain, score, confidence, reasons,
			fingerprint_match, evidence_id, status, reviewed_at, created_at
		FROM detections WHERE id = $1`
	var (
		d                  piracy.Detection
		confidence, status string
	)
	err := s.db.QueryRow(ctx, q, id).Scan(&d.ID, &d.WorkID, &d.CrawlResultID, &d.URL, &d.Domain,
		&d.Score, &confidence, &d.Reasons, &d.FingerprintMatch, &d.EvidenceID, &status,
		&d.ReviewedAt, &d.CreatedAt)
	if err != nil {
		return piracy.Detection{}, fmt.Errorf("get detection %s: %w", id, mapError(err))
	}
	d.Confidence = piracy.ConfidenceLevel(confidence)
	d.Status = piracy.DetectionStatus(status)
	return d, nil
}

// UpdateDetectionStatus implements piracy.DetectionStore.
func (s *Store) UpdateDetectionStatus(ctx context.Context, id string, status piracy.DetectionStatus, reviewedAt time.Time) error {
	tag, err := s.db.Exec(ctx, `UPDATE detections SET status = $2, reviewed_at = $3 WHERE id = $1`,
		id, string(status), reviewedAt)
	if err != nil {
		return fmt.Errorf("update detection %s: %w", id, mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update detection %s: %w", id, piracy.ErrNotFound)
	}
	return nil
}
