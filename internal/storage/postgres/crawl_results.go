package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/piracy"
)

// CreateCrawlResult implements piracy.CrawlResultStore.
func (s *Store) CreateCrawlResult(ctx context.Context, r piracy.CrawlResult) error {
	headers, err := marshalJSON(r.Headers)
	if err != nil {
		return err
	}
	const q = `INSERT INTO crawl_results (id, job_id, url, domain, status_code, content_type,
			headers, raw_content_ref, screenshot_ref, crawled_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = s.db.Exec(ctx, q, r.ID, r.JobID, r.URL, r.Domain, r.StatusCode, r.ContentType,
		headers, r.RawContentRef, r.ScreenshotRef, r.CrawledAt, r.ProcessedAt)
	if err != nil {
		return fmt.Errorf("create crawl result %s: %w", r.ID, mapError(err))
	}
	return nil
}

// GetCrawlResult implements piracy.CrawlResultStore.
func (s *Store) GetCrawlResult(ctx context.Context, id string) (piracy.CrawlResult, error) {
	const q = `SELECT id, job_id, url, domain, status_code, content_type, headers,
			raw_content_ref, screenshot_ref, crawled_at, processed_at
		FROM crawl_results WHERE id = $1`
	var (
		r       piracy.CrawlResult
		headers []byte
	)
	err := s.db.QueryRow(ctx, q, id).Scan(&r.ID, &r.JobID, &r.URL, &r.Domain, &r.StatusCode,
		&r.ContentType, &headers, &r.RawContentRef, &r.ScreenshotRef, &r.CrawledAt, &r.ProcessedAt)
	if err != nil {
		return piracy.CrawlResult{}, fmt.Errorf("get crawl result %s: %w", id, mapError(err))
	}
	if err := unmarshalJSON(headers, &r.Headers); err != nil {
		return piracy.CrawlResult{}, fmt.Errorf("get crawl result %s: %w", id, err)
	}
	return r, nil
}

// MarkProcessed implements piracy.CrawlResultStore.
func (s *Store) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	tag, err := s.db.Exec(ctx, `UPDATE crawl_results SET processed_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("mark processed %s: %w", id, mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark processed %s: %w", id, piracy.ErrNotFound)
	}
	return nil
}
