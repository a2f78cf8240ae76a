package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/piracy"
)

// Store implements the piracy repositories over one DB handle.
type Store struct {
	db DB
}

// New wraps db.
func New(db DB) *Store {
	return &Store{db: db}
}

var (
	_ piracy.WorkStore        = (*Store)(nil)
	_ piracy.TaskStore        = (*Store)(nil)
	_ piracy.CrawlResultStore = (*Store)(nil)
	_ piracy.DetectionStore   = (*Store)(nil)
	_ piracy.CaseStore        = (*Store)(nil)
	_ piracy.TakedownStore    = (*Store)(nil)
)

// GetWork implements piracy.WorkStore.
func (s *Store) GetWork(ctx context.Context, id string) (piracy.Work, error) {
	const q = `SELECT id, tenant_id, title, author, isbn, keywords, reference_simhash
		FROM works WHERE id = $1`
	var w piracy.Work
	err := s.db.QueryRow(ctx, q, id).Scan(
		&w.ID, &w.TenantID, &w.Title, &w.Author, &w.ISBN, &w.Keywords, &w.ReferenceSimhash,
	)
	if err != nil {
		return piracy.Work{}, fmt.Errorf("get work %s: %w", id, mapError(err))
	}
	return w, nil
}

// GetTenant implements piracy.WorkStore.
func (s *Store) GetTenant(ctx context.Context, id string) (piracy.Tenant, error) {
	const q = `SELECT id, name, email FROM tenants WHERE id = $1`
	var t piracy.Tenant
	if err := s.db.QueryRow(ctx, q, id).Scan(&t.ID, &t.Name, &t.Email); err != nil {
		return piracy.Tenant{}, fmt.Errorf("get tenant %s: %w", id, mapError(err))
	}
	return t, nil
}

// SaveTenant upserts a tenant. Tenant administration owns these rows; the
// seed command uses it for local environments.
func (s *Store) SaveTenant(ctx context.Context, t piracy.Tenant) error {
	const q = `INSERT INTO tenants (id, name, email) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email`
	if _, err := s.db.Exec(ctx, q, t.ID, t.Name, t.Email); err != nil {
		return fmt.Errorf("save tenant %s: %w", t.ID, mapError(err))
	}
	return nil
}

// SaveWork upserts a work.
func (s *Store) SaveWork(ctx context.Context, w piracy.Work) error {
	const q = `INSERT INTO works (id, tenant_id, title, author, isbn, keywords, reference_simhash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, author = EXCLUDED.author,
			isbn = EXCLUDED.isbn, keywords = EXCLUDED.keywords,
			reference_simhash = EXCLUDED.reference_simhash`
	keywords := w.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	if _, err := s.db.Exec(ctx, q, w.ID, w.TenantID, w.Title, w.Author, w.ISBN, keywords, w.ReferenceSimhash); err != nil {
		return fmt.Errorf("save work %s: %w", w.ID, mapError(err))
	}
	return nil
}

func marshalJSON(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json column: %w", err)
	}
	return b, nil
}

func unmarshalJSON(b []byte, v any) error {
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode json column: %w", err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
