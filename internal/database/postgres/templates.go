package postgres

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/facegate/internal/database"
)

// TemplateStore is a database.Store over the face_templates table. The serial id
// column carries insertion order.
type TemplateStore struct {
	pool *Pool
	dim  int
}

// NewTemplateStore creates a store on an existing pool. A dim of 0 skips the
// length check on append and leaves it to the database.
func NewTemplateStore(pool *Pool, dim int) *TemplateStore {
	return &TemplateStore{pool: pool, dim: dim}
}

// Name identifies the store in logs.
func (s *TemplateStore) Name() string {
	return "postgres:face_templates"
}

// Load returns all templates ordered by id.
func (s *TemplateStore) Load(ctx context.Context) ([]database.Record, error) {
	rows, err := s.pool.db.QueryContext(ctx, `
		SELECT label, embedding
		FROM face_templates
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	var records []database.Record
	for rows.Next() {
		var label string
		var vec pgvector.Vector
		if err := rows.Scan(&label, &vec); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		records = append(records, database.Record{Label: label, Embedding: vec.Slice()})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}
	return records, nil
}

// Append inserts one template. A single INSERT is atomic, so a failure leaves the
// table unchanged.
func (s *TemplateStore) Append(ctx context.Context, rec database.Record) error {
	if s.dim != 0 && len(rec.Embedding) != s.dim {
		return fmt.Errorf("%w: got %d values, expected %d", database.ErrDimensionMismatch, len(rec.Embedding), s.dim)
	}

	_, err := s.pool.db.ExecContext(ctx,
		"INSERT INTO face_templates (label, embedding) VALUES ($1, $2)",
		rec.Label, pgvector.NewVector(rec.Embedding),
	)
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

// Close closes the underlying pool.
func (s *TemplateStore) Close() error {
	return s.pool.Close()
}
