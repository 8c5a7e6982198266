// Package database holds the enrolled face templates, ordered by insertion, and
// answers nearest-neighbour queries against them.
package database

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/kozaktomas/facegate/internal/facematch"
)

// Database is the in-memory view of a Store. Records are kept in insertion order,
// which is also the tie-break order for Nearest.
type Database struct {
	mu      sync.RWMutex
	store   Store
	records []Record
	dim     int
}

// Open loads every record from store. Labels are normalized with
// facematch.NormalizeLabel, so legacy files written with stray spaces or decomposed
// characters compare equal to configured labels. A dim of 0 lets the first record
// establish the dimension. Any failure is returned as a *LoadError.
func Open(ctx context.Context, store Store, dim int) (*Database, error) {
	records, err := store.Load(ctx)
	if err != nil {
		return nil, &LoadError{Source: store.Name(), Err: err}
	}

	for i := range records {
		rec := &records[i]
		rec.Label = facematch.NormalizeLabel(rec.Label)
		if rec.Label == "" {
			return nil, &LoadError{Source: store.Name(), Err: &ParseError{Line: i + 1, Reason: "missing label", Err: ErrEmptyLabel}}
		}
		if dim == 0 {
			dim = len(rec.Embedding)
		}
		if len(rec.Embedding) != dim || dim == 0 {
			return nil, &LoadError{Source: store.Name(), Err: &ParseError{
				Line:   i + 1,
				Reason: fmt.Sprintf("vector has %d values, expected %d", len(rec.Embedding), dim),
				Err:    ErrDimensionMismatch,
			}}
		}
		if err := CheckFinite(rec.Embedding); err != nil {
			return nil, &LoadError{Source: store.Name(), Err: &ParseError{Line: i + 1, Reason: "invalid vector", Err: err}}
		}
	}

	return &Database{store: store, records: records, dim: dim}, nil
}

// Append persists a new template under the normalized label and then adds it to
// memory. Records the store refuses to represent fail with its validation error
// (ErrInvalidLabel, ErrInvalidValue, ErrDimensionMismatch). Any other store failure
// is a *PersistError. Either way the in-memory sequence is left as it was.
func (d *Database) Append(ctx context.Context, label string, embedding Vector) error {
	label = facematch.NormalizeLabel(label)
	if label == "" {
		return ErrEmptyLabel
	}
	if strings.ContainsAny(label, "\r\n") {
		return fmt.Errorf("%w: %q must not contain line breaks", ErrInvalidLabel, label)
	}
	if err := CheckFinite(embedding); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if len(embedding) == 0 {
		return fmt.Errorf("%w: empty embedding", ErrDimensionMismatch)
	}
	if d.dim != 0 && len(embedding) != d.dim {
		return fmt.Errorf("%w: got %d values, expected %d", ErrDimensionMismatch, len(embedding), d.dim)
	}

	rec := Record{Label: label, Embedding: slices.Clone(embedding)}
	if err := d.store.Append(ctx, rec); err != nil {
		if validationError(err) {
			return err
		}
		return &PersistError{Label: label, Err: err}
	}

	d.records = append(d.records, rec)
	if d.dim == 0 {
		d.dim = len(rec.Embedding)
	}
	return nil
}

// Nearest returns the record with the smallest Euclidean distance to query. Among
// equally distant records the earliest inserted wins. An empty database returns an
// unknown match at +Inf.
func (d *Database) Nearest(query Vector) (Match, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return nearest(d.records, d.dim, query)
}

func nearest(records []Record, dim int, query Vector) (Match, error) {
	best := noMatch()
	if len(records) == 0 {
		return best, nil
	}
	if len(query) != dim {
		return best, fmt.Errorf("%w: query has %d values, expected %d", ErrDimensionMismatch, len(query), dim)
	}

	for i := range records {
		// Strict comparison keeps the first record on ties.
		if dist := EuclideanDistance(query, records[i].Embedding); dist < best.Distance {
			best = Match{Label: records[i].Label, Distance: dist, Position: i}
		}
	}
	return best, nil
}

// Len returns the number of templates.
func (d *Database) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.records)
}

// Dim returns the embedding dimension, 0 while it is not yet established.
func (d *Database) Dim() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.dim
}

// Records returns a copy of all records in insertion order.
func (d *Database) Records() []Record {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Record, len(d.records))
	for i, rec := range d.records {
		out[i] = Record{Label: rec.Label, Embedding: slices.Clone(rec.Embedding)}
	}
	return out
}

// Labels returns the template count per label in order of first enrollment.
func (d *Database) Labels() []LabelCount {
	d.mu.RLock()
	defer d.mu.RUnlock()

	index := make(map[string]int)
	var out []LabelCount
	for _, rec := range d.records {
		if i, ok := index[rec.Label]; ok {
			out[i].Templates++
			continue
		}
		index[rec.Label] = len(out)
		out = append(out, LabelCount{Label: rec.Label, Templates: 1})
	}
	return out
}

// StoreName identifies the backing store.
func (d *Database) StoreName() string {
	return d.store.Name()
}

// Close closes the backing store.
func (d *Database) Close() error {
	if err := d.store.Close(); err != nil {
		return fmt.Errorf("closing template store: %w", err)
	}
	return nil
}
