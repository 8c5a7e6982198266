package database

import (
	"context"
	"math"
)

// Vector is a face embedding. Every vector held by one Database has the same length.
type Vector []float32

// Record is one enrolled template. Several records may share a label.
type Record struct {
	Label     string
	Embedding Vector
}

// Match is the result of a nearest-neighbour lookup.
// An empty Label means no template was found.
type Match struct {
	Label    string
	Distance float64
	Position int // insertion index of the matched record, -1 when none
}

// Known reports whether the match names a template.
func (m Match) Known() bool {
	return m.Label != ""
}

// noMatch is returned for an empty database.
func noMatch() Match {
	return Match{Distance: math.Inf(1), Position: -1}
}

// LabelCount is the number of templates enrolled under one label.
type LabelCount struct {
	Label     string `json:"label"`
	Templates int    `json:"templates"`
}

// Store persists templates. Load returns records in insertion order and Append adds
// exactly one record at the end, either completely or not at all.
type Store interface {
	// Name identifies the backing store in errors and logs
	Name() string
	// Load reads every record in insertion order
	Load(ctx context.Context) ([]Record, error)
	// Append persists one record after all existing ones
	Append(ctx context.Context, rec Record) error
	// Close releases the store
	Close() error
}

// Matcher finds the template closest to a query.
type Matcher interface {
	Nearest(query Vector) (Match, error)
}
