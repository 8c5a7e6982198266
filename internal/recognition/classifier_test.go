package recognition

import (
	"errors"
	"math"
	"testing"

	"github.com/kozaktomas/facegate/internal/database"
)

func TestClassify(t *testing.T) {
	db, _ := openDB(t,
		database.Record{Label: "Ali", Embedding: database.Vector{0, 0, 0}},
		database.Record{Label: "Sara", Embedding: database.Vector{1, 0, 0}},
	)
	c := NewClassifier(db, 0.25)

	tests := []struct {
		name        string
		query       database.Vector
		wantLabel   string
		wantNearest string
		wantDist    float64
	}{
		{"exact match", database.Vector{0, 0, 0}, "Ali", "Ali", 0},
		{"inside threshold", database.Vector{0.9, 0, 0}, "Sara", "Sara", 0.1},
		{"boundary is unknown", database.Vector{0.25, 0, 0}, "", "Ali", 0.25},
		{"outside threshold", database.Vector{0, 0.5, 0}, "", "Ali", 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := c.Classify(tt.query)
			if err != nil {
				t.Fatalf("Classify failed: %v", err)
			}
			if d.Label != tt.wantLabel {
				t.Errorf("Label = %q, want %q", d.Label, tt.wantLabel)
			}
			if d.Nearest != tt.wantNearest {
				t.Errorf("Nearest = %q, want %q", d.Nearest, tt.wantNearest)
			}
			if math.Abs(d.Distance-tt.wantDist) > 1e-6 {
				t.Errorf("Distance = %v, want %v", d.Distance, tt.wantDist)
			}
			if d.Known() != (tt.wantLabel != "") {
				t.Errorf("Known() = %v", d.Known())
			}
		})
	}
}

func TestClassify_EmptyDatabase(t *testing.T) {
	db, _ := openDB(t)
	d, err := NewClassifier(db, 0.25).Classify(database.Vector{0, 0, 0})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if d.Known() || d.Nearest != "" || !math.IsInf(d.Distance, 1) {
		t.Errorf("expected unknown at +Inf, got %+v", d)
	}
}

func TestClassify_HugeThresholdStillUnknownWhenEmpty(t *testing.T) {
	db, _ := openDB(t)
	d, _ := NewClassifier(db, math.Inf(1)).Classify(database.Vector{0, 0, 0})
	if d.Known() {
		t.Errorf("empty database must never classify as known, got %+v", d)
	}
}

func TestClassify_DimensionMismatch(t *testing.T) {
	db, _ := openDB(t, database.Record{Label: "Ali", Embedding: database.Vector{0, 0, 0}})
	_, err := NewClassifier(db, 0.25).Classify(database.Vector{0, 0})
	if !errors.Is(err, database.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestClassify_HNSWMatchesExact(t *testing.T) {
	records := []database.Record{
		{Label: "Ali", Embedding: database.Vector{0, 0, 0}},
		{Label: "Sara", Embedding: database.Vector{1, 0, 0}},
		{Label: "Jan", Embedding: database.Vector{0, 1, 0}},
	}
	db, _ := openDB(t, records...)
	idx, err := database.NewHNSWIndex(records, 3)
	if err != nil {
		t.Fatalf("NewHNSWIndex failed: %v", err)
	}

	exact, approx := NewClassifier(db, 0.25), NewClassifier(idx, 0.25)
	for _, q := range []database.Vector{{0.1, 0, 0}, {0.95, 0.05, 0}, {0, 0.8, 0}, {0.5, 0.5, 0.5}} {
		want, _ := exact.Classify(q)
		got, err := approx.Classify(q)
		if err != nil {
			t.Fatalf("Classify failed: %v", err)
		}
		if got != want {
			t.Errorf("query %v: hnsw %+v, exact %+v", q, got, want)
		}
	}
}
