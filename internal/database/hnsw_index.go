package database

import (
	"fmt"
	"slices"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWIndex answers Nearest through an approximate HNSW graph over the templates.
// The graph proposes candidates, which are then ranked by exact Euclidean distance
// with ties broken by insertion position. On large databases the true nearest
// template can be missed; Database.Nearest is the exact reference.
type HNSWIndex struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[int] // keyed by insertion position
	records []Record
	dim     int
}

func newGraph() *hnsw.Graph[int] {
	g := hnsw.NewGraph[int]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.EuclideanDistance
	return g
}

// NewHNSWIndex builds an index over records, which must all have length dim.
func NewHNSWIndex(records []Record, dim int) (*HNSWIndex, error) {
	h := &HNSWIndex{graph: newGraph(), dim: dim}
	for _, rec := range records {
		if err := h.add(rec); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Add indexes one more template at the next insertion position.
func (h *HNSWIndex) Add(rec Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.add(rec)
}

func (h *HNSWIndex) add(rec Record) error {
	if h.dim == 0 {
		h.dim = len(rec.Embedding)
	}
	if len(rec.Embedding) != h.dim || h.dim == 0 {
		return fmt.Errorf("%w: got %d values, expected %d", ErrDimensionMismatch, len(rec.Embedding), h.dim)
	}

	rec.Embedding = slices.Clone(rec.Embedding)
	pos := len(h.records)
	h.records = append(h.records, rec)
	h.graph.Add(hnsw.MakeNode(pos, []float32(rec.Embedding)))
	return nil
}

// Nearest returns the best exact match among the graph's candidates.
func (h *HNSWIndex) Nearest(query Vector) (Match, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	best := noMatch()
	if len(h.records) == 0 {
		return best, nil
	}
	if len(query) != h.dim {
		return best, fmt.Errorf("%w: query has %d values, expected %d", ErrDimensionMismatch, len(query), h.dim)
	}

	k := min(HNSWCandidates, len(h.records))
	for _, node := range h.graph.Search([]float32(query), k) {
		rec := h.records[node.Key]
		dist := EuclideanDistance(query, rec.Embedding)
		if dist < best.Distance || (dist == best.Distance && node.Key < best.Position) {
			best = Match{Label: rec.Label, Distance: dist, Position: node.Key}
		}
	}
	return best, nil
}

// Len returns the number of indexed templates.
func (h *HNSWIndex) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}
