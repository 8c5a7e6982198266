package database

// HNSW index parameters for face templates
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	// Higher values improve recall but slow down search.
	HNSWEfSearch = 100

	// HNSWCandidates is the number of approximate neighbours re-ranked exactly.
	HNSWCandidates = 8
)
