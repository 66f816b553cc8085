// Package vectorstore defines the durable semantic index and its Qdrant and
// in-memory implementations. Similarity is cosine for the lifetime of an
// index; switching metrics invalidates score comparability across collections.
package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks github.com/tommyshellberg/personna/internal/vectorstore VectorStore

import "context"

// Point is the persisted unit inside the store: an opaque identifier, a
// fixed-dimension vector, and a flat payload of JSON-compatible scalars.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// SearchResult is a single similarity hit, ordered by descending score.
type SearchResult struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// VectorStore is the semantic index, partitioned into named collections.
// Upserts are atomic per point and idempotent by ID.
type VectorStore interface {
	// EnsureCollection creates the collection if absent. If it exists with a
	// different dimension it fails with domain.ErrDimensionMismatch and leaves
	// the collection unmodified.
	EnsureCollection(ctx context.Context, name string, dimension int) error

	// CollectionExists reports whether the collection has been created.
	CollectionExists(ctx context.Context, name string) (bool, error)

	// Upsert inserts or overwrites points, keyed by point ID.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search returns up to limit results ordered by descending cosine
	// similarity. Results scoring below scoreThreshold are omitted when the
	// threshold is positive.
	Search(ctx context.Context, collection string, query []float32, limit int, scoreThreshold float32) ([]SearchResult, error)

	// Exists reports whether a point with the given ID is already indexed.
	Exists(ctx context.Context, collection, id string) (bool, error)

	// Count returns the number of points in the collection.
	Count(ctx context.Context, collection string) (uint64, error)
}
