package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/tommyshellberg/personna/internal/domain"
)

// MemoryStore is an in-memory VectorStore using brute-force cosine similarity.
// It backs tests and local development runs that have no Qdrant available.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	dimension int
	points    map[string]Point
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memCollection)}
}

// EnsureCollection creates the collection if absent and validates the
// dimension if present.
func (s *MemoryStore) EnsureCollection(_ context.Context, name string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("collection %s: invalid dimension %d", name, dimension)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[name]; ok {
		if c.dimension != dimension {
			return fmt.Errorf("collection %s: %w: expected %d, got %d",
				name, domain.ErrDimensionMismatch, dimension, c.dimension)
		}
		return nil
	}
	s.collections[name] = &memCollection{
		dimension: dimension,
		points:    make(map[string]Point),
	}
	return nil
}

// CollectionExists reports whether the collection has been created.
func (s *MemoryStore) CollectionExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok, nil
}

// Upsert inserts or overwrites points, keyed by point ID.
func (s *MemoryStore) Upsert(_ context.Context, collection string, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return fmt.Errorf("upsert: %w: %s", domain.ErrUnknownCollection, collection)
	}
	for _, p := range points {
		if len(p.Vector) != c.dimension {
			return fmt.Errorf("upsert point %s: %w: vector has size %d, expected %d",
				p.ID, domain.ErrInvalidPoint, len(p.Vector), c.dimension)
		}
	}
	for _, p := range points {
		c.points[p.ID] = p
	}
	return nil
}

// Search returns up to limit results ordered by descending cosine similarity.
// Ties break on point ID so result order is deterministic.
func (s *MemoryStore) Search(_ context.Context, collection string, query []float32, limit int, scoreThreshold float32) ([]SearchResult, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("search: limit must be greater than 0")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("search: %w: %s", domain.ErrUnknownCollection, collection)
	}
	if len(query) != c.dimension {
		return nil, fmt.Errorf("search: %w: query has size %d, expected %d",
			domain.ErrDimensionMismatch, len(query), c.dimension)
	}

	results := make([]SearchResult, 0, len(c.points))
	for _, p := range c.points {
		score := cosine(query, p.Vector)
		if scoreThreshold > 0 && score < scoreThreshold {
			continue
		}
		results = append(results, SearchResult{ID: p.ID, Score: score, Payload: p.Payload})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Exists reports whether a point with the given ID is already indexed.
func (s *MemoryStore) Exists(_ context.Context, collection, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return false, fmt.Errorf("exists: %w: %s", domain.ErrUnknownCollection, collection)
	}
	_, ok = c.points[id]
	return ok, nil
}

// Count returns the number of points in the collection.
func (s *MemoryStore) Count(_ context.Context, collection string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return 0, fmt.Errorf("count: %w: %s", domain.ErrUnknownCollection, collection)
	}
	return uint64(len(c.points)), nil
}

func cosine(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
