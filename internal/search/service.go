// Package search is the pure read path: embed a query once, run one
// similarity search, return the ranked results unmodified.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/tommyshellberg/personna/internal/contextutil"
	"github.com/tommyshellberg/personna/internal/domain"
	"github.com/tommyshellberg/personna/internal/llm"
	"github.com/tommyshellberg/personna/internal/vectorstore"
)

// DefaultLimit is used when a caller passes a non-positive limit.
const DefaultLimit = 10

// Service answers free-text queries against a single collection.
type Service struct {
	embedder llm.Embedder
	vectors  vectorstore.VectorStore
}

// NewService creates a search service over the given embedder and store.
func NewService(embedder llm.Embedder, vectors vectorstore.VectorStore) *Service {
	return &Service{embedder: embedder, vectors: vectors}
}

// Search embeds the query and returns up to limit results ordered by
// descending similarity. A blank query fails with domain.ErrEmptyQuery before
// any network call; an unknown collection fails with
// domain.ErrUnknownCollection.
func (s *Service) Search(ctx context.Context, query, collection string, limit int) ([]vectorstore.SearchResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search: %w", domain.ErrEmptyQuery)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	exists, err := s.vectors.CollectionExists(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("search: %w: %s", domain.ErrUnknownCollection, collection)
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search: embed query: %w", err)
	}

	results, err := s.vectors.Search(ctx, collection, vector, limit, 0)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	logger.DebugContext(ctx, "search completed",
		"collection", collection, "limit", limit, "results", len(results))
	return results, nil
}
