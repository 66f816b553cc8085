package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/mock/gomock"

	"github.com/tommyshellberg/personna/internal/domain"
	llm_mocks "github.com/tommyshellberg/personna/internal/llm/mocks"
	"github.com/tommyshellberg/personna/internal/vectorstore"
	vectorstore_mocks "github.com/tommyshellberg/personna/internal/vectorstore/mocks"
)

func TestSearch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	embedder := llm_mocks.NewMockEmbedder(ctrl)
	vectors := vectorstore_mocks.NewMockVectorStore(ctrl)

	query := "what do they think about generics"
	vector := []float32{0.1, 0.2, 0.3}
	want := []vectorstore.SearchResult{
		{ID: "a", Score: 0.9, Payload: map[string]any{"text": "first"}},
		{ID: "b", Score: 0.7, Payload: map[string]any{"text": "second"}},
	}

	vectors.EXPECT().CollectionExists(gomock.Any(), "reddit_comments").Return(true, nil)
	embedder.EXPECT().Embed(gomock.Any(), query).Return(vector, nil)
	vectors.EXPECT().Search(gomock.Any(), "reddit_comments", vector, 5, float32(0)).Return(want, nil)

	svc := NewService(embedder, vectors)

	got, err := svc.Search(context.Background(), query, "reddit_comments", 5)
	if err != nil {
		t.Fatalf("Search() unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("Search() = %v, want results in store order", got)
	}
}

func TestSearch_EmptyQueryNoCalls(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// No EXPECT calls: a blank query must be rejected before the embedder or
	// the store is touched.
	embedder := llm_mocks.NewMockEmbedder(ctrl)
	vectors := vectorstore_mocks.NewMockVectorStore(ctrl)

	svc := NewService(embedder, vectors)

	_, err := svc.Search(context.Background(), "   \n\t", "reddit_comments", 5)
	if !errors.Is(err, domain.ErrEmptyQuery) {
		t.Errorf("Search() error = %v, want ErrEmptyQuery", err)
	}
}

func TestSearch_UnknownCollection(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	embedder := llm_mocks.NewMockEmbedder(ctrl)
	vectors := vectorstore_mocks.NewMockVectorStore(ctrl)

	vectors.EXPECT().CollectionExists(gomock.Any(), "missing").Return(false, nil)

	svc := NewService(embedder, vectors)

	_, err := svc.Search(context.Background(), "query", "missing", 5)
	if !errors.Is(err, domain.ErrUnknownCollection) {
		t.Errorf("Search() error = %v, want ErrUnknownCollection", err)
	}
}

func TestSearch_DefaultLimit(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	embedder := llm_mocks.NewMockEmbedder(ctrl)
	vectors := vectorstore_mocks.NewMockVectorStore(ctrl)

	vectors.EXPECT().CollectionExists(gomock.Any(), "reddit_comments").Return(true, nil)
	embedder.EXPECT().Embed(gomock.Any(), gomock.Any()).Return([]float32{1}, nil)
	vectors.EXPECT().Search(gomock.Any(), "reddit_comments", gomock.Any(), DefaultLimit, float32(0)).
		Return(nil, nil)

	svc := NewService(embedder, vectors)

	if _, err := svc.Search(context.Background(), "query", "reddit_comments", 0); err != nil {
		t.Fatalf("Search() unexpected error: %v", err)
	}
}

func TestSearch_EmbedFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	embedder := llm_mocks.NewMockEmbedder(ctrl)
	vectors := vectorstore_mocks.NewMockVectorStore(ctrl)

	vectors.EXPECT().CollectionExists(gomock.Any(), "reddit_comments").Return(true, nil)
	embedErr := fmt.Errorf("embed: %w", domain.ErrProviderUnavailable)
	embedder.EXPECT().Embed(gomock.Any(), gomock.Any()).Return(nil, embedErr)

	svc := NewService(embedder, vectors)

	_, err := svc.Search(context.Background(), "query", "reddit_comments", 5)
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Errorf("Search() error = %v, want ErrProviderUnavailable", err)
	}
}
