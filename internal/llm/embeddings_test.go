package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tommyshellberg/personna/internal/domain"
)

func newEmbedServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbedBatch(t *testing.T) {
	srv := newEmbedServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("model = %q, want test-model", req.Model)
		}

		resp := embedResponse{Embeddings: make([][]float64, len(req.Input))}
		for i := range req.Input {
			resp.Embeddings[i] = []float64{0.1, 0.2, 0.3}
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	client := NewEmbeddingsClient(srv.URL, "test-model", 3, 5*time.Second)

	vectors, err := client.EmbedBatch(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("EmbedBatch() unexpected error: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("EmbedBatch() returned %d vectors, want 2", len(vectors))
	}
	if len(vectors[0]) != 3 {
		t.Errorf("vector size = %d, want 3", len(vectors[0]))
	}
	if vectors[0][1] != float32(0.2) {
		t.Errorf("vector[0][1] = %v, want 0.2", vectors[0][1])
	}
}

func TestEmbedBatch_EmptyInputNoRequest(t *testing.T) {
	called := false
	srv := newEmbedServer(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	client := NewEmbeddingsClient(srv.URL, "test-model", 3, 5*time.Second)

	tests := []struct {
		name  string
		texts []string
	}{
		{"no texts", nil},
		{"blank text", []string{"hello", "   "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.EmbedBatch(context.Background(), tt.texts)
			if !errors.Is(err, domain.ErrEmptyInput) {
				t.Errorf("EmbedBatch() error = %v, want ErrEmptyInput", err)
			}
		})
	}
	if called {
		t.Error("empty input should be rejected before any network call")
	}
}

func TestEmbedBatch_DimensionMismatch(t *testing.T) {
	srv := newEmbedServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float64{{0.1, 0.2}}})
	})

	client := NewEmbeddingsClient(srv.URL, "test-model", 3, 5*time.Second)

	_, err := client.EmbedBatch(context.Background(), []string{"text"})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("EmbedBatch() error = %v, want ErrDimensionMismatch", err)
	}
}

func TestEmbedBatch_ServerError(t *testing.T) {
	srv := newEmbedServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	})

	client := NewEmbeddingsClient(srv.URL, "test-model", 3, 5*time.Second)

	_, err := client.EmbedBatch(context.Background(), []string{"text"})
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Errorf("EmbedBatch() error = %v, want ErrProviderUnavailable", err)
	}
}

func TestEmbedBatch_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // nothing listening anymore

	client := NewEmbeddingsClient(srv.URL, "test-model", 3, time.Second)

	_, err := client.EmbedBatch(context.Background(), []string{"text"})
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Errorf("EmbedBatch() error = %v, want ErrProviderUnavailable", err)
	}
}

func TestEmbed_SingleText(t *testing.T) {
	srv := newEmbedServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float64{{1, 2, 3}}})
	})

	client := NewEmbeddingsClient(srv.URL, "test-model", 3, 5*time.Second)

	vec, err := client.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed() unexpected error: %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("Embed() vector size = %d, want 3", len(vec))
	}
	if client.Dimension() != 3 {
		t.Errorf("Dimension() = %d, want 3", client.Dimension())
	}
}
