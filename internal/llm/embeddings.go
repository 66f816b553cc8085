package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tommyshellberg/personna/internal/domain"
)

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_llm.go -package=mocks github.com/tommyshellberg/personna/internal/llm Embedder,Generator

// Embedder turns text into fixed-dimension vectors. Implementations are
// stateless: the same input text always requests the same model.
type Embedder interface {
	// Embed generates the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch generates embedding vectors for multiple texts in one call.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension returns the fixed vector dimension of the model.
	Dimension() int
}

// EmbeddingsClient is an Embedder backed by the Ollama embeddings API.
type EmbeddingsClient struct {
	baseURL   string
	model     string
	dimension int
	client    *http.Client
}

// NewEmbeddingsClient creates an embeddings client. dimension is the expected
// vector size; every vector returned by the model is validated against it, so
// a misconfigured model fails fast instead of corrupting the index.
func NewEmbeddingsClient(baseURL, model string, dimension int, timeout time.Duration) *EmbeddingsClient {
	return &EmbeddingsClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		model:     model,
		dimension: dimension,
		client:    &http.Client{Timeout: timeout},
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// Dimension returns the configured vector dimension.
func (c *EmbeddingsClient) Dimension() int { return c.dimension }

// Embed generates the embedding vector for a single text.
func (c *EmbeddingsClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embedding vectors for the given texts. Blank texts are
// rejected before any network call; no retries are performed here, retry
// policy belongs to the caller.
func (c *EmbeddingsClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("embed: %w: no texts given", domain.ErrEmptyInput)
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("embed: text %d: %w", i, domain.ErrEmptyInput)
		}
	}

	payload := embedRequest{Model: c.model, Input: texts}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("embed: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embed: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed: %w: %v", domain.ErrProviderUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("embed: %w: status %d: %s", domain.ErrProviderUnavailable, resp.StatusCode, string(raw))
		}
		return nil, fmt.Errorf("embed: bad status %d: %s", resp.StatusCode, string(raw))
	}

	var er embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return nil, fmt.Errorf("embed: decode response: %w", err)
	}
	if len(er.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed: expected %d embeddings, got %d", len(texts), len(er.Embeddings))
	}

	result := make([][]float32, len(er.Embeddings))
	for i, emb := range er.Embeddings {
		if len(emb) != c.dimension {
			return nil, fmt.Errorf("embed: %w: embedding %d has size %d, expected %d",
				domain.ErrDimensionMismatch, i, len(emb), c.dimension)
		}
		vec := make([]float32, len(emb))
		for j, v := range emb {
			vec[j] = float32(v)
		}
		result[i] = vec
	}
	return result, nil
}
