// Package llm provides clients for the local Ollama embedding and generation
// endpoints.
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

// Generator produces free text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// GenerateOptions holds per-request generation parameters. Zero values fall
// back to the client defaults.
type GenerateOptions struct {
	Temperature float64
	TopP        float64
	NumCtx      int
}

// Client is a Generator backed by the Ollama generate API.
type Client struct {
	baseURL     string
	model       string
	temperature float64
	client      *http.Client
}

// NewClient creates a generation client with the given default temperature.
func NewClient(baseURL, model string, temperature float64, timeout time.Duration) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		temperature: temperature,
		client:      &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate sends a single prompt to the model and returns the raw completion.
func (c *Client) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("generate: %w", domain.ErrEmptyInput)
	}

	options := map[string]any{
		"temperature": c.temperature,
	}
	if opts.Temperature != 0 {
		options["temperature"] = opts.Temperature
	}
	if opts.TopP != 0 {
		options["top_p"] = opts.TopP
	}
	if opts.NumCtx != 0 {
		options["num_ctx"] = opts.NumCtx
	}

	payload := generateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  false,
		Options: options,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("generate: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("generate: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate: %w: %v", domain.ErrProviderUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= http.StatusInternalServerError {
			return "", fmt.Errorf("generate: %w: status %d: %s", domain.ErrProviderUnavailable, resp.StatusCode, string(raw))
		}
		return "", fmt.Errorf("generate: bad status %d: %s", resp.StatusCode, string(raw))
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", fmt.Errorf("generate: decode response: %w", err)
	}
	return gr.Response, nil
}
