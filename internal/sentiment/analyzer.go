// Package sentiment scores comments for sentiment toward a post via the
// generation model, in bounded batches.
package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tommyshellberg/personna/internal/llm"
)

// Comment is one input to analyze.
type Comment struct {
	ID     string
	Author string
	Body   string
}

// Result is the sentiment verdict for a single comment. Score ranges from -1
// (negative/dismissive) to 1 (positive/enthusiastic).
type Result struct {
	CommentID string  `json:"comment_id"`
	Username  string  `json:"username"`
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale"`
}

// DefaultBatchSize bounds comments per model call to stay inside the context
// window.
const DefaultBatchSize = 20

// Analyzer runs batched sentiment analysis.
type Analyzer struct {
	generator llm.Generator
	batchSize int
}

// NewAnalyzer creates an Analyzer. batchSize outside [1,100] falls back to the
// default.
func NewAnalyzer(generator llm.Generator, batchSize int) *Analyzer {
	if batchSize < 1 || batchSize > 100 {
		batchSize = DefaultBatchSize
	}
	return &Analyzer{generator: generator, batchSize: batchSize}
}

// AnalyzeAll analyzes every comment in batches against the given post.
func (a *Analyzer) AnalyzeAll(ctx context.Context, comments []Comment, postTitle, postBody string) ([]Result, error) {
	var all []Result
	for start := 0; start < len(comments); start += a.batchSize {
		end := start + a.batchSize
		if end > len(comments) {
			end = len(comments)
		}
		results, err := a.AnalyzeBatch(ctx, comments[start:end], postTitle, postBody)
		if err != nil {
			return all, err
		}
		all = append(all, results...)
	}
	return all, nil
}

// AnalyzeBatch analyzes one batch of comments with a single model call.
// Sentiment scoring wants deterministic output, so temperature is pinned low.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, comments []Comment, postTitle, postBody string) ([]Result, error) {
	if len(comments) == 0 {
		return nil, nil
	}

	prompt := buildPrompt(comments, postTitle, postBody)
	response, err := a.generator.Generate(ctx, prompt, llm.GenerateOptions{Temperature: 0.01})
	if err != nil {
		return nil, fmt.Errorf("sentiment: %w", err)
	}
	return ParseResponse(response, comments)
}

var (
	thinkBlockRe = regexp.MustCompile(`(?s)<think>.*?</think>`)
	codeFenceRe  = regexp.MustCompile("(?s)```(?:json)?\n?(.*?)\n?```")
)

type resultItem struct {
	ID        string   `json:"id"`
	Score     *float64 `json:"score"`
	Rationale string   `json:"rationale"`
}

// ParseResponse extracts sentiment results from the raw model output. Think
// blocks and markdown code fences are stripped first; entries with a missing
// id or score are dropped rather than failing the batch.
func ParseResponse(response string, comments []Comment) ([]Result, error) {
	idToAuthor := make(map[string]string, len(comments))
	for _, c := range comments {
		idToAuthor[c.ID] = c.Author
	}

	cleaned := strings.TrimSpace(thinkBlockRe.ReplaceAllString(response, ""))
	if m := codeFenceRe.FindStringSubmatch(cleaned); m != nil {
		cleaned = strings.TrimSpace(m[1])
	}

	// Tolerate prose around the array by slicing to the outermost brackets.
	if start := strings.Index(cleaned, "["); start >= 0 {
		if end := strings.LastIndex(cleaned, "]"); end > start {
			cleaned = cleaned[start : end+1]
		}
	}

	var items []resultItem
	if err := json.Unmarshal([]byte(cleaned), &items); err != nil {
		return nil, fmt.Errorf("sentiment: parse model response: %w", err)
	}

	results := make([]Result, 0, len(items))
	for _, item := range items {
		if item.ID == "" || item.Score == nil {
			continue
		}
		username, ok := idToAuthor[item.ID]
		if !ok {
			username = "unknown"
		}
		results = append(results, Result{
			CommentID: item.ID,
			Username:  username,
			Score:     clamp(*item.Score),
			Rationale: item.Rationale,
		})
	}
	return results, nil
}

func clamp(score float64) float64 {
	if score < -1 {
		return -1
	}
	if score > 1 {
		return 1
	}
	return score
}

func buildPrompt(comments []Comment, postTitle, postBody string) string {
	var lines []string
	for _, c := range comments {
		lines = append(lines, fmt.Sprintf("[%s] u/%s: %q", c.ID, c.Author, c.Body))
	}

	bodyPreview := postBody
	if bodyPreview == "" {
		bodyPreview = "(no body text)"
	} else if len(bodyPreview) > 500 {
		bodyPreview = bodyPreview[:500]
	}

	var b strings.Builder
	b.WriteString("You are analyzing Reddit comments for sentiment toward the original post.\n\n")
	fmt.Fprintf(&b, "POST TITLE: %s\n", postTitle)
	fmt.Fprintf(&b, "POST BODY: %s\n\n", bodyPreview)
	b.WriteString("COMMENTS TO ANALYZE:\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\nFor each comment, determine the sentiment toward the post/idea on a scale from -1 (negative/dismissive) to 1 (positive/enthusiastic).\n\n")
	b.WriteString("Return a JSON array with:\n")
	b.WriteString("- id: the comment ID (e.g., \"c1\")\n")
	b.WriteString("- score: sentiment from -1 to 1\n")
	b.WriteString("- rationale: brief explanation (10 words max)\n\n")
	b.WriteString("Respond ONLY with a valid JSON array. Example:\n")
	b.WriteString(`[{"id": "c1", "score": 0.8, "rationale": "Enthusiastic endorsement"}]`)
	return b.String()
}
