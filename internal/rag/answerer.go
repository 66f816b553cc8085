// Package rag answers free-text questions by retrieving relevant records
// across collections and conditioning a single generation call on them.
package rag

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tommyshellberg/personna/internal/contextutil"
	"github.com/tommyshellberg/personna/internal/domain"
	"github.com/tommyshellberg/personna/internal/llm"
	"github.com/tommyshellberg/personna/internal/vectorstore"
)

// NoContextAnswer is returned when retrieval finds nothing relevant. The
// generator is never called in that case, so the system cannot hallucinate an
// ungrounded answer.
const NoContextAnswer = "No relevant context was found in the indexed comments or personas to answer this question."

// Defaults for AskRequest fields left at zero.
const (
	DefaultTopKPerCollection = 5
	DefaultMaxContextChars   = 8000
)

// Searcher is the read path the answerer retrieves through.
type Searcher interface {
	Search(ctx context.Context, query, collection string, limit int) ([]vectorstore.SearchResult, error)
}

// AskRequest is a question plus retrieval bounds.
type AskRequest struct {
	Question          string   `json:"question"`
	Collections       []string `json:"collections,omitempty"`
	TopKPerCollection int      `json:"top_k_per_collection,omitempty"`
	MaxContextChars   int      `json:"max_context_chars,omitempty"`
}

// CitedRecord names a record that was actually included in the prompt, so
// callers can verify grounding.
type CitedRecord struct {
	ID         string  `json:"id"`
	Collection string  `json:"collection"`
	Username   string  `json:"username"`
	Subreddit  string  `json:"subreddit,omitempty"`
	Similarity float32 `json:"similarity"`
	Truncated  bool    `json:"truncated,omitempty"`
}

// AskResponse is a synthesized answer plus the records that grounded it.
type AskResponse struct {
	Answer    string        `json:"answer"`
	Cited     []CitedRecord `json:"cited_records"`
	NoContext bool          `json:"no_context,omitempty"`
}

// Answerer runs the retrieval-augmented answer pipeline. All collections it
// searches must share one embedding model and metric; cross-collection score
// merging is only meaningful under that invariant, which construction
// guarantees by wiring a single Searcher.
type Answerer struct {
	searcher    Searcher
	generator   llm.Generator
	collections []string
}

// NewAnswerer wires the answerer. collections are the store collections
// searched when a request names none.
func NewAnswerer(searcher Searcher, generator llm.Generator, collections ...string) *Answerer {
	return &Answerer{searcher: searcher, generator: generator, collections: collections}
}

type retrieved struct {
	result     vectorstore.SearchResult
	collection string
}

// Ask retrieves the top records from each requested collection, merges them by
// similarity, fits them into the context budget, and asks the generator once.
func (a *Answerer) Ask(ctx context.Context, req AskRequest) (AskResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if strings.TrimSpace(req.Question) == "" {
		return AskResponse{}, fmt.Errorf("ask: %w", domain.ErrEmptyQuery)
	}
	collections := req.Collections
	if len(collections) == 0 {
		collections = a.collections
	}
	if len(collections) == 0 {
		return AskResponse{}, fmt.Errorf("ask: no collections configured")
	}
	topK := req.TopKPerCollection
	if topK <= 0 {
		topK = DefaultTopKPerCollection
	}
	budget := req.MaxContextChars
	if budget <= 0 {
		budget = DefaultMaxContextChars
	}

	var merged []retrieved
	for _, collection := range collections {
		results, err := a.searcher.Search(ctx, req.Question, collection, topK)
		if err != nil {
			// A collection that was never ingested contributes nothing; any
			// other failure aborts the question.
			if errors.Is(err, domain.ErrUnknownCollection) {
				logger.WarnContext(ctx, "skipping unknown collection", "collection", collection)
				continue
			}
			return AskResponse{}, fmt.Errorf("ask: %w", err)
		}
		for _, r := range results {
			merged = append(merged, retrieved{result: r, collection: collection})
		}
	}

	if len(merged) == 0 {
		logger.InfoContext(ctx, "no retrievable context", "question_len", len(req.Question))
		return AskResponse{Answer: NoContextAnswer, Cited: []CitedRecord{}, NoContext: true}, nil
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].result.Score > merged[j].result.Score
	})

	blocks, cited := buildContext(merged, budget)

	prompt := buildPrompt(req.Question, blocks)
	answer, err := a.generator.Generate(ctx, prompt, llm.GenerateOptions{})
	if err != nil {
		return AskResponse{}, fmt.Errorf("ask: generate answer: %w", err)
	}

	logger.InfoContext(ctx, "question answered",
		"records_cited", len(cited), "answer_len", len(answer))
	return AskResponse{Answer: strings.TrimSpace(answer), Cited: cited}, nil
}

// buildContext fits the highest-scoring records into the character budget.
// Once the budget is exceeded, lower-scoring records are dropped whole; only
// the first record may be cut down, and then it carries an explicit truncation
// marker rather than ending mid-thought silently.
func buildContext(merged []retrieved, budget int) ([]string, []CitedRecord) {
	const truncationMark = " … [truncated]"

	var blocks []string
	var cited []CitedRecord
	used := 0

	for _, item := range merged {
		block, citation := formatBlock(len(blocks)+1, item)
		if used+len(block) > budget {
			if len(blocks) > 0 {
				break
			}
			keep := budget - len(truncationMark)
			if keep <= 0 {
				break
			}
			if keep > len(block) {
				keep = len(block)
			}
			block = strings.TrimSpace(block[:keep]) + truncationMark
			citation.Truncated = true
		}
		used += len(block)
		blocks = append(blocks, block)
		cited = append(cited, citation)
	}
	return blocks, cited
}

func formatBlock(n int, item retrieved) (string, CitedRecord) {
	payload := item.result.Payload
	username := payloadString(payload, "username")
	text := payloadString(payload, "text")

	citation := CitedRecord{
		ID:         item.result.ID,
		Collection: item.collection,
		Username:   username,
		Similarity: item.result.Score,
	}

	var header string
	if subreddit := payloadString(payload, "subreddit"); subreddit != "" {
		citation.Subreddit = subreddit
		header = fmt.Sprintf("[%d] u/%s in r/%s", n, username, subreddit)
	} else if archetype := payloadString(payload, "archetype"); archetype != "" {
		header = fmt.Sprintf("[%d] persona of u/%s (%s)", n, username, archetype)
	} else {
		header = fmt.Sprintf("[%d] persona of u/%s", n, username)
	}

	return fmt.Sprintf("%s:\n%s\n", header, text), citation
}

func buildPrompt(question string, blocks []string) string {
	var b strings.Builder
	b.WriteString("You are a research assistant answering questions about a Reddit audience.\n")
	b.WriteString("Answer the question using ONLY the numbered context entries below. ")
	b.WriteString("If the context does not contain enough information, say so plainly. ")
	b.WriteString("Cite the entries you rely on by their [N] labels.\n\n")
	b.WriteString("--- Context ---\n")
	for _, block := range blocks {
		b.WriteString(block)
		b.WriteString("\n")
	}
	b.WriteString("--- End Context ---\n\n")
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}

func payloadString(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}
