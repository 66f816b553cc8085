package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/tommyshellberg/personna/internal/contextutil"
	"github.com/tommyshellberg/personna/internal/sentiment"
)

// SentimentAnalyzer scores comments for sentiment toward a post.
type SentimentAnalyzer interface {
	AnalyzeAll(ctx context.Context, comments []sentiment.Comment, postTitle, postBody string) ([]sentiment.Result, error)
}

// SentimentHandler handles HTTP requests for batch sentiment analysis.
type SentimentHandler struct {
	analyzer SentimentAnalyzer
}

// NewSentimentHandler creates a new SentimentHandler.
func NewSentimentHandler(analyzer SentimentAnalyzer) *SentimentHandler {
	return &SentimentHandler{analyzer: analyzer}
}

// SentimentRequest represents the HTTP request payload for sentiment analysis.
type SentimentRequest struct {
	PostTitle string             `json:"post_title"`
	PostBody  string             `json:"post_body,omitempty"`
	Comments  []SentimentComment `json:"comments"`
}

// SentimentComment is one comment to score.
type SentimentComment struct {
	ID     string `json:"id"`
	Author string `json:"author"`
	Body   string `json:"body"`
}

// SentimentResponse represents the HTTP response payload for sentiment analysis.
type SentimentResponse struct {
	Results []sentiment.Result `json:"results"`
}

// ServeHTTP handles HTTP requests for batch sentiment analysis.
func (h *SentimentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req SentimentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if len(req.Comments) == 0 {
		writeError(w, http.StatusBadRequest, "At least one comment is required")
		return
	}

	comments := make([]sentiment.Comment, len(req.Comments))
	for i, c := range req.Comments {
		comments[i] = sentiment.Comment{ID: c.ID, Author: c.Author, Body: c.Body}
	}

	results, err := h.analyzer.AnalyzeAll(ctx, comments, req.PostTitle, req.PostBody)
	if err != nil {
		logger.ErrorContext(ctx, "sentiment analysis failed", "error", err)
		writeError(w, statusForError(err), err.Error())
		return
	}

	if results == nil {
		results = []sentiment.Result{}
	}
	writeJSON(w, http.StatusOK, SentimentResponse{Results: results})
}
