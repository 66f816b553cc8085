package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/tommyshellberg/personna/internal/contextutil"
	"github.com/tommyshellberg/personna/internal/rag"
)

// Answerer is the RAG surface the handler depends on.
type Answerer interface {
	Ask(ctx context.Context, req rag.AskRequest) (rag.AskResponse, error)
}

// AskHandler handles HTTP requests for RAG queries.
type AskHandler struct {
	answerer Answerer
}

// NewAskHandler creates a new AskHandler.
func NewAskHandler(answerer Answerer) *AskHandler {
	return &AskHandler{answerer: answerer}
}

// ServeHTTP handles HTTP requests for RAG queries. The request and response
// bodies are rag.AskRequest and rag.AskResponse.
func (h *AskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req rag.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Bound user-provided retrieval depth
	if req.TopKPerCollection < 0 {
		req.TopKPerCollection = 0
	}
	if req.TopKPerCollection > 20 {
		req.TopKPerCollection = 20
	}

	resp, err := h.answerer.Ask(ctx, req)
	if err != nil {
		logger.ErrorContext(ctx, "ask failed", "error", err)
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
