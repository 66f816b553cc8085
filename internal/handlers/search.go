package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/tommyshellberg/personna/internal/contextutil"
	"github.com/tommyshellberg/personna/internal/domain"
	"github.com/tommyshellberg/personna/internal/vectorstore"
)

// SearchService is the semantic search surface the handler depends on.
type SearchService interface {
	Search(ctx context.Context, query, collection string, limit int) ([]vectorstore.SearchResult, error)
}

// SearchHandler handles HTTP requests for semantic search. Requests may name
// collections by their logical names ("comments", "personas") or by the store
// collection name directly.
type SearchHandler struct {
	service            SearchService
	commentsCollection string
	personasCollection string
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(service SearchService, commentsCollection, personasCollection string) *SearchHandler {
	return &SearchHandler{
		service:            service,
		commentsCollection: commentsCollection,
		personasCollection: personasCollection,
	}
}

func (h *SearchHandler) resolveCollection(name string) string {
	switch name {
	case "", string(domain.CollectionComments):
		return h.commentsCollection
	case string(domain.CollectionPersonas):
		return h.personasCollection
	default:
		return name
	}
}

// SearchRequest represents the HTTP request payload for semantic search.
type SearchRequest struct {
	Query      string `json:"query"`
	Collection string `json:"collection,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// SearchResponse represents the HTTP response payload for semantic search.
type SearchResponse struct {
	Query      string                     `json:"query"`
	Collection string                     `json:"collection"`
	Results    []vectorstore.SearchResult `json:"results"`
}

// ServeHTTP handles HTTP requests for semantic search.
func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	collection := h.resolveCollection(req.Collection)

	results, err := h.service.Search(ctx, req.Query, collection, req.Limit)
	if err != nil {
		logger.ErrorContext(ctx, "search failed", "collection", collection, "error", err)
		writeError(w, statusForError(err), err.Error())
		return
	}

	if results == nil {
		results = []vectorstore.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{
		Query:      req.Query,
		Collection: collection,
		Results:    results,
	})
}
