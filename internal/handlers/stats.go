package handlers

import (
	"errors"
	"net/http"

	"github.com/tommyshellberg/personna/internal/contextutil"
	"github.com/tommyshellberg/personna/internal/storage"
	"github.com/tommyshellberg/personna/internal/vectorstore"
)

// StatsHandler reports collection sizes and recent ingestion runs.
type StatsHandler struct {
	vectorStore vectorstore.VectorStore
	runs        storage.RunStore
	collections []string
}

// NewStatsHandler creates a new StatsHandler. runs may be nil, in which case
// run history is omitted.
func NewStatsHandler(vectorStore vectorstore.VectorStore, runs storage.RunStore, collections ...string) *StatsHandler {
	return &StatsHandler{
		vectorStore: vectorStore,
		runs:        runs,
		collections: collections,
	}
}

// CollectionStats is the point count for one collection.
type CollectionStats struct {
	Name   string `json:"name"`
	Exists bool   `json:"exists"`
	Points uint64 `json:"points"`
}

// StatsResponse represents the HTTP response payload for stats.
type StatsResponse struct {
	Collections []CollectionStats   `json:"collections"`
	RecentRuns  []storage.RunRecord `json:"recent_runs,omitempty"`
}

// ServeHTTP handles HTTP requests for index statistics.
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	stats := make([]CollectionStats, 0, len(h.collections))
	for _, name := range h.collections {
		cs := CollectionStats{Name: name}
		exists, err := h.vectorStore.CollectionExists(ctx, name)
		if err != nil {
			logger.ErrorContext(ctx, "failed to check collection", "collection", name, "error", err)
			writeError(w, statusForError(err), err.Error())
			return
		}
		if exists {
			cs.Exists = true
			count, err := h.vectorStore.Count(ctx, name)
			if err != nil {
				logger.ErrorContext(ctx, "failed to count collection", "collection", name, "error", err)
				writeError(w, statusForError(err), err.Error())
				return
			}
			cs.Points = count
		}
		stats = append(stats, cs)
	}

	resp := StatsResponse{Collections: stats}
	if h.runs != nil {
		runs, err := h.runs.ListRecent(ctx, 10)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			logger.WarnContext(ctx, "failed to list recent runs", "error", err)
		} else {
			resp.RecentRuns = runs
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
