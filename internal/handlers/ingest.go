package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/tommyshellberg/personna/internal/contextutil"
	"github.com/tommyshellberg/personna/internal/domain"
	"github.com/tommyshellberg/personna/internal/ingest"
	"github.com/tommyshellberg/personna/internal/storage"
)

// Ingester runs embedding pipelines over stored markdown documents.
type Ingester interface {
	IngestComments(ctx context.Context, username string, opts ingest.Options) (*ingest.Report, error)
	IngestPersonas(ctx context.Context, username string, opts ingest.Options) (*ingest.Report, error)
}

// IngestHandler handles HTTP requests that trigger ingestion runs.
type IngestHandler struct {
	pipeline Ingester
	runs     storage.RunStore
}

// NewIngestHandler creates a new IngestHandler. runs may be nil, in which case
// completed runs are not recorded.
func NewIngestHandler(pipeline Ingester, runs storage.RunStore) *IngestHandler {
	return &IngestHandler{pipeline: pipeline, runs: runs}
}

// IngestRequest represents the HTTP request payload for ingestion.
type IngestRequest struct {
	Collection   string `json:"collection"`
	Username     string `json:"username,omitempty"`
	SkipExisting *bool  `json:"skip_existing,omitempty"`
}

// ServeHTTP handles HTTP requests that trigger ingestion runs. The response
// body is the ingest.Report for the run.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	opts := ingest.DefaultOptions()
	if req.SkipExisting != nil {
		opts.SkipExisting = *req.SkipExisting
	}

	var report *ingest.Report
	var err error
	switch req.Collection {
	case "", string(domain.CollectionComments):
		report, err = h.pipeline.IngestComments(ctx, req.Username, opts)
	case string(domain.CollectionPersonas):
		report, err = h.pipeline.IngestPersonas(ctx, req.Username, opts)
	default:
		logger.WarnContext(ctx, "unknown collection in request", "collection", req.Collection)
		writeError(w, http.StatusBadRequest, "Unknown collection: "+req.Collection)
		return
	}

	if report != nil {
		h.recordRun(ctx, report)
	}

	if err != nil {
		logger.ErrorContext(ctx, "ingestion run failed", "collection", req.Collection, "error", err)
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// recordRun persists the run outcome. Failure to record never fails the
// request; the report was already produced.
func (h *IngestHandler) recordRun(ctx context.Context, report *ingest.Report) {
	if h.runs == nil {
		return
	}
	logger := contextutil.LoggerFromContext(ctx)

	run := &storage.RunRecord{
		Collection: report.Collection,
		Documents:  len(report.Documents),
		Embedded:   report.Embedded,
		Skipped:    report.Skipped,
		Failed:     report.Failed,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
	}
	if err := h.runs.Insert(ctx, run); err != nil {
		logger.WarnContext(ctx, "failed to record ingestion run", "error", err)
	}
}
