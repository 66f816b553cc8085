package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/tommyshellberg/personna/internal/contextutil"
	"github.com/tommyshellberg/personna/internal/vectorstore"
)

// HealthHandler handles HTTP requests for health checks.
type HealthHandler struct {
	vectorStore        vectorstore.VectorStore
	collections        []string
	healthCheckTimeout time.Duration
}

// NewHealthHandler creates a new HealthHandler that verifies the given
// collections exist in the vector store.
func NewHealthHandler(vectorStore vectorstore.VectorStore, collections ...string) *HealthHandler {
	return &HealthHandler{
		vectorStore:        vectorStore,
		collections:        collections,
		healthCheckTimeout: 5 * time.Second,
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	// Overall health status: "healthy" or "unhealthy"
	Status string `json:"status"`

	// Timestamp of the health check
	Timestamp string `json:"timestamp"`

	// Individual check results
	Checks map[string]string `json:"checks"`

	// List of issues (only present if status is unhealthy)
	Issues []string `json:"issues,omitempty"`
}

// ServeHTTP handles HTTP requests for health checks.
// Returns 200 OK if healthy, 503 Service Unavailable otherwise.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	checkCtx, cancel := context.WithTimeout(ctx, h.healthCheckTimeout)
	defer cancel()

	checks := make(map[string]string)
	var issues []string

	for _, collection := range h.collections {
		key := "collection_" + collection
		if h.checkCollection(checkCtx, collection) {
			checks[key] = "ok"
		} else {
			checks[key] = "error"
			issues = append(issues, "collection_missing_or_store_unavailable:"+collection)
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if len(issues) > 0 {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Issues:    issues,
	}

	writeJSON(w, httpStatus, response)
}

func (h *HealthHandler) checkCollection(ctx context.Context, collection string) bool {
	exists, err := h.vectorStore.CollectionExists(ctx, collection)
	if err != nil {
		return false
	}
	return exists
}
