// Package http wires the API router.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tommyshellberg/personna/internal/handlers"
	"github.com/tommyshellberg/personna/internal/storage"
	"github.com/tommyshellberg/personna/internal/vectorstore"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	VectorStore        vectorstore.VectorStore
	Search             handlers.SearchService
	Answerer           handlers.Answerer
	Pipeline           handlers.Ingester
	Sentiment          handlers.SentimentAnalyzer
	Runs               storage.RunStore
	CommentsCollection string
	PersonasCollection string
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	// Add chi middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)

	// Add CORS middleware
	r.Use(CORS)

	collections := []string{deps.CommentsCollection, deps.PersonasCollection}

	healthHandler := handlers.NewHealthHandler(deps.VectorStore, collections...)
	searchHandler := handlers.NewSearchHandler(deps.Search, deps.CommentsCollection, deps.PersonasCollection)
	askHandler := handlers.NewAskHandler(deps.Answerer)
	ingestHandler := handlers.NewIngestHandler(deps.Pipeline, deps.Runs)
	sentimentHandler := handlers.NewSentimentHandler(deps.Sentiment)
	statsHandler := handlers.NewStatsHandler(deps.VectorStore, deps.Runs, collections...)

	// Register API routes
	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", healthHandler)
		r.Method(http.MethodPost, "/search", searchHandler)
		r.Method(http.MethodPost, "/ask", askHandler)
		r.Method(http.MethodPost, "/ingest", ingestHandler)
		r.Method(http.MethodPost, "/sentiment", sentimentHandler)
		r.Method(http.MethodGet, "/stats", statsHandler)
	})

	return r
}
