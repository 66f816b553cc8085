package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"

	"github.com/tommyshellberg/personna/internal/config"
	"github.com/tommyshellberg/personna/internal/http"
	"github.com/tommyshellberg/personna/internal/ingest"
	"github.com/tommyshellberg/personna/internal/llm"
	"github.com/tommyshellberg/personna/internal/markdown"
	"github.com/tommyshellberg/personna/internal/rag"
	"github.com/tommyshellberg/personna/internal/records"
	"github.com/tommyshellberg/personna/internal/search"
	"github.com/tommyshellberg/personna/internal/sentiment"
	"github.com/tommyshellberg/personna/internal/storage"
	"github.com/tommyshellberg/personna/internal/vectorstore"
)

func main() {
	configPath := flag.String("config", "personna.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, nil)
	} else {
		handler = slog.NewTextHandler(os.Stdout, nil)
	}
	slog.SetDefault(slog.New(handler))

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	runRepo := storage.NewRunRepo(db)

	store, err := markdown.NewStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to open markdown store: %v", err)
	}

	ctx := context.Background()

	vectorStore, err := vectorstore.NewQdrantStore(cfg.Qdrant.Host, cfg.Qdrant.Port)
	if err != nil {
		log.Fatalf("Failed to create Qdrant client: %v", err)
	}

	// Ensure collections exist with the configured vector size
	for _, collection := range []string{cfg.Qdrant.CommentsCollection, cfg.Qdrant.PersonasCollection} {
		if err := vectorStore.EnsureCollection(ctx, collection, cfg.Qdrant.VectorSize); err != nil {
			log.Fatalf("Failed to ensure Qdrant collection %s: %v", collection, err)
		}
	}
	slog.Info("Qdrant collections ready",
		"comments", cfg.Qdrant.CommentsCollection,
		"personas", cfg.Qdrant.PersonasCollection,
		"vector_size", cfg.Qdrant.VectorSize)

	embedder := llm.NewEmbeddingsClient(cfg.Embedding.BaseURL, cfg.Embedding.Model, cfg.Qdrant.VectorSize, cfg.EmbeddingTimeout())
	generator := llm.NewClient(cfg.Ollama.BaseURL, cfg.Ollama.Model, cfg.Ollama.Temperature, cfg.OllamaTimeout())

	extractor := records.NewExtractor(cfg.Ingest.MinCommentLength)
	pipeline := ingest.NewPipeline(store, extractor, embedder, vectorStore,
		cfg.Qdrant.CommentsCollection, cfg.Qdrant.PersonasCollection)

	searchService := search.NewService(embedder, vectorStore)
	answerer := rag.NewAnswerer(searchService, generator,
		cfg.Qdrant.CommentsCollection, cfg.Qdrant.PersonasCollection)
	analyzer := sentiment.NewAnalyzer(generator, sentiment.DefaultBatchSize)

	deps := &http.Deps{
		VectorStore:        vectorStore,
		Search:             searchService,
		Answerer:           answerer,
		Pipeline:           pipeline,
		Sentiment:          analyzer,
		Runs:               runRepo,
		CommentsCollection: cfg.Qdrant.CommentsCollection,
		PersonasCollection: cfg.Qdrant.PersonasCollection,
	}
	router := http.NewRouter(deps)

	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
}
