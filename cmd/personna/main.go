// Command personna is the research pipeline CLI: fetch Reddit comments,
// generate personas, embed both into Qdrant, and query the index.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/tommyshellberg/personna/internal/config"
	"github.com/tommyshellberg/personna/internal/domain"
	"github.com/tommyshellberg/personna/internal/fetcher"
	"github.com/tommyshellberg/personna/internal/ingest"
	"github.com/tommyshellberg/personna/internal/llm"
	"github.com/tommyshellberg/personna/internal/markdown"
	"github.com/tommyshellberg/personna/internal/persona"
	"github.com/tommyshellberg/personna/internal/rag"
	"github.com/tommyshellberg/personna/internal/records"
	"github.com/tommyshellberg/personna/internal/search"
	"github.com/tommyshellberg/personna/internal/storage"
	"github.com/tommyshellberg/personna/internal/vectorstore"
)

const usage = `Usage: personna <command> [flags]

Commands:
  fetch      fetch Reddit comments for the users listed in a file
  personas   generate personas from stored comment files
  embed      embed stored documents into the vector store
  search     semantic search over a collection
  ask        ask a question answered from the indexed records
  stats      show collection sizes and recent ingestion runs

Run "personna <command> -h" for command flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	ctx := context.Background()

	var err error
	switch os.Args[1] {
	case "fetch":
		err = runFetch(ctx, os.Args[2:])
	case "personas":
		err = runPersonas(ctx, os.Args[2:])
	case "embed":
		err = runEmbed(ctx, os.Args[2:])
	case "search":
		err = runSearch(ctx, os.Args[2:])
	case "ask":
		err = runAsk(ctx, os.Args[2:])
	case "stats":
		err = runStats(ctx, os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", describeError(err))
		os.Exit(1)
	}
}

// describeError turns domain errors into actionable messages.
func describeError(err error) string {
	switch {
	case errors.Is(err, domain.ErrProviderUnavailable):
		return fmt.Sprintf("%v (is Ollama running?)", err)
	case errors.Is(err, domain.ErrStoreUnavailable):
		return fmt.Sprintf("%v (is Qdrant running?)", err)
	case errors.Is(err, domain.ErrUnknownCollection):
		return fmt.Sprintf("%v (run \"personna embed\" first)", err)
	default:
		return err.Error()
	}
}

func loadConfig(fs *flag.FlagSet) (*config.Config, error) {
	path := fs.Lookup("config").Value.String()
	return config.Load(path)
}

func addConfigFlag(fs *flag.FlagSet) {
	fs.String("config", "personna.yaml", "path to config file")
}

func runFetch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	addConfigFlag(fs)
	userfile := fs.String("userfile", "", "file with one Reddit username per line (required)")
	skipExisting := fs.Bool("skip-existing", true, "skip users that already have a comments file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userfile == "" {
		return fmt.Errorf("fetch: -userfile is required")
	}

	cfg, err := loadConfig(fs)
	if err != nil {
		return err
	}
	usernames, err := parseUsernames(*userfile)
	if err != nil {
		return err
	}
	if len(usernames) == 0 {
		return fmt.Errorf("fetch: no usernames found in %s", *userfile)
	}

	store, err := markdown.NewStore(cfg.DataDir)
	if err != nil {
		return err
	}
	client := fetcher.NewRedditClient(fetcher.Config{
		UserAgent:          cfg.Reddit.UserAgent,
		MaxCommentsPerUser: cfg.Reddit.MaxCommentsPerUser,
		RequestsPerSecond:  cfg.Reddit.RequestsPerSecond,
	})

	var fetched, skipped, failed int
	for _, username := range usernames {
		if *skipExisting && store.HasComments(username) {
			slog.Info("skipping user with existing comments", "user", username)
			skipped++
			continue
		}
		comments, err := client.FetchUserComments(ctx, username)
		if err != nil {
			slog.Warn("fetch failed", "user", username, "error", err)
			failed++
			continue
		}
		if len(comments) == 0 {
			slog.Info("no comments found", "user", username)
			skipped++
			continue
		}
		if err := store.SaveComments(username, comments); err != nil {
			return err
		}
		slog.Info("saved comments", "user", username, "count", len(comments))
		fetched++
	}

	fmt.Printf("Fetch complete: %d fetched, %d skipped, %d failed\n", fetched, skipped, failed)
	return nil
}

// parseUsernames reads usernames from a file, one per line. Lines in the
// numbered "1→username" format are accepted too; empty lines are skipped.
func parseUsernames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var usernames []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if _, after, found := strings.Cut(line, "→"); found {
			if username := strings.TrimSpace(after); username != "" {
				usernames = append(usernames, username)
			}
			continue
		}
		usernames = append(usernames, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return usernames, nil
}

func runPersonas(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("personas", flag.ExitOnError)
	addConfigFlag(fs)
	skipExisting := fs.Bool("skip-existing", true, "skip users that already have a persona file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(fs)
	if err != nil {
		return err
	}
	store, err := markdown.NewStore(cfg.DataDir)
	if err != nil {
		return err
	}
	generator := llm.NewClient(cfg.Ollama.BaseURL, cfg.Ollama.Model, cfg.Ollama.Temperature, cfg.OllamaTimeout())

	gen := persona.NewGenerator(store, generator)
	written, failures := gen.GenerateAll(ctx, *skipExisting)

	for user, err := range failures {
		slog.Warn("persona generation failed", "user", user, "error", err)
	}
	fmt.Printf("Persona generation complete: %d written, %d failed\n", len(written), len(failures))
	if len(failures) > 0 {
		return fmt.Errorf("personas: %d of %d users failed", len(failures), len(written)+len(failures))
	}
	return nil
}

func runEmbed(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("embed", flag.ExitOnError)
	addConfigFlag(fs)
	collection := fs.String("collection", "all", `collection to ingest: "comments", "personas", or "all"`)
	username := fs.String("user", "", "restrict ingestion to one username")
	skipExisting := fs.Bool("skip-existing", true, "skip records already present in the store")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(fs)
	if err != nil {
		return err
	}
	pipeline, _, err := buildPipeline(cfg)
	if err != nil {
		return err
	}

	opts := ingest.Options{
		SkipExisting:  *skipExisting,
		BatchSize:     cfg.Ingest.BatchSize,
		Workers:       cfg.Ingest.Workers,
		MaxRetries:    cfg.Ingest.MaxRetries,
		RetryBaseWait: 500 * time.Millisecond,
	}

	type ingestRun struct {
		name string
		run  func() (*ingest.Report, error)
	}
	comments := ingestRun{"comments", func() (*ingest.Report, error) { return pipeline.IngestComments(ctx, *username, opts) }}
	personas := ingestRun{"personas", func() (*ingest.Report, error) { return pipeline.IngestPersonas(ctx, *username, opts) }}

	var runs []ingestRun
	switch *collection {
	case "comments":
		runs = []ingestRun{comments}
	case "personas":
		runs = []ingestRun{personas}
	case "all":
		runs = []ingestRun{comments, personas}
	default:
		return fmt.Errorf("embed: unknown collection %q", *collection)
	}

	runRepo, closeDB, err := openRunRepo(cfg)
	if err != nil {
		slog.Warn("run history unavailable", "error", err)
	} else {
		defer closeDB()
	}

	for _, r := range runs {
		report, err := r.run()
		if report != nil && runRepo != nil {
			recordRun(ctx, runRepo, report)
		}
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d embedded, %d skipped, %d failed across %d documents\n",
			r.name, report.Embedded, report.Skipped, report.Failed, len(report.Documents))
	}
	return nil
}

func runSearch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	addConfigFlag(fs)
	collection := fs.String("collection", "comments", `collection to search: "comments" or "personas"`)
	limit := fs.Int("limit", 0, "maximum results (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	query := strings.Join(fs.Args(), " ")

	cfg, err := loadConfig(fs)
	if err != nil {
		return err
	}
	name, err := resolveCollection(cfg, *collection)
	if err != nil {
		return err
	}

	svc, err := buildSearch(cfg)
	if err != nil {
		return err
	}
	n := *limit
	if n <= 0 {
		n = cfg.RAG.SearchLimit
	}

	results, err := svc.Search(ctx, query, name, n)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}
	for i, r := range results {
		username, _ := r.Payload["username"].(string)
		text, _ := r.Payload["text"].(string)
		fmt.Printf("%d. [%.3f] u/%s %s\n   %s\n", i+1, r.Score, username, r.ID, snippet(text, 160))
	}
	return nil
}

func runAsk(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	addConfigFlag(fs)
	topK := fs.Int("top-k", 0, "records retrieved per collection (default from config)")
	asJSON := fs.Bool("json", false, "print the full response as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	question := strings.Join(fs.Args(), " ")

	cfg, err := loadConfig(fs)
	if err != nil {
		return err
	}
	svc, err := buildSearch(cfg)
	if err != nil {
		return err
	}
	generator := llm.NewClient(cfg.Ollama.BaseURL, cfg.Ollama.Model, cfg.Ollama.Temperature, cfg.OllamaTimeout())
	answerer := rag.NewAnswerer(svc, generator,
		cfg.Qdrant.CommentsCollection, cfg.Qdrant.PersonasCollection)

	k := *topK
	if k <= 0 {
		k = cfg.RAG.TopKPerCollection
	}
	resp, err := answerer.Ask(ctx, rag.AskRequest{
		Question:          question,
		TopKPerCollection: k,
		MaxContextChars:   cfg.RAG.MaxContextChars,
	})
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Println(resp.Answer)
	if len(resp.Cited) > 0 {
		fmt.Println("\nSources:")
		for i, c := range resp.Cited {
			if c.Subreddit != "" {
				fmt.Printf("  [%d] u/%s in r/%s (%.3f)\n", i+1, c.Username, c.Subreddit, c.Similarity)
			} else {
				fmt.Printf("  [%d] persona of u/%s (%.3f)\n", i+1, c.Username, c.Similarity)
			}
		}
	}
	return nil
}

func runStats(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	addConfigFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(fs)
	if err != nil {
		return err
	}
	vectors, err := vectorstore.NewQdrantStore(cfg.Qdrant.Host, cfg.Qdrant.Port)
	if err != nil {
		return err
	}

	for _, name := range []string{cfg.Qdrant.CommentsCollection, cfg.Qdrant.PersonasCollection} {
		exists, err := vectors.CollectionExists(ctx, name)
		if err != nil {
			return err
		}
		if !exists {
			fmt.Printf("%s: not created\n", name)
			continue
		}
		count, err := vectors.Count(ctx, name)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d points\n", name, count)
	}

	runRepo, closeDB, err := openRunRepo(cfg)
	if err != nil {
		return nil
	}
	defer closeDB()

	runs, err := runRepo.ListRecent(ctx, 5)
	if err != nil || len(runs) == 0 {
		return nil
	}
	fmt.Println("\nRecent runs:")
	for _, r := range runs {
		fmt.Printf("  %s %s: %d embedded, %d skipped, %d failed\n",
			r.StartedAt.Format("2006-01-02 15:04"), r.Collection, r.Embedded, r.Skipped, r.Failed)
	}
	return nil
}

func buildPipeline(cfg *config.Config) (*ingest.Pipeline, *markdown.Store, error) {
	store, err := markdown.NewStore(cfg.DataDir)
	if err != nil {
		return nil, nil, err
	}
	vectors, err := vectorstore.NewQdrantStore(cfg.Qdrant.Host, cfg.Qdrant.Port)
	if err != nil {
		return nil, nil, err
	}
	embedder := llm.NewEmbeddingsClient(cfg.Embedding.BaseURL, cfg.Embedding.Model, cfg.Qdrant.VectorSize, cfg.EmbeddingTimeout())
	extractor := records.NewExtractor(cfg.Ingest.MinCommentLength)
	pipeline := ingest.NewPipeline(store, extractor, embedder, vectors,
		cfg.Qdrant.CommentsCollection, cfg.Qdrant.PersonasCollection)
	return pipeline, store, nil
}

func buildSearch(cfg *config.Config) (*search.Service, error) {
	vectors, err := vectorstore.NewQdrantStore(cfg.Qdrant.Host, cfg.Qdrant.Port)
	if err != nil {
		return nil, err
	}
	embedder := llm.NewEmbeddingsClient(cfg.Embedding.BaseURL, cfg.Embedding.Model, cfg.Qdrant.VectorSize, cfg.EmbeddingTimeout())
	return search.NewService(embedder, vectors), nil
}

func resolveCollection(cfg *config.Config, name string) (string, error) {
	switch name {
	case "comments", cfg.Qdrant.CommentsCollection:
		return cfg.Qdrant.CommentsCollection, nil
	case "personas", cfg.Qdrant.PersonasCollection:
		return cfg.Qdrant.PersonasCollection, nil
	default:
		return "", fmt.Errorf("unknown collection %q", name)
	}
}

func openRunRepo(cfg *config.Config) (*storage.RunRepo, func(), error) {
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	if err := storage.Migrate(db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return storage.NewRunRepo(db), func() { _ = db.Close() }, nil
}

func recordRun(ctx context.Context, repo *storage.RunRepo, report *ingest.Report) {
	run := &storage.RunRecord{
		Collection: report.Collection,
		Documents:  len(report.Documents),
		Embedded:   report.Embedded,
		Skipped:    report.Skipped,
		Failed:     report.Failed,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
	}
	if err := repo.Insert(ctx, run); err != nil {
		slog.Warn("failed to record ingestion run", "error", err)
	}
}

func snippet(text string, n int) string {
	text = strings.ReplaceAll(text, "\n", " ")
	if len(text) <= n {
		return text
	}
	return text[:n] + "…"
}
