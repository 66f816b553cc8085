// Package ingest orchestrates the write path: read candidate documents,
// extract records, embed their text, and upsert the resulting points into the
// vector store. Ingestion is idempotent by record ID, so an interrupted run is
// resumed by simply running it again.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tommyshellberg/personna/internal/contextutil"
	"github.com/tommyshellberg/personna/internal/domain"
	"github.com/tommyshellberg/personna/internal/llm"
	"github.com/tommyshellberg/personna/internal/markdown"
	"github.com/tommyshellberg/personna/internal/records"
	"github.com/tommyshellberg/personna/internal/vectorstore"
)

// Options bounds the resource usage of an ingestion run.
type Options struct {
	// SkipExisting skips records whose ID is already indexed, avoiding
	// re-embedding. An optimization only: upserts are idempotent anyway.
	SkipExisting bool
	// BatchSize caps how many points are staged before a flush to the store.
	BatchSize int
	// Workers caps concurrent embedding calls within a batch.
	Workers int
	// MaxRetries caps store write retries per batch.
	MaxRetries int
	// RetryBaseWait is the initial backoff, doubled per attempt.
	RetryBaseWait time.Duration
}

// DefaultOptions returns the standard ingestion bounds.
func DefaultOptions() Options {
	return Options{
		SkipExisting:  true,
		BatchSize:     32,
		Workers:       4,
		MaxRetries:    3,
		RetryBaseWait: 500 * time.Millisecond,
	}
}

func (o *Options) applyDefaults() {
	def := DefaultOptions()
	if o.BatchSize <= 0 {
		o.BatchSize = def.BatchSize
	}
	if o.Workers <= 0 {
		o.Workers = def.Workers
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = def.MaxRetries
	}
	if o.RetryBaseWait <= 0 {
		o.RetryBaseWait = def.RetryBaseWait
	}
}

// Pipeline ingests markdown documents into the vector store.
type Pipeline struct {
	store              *markdown.Store
	extractor          *records.Extractor
	embedder           llm.Embedder
	vectors            vectorstore.VectorStore
	commentsCollection string
	personasCollection string
}

// NewPipeline wires the ingestion pipeline. The collection names map the
// logical comments/personas collections onto the store.
func NewPipeline(
	store *markdown.Store,
	extractor *records.Extractor,
	embedder llm.Embedder,
	vectors vectorstore.VectorStore,
	commentsCollection, personasCollection string,
) *Pipeline {
	return &Pipeline{
		store:              store,
		extractor:          extractor,
		embedder:           embedder,
		vectors:            vectors,
		commentsCollection: commentsCollection,
		personasCollection: personasCollection,
	}
}

// IngestComments ingests every comments document in the store. Restricting to
// a single user is done by passing their name; an empty username means all.
func (p *Pipeline) IngestComments(ctx context.Context, username string, opts Options) (*Report, error) {
	opts.applyDefaults()
	logger := contextutil.LoggerFromContext(ctx)

	if err := p.vectors.EnsureCollection(ctx, p.commentsCollection, p.embedder.Dimension()); err != nil {
		return nil, fmt.Errorf("ensure collection: %w", err)
	}

	docs, err := p.store.ListCommentDocuments()
	if err != nil {
		return nil, err
	}
	report := newReport(p.commentsCollection)

	for _, doc := range docs {
		if username != "" && doc.Username != username {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report.finish(), err
		}

		content, err := p.store.ReadDocument(doc)
		if err != nil {
			logger.ErrorContext(ctx, "failed to read document", "path", doc.Path, "error", err)
			continue
		}
		recs, dropped := p.extractor.CommentRecords(doc, markdown.ParseComments(content))
		report.addSkipped(doc.Path, dropped)

		if err := p.ingestDocument(ctx, p.commentsCollection, doc.Path, recs, opts, report); err != nil {
			return report.finish(), err
		}
	}

	logger.InfoContext(ctx, "comment ingestion completed",
		"collection", p.commentsCollection,
		"embedded", report.Embedded, "skipped", report.Skipped, "failed", report.Failed)
	return report.finish(), nil
}

// IngestPersonas ingests every persona document in the store.
func (p *Pipeline) IngestPersonas(ctx context.Context, username string, opts Options) (*Report, error) {
	opts.applyDefaults()
	logger := contextutil.LoggerFromContext(ctx)

	if err := p.vectors.EnsureCollection(ctx, p.personasCollection, p.embedder.Dimension()); err != nil {
		return nil, fmt.Errorf("ensure collection: %w", err)
	}

	docs, err := p.store.ListPersonaDocuments()
	if err != nil {
		return nil, err
	}
	report := newReport(p.personasCollection)

	for _, doc := range docs {
		if username != "" && doc.Username != username {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report.finish(), err
		}

		content, err := p.store.ReadDocument(doc)
		if err != nil {
			logger.ErrorContext(ctx, "failed to read document", "path", doc.Path, "error", err)
			continue
		}

		persona := markdown.ParsePersona(content)
		rec, ok := p.extractor.PersonaRecord(doc, persona, p.commentCount(doc.Username))
		if !ok {
			logger.WarnContext(ctx, "persona document yielded no record", "path", doc.Path)
			continue
		}

		if err := p.ingestDocument(ctx, p.personasCollection, doc.Path, []domain.Record{rec}, opts, report); err != nil {
			return report.finish(), err
		}
	}

	logger.InfoContext(ctx, "persona ingestion completed",
		"collection", p.personasCollection,
		"embedded", report.Embedded, "skipped", report.Skipped, "failed", report.Failed)
	return report.finish(), nil
}

// commentCount counts the comments behind a persona, zero when the comments
// file is missing.
func (p *Pipeline) commentCount(username string) int {
	if !p.store.HasComments(username) {
		return 0
	}
	content, err := p.store.ReadDocument(markdown.Document{
		Username: username,
		Path:     p.store.CommentsPath(username),
	})
	if err != nil {
		return 0
	}
	return len(markdown.ParseComments(content))
}

// ingestDocument embeds and stores the records of a single document in
// batches. Per-record embed failures are counted and skipped; a store write
// failure after retries aborts the run so the report names what was not
// committed.
func (p *Pipeline) ingestDocument(ctx context.Context, collection, docPath string, recs []domain.Record, opts Options, report *Report) error {
	logger := contextutil.LoggerFromContext(ctx)

	pending := make([]domain.Record, 0, len(recs))
	for _, rec := range recs {
		if opts.SkipExisting {
			exists, err := p.vectors.Exists(ctx, collection, rec.ID)
			if err != nil {
				return fmt.Errorf("check existing point: %w", err)
			}
			if exists {
				report.addSkipped(docPath, 1)
				continue
			}
		}
		pending = append(pending, rec)
	}

	for start := 0; start < len(pending); start += opts.BatchSize {
		end := start + opts.BatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		points := p.embedBatch(ctx, batch, opts.Workers, docPath, report)
		if len(points) == 0 {
			continue
		}

		if err := p.upsertWithRetry(ctx, collection, points, opts); err != nil {
			logger.ErrorContext(ctx, "batch write failed after retries",
				"collection", collection, "doc", docPath, "batch_size", len(points), "error", err)
			return err
		}
		report.addEmbedded(docPath, len(points))
	}
	return nil
}

// embedBatch embeds a batch of records with bounded concurrency. Embedding
// failures for single records are never retried here: silent retries would
// mask systematic misconfiguration behind per-record noise.
func (p *Pipeline) embedBatch(ctx context.Context, batch []domain.Record, workers int, docPath string, report *Report) []vectorstore.Point {
	logger := contextutil.LoggerFromContext(ctx)

	points := make([]vectorstore.Point, len(batch))
	ok := make([]bool, len(batch))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, rec := range batch {
		g.Go(func() error {
			vector, err := p.embedder.Embed(gctx, rec.Text)
			if err != nil {
				mu.Lock()
				report.addFailed(docPath, rec.ID)
				mu.Unlock()
				logger.WarnContext(gctx, "failed to embed record",
					"record_id", rec.ID, "doc", docPath, "error", err)
				return nil
			}
			points[i] = vectorstore.Point{
				ID:      rec.ID,
				Vector:  vector,
				Payload: rec.Payload(),
			}
			ok[i] = true
			return nil
		})
	}
	_ = g.Wait()

	staged := make([]vectorstore.Point, 0, len(batch))
	for i := range points {
		if ok[i] {
			staged = append(staged, points[i])
		}
	}
	return staged
}

// upsertWithRetry writes one batch, retrying transient store failures with
// exponential backoff. The batch either fully succeeds or the run aborts.
func (p *Pipeline) upsertWithRetry(ctx context.Context, collection string, points []vectorstore.Point, opts Options) error {
	var lastErr error
	wait := opts.RetryBaseWait
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
		}
		lastErr = p.vectors.Upsert(ctx, collection, points)
		if lastErr == nil {
			return nil
		}
		// Only transient infrastructure failures are worth retrying; schema
		// errors will fail the same way every time.
		if !errors.Is(lastErr, domain.ErrStoreUnavailable) {
			return lastErr
		}
	}
	return fmt.Errorf("upsert batch after %d retries: %w", opts.MaxRetries, lastErr)
}
