package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"

	"github.com/tommyshellberg/personna/internal/domain"
	"github.com/tommyshellberg/personna/internal/ingest"
	"github.com/tommyshellberg/personna/internal/rag"
	"github.com/tommyshellberg/personna/internal/sentiment"
	"github.com/tommyshellberg/personna/internal/storage"
	"github.com/tommyshellberg/personna/internal/vectorstore"
	vectorstore_mocks "github.com/tommyshellberg/personna/internal/vectorstore/mocks"
)

// fakeSearch implements SearchService.
type fakeSearch struct {
	results    []vectorstore.SearchResult
	err        error
	collection string
}

func (f *fakeSearch) Search(_ context.Context, _, collection string, _ int) ([]vectorstore.SearchResult, error) {
	f.collection = collection
	return f.results, f.err
}

// fakeAnswerer implements Answerer.
type fakeAnswerer struct {
	resp rag.AskResponse
	err  error
}

func (f *fakeAnswerer) Ask(_ context.Context, _ rag.AskRequest) (rag.AskResponse, error) {
	return f.resp, f.err
}

// fakeIngester implements Ingester.
type fakeIngester struct {
	report   *ingest.Report
	err      error
	lastUser string
	calls    []string
}

func (f *fakeIngester) IngestComments(_ context.Context, username string, _ ingest.Options) (*ingest.Report, error) {
	f.calls = append(f.calls, "comments")
	f.lastUser = username
	return f.report, f.err
}

func (f *fakeIngester) IngestPersonas(_ context.Context, username string, _ ingest.Options) (*ingest.Report, error) {
	f.calls = append(f.calls, "personas")
	f.lastUser = username
	return f.report, f.err
}

// fakeRunStore implements storage.RunStore.
type fakeRunStore struct {
	inserted []*storage.RunRecord
	recent   []storage.RunRecord
}

func (f *fakeRunStore) Insert(_ context.Context, run *storage.RunRecord) error {
	f.inserted = append(f.inserted, run)
	return nil
}

func (f *fakeRunStore) ListRecent(_ context.Context, _ int) ([]storage.RunRecord, error) {
	return f.recent, nil
}

func (f *fakeRunStore) LastRun(_ context.Context, _ string) (*storage.RunRecord, error) {
	return nil, storage.ErrNotFound
}

// fakeAnalyzer implements SentimentAnalyzer.
type fakeAnalyzer struct {
	results []sentiment.Result
	err     error
}

func (f *fakeAnalyzer) AnalyzeAll(_ context.Context, _ []sentiment.Comment, _, _ string) ([]sentiment.Result, error) {
	return f.results, f.err
}

func postJSON(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSearchHandler(t *testing.T) {
	svc := &fakeSearch{results: []vectorstore.SearchResult{
		{ID: "a", Score: 0.9, Payload: map[string]any{"text": "hit"}},
	}}
	h := NewSearchHandler(svc, "reddit_comments", "user_personas")

	rec := postJSON(t, h, `{"query": "generics", "collection": "comments", "limit": 5}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	if svc.collection != "reddit_comments" {
		t.Errorf("logical comments collection resolved to %q", svc.collection)
	}

	var resp SearchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != "a" {
		t.Errorf("results = %v", resp.Results)
	}
}

func TestSearchHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"empty query", fmt.Errorf("search: %w", domain.ErrEmptyQuery), http.StatusBadRequest},
		{"unknown collection", fmt.Errorf("search: %w", domain.ErrUnknownCollection), http.StatusNotFound},
		{"store down", fmt.Errorf("search: %w", domain.ErrStoreUnavailable), http.StatusServiceUnavailable},
		{"provider down", fmt.Errorf("search: %w", domain.ErrProviderUnavailable), http.StatusBadGateway},
		{"other", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSearchHandler(&fakeSearch{err: tt.err}, "reddit_comments", "user_personas")
			rec := postJSON(t, h, `{"query": "q"}`)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestSearchHandler_BadBody(t *testing.T) {
	h := NewSearchHandler(&fakeSearch{}, "reddit_comments", "user_personas")
	rec := postJSON(t, h, `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSearchHandler_MethodNotAllowed(t *testing.T) {
	h := NewSearchHandler(&fakeSearch{}, "reddit_comments", "user_personas")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestAskHandler(t *testing.T) {
	h := NewAskHandler(&fakeAnswerer{resp: rag.AskResponse{
		Answer: "They like it.",
		Cited:  []rag.CitedRecord{{ID: "c1", Collection: "reddit_comments", Username: "alice"}},
	}})

	rec := postJSON(t, h, `{"question": "Do they like it?"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp rag.AskResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Answer != "They like it." || len(resp.Cited) != 1 {
		t.Errorf("response = %+v", resp)
	}
}

func TestAskHandler_EmptyQuestion(t *testing.T) {
	h := NewAskHandler(&fakeAnswerer{err: fmt.Errorf("ask: %w", domain.ErrEmptyQuery)})
	rec := postJSON(t, h, `{"question": ""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestIngestHandler_RecordsRun(t *testing.T) {
	report := &ingest.Report{
		Collection: "reddit_comments",
		Documents:  map[string]*ingest.DocumentReport{"alice.md": {Embedded: 2}},
		Embedded:   2,
		Skipped:    1,
	}
	pipeline := &fakeIngester{report: report}
	runs := &fakeRunStore{}
	h := NewIngestHandler(pipeline, runs)

	rec := postJSON(t, h, `{"collection": "comments", "username": "alice"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	if len(pipeline.calls) != 1 || pipeline.calls[0] != "comments" {
		t.Errorf("pipeline calls = %v", pipeline.calls)
	}
	if pipeline.lastUser != "alice" {
		t.Errorf("username = %q, want alice", pipeline.lastUser)
	}
	if len(runs.inserted) != 1 {
		t.Fatalf("run records = %d, want 1", len(runs.inserted))
	}
	if runs.inserted[0].Embedded != 2 || runs.inserted[0].Documents != 1 {
		t.Errorf("recorded run = %+v", runs.inserted[0])
	}
}

func TestIngestHandler_PersonasRoute(t *testing.T) {
	pipeline := &fakeIngester{report: &ingest.Report{Collection: "user_personas"}}
	h := NewIngestHandler(pipeline, nil)

	rec := postJSON(t, h, `{"collection": "personas"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(pipeline.calls) != 1 || pipeline.calls[0] != "personas" {
		t.Errorf("pipeline calls = %v", pipeline.calls)
	}
}

func TestIngestHandler_UnknownCollection(t *testing.T) {
	h := NewIngestHandler(&fakeIngester{}, nil)
	rec := postJSON(t, h, `{"collection": "nope"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestIngestHandler_StoreFailure(t *testing.T) {
	pipeline := &fakeIngester{
		report: &ingest.Report{Collection: "reddit_comments"},
		err:    fmt.Errorf("upsert: %w", domain.ErrStoreUnavailable),
	}
	runs := &fakeRunStore{}
	h := NewIngestHandler(pipeline, runs)

	rec := postJSON(t, h, `{"collection": "comments"}`)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	// The partial run is still recorded
	if len(runs.inserted) != 1 {
		t.Errorf("run records = %d, want 1", len(runs.inserted))
	}
}

func TestSentimentHandler(t *testing.T) {
	h := NewSentimentHandler(&fakeAnalyzer{results: []sentiment.Result{
		{CommentID: "c1", Username: "alice", Score: 0.8, Rationale: "Positive"},
	}})

	rec := postJSON(t, h, `{"post_title": "Idea", "comments": [{"id": "c1", "author": "alice", "body": "love it"}]}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	var resp SentimentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Score != 0.8 {
		t.Errorf("results = %v", resp.Results)
	}
}

func TestSentimentHandler_NoComments(t *testing.T) {
	h := NewSentimentHandler(&fakeAnalyzer{})
	rec := postJSON(t, h, `{"post_title": "Idea", "comments": []}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	vectors := vectorstore_mocks.NewMockVectorStore(ctrl)
	vectors.EXPECT().CollectionExists(gomock.Any(), "reddit_comments").Return(true, nil)
	vectors.EXPECT().CollectionExists(gomock.Any(), "user_personas").Return(true, nil)

	h := NewHealthHandler(vectors, "reddit_comments", "user_personas")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want healthy", resp.Status)
	}
}

func TestHealthHandler_MissingCollection(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	vectors := vectorstore_mocks.NewMockVectorStore(ctrl)
	vectors.EXPECT().CollectionExists(gomock.Any(), "reddit_comments").Return(true, nil)
	vectors.EXPECT().CollectionExists(gomock.Any(), "user_personas").Return(false, nil)

	h := NewHealthHandler(vectors, "reddit_comments", "user_personas")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestStatsHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	vectors := vectorstore_mocks.NewMockVectorStore(ctrl)
	vectors.EXPECT().CollectionExists(gomock.Any(), "reddit_comments").Return(true, nil)
	vectors.EXPECT().Count(gomock.Any(), "reddit_comments").Return(uint64(120), nil)
	vectors.EXPECT().CollectionExists(gomock.Any(), "user_personas").Return(false, nil)

	runs := &fakeRunStore{recent: []storage.RunRecord{{Collection: "reddit_comments", Embedded: 120}}}
	h := NewStatsHandler(vectors, runs, "reddit_comments", "user_personas")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	var resp StatsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Collections) != 2 {
		t.Fatalf("collections = %d, want 2", len(resp.Collections))
	}
	if resp.Collections[0].Points != 120 || !resp.Collections[0].Exists {
		t.Errorf("comments stats = %+v", resp.Collections[0])
	}
	if resp.Collections[1].Exists {
		t.Errorf("personas stats = %+v, want exists=false", resp.Collections[1])
	}
	if len(resp.RecentRuns) != 1 {
		t.Errorf("recent runs = %v", resp.RecentRuns)
	}
}
