package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"

	"github.com/tommyshellberg/personna/internal/ingest"
	"github.com/tommyshellberg/personna/internal/rag"
	"github.com/tommyshellberg/personna/internal/sentiment"
	"github.com/tommyshellberg/personna/internal/vectorstore"
	vectorstore_mocks "github.com/tommyshellberg/personna/internal/vectorstore/mocks"
)

type stubSearch struct{}

func (stubSearch) Search(context.Context, string, string, int) ([]vectorstore.SearchResult, error) {
	return nil, nil
}

type stubAnswerer struct{}

func (stubAnswerer) Ask(context.Context, rag.AskRequest) (rag.AskResponse, error) {
	return rag.AskResponse{Answer: "ok"}, nil
}

type stubIngester struct{}

func (stubIngester) IngestComments(context.Context, string, ingest.Options) (*ingest.Report, error) {
	return &ingest.Report{Collection: "reddit_comments"}, nil
}

func (stubIngester) IngestPersonas(context.Context, string, ingest.Options) (*ingest.Report, error) {
	return &ingest.Report{Collection: "user_personas"}, nil
}

type stubAnalyzer struct{}

func (stubAnalyzer) AnalyzeAll(context.Context, []sentiment.Comment, string, string) ([]sentiment.Result, error) {
	return nil, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	vectors := vectorstore_mocks.NewMockVectorStore(ctrl)
	vectors.EXPECT().CollectionExists(gomock.Any(), gomock.Any()).Return(true, nil).AnyTimes()
	vectors.EXPECT().Count(gomock.Any(), gomock.Any()).Return(uint64(0), nil).AnyTimes()

	return NewRouter(&Deps{
		VectorStore:        vectors,
		Search:             stubSearch{},
		Answerer:           stubAnswerer{},
		Pipeline:           stubIngester{},
		Sentiment:          stubAnalyzer{},
		CommentsCollection: "reddit_comments",
		PersonasCollection: "user_personas",
	})
}

func TestRouter_Routes(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{http.MethodGet, "/api/health", "", http.StatusOK},
		{http.MethodPost, "/api/search", `{"query": "q"}`, http.StatusOK},
		{http.MethodPost, "/api/ask", `{"question": "q"}`, http.StatusOK},
		{http.MethodPost, "/api/ingest", `{"collection": "comments"}`, http.StatusOK},
		{http.MethodPost, "/api/sentiment", `{"comments": [{"id": "c1", "body": "x"}]}`, http.StatusOK},
		{http.MethodGet, "/api/stats", "", http.StatusOK},
		{http.MethodGet, "/api/nope", "", http.StatusNotFound},
		{http.MethodGet, "/api/search", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("%s %s = %d, want %d; body %s", tt.method, tt.path, rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/search", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q", got)
	}
}
