package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kailas-cloud/neuromatch/internal/domain"
	healthuc "github.com/kailas-cloud/neuromatch/internal/usecase/health"
	"github.com/kailas-cloud/neuromatch/internal/usecase/match"
	"github.com/kailas-cloud/neuromatch/internal/usecase/retrieval"
)

type mockMatcher struct {
	resp  match.Response
	err   error
	calls int
	last  domain.MatchRequest
}

func (m *mockMatcher) Match(_ context.Context, req domain.MatchRequest) (match.Response, error) {
	m.calls++
	m.last = req
	if m.err != nil {
		return match.Response{}, m.err
	}
	return m.resp, nil
}

type mockCorpus struct {
	hits     []retrieval.Hit
	resp     match.Response
	err      error
	lastText string
	lastTopK int
	reranked bool
	queried  bool
}

func (m *mockCorpus) Query(_ context.Context, text string, topK int) ([]retrieval.Hit, error) {
	m.queried, m.lastText, m.lastTopK = true, text, topK
	return m.hits, m.err
}

func (m *mockCorpus) Rerank(_ context.Context, profile string, topK int) (match.Response, error) {
	m.reranked, m.lastText, m.lastTopK = true, profile, topK
	return m.resp, m.err
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var e errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&e); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return e
}
