// Package chi exposes the matching service over HTTP.
package chi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/neuromatch/internal/metrics"
	healthuc "github.com/kailas-cloud/neuromatch/internal/usecase/health"
)

const (
	headerCache  = "X-Cache"
	maxBodyBytes = 1 << 20
)

// Server holds the HTTP handlers.
type Server struct {
	matcher Matcher
	corpus  Corpus
	health  HealthChecker
	logger  *zap.Logger
}

// NewServer creates an HTTP API server. corpus may be nil, in which case the corpus
// routes answer 503 index_unavailable.
func NewServer(matcher Matcher, corpus Corpus, health HealthChecker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{matcher: matcher, corpus: corpus, health: health, logger: logger}
}

// Router builds the chi router with the full middleware stack.
func (s *Server) Router(apiKeys []string) http.Handler {
	r := chi.NewRouter()
	r.Use(JSONRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(CanonicalLog(s.logger))
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed")
	})

	r.Post("/v1/match", s.Match)
	r.Post("/v1/corpus/search", s.CorpusSearch)
	r.Post("/v1/corpus/match", s.CorpusMatch)
	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Match handles POST /v1/match.
func (s *Server) Match(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if !decode(w, r, &req) {
		return
	}

	resp, err := s.matcher.Match(r.Context(), toMatchRequest(req))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	w.Header().Set(headerCache, cacheHeader(resp.CacheHit))
	writeJSON(w, http.StatusOK, rankings(resp.Rankings))
}

// CorpusSearch handles POST /v1/corpus/search.
func (s *Server) CorpusSearch(w http.ResponseWriter, r *http.Request) {
	var req corpusSearchRequest
	if !decode(w, r, &req) {
		return
	}
	if s.corpus == nil {
		writeError(w, http.StatusServiceUnavailable, codeIndexUnavailable, "corpus index is disabled")
		return
	}

	hits, err := s.corpus.Query(r.Context(), req.Query, topKOrDefault(req.TopK))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSearchResponse(hits))
}

// CorpusMatch handles POST /v1/corpus/match.
func (s *Server) CorpusMatch(w http.ResponseWriter, r *http.Request) {
	var req corpusMatchRequest
	if !decode(w, r, &req) {
		return
	}
	if s.corpus == nil {
		writeError(w, http.StatusServiceUnavailable, codeIndexUnavailable, "corpus index is disabled")
		return
	}

	resp, err := s.corpus.Rerank(r.Context(), req.ProfileText, topKOrDefault(req.TopK))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	w.Header().Set(headerCache, cacheHeader(resp.CacheHit))
	writeJSON(w, http.StatusOK, rankings(resp.Rankings))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthResponse{
		Status:  string(report.Status),
		Checks:  checks,
		Scorer:  report.Scorer,
		Vectors: report.Vectors,
	})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body")
		return false
	}
	return true
}

func cacheHeader(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}
