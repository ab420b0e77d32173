// Package health aggregates readiness of the cache store, the embedding provider, the scorer
// and the corpus index.
package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates the service cannot match at all.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	CheckOK      CheckResult = "ok"
	CheckError   CheckResult = "error"
	CheckEmpty   CheckResult = "empty"
	CheckSkipped CheckResult = "disabled"
)

// Check names.
const (
	CheckCache     = "cache"
	CheckEmbedding = "embedding"
	CheckScorer    = "scorer"
	CheckIndex     = "index"
)

// Report aggregates health check results.
type Report struct {
	Status  Status
	Checks  map[string]CheckResult
	Scorer  string // active variant, empty when unresolved
	Vectors int
}

// Service coordinates health checks.
type Service struct {
	cache     CachePinger
	embedding EmbeddingChecker
	scorers   ScorerSource
	index     IndexState
}

// New creates a Service. Any dependency may be nil and is then reported as disabled.
func New(cache CachePinger, embedding EmbeddingChecker, scorers ScorerSource, index IndexState) *Service {
	return &Service{cache: cache, embedding: embedding, scorers: scorers, index: index}
}

// Check runs health checks against all components. A cache outage only degrades matching,
// while an unusable scorer or embedding provider makes it impossible.
func (s *Service) Check(ctx context.Context) Report {
	r := Report{Status: Healthy, Checks: make(map[string]CheckResult, 4)}

	r.Checks[CheckCache] = CheckSkipped
	if s.cache != nil {
		r.Checks[CheckCache] = result(s.cache.Ping(ctx))
	}

	r.Checks[CheckEmbedding] = CheckSkipped
	if s.embedding != nil {
		r.Checks[CheckEmbedding] = result(s.embedding.HealthCheck(ctx))
	}

	r.Checks[CheckScorer] = CheckSkipped
	if s.scorers != nil {
		sc, err := s.scorers.Get()
		r.Checks[CheckScorer] = result(err)
		if err == nil {
			r.Scorer = sc.Variant()
		}
	}

	r.Checks[CheckIndex] = CheckSkipped
	if s.index != nil {
		r.Checks[CheckIndex] = CheckEmpty
		if s.index.Ready() {
			r.Checks[CheckIndex] = CheckOK
			r.Vectors = s.index.Size()
		}
	}

	switch {
	case r.Checks[CheckScorer] == CheckError || r.Checks[CheckEmbedding] == CheckError:
		r.Status = Unhealthy
	case r.Checks[CheckCache] == CheckError:
		r.Status = Degraded
	}
	return r
}

func result(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
