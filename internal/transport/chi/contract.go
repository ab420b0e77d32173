package chi

import (
	"context"

	"github.com/kailas-cloud/neuromatch/internal/domain"
	healthuc "github.com/kailas-cloud/neuromatch/internal/usecase/health"
	"github.com/kailas-cloud/neuromatch/internal/usecase/match"
	"github.com/kailas-cloud/neuromatch/internal/usecase/retrieval"
)

// Matcher ranks candidate jobs against a profile.
type Matcher interface {
	Match(ctx context.Context, req domain.MatchRequest) (match.Response, error)
}

// Corpus answers queries against the standing job corpus.
type Corpus interface {
	Query(ctx context.Context, text string, topK int) ([]retrieval.Hit, error)
	Rerank(ctx context.Context, profile string, topK int) (match.Response, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
