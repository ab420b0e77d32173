package health

import (
	"context"

	"github.com/kailas-cloud/neuromatch/internal/usecase/scorer"
)

// CachePinger checks cache store availability.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// ScorerSource resolves the active scorer.
type ScorerSource interface {
	Get() (scorer.Scorer, error)
}

// IndexState reports corpus index readiness.
type IndexState interface {
	Ready() bool
	Size() int
}
