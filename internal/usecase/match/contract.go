package match

import (
	"context"

	"github.com/kailas-cloud/neuromatch/internal/domain"
	"github.com/kailas-cloud/neuromatch/internal/usecase/scorer"
)

// Embedder vectorizes text. Implementations that also satisfy domain.BatchEmbedder
// embed all candidates in one call.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// ScorerSource hands out the process-wide scorer.
type ScorerSource interface {
	Get() (scorer.Scorer, error)
}

// Explainer produces token highlights for one profile/job pair.
type Explainer interface {
	Highlight(ctx context.Context, profileText, jobText string, topK int) ([]domain.Highlight, []domain.Highlight, error)
}

// ResultCache memoizes ranked results.
type ResultCache interface {
	Key(profileText string, candidates []string, scorerVersion string) string
	Get(ctx context.Context, key string) ([]domain.MatchResult, bool)
	Set(ctx context.Context, key string, results []domain.MatchResult)
}
