package neuromatch

import "github.com/kailas-cloud/neuromatch/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidRequest         = domain.ErrInvalidRequest
	ErrVectorDimMismatch      = domain.ErrVectorDimMismatch
	ErrScorerLoad             = domain.ErrScorerLoad
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
)
