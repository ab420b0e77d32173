package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest signals client input that violates request preconditions.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")

	// ErrTraining signals that the coarse quantizer could not be trained.
	ErrTraining = errors.New("index training failed")
	// ErrIndexNotInitialized signals use of an index before build or load.
	ErrIndexNotInitialized = errors.New("index not initialized")
	// ErrIndexNotFound signals a missing persisted index.
	ErrIndexNotFound = errors.New("index not found")
	// ErrIndexLoad signals an unreadable or incompatible persisted index.
	ErrIndexLoad = errors.New("index load failed")

	// ErrScorerLoad signals a corrupted learned scorer artifact.
	ErrScorerLoad = errors.New("scorer load failed")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)

// DimensionError wraps ErrVectorDimMismatch with the expected and actual dimensions.
type DimensionError struct {
	Expected int
	Got      int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: expected %d, got %d", ErrVectorDimMismatch.Error(), e.Expected, e.Got)
}

func (e *DimensionError) Unwrap() error { return ErrVectorDimMismatch }

// NewDimensionError creates a dimension mismatch error.
func NewDimensionError(expected, got int) error {
	return &DimensionError{Expected: expected, Got: got}
}
