// Package scorer assigns relevance scores to (profile, candidate) embedding pairs.
package scorer

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/neuromatch/internal/domain"
)

// Scorer variants.
const (
	VariantCosine  = "cosine"
	VariantLearned = "learned"
)

// Scorer scores every candidate embedding against the profile embedding.
// The result has one score per candidate, in candidate order.
type Scorer interface {
	Score(profile []float32, candidates [][]float32) ([]float64, error)
	// Variant reports "cosine" or "learned".
	Variant() string
	// Version identifies the scorer and, for learned scorers, the loaded artifact.
	Version() string
}

// Cosine scores by inner product. With unit-normalized inputs this is cosine similarity in [-1, 1].
type Cosine struct {
	dim int
}

// NewCosine creates a cosine scorer for dim-dimensional embeddings.
func NewCosine(dim int) *Cosine {
	return &Cosine{dim: dim}
}

// Score implements Scorer.
func (c *Cosine) Score(profile []float32, candidates [][]float32) ([]float64, error) {
	if err := checkPairs(c.dim, profile, candidates); err != nil {
		return nil, err
	}
	scores := make([]float64, len(candidates))
	for i, cand := range candidates {
		scores[i] = domain.Dot(profile, cand)
	}
	return scores, nil
}

// Variant implements Scorer.
func (c *Cosine) Variant() string { return VariantCosine }

// Version implements Scorer.
func (c *Cosine) Version() string { return VariantCosine }

// Sigmoid maps x to (0, 1) without overflow for large |x|.
// The result is kept strictly inside the open interval.
func Sigmoid(x float64) float64 {
	var p float64
	if x >= 0 {
		p = 1 / (1 + math.Exp(-x))
	} else {
		e := math.Exp(x)
		p = e / (1 + e)
	}
	switch {
	case p <= 0:
		return math.SmallestNonzeroFloat64
	case p >= 1:
		return math.Nextafter(1, 0)
	}
	return p
}

func checkPairs(dim int, profile []float32, candidates [][]float32) error {
	if err := domain.CheckDimension(profile, dim); err != nil {
		return fmt.Errorf("profile: %w", err)
	}
	for i, c := range candidates {
		if err := domain.CheckDimension(c, dim); err != nil {
			return fmt.Errorf("candidate %d: %w", i, err)
		}
	}
	return nil
}
