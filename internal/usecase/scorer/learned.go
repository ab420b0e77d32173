package scorer

import (
	"fmt"
	"math"
)

// pairModel maps a concatenated (profile, candidate) feature vector to a raw logit.
type pairModel interface {
	Logit(features []float32) (float64, error)
	Close() error
}

// Learned scores pairs with a trained feed-forward model followed by the logistic function.
// Scores lie in (0, 1). The model is immutable after load and safe for concurrent use.
type Learned struct {
	model   pairModel
	dim     int
	version string
}

func newLearned(model pairModel, dim int, version string) *Learned {
	return &Learned{model: model, dim: dim, version: version}
}

// Score implements Scorer.
func (l *Learned) Score(profile []float32, candidates [][]float32) ([]float64, error) {
	if err := checkPairs(l.dim, profile, candidates); err != nil {
		return nil, err
	}

	features := make([]float32, 2*l.dim)
	copy(features, profile)

	scores := make([]float64, len(candidates))
	for i, cand := range candidates {
		copy(features[l.dim:], cand)
		logit, err := l.model.Logit(features)
		if err != nil {
			return nil, fmt.Errorf("score candidate %d: %w", i, err)
		}
		if math.IsNaN(logit) {
			return nil, fmt.Errorf("score candidate %d: model produced NaN", i)
		}
		scores[i] = Sigmoid(logit)
	}
	return scores, nil
}

// Variant implements Scorer.
func (l *Learned) Variant() string { return VariantLearned }

// Version implements Scorer.
func (l *Learned) Version() string { return l.version }

// Close releases model resources.
func (l *Learned) Close() error {
	return l.model.Close()
}

// mlp is Linear(2D, H) -> ReLU -> Linear(H, 1). Dropout is an identity at inference.
type mlp struct {
	w1 [][]float32 // H x 2D
	b1 []float32   // H
	w2 []float32   // H
	b2 float32
}

func (m *mlp) Logit(features []float32) (float64, error) {
	out := float64(m.b2)
	for h, row := range m.w1 {
		acc := float64(m.b1[h])
		for j, w := range row {
			acc += float64(w) * float64(features[j])
		}
		if acc > 0 {
			out += acc * float64(m.w2[h])
		}
	}
	return out, nil
}

func (m *mlp) Close() error { return nil }
