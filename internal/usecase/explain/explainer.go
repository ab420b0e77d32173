// Package explain highlights the tokens that drive a profile/job match.
package explain

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/kailas-cloud/neuromatch/internal/domain"
)

// DefaultTopK is the number of highlights kept per side.
const DefaultTopK = 5

// Explainer scores each whitespace token by its best cosine similarity to any token on the other side.
// Token vectors must be unit-normalized by the embedder.
type Explainer struct {
	embedder domain.Embedder
	topK     int
}

// New creates an explainer. topK <= 0 means DefaultTopK.
func New(embedder domain.Embedder, topK int) *Explainer {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Explainer{embedder: embedder, topK: topK}
}

// TopK returns the default number of highlights per side.
func (x *Explainer) TopK() int { return x.topK }

// Highlight returns the topK most salient profile and job tokens, each ordered by descending
// salience with ties kept in token order. If either text has no tokens both results are empty.
// topK <= 0 uses the explainer default.
func (x *Explainer) Highlight(ctx context.Context, profileText, jobText string, topK int) ([]domain.Highlight, []domain.Highlight, error) {
	if topK <= 0 {
		topK = x.topK
	}

	profileTokens := strings.Fields(profileText)
	jobTokens := strings.Fields(jobText)
	if len(profileTokens) == 0 || len(jobTokens) == 0 {
		return []domain.Highlight{}, []domain.Highlight{}, nil
	}

	vecs, err := x.embedTokens(ctx, profileTokens, jobTokens)
	if err != nil {
		return nil, nil, err
	}

	profileSal := make([]float64, len(profileTokens))
	jobSal := make([]float64, len(jobTokens))
	for j := range jobSal {
		jobSal[j] = math.Inf(-1)
	}
	for i, pt := range profileTokens {
		best := math.Inf(-1)
		for j, jt := range jobTokens {
			sim := domain.Dot(vecs[pt], vecs[jt])
			best = max(best, sim)
			jobSal[j] = max(jobSal[j], sim)
		}
		profileSal[i] = best
	}

	return top(profileTokens, profileSal, topK), top(jobTokens, jobSal, topK), nil
}

// embedTokens embeds the unique tokens of both sides in one call.
func (x *Explainer) embedTokens(ctx context.Context, a, b []string) (map[string][]float32, error) {
	seen := make(map[string]struct{}, len(a)+len(b))
	var unique []string
	for _, side := range [][]string{a, b} {
		for _, t := range side {
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				unique = append(unique, t)
			}
		}
	}

	res, err := domain.EmbedBatch(ctx, x.embedder, unique)
	if err != nil {
		return nil, fmt.Errorf("embed tokens: %w", err)
	}
	if len(res.Embeddings) != len(unique) {
		return nil, fmt.Errorf("embed tokens: expected %d embeddings, got %d: %w",
			len(unique), len(res.Embeddings), domain.ErrEmbeddingProviderError)
	}

	out := make(map[string][]float32, len(unique))
	var dim int
	for i, t := range unique {
		v := res.Embeddings[i]
		if i == 0 {
			dim = len(v)
		} else if err := domain.CheckDimension(v, dim); err != nil {
			return nil, fmt.Errorf("embed tokens: %w", err)
		}
		out[t] = v
	}
	return out, nil
}

func top(tokens []string, salience []float64, k int) []domain.Highlight {
	order := make([]int, len(tokens))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return salience[order[a]] > salience[order[b]]
	})

	k = min(k, len(order))
	out := make([]domain.Highlight, k)
	for i := range out {
		idx := order[i]
		out[i] = domain.Highlight{Token: tokens[idx], Salience: salience[idx]}
	}
	return out
}
