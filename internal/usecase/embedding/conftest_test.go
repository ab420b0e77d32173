package embedding

import (
	"context"
	"errors"

	"github.com/kailas-cloud/neuromatch/internal/domain"
)

// mockEmbedder returns vec for every text and counts calls.
type mockEmbedder struct {
	vec        []float32
	err        error
	calls      int
	batchSizes []int
	healthErr  error
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: append([]float32(nil), m.vec...), TotalTokens: 2}, nil
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.batchSizes = append(m.batchSizes, len(texts))
	if m.err != nil {
		return domain.BatchEmbeddingResult{}, m.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = append([]float32(nil), m.vec...)
	}
	return domain.BatchEmbeddingResult{Embeddings: out, TotalTokens: 2 * len(texts)}, nil
}

func (m *mockEmbedder) HealthCheck(_ context.Context) error { return m.healthErr }

// singleOnly lacks BatchEmbed, forcing the per-text fallback.
type singleOnly struct{ inner *mockEmbedder }

func (s singleOnly) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	return s.inner.Embed(ctx, text)
}

// shortBatch returns one vector fewer than requested.
type shortBatch struct{ mockEmbedder }

func (s *shortBatch) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	res, err := s.mockEmbedder.BatchEmbed(ctx, texts)
	if err != nil {
		return res, err
	}
	res.Embeddings = res.Embeddings[:len(res.Embeddings)-1]
	return res, nil
}

var errTransport = errors.New("connection refused")
