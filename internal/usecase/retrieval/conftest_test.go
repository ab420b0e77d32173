package retrieval

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/kailas-cloud/neuromatch/internal/domain"
	"github.com/kailas-cloud/neuromatch/internal/usecase/match"
)

const testDim = 8

// wordEmbedder hashes each word onto one axis and normalizes the sum.
type wordEmbedder struct {
	mu      sync.Mutex
	queries int
	batches int
	err     error
}

func vectorOf(text string) []float32 {
	v := make([]float32, testDim)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%testDim]++
	}
	return domain.Normalize(v)
}

func (e *wordEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	e.mu.Lock()
	e.queries++
	e.mu.Unlock()
	if e.err != nil {
		return domain.EmbeddingResult{}, e.err
	}
	return domain.EmbeddingResult{Embedding: vectorOf(text)}, nil
}

func (e *wordEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	e.mu.Lock()
	e.batches++
	e.mu.Unlock()
	if e.err != nil {
		return domain.BatchEmbeddingResult{}, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = vectorOf(t)
	}
	return domain.BatchEmbeddingResult{Embeddings: out}, nil
}

// recordingMatcher captures the last request and echoes candidates in order.
type recordingMatcher struct {
	last domain.MatchRequest
}

func (m *recordingMatcher) Match(_ context.Context, req domain.MatchRequest) (match.Response, error) {
	m.last = req
	out := make([]domain.MatchResult, len(req.CandidateJobs))
	for i, c := range req.CandidateJobs {
		out[i] = domain.MatchResult{JobText: c, Score: float64(len(req.CandidateJobs) - i)}
	}
	return match.Response{Rankings: out}, nil
}
