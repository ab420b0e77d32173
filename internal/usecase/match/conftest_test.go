package match

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/neuromatch/internal/db/memory"
	"github.com/kailas-cloud/neuromatch/internal/domain"
	"github.com/kailas-cloud/neuromatch/internal/repository/matchcache"
	"github.com/kailas-cloud/neuromatch/internal/usecase/explain"
	"github.com/kailas-cloud/neuromatch/internal/usecase/scorer"
)

const testDim = 16

var vocab = map[string]int{
	"python": 0, "developer": 1, "engineer": 2, "role": 3, "chef": 4, "position": 5,
}

// bagEmbedder maps text to a normalized bag-of-words vector. Deterministic and batch-capable.
type bagEmbedder struct {
	embedCalls atomic.Int32
	batchCalls atomic.Int32
	err        error
	gate       chan struct{} // when set, BatchEmbed blocks until closed
}

func bag(text string) []float32 {
	v := make([]float32, testDim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		idx, ok := vocab[tok]
		if !ok {
			h := fnv.New32a()
			_, _ = h.Write([]byte(tok))
			idx = 6 + int(h.Sum32()%uint32(testDim-6))
		}
		v[idx]++
	}
	return domain.Normalize(v)
}

func (e *bagEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	e.embedCalls.Add(1)
	if e.err != nil {
		return domain.EmbeddingResult{}, e.err
	}
	return domain.EmbeddingResult{Embedding: bag(text), TotalTokens: 1}, nil
}

func (e *bagEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	e.batchCalls.Add(1)
	if e.gate != nil {
		<-e.gate
	}
	if e.err != nil {
		return domain.BatchEmbeddingResult{}, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = bag(t)
	}
	return domain.BatchEmbeddingResult{Embeddings: out, TotalTokens: len(texts)}, nil
}

func (e *bagEmbedder) calls() int {
	return int(e.embedCalls.Load() + e.batchCalls.Load())
}

// failingScorers always fails to resolve.
type failingScorers struct{ err error }

func (f failingScorers) Get() (scorer.Scorer, error) { return nil, f.err }

// recordingCache wraps a real cache and counts writes.
type recordingCache struct {
	*matchcache.Cache
	mu   sync.Mutex
	sets int
}

func (c *recordingCache) Set(ctx context.Context, key string, results []domain.MatchResult) {
	c.mu.Lock()
	c.sets++
	c.mu.Unlock()
	c.Cache.Set(ctx, key, results)
}

func (c *recordingCache) setCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets
}

type fixture struct {
	svc      *Service
	profiles *bagEmbedder
	jobs     *bagEmbedder
	tokens   *bagEmbedder
	cache    *recordingCache
	store    *memory.Store
}

func newFixture(t *testing.T, scorers ScorerSource) *fixture {
	t.Helper()
	store, err := memory.NewStore(100)
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	if scorers == nil {
		scorers = scorer.NewProvider(scorer.Config{Mode: scorer.ModeDisabled, Dimensions: testDim}, zap.NewNop())
	}
	f := &fixture{
		profiles: &bagEmbedder{},
		jobs:     &bagEmbedder{},
		tokens:   &bagEmbedder{},
		store:    store,
	}
	f.cache = &recordingCache{Cache: matchcache.New(store, "test:", time.Hour, nil, zap.NewNop())}
	f.svc = New(f.profiles, f.jobs, scorers, explain.New(f.tokens, 5), f.cache, zap.NewNop())
	return f
}

func (f *fixture) embedCalls() int {
	return f.profiles.calls() + f.jobs.calls()
}
