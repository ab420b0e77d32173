package embcache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/neuromatch/internal/domain"
)

func TestEmbed_MissThenHit(t *testing.T) {
	inner := &mockEmbedder{}
	ce, ms := newTestCachedEmbedder(t, inner)
	ctx := context.Background()

	first, err := ce.Embed(ctx, "python")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.TotalTokens != 3 {
		t.Errorf("expected tokens from inner on miss, got %d", first.TotalTokens)
	}

	second, err := ce.Embed(ctx, "python")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 inner call, got %d", inner.calls)
	}
	if second.TotalTokens != 0 {
		t.Errorf("expected 0 tokens on hit, got %d", second.TotalTokens)
	}
	if second.Embedding[0] != first.Embedding[0] {
		t.Errorf("cached vector differs: %v vs %v", second.Embedding, first.Embedding)
	}
	for key, ttl := range ms.ttls {
		if ttl != time.Hour {
			t.Errorf("expected ttl 1h for %s, got %v", key, ttl)
		}
		if !strings.HasPrefix(key, "test:emb:") {
			t.Errorf("unexpected key %q", key)
		}
	}
}

func TestEmbed_InnerError(t *testing.T) {
	inner := &mockEmbedder{err: domain.ErrEmbeddingProviderError}
	ce, ms := newTestCachedEmbedder(t, inner)

	_, err := ce.Embed(context.Background(), "python")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if len(ms.data) != 0 {
		t.Error("failures must not be cached")
	}
}

func TestEmbed_StoreErrorsDegradeToMiss(t *testing.T) {
	inner := &mockEmbedder{}
	ce, ms := newTestCachedEmbedder(t, inner)
	ms.getErr = errors.New("connection reset")
	ms.setErr = errors.New("connection reset")

	res, err := ce.Embed(context.Background(), "python")
	if err != nil {
		t.Fatalf("store errors must not fail embedding: %v", err)
	}
	if len(res.Embedding) != 2 {
		t.Errorf("unexpected vector: %v", res.Embedding)
	}
}

func TestEmbed_CorruptEntryIsMiss(t *testing.T) {
	inner := &mockEmbedder{}
	ce, ms := newTestCachedEmbedder(t, inner)
	ms.data[ce.cacheKey("python")] = []byte{1, 2, 3}

	if _, err := ce.Embed(context.Background(), "python"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected corrupt entry to fall through to inner, calls=%d", inner.calls)
	}
}

func TestCacheKey_IncludesModel(t *testing.T) {
	s := newMockKVStore()
	a := New(&mockEmbedder{}, s, Options{Model: "a"}, nil, nil)
	b := New(&mockEmbedder{}, s, Options{Model: "b"}, nil, nil)

	if a.cacheKey("python") == b.cacheKey("python") {
		t.Error("different models must not share cache keys")
	}
	if a.cacheKey("python") != a.cacheKey("python") {
		t.Error("cache key must be deterministic")
	}
}

func TestBatchEmbed_PartialHits(t *testing.T) {
	inner := &mockEmbedder{}
	ce, _ := newTestCachedEmbedder(t, inner)
	ctx := context.Background()

	if _, err := ce.Embed(ctx, "python"); err != nil {
		t.Fatalf("warm: %v", err)
	}

	res, err := ce.BatchEmbed(ctx, []string{"python", "engineer", "role"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.batchCalls != 1 || inner.batchSizes[0] != 2 {
		t.Fatalf("expected one batch of 2 misses, got calls=%d sizes=%v", inner.batchCalls, inner.batchSizes)
	}
	for i, text := range []string{"python", "engineer", "role"} {
		if res.Embeddings[i][0] != float32(len(text)) {
			t.Errorf("embeddings[%d] = %v, want length-derived vector for %q", i, res.Embeddings[i], text)
		}
	}
}

func TestBatchEmbed_AllHitsSkipsInner(t *testing.T) {
	inner := &mockEmbedder{}
	ce, _ := newTestCachedEmbedder(t, inner)
	ctx := context.Background()

	texts := []string{"python", "developer"}
	if _, err := ce.BatchEmbed(ctx, texts); err != nil {
		t.Fatalf("warm: %v", err)
	}
	if _, err := ce.BatchEmbed(ctx, texts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.batchCalls != 1 {
		t.Errorf("expected a single inner batch, got %d", inner.batchCalls)
	}
}

func TestBatchEmbed_DuplicatesEmbeddedOnce(t *testing.T) {
	inner := &mockEmbedder{}
	ce, _ := newTestCachedEmbedder(t, inner)

	res, err := ce.BatchEmbed(context.Background(), []string{"go", "go", "rust", "go"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.batchSizes[0] != 2 {
		t.Errorf("expected 2 unique misses, got %d", inner.batchSizes[0])
	}
	if len(res.Embeddings) != 4 || res.Embeddings[3][0] != 2 {
		t.Errorf("duplicates not filled: %v", res.Embeddings)
	}
}

func TestBatchEmbed_Empty(t *testing.T) {
	inner := &mockEmbedder{}
	ce, _ := newTestCachedEmbedder(t, inner)

	res, err := ce.BatchEmbed(context.Background(), nil)
	if err != nil || res.Embeddings != nil {
		t.Fatalf("expected empty result, got %v, %v", res, err)
	}
	if inner.batchCalls != 0 {
		t.Error("empty batch must not call inner")
	}
}

func TestBatchEmbed_InnerError(t *testing.T) {
	inner := &mockEmbedder{err: domain.ErrEmbeddingProviderError}
	ce, _ := newTestCachedEmbedder(t, inner)

	_, err := ce.BatchEmbed(context.Background(), []string{"a"})
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestCacheCounter(t *testing.T) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_emb_cache_total"}, []string{"result"})
	ce := New(&mockEmbedder{}, newMockKVStore(), Options{}, counter, zap.NewNop())
	ctx := context.Background()

	_, _ = ce.Embed(ctx, "a")
	_, _ = ce.Embed(ctx, "a")

	if v := testutil.ToFloat64(counter.WithLabelValues("miss")); v != 1 {
		t.Errorf("expected 1 miss, got %f", v)
	}
	if v := testutil.ToFloat64(counter.WithLabelValues("hit")); v != 1 {
		t.Errorf("expected 1 hit, got %f", v)
	}
}

func TestVectorBytesRoundTrip(t *testing.T) {
	in := []float32{0.5, -1.25, 3}
	out, err := bytesToVector(vectorToBytes(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("[%d] %v != %v", i, in[i], out[i])
		}
	}
}
