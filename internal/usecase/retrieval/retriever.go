// Package retrieval keeps a standing corpus of job texts behind an IVF index and answers
// nearest-neighbour queries and retrieve-then-rerank matches over it.
package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/neuromatch/internal/domain"
	"github.com/kailas-cloud/neuromatch/internal/index"
	"github.com/kailas-cloud/neuromatch/internal/logger"
	"github.com/kailas-cloud/neuromatch/internal/metrics"
	"github.com/kailas-cloud/neuromatch/internal/usecase/match"
)

// DefaultMaxTopK caps Query and Rerank when no limit is configured.
const DefaultMaxTopK = 100

// vectorIndex is the consumer interface over the ANN index (ISP).
type vectorIndex interface {
	Build(embeddings [][]float32, nClusters int) error
	Search(query []float32, topK int) ([]index.Hit, error)
	Persist(path string) error
	Load(path string) error
	IsTrained() bool
	Size() int64
}

// Matcher ranks candidates against a profile.
type Matcher interface {
	Match(ctx context.Context, req domain.MatchRequest) (match.Response, error)
}

// Config configures a Retriever. An empty Path keeps the corpus in memory only.
type Config struct {
	Path      string
	NClusters int
	MaxTopK   int
}

// Hit is one retrieved corpus entry.
type Hit struct {
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
	VectorID int64   `json:"vector_id"`
}

// corpusFile is the sidecar stored next to the index file.
type corpusFile struct {
	Texts []string `json:"texts"`
}

// Retriever owns the index and the texts its vector ids refer to.
type Retriever struct {
	mu       sync.RWMutex
	idx      vectorIndex
	texts    []string
	embedder domain.Embedder
	queries  domain.Embedder
	matcher  Matcher
	cfg      Config
	logger   *zap.Logger
}

// New creates a retriever over idx. matcher may be nil when Rerank is not used.
func New(idx vectorIndex, embedder domain.Embedder, matcher Matcher, cfg Config, l *zap.Logger) *Retriever {
	if cfg.MaxTopK <= 0 {
		cfg.MaxTopK = DefaultMaxTopK
	}
	if l == nil {
		l = zap.NewNop()
	}
	return &Retriever{idx: idx, embedder: embedder, queries: embedder, matcher: matcher, cfg: cfg, logger: l}
}

// WithQueryEmbedder embeds Query and Rerank inputs with e instead of the corpus embedder,
// for deployments where the query side carries its own instruction.
func (r *Retriever) WithQueryEmbedder(e domain.Embedder) *Retriever {
	if e != nil {
		r.queries = e
	}
	return r
}

// CorpusPath returns the sidecar path for an index stored at indexPath.
func CorpusPath(indexPath string) string {
	return indexPath + ".corpus.json"
}

// Open loads a persisted index and corpus. A missing index leaves the retriever
// uninitialized and is not an error. The corpus is written before the index, so a
// corpus longer than the index is the tail of an interrupted build and is truncated.
func (r *Retriever) Open() error {
	if r.cfg.Path == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.idx.Load(r.cfg.Path); err != nil {
		if errors.Is(err, domain.ErrIndexNotFound) {
			r.logger.Info("No persisted index, corpus retrieval disabled until build", zap.String("path", r.cfg.Path))
			return nil
		}
		return fmt.Errorf("open index: %w", err)
	}

	data, err := os.ReadFile(filepath.Clean(CorpusPath(r.cfg.Path)))
	if err != nil {
		return fmt.Errorf("%w: read corpus: %w", domain.ErrIndexLoad, err)
	}
	var cf corpusFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return fmt.Errorf("%w: decode corpus: %w", domain.ErrIndexLoad, err)
	}
	size := r.idx.Size()
	if int64(len(cf.Texts)) < size {
		return fmt.Errorf("%w: corpus has %d texts, index has %d vectors",
			domain.ErrIndexLoad, len(cf.Texts), size)
	}
	if int64(len(cf.Texts)) > size {
		r.logger.Warn("Corpus longer than index, dropping unindexed texts",
			zap.Int("texts", len(cf.Texts)), zap.Int64("vectors", size))
		cf.Texts = cf.Texts[:size]
	}
	r.texts = cf.Texts
	metrics.IndexVectors.Set(float64(len(r.texts)))
	r.logger.Info("Index loaded", zap.String("path", r.cfg.Path), zap.Int("vectors", len(r.texts)))
	return nil
}

// Build embeds texts and adds them to the index, training the quantizer first if needed,
// then persists corpus and index when a path is configured. The corpus goes first so that
// a failure between the two writes never leaves the index ahead of its texts.
func (r *Retriever) Build(ctx context.Context, texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: corpus is empty", domain.ErrInvalidRequest)
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("%w: corpus text %d is empty", domain.ErrInvalidRequest, i)
		}
	}

	res, err := domain.EmbedBatch(ctx, r.embedder, texts)
	if err != nil {
		return fmt.Errorf("embed corpus: %w", err)
	}
	if len(res.Embeddings) != len(texts) {
		return fmt.Errorf("embed corpus: expected %d embeddings, got %d: %w",
			len(texts), len(res.Embeddings), domain.ErrEmbeddingProviderError)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.idx.Build(res.Embeddings, r.cfg.NClusters); err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	r.texts = append(r.texts, texts...)
	metrics.IndexVectors.Set(float64(len(r.texts)))

	if r.cfg.Path != "" {
		if err := writeCorpus(CorpusPath(r.cfg.Path), r.texts); err != nil {
			return err
		}
		if err := r.idx.Persist(r.cfg.Path); err != nil {
			return fmt.Errorf("persist index: %w", err)
		}
	}
	logger.Or(ctx, r.logger).Info("Index built",
		zap.Int("added", len(texts)),
		zap.Int("vectors", len(r.texts)),
		zap.Int("prompt_tokens", res.PromptTokens),
	)
	return nil
}

// Query returns the corpus texts nearest to text. topK is clamped to the configured maximum.
func (r *Retriever) Query(ctx context.Context, text string, topK int) ([]Hit, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidRequest)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive", domain.ErrInvalidRequest)
	}
	topK = min(topK, r.cfg.MaxTopK)

	if !r.Ready() {
		return nil, domain.ErrIndexNotInitialized
	}

	res, err := r.queries.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	found, err := r.idx.Search(res.Embedding, topK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	hits := make([]Hit, 0, len(found))
	for _, h := range found {
		if h.VectorID < 0 || h.VectorID >= int64(len(r.texts)) {
			continue
		}
		hits = append(hits, Hit{Text: r.texts[h.VectorID], Score: h.Distance, VectorID: h.VectorID})
	}
	return hits, nil
}

// Rerank retrieves the topK nearest corpus texts for profile and ranks them with the matcher.
func (r *Retriever) Rerank(ctx context.Context, profile string, topK int) (match.Response, error) {
	if r.matcher == nil {
		return match.Response{}, errors.New("rerank: no matcher configured")
	}
	hits, err := r.Query(ctx, profile, topK)
	if err != nil {
		return match.Response{}, err
	}
	if len(hits) == 0 {
		return match.Response{Rankings: []domain.MatchResult{}}, nil
	}
	candidates := make([]string, len(hits))
	for i, h := range hits {
		candidates[i] = h.Text
	}
	return r.matcher.Match(ctx, domain.MatchRequest{ProfileText: profile, CandidateJobs: candidates})
}

// Ready reports whether the index is trained and can answer queries.
func (r *Retriever) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.idx.IsTrained()
}

// Size returns the number of corpus entries.
func (r *Retriever) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.texts)
}

func writeCorpus(path string, texts []string) error {
	data, err := json.Marshal(corpusFile{Texts: texts})
	if err != nil {
		return fmt.Errorf("encode corpus: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create corpus: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write corpus: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close corpus: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename corpus: %w", err)
	}
	return nil
}
