package neuromatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/neuromatch/internal/app"
	"github.com/kailas-cloud/neuromatch/internal/config"
	"github.com/kailas-cloud/neuromatch/internal/domain"
)

// Matcher is the in-process ranking pipeline.
type Matcher struct {
	app *app.App
}

// New wires a Matcher. It connects to the cache store and loads the scorer eagerly.
func New(opts ...Option) (*Matcher, error) {
	c := defaultConfig()
	for _, o := range opts {
		o.apply(c)
	}
	if c.embedder == nil {
		return nil, errors.New("neuromatch: embedder required (use WithEmbedder)")
	}
	if c.dimensions <= 0 {
		return nil, errors.New("neuromatch: vector dimensions required (use WithDimensions)")
	}

	a, err := app.New(context.Background(), c.toConfig(), c.logger, app.WithEmbedder(adaptEmbedder(c.embedder)))
	if err != nil {
		return nil, fmt.Errorf("neuromatch: %w", err)
	}
	return &Matcher{app: a}, nil
}

func (c *clientConfig) toConfig() config.Config {
	cfg := config.Config{
		Cache: c.cache,
		Embedding: config.EmbeddingConfig{
			Model:      c.model,
			Dimensions: c.dimensions,
			TokenCache: c.tokenCache,
		},
		Scorer: config.ScorerConfig{
			Mode:   c.scorerMode,
			Path:   c.scorerPath,
			Format: c.scorerFormat,
		},
		Explain: config.ExplainConfig{TopKTokens: c.topKTokens},
	}
	cfg.ApplyDefaults()
	return cfg
}

// Match ranks candidates against profile, best first. Empty input fails with ErrInvalidRequest.
func (m *Matcher) Match(ctx context.Context, profile string, candidates []string) (*MatchResponse, error) {
	resp, err := m.app.Match.Match(ctx, domain.MatchRequest{ProfileText: profile, CandidateJobs: candidates})
	if err != nil {
		return nil, fmt.Errorf("match: %w", err)
	}
	return &MatchResponse{Rankings: resultsFromDomain(resp.Rankings), CacheHit: resp.CacheHit}, nil
}

// ScorerVariant reports "cosine" or "learned".
func (m *Matcher) ScorerVariant() (string, error) {
	sc, err := m.app.Scorers.Get()
	if err != nil {
		return "", fmt.Errorf("scorer: %w", err)
	}
	return sc.Variant(), nil
}

// Ping checks cache store connectivity.
func (m *Matcher) Ping(ctx context.Context) error {
	if err := m.app.Store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close releases all resources.
func (m *Matcher) Close() {
	if m.app != nil {
		m.app.Close()
	}
}
