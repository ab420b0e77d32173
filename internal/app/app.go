// Package app is the composition root: it turns a Config into a wired matching service.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/neuromatch/internal/config"
	"github.com/kailas-cloud/neuromatch/internal/db"
	"github.com/kailas-cloud/neuromatch/internal/db/memory"
	dbRedis "github.com/kailas-cloud/neuromatch/internal/db/redis"
	"github.com/kailas-cloud/neuromatch/internal/domain"
	"github.com/kailas-cloud/neuromatch/internal/index"
	"github.com/kailas-cloud/neuromatch/internal/metrics"
	"github.com/kailas-cloud/neuromatch/internal/repository/embcache"
	"github.com/kailas-cloud/neuromatch/internal/repository/matchcache"
	chiTransport "github.com/kailas-cloud/neuromatch/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/neuromatch/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/neuromatch/internal/usecase/embedding"
	"github.com/kailas-cloud/neuromatch/internal/usecase/explain"
	healthuc "github.com/kailas-cloud/neuromatch/internal/usecase/health"
	"github.com/kailas-cloud/neuromatch/internal/usecase/match"
	"github.com/kailas-cloud/neuromatch/internal/usecase/retrieval"
	"github.com/kailas-cloud/neuromatch/internal/usecase/scorer"
)

// App holds the wired components.
type App struct {
	Config    config.Config
	Store     db.Store
	Embedders Embedders
	Scorers   *scorer.Provider
	Match     *match.Service
	Retriever *retrieval.Retriever // nil when the corpus index is disabled
	Health    *healthuc.Service
	Logger    *zap.Logger
}

// Embedders are the three decorator chains built over one provider.
type Embedders struct {
	Provider domain.Embedder
	Profiles domain.Embedder
	Jobs     domain.Embedder
	Tokens   domain.Embedder
}

type options struct {
	embedder domain.Embedder
	store    db.Store
}

// Option overrides a component that New would otherwise build from the config.
type Option func(*options)

// WithEmbedder replaces the OpenAI-compatible provider.
func WithEmbedder(e domain.Embedder) Option {
	return func(o *options) { o.embedder = e }
}

// WithStore replaces the configured cache store. The app takes ownership and closes it.
func WithStore(s db.Store) Option {
	return func(o *options) { o.store = s }
}

// New wires the service. It waits for the cache store and resolves the scorer eagerly, so a
// corrupt scorer artifact or an unreachable store fails startup.
func New(ctx context.Context, cfg config.Config, l *zap.Logger, opts ...Option) (*App, error) {
	if l == nil {
		l = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	store := o.store
	if store == nil {
		var err error
		store, err = BuildStore(cfg.Cache)
		if err != nil {
			return nil, err
		}
	}
	timeout := time.Duration(cfg.Cache.ReadinessTimeout) * time.Second
	if err := store.WaitForReady(ctx, timeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("cache store not ready: %w", err)
	}

	provider := o.embedder
	if provider == nil {
		provider = openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Logger:     l,
		})
	}
	embedders := BuildEmbedders(provider, cfg, store, l)

	scorers := scorer.NewProvider(scorer.Config{
		Mode:       scorer.Mode(cfg.Scorer.Mode),
		Path:       cfg.Scorer.Path,
		Format:     cfg.Scorer.Format,
		Dimensions: cfg.Embedding.Dimensions,
	}, l)
	sc, err := scorers.Get()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load scorer: %w", err)
	}
	metrics.SetScorerVariant(sc.Variant())

	cache := matchcache.New(store, cfg.Cache.KeyPrefix, cfg.Cache.TTL(), metrics.MatchCacheTotal, l)
	matchSvc := match.New(
		embedders.Profiles, embedders.Jobs, scorers,
		explain.New(embedders.Tokens, cfg.Explain.TopKTokens),
		cache, l,
	)

	a := &App{
		Config:    cfg,
		Store:     store,
		Embedders: embedders,
		Scorers:   scorers,
		Match:     matchSvc,
		Logger:    l,
	}

	var indexState healthuc.IndexState
	if cfg.Index.Enabled {
		r, err := BuildRetriever(cfg, embedders, matchSvc, l)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Retriever = r
		indexState = r
	}

	var checker healthuc.EmbeddingChecker
	if hc, ok := provider.(domain.HealthChecker); ok {
		checker = hc
	}
	a.Health = healthuc.New(store, checker, scorers, indexState)

	l.Info("Service wired",
		zap.String("cache_driver", cfg.Cache.Driver),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.String("scorer", sc.Variant()),
		zap.Bool("index", cfg.Index.Enabled),
	)
	return a, nil
}

// BuildStore creates the cache store for the configured driver.
func BuildStore(cfg config.CacheConfig) (db.Store, error) {
	switch cfg.Driver {
	case config.DriverRedis, config.DriverValkey:
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:      cfg.Addrs,
			Username:   cfg.Username,
			Password:   cfg.Password,
			DB:         cfg.DB,
			Standalone: len(cfg.Addrs) == 1,
		})
		if err != nil {
			return nil, fmt.Errorf("create %s store: %w", cfg.Driver, err)
		}
		return s, nil
	case config.DriverMemory:
		s, err := memory.NewStore(cfg.MemoryCapacity)
		if err != nil {
			return nil, fmt.Errorf("create memory store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
}

// BuildEmbedders assembles the chains. Profiles and jobs: provider -> normalizing ->
// instruction prefix. Tokens: provider -> normalizing -> cached (when the token cache is on).
func BuildEmbedders(provider domain.Embedder, cfg config.Config, store db.KVStore, l *zap.Logger) Embedders {
	normalized := embeddinguc.NewNormalizingEmbedder(provider, embeddinguc.Config{
		Dimensions: cfg.Embedding.Dimensions,
		BatchSize:  cfg.Embedding.BatchSize,
		Model:      cfg.Embedding.Model,
		Logger:     l,
	})

	e := Embedders{
		Provider: provider,
		Profiles: withInstruction(normalized, cfg.Embedding.ProfileInstruction),
		Jobs:     withInstruction(normalized, cfg.Embedding.JobInstruction),
		Tokens:   normalized,
	}
	if cfg.Embedding.TokenCache && store != nil {
		e.Tokens = embcache.New(normalized, store, embcache.Options{
			KeyPrefix: cfg.Cache.KeyPrefix,
			Model:     cfg.Embedding.Model,
			TTL:       time.Duration(cfg.Embedding.TokenCacheTTLSec) * time.Second,
		}, metrics.EmbeddingCacheTotal, l)
	}
	return e
}

// BuildRetriever creates the corpus retriever and loads a persisted index if one exists.
// Corpus texts are embedded as jobs, queries as profiles.
func BuildRetriever(cfg config.Config, embedders Embedders, matcher retrieval.Matcher, l *zap.Logger) (*retrieval.Retriever, error) {
	idx, err := index.New(index.Config{Dimensions: cfg.Embedding.Dimensions, NProbe: cfg.Index.NProbe})
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	r := retrieval.New(idx, embedders.Jobs, matcher, retrieval.Config{
		Path:      cfg.Index.Path,
		NClusters: cfg.Index.NClusters,
		MaxTopK:   cfg.Index.MaxTopK,
	}, l).WithQueryEmbedder(embedders.Profiles)
	if err := r.Open(); err != nil {
		return nil, err
	}
	return r, nil
}

// Handler returns the HTTP API.
func (a *App) Handler() http.Handler {
	var corpus chiTransport.Corpus
	if a.Retriever != nil {
		corpus = a.Retriever
	}
	return chiTransport.NewServer(a.Match, corpus, a.Health, a.Logger).Router(a.Config.Auth.APIKeys)
}

// Close releases the scorer and the cache store.
func (a *App) Close() {
	if err := a.Scorers.Close(); err != nil {
		a.Logger.Warn("Scorer close failed", zap.Error(err))
	}
	a.Store.Close()
}

func withInstruction(e domain.Embedder, instruction string) domain.Embedder {
	if instruction == "" {
		return e
	}
	return domain.NewInstructionEmbedder(e, instruction)
}
