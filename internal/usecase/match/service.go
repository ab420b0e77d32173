// Package match ranks candidate jobs against a profile: cache lookup, embedding, scoring,
// ordering, explanation and cache store.
package match

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/neuromatch/internal/domain"
	"github.com/kailas-cloud/neuromatch/internal/logger"
	"github.com/kailas-cloud/neuromatch/internal/metrics"
	"github.com/kailas-cloud/neuromatch/internal/usecase/scorer"
)

// Response is a ranked result list and whether it came from the cache.
type Response struct {
	Rankings []domain.MatchResult
	CacheHit bool
}

// Service runs the match pipeline.
type Service struct {
	profiles  Embedder
	jobs      Embedder
	scorers   ScorerSource
	explainer Explainer
	cache     ResultCache
	logger    *zap.Logger
	group     singleflight.Group
}

// New creates a match service. profiles and jobs may be the same embedder; cache may be nil.
func New(
	profiles, jobs Embedder,
	scorers ScorerSource,
	explainer Explainer,
	cache ResultCache,
	l *zap.Logger,
) *Service {
	if l == nil {
		l = zap.NewNop()
	}
	return &Service{
		profiles:  profiles,
		jobs:      jobs,
		scorers:   scorers,
		explainer: explainer,
		cache:     cache,
		logger:    l,
	}
}

// Match validates req, serves it from the cache when possible and otherwise computes,
// stores and returns the ranking. Concurrent identical misses share one computation.
// If ctx ends while a computation runs, Match returns ctx.Err() and the computation
// still completes and populates the cache.
func (s *Service) Match(ctx context.Context, req domain.MatchRequest) (Response, error) {
	if err := req.Validate(); err != nil {
		return Response{}, err
	}
	log := logger.Or(ctx, s.logger)

	sc, err := s.scorers.Get()
	if err != nil {
		return Response{}, fmt.Errorf("resolve scorer: %w", err)
	}

	profile := strings.TrimSpace(req.ProfileText)
	metrics.MatchCandidates.Observe(float64(len(req.CandidateJobs)))

	var key string
	if s.cache != nil {
		start := time.Now()
		key = s.cache.Key(profile, req.CandidateJobs, sc.Version())
		cached, ok := s.cache.Get(ctx, key)
		observe(metrics.StageCacheLookup, start)
		if ok {
			log.Debug("Match served from cache", zap.Int("candidates", len(req.CandidateJobs)))
			return Response{Rankings: cached, CacheHit: true}, nil
		}
	}

	compute := func() (any, error) {
		return s.compute(context.WithoutCancel(ctx), log, profile, req.CandidateJobs, sc, key)
	}
	if key == "" {
		v, err := compute()
		if err != nil {
			return Response{}, err
		}
		return Response{Rankings: v.([]domain.MatchResult)}, nil
	}

	select {
	case res := <-s.group.DoChan(key, compute):
		if res.Err != nil {
			return Response{}, res.Err
		}
		return Response{Rankings: res.Val.([]domain.MatchResult)}, nil
	case <-ctx.Done():
		return Response{}, fmt.Errorf("match: %w", ctx.Err())
	}
}

func (s *Service) compute(
	ctx context.Context, log *zap.Logger,
	profile string, candidates []string,
	sc scorer.Scorer, key string,
) ([]domain.MatchResult, error) {
	start := time.Now()
	profileRes, err := s.profiles.Embed(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("embed profile: %w", err)
	}
	jobRes, err := domain.EmbedBatch(ctx, s.jobs, candidates)
	if err != nil {
		return nil, fmt.Errorf("embed candidates: %w", err)
	}
	if len(jobRes.Embeddings) != len(candidates) {
		return nil, fmt.Errorf("embed candidates: expected %d embeddings, got %d: %w",
			len(candidates), len(jobRes.Embeddings), domain.ErrEmbeddingProviderError)
	}
	observe(metrics.StageEmbed, start)

	start = time.Now()
	scores, err := sc.Score(profileRes.Embedding, jobRes.Embeddings)
	if err != nil {
		return nil, fmt.Errorf("score candidates: %w", err)
	}
	order := Order(scores)
	observe(metrics.StageScore, start)

	start = time.Now()
	results := make([]domain.MatchResult, len(order))
	for rank, idx := range order {
		ph, jh, err := s.explainer.Highlight(ctx, profile, candidates[idx], 0)
		if err != nil {
			return nil, fmt.Errorf("explain candidate %d: %w", idx, err)
		}
		results[rank] = domain.MatchResult{
			JobText:           candidates[idx],
			Score:             scores[idx],
			ProfileHighlights: ph,
			JobHighlights:     jh,
		}
	}
	observe(metrics.StageExplain, start)

	if s.cache != nil && key != "" {
		start = time.Now()
		s.cache.Set(ctx, key, results)
		observe(metrics.StageCacheStore, start)
	}

	log.Debug("Match computed",
		zap.String("scorer", sc.Variant()),
		zap.Int("candidates", len(candidates)),
		zap.Int("prompt_tokens", profileRes.PromptTokens+jobRes.PromptTokens),
	)
	return results, nil
}

// Order returns candidate indices sorted by descending score; equal scores keep input order.
func Order(scores []float64) []int {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	return order
}

func observe(stage string, start time.Time) {
	metrics.MatchStageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
