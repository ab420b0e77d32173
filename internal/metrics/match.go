package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline stages.
const (
	StageCacheLookup = "cache_lookup"
	StageEmbed       = "embed"
	StageScore       = "score"
	StageExplain     = "explain"
	StageCacheStore  = "cache_store"
	StageRetrieve    = "retrieve"
)

// Match pipeline Prometheus metrics.
var (
	MatchCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_cache_total",
			Help:      "Match result cache lookups by outcome",
		},
		[]string{"result"}, // hit, miss, error
	)

	MatchStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_stage_duration_seconds",
			Help:      "Match pipeline stage duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"stage"},
	)

	MatchCandidates = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_candidates",
			Help:      "Number of candidates per match request",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	ScorerVariant = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scorer_variant",
			Help:      "Active scorer variant (1 for the loaded one)",
		},
		[]string{"variant"},
	)

	IndexVectors = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_vectors",
			Help:      "Vectors stored in the corpus index",
		},
	)
)

var matchOnce sync.Once

// RegisterMatchMetrics registers match pipeline metrics with the default registry. Safe to call repeatedly.
func RegisterMatchMetrics() {
	matchOnce.Do(func() {
		prometheus.MustRegister(
			MatchCacheTotal,
			MatchStageDuration,
			MatchCandidates,
			ScorerVariant,
			IndexVectors,
		)
	})
}

// SetScorerVariant marks variant as the active scorer.
func SetScorerVariant(variant string) {
	ScorerVariant.Reset()
	ScorerVariant.WithLabelValues(variant).Set(1)
}
