// Package matchcache stores ranked match responses keyed by a content fingerprint of the request.
package matchcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/neuromatch/internal/db"
	"github.com/kailas-cloud/neuromatch/internal/domain"
)

const keySpace = "match:v1:"

// store is the consumer interface for the result cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// record is the serialized cache value.
type record struct {
	JobRankings []domain.MatchResult `json:"job_rankings"`
}

// Cache reads and writes ranked results. Store failures are logged and counted, never returned:
// a failed read is a miss and a failed write leaves nothing behind.
type Cache struct {
	store     store
	keyPrefix string
	ttl       time.Duration
	total     *prometheus.CounterVec
	logger    *zap.Logger
}

// New creates a result cache. total is a counter vec with label "result" (hit/miss/error), may be nil.
func New(s store, keyPrefix string, ttl time.Duration, total *prometheus.CounterVec, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{store: s, keyPrefix: keyPrefix, ttl: ttl, total: total, logger: logger}
}

// TTL returns the entry lifetime.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Key fingerprints a request. Candidate order and content both change the key; surrounding
// whitespace on the profile does not. scorerVersion keeps results of different scorers apart.
func (c *Cache) Key(profileText string, candidates []string, scorerVersion string) string {
	h := sha256.New()
	writeField(h, strings.TrimSpace(profileText))
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(candidates)))
	h.Write(n[:])
	for _, cand := range candidates {
		writeField(h, cand)
	}
	writeField(h, scorerVersion)
	return c.keyPrefix + keySpace + hex.EncodeToString(h.Sum(nil))
}

// writeField writes a length-prefixed field so adjacent fields cannot run together.
func writeField(h hash.Hash, s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	h.Write(n[:])
	h.Write([]byte(s))
}

// Get returns the cached results for key. ok is false on miss, store error or undecodable value.
func (c *Cache) Get(ctx context.Context, key string) ([]domain.MatchResult, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			c.inc("miss")
			return nil, false
		}
		c.inc("error")
		c.logger.Warn("Match cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil || rec.JobRankings == nil {
		c.inc("error")
		c.logger.Warn("Match cache entry undecodable", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	c.inc("hit")
	return rec.JobRankings, true
}

// Set stores the full result list under key with the configured TTL in a single write.
func (c *Cache) Set(ctx context.Context, key string, results []domain.MatchResult) {
	data, err := Encode(results)
	if err != nil {
		c.inc("error")
		c.logger.Warn("Match cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.inc("error")
		c.logger.Warn("Match cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Encode serializes results in the cached (and HTTP response) shape {"job_rankings": [...]}.
func Encode(results []domain.MatchResult) ([]byte, error) {
	if results == nil {
		results = []domain.MatchResult{}
	}
	data, err := json.Marshal(record{JobRankings: results})
	if err != nil {
		return nil, fmt.Errorf("encode match results: %w", err)
	}
	return data, nil
}

func (c *Cache) inc(result string) {
	if c.total != nil {
		c.total.WithLabelValues(result).Inc()
	}
}
