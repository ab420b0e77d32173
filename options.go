package neuromatch

import (
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/neuromatch/internal/config"
)

// Option configures the Matcher.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	cache config.CacheConfig

	embedder   Embedder
	model      string
	dimensions int
	tokenCache bool

	scorerMode   string
	scorerPath   string
	scorerFormat string

	topKTokens int
	logger     *zap.Logger
}

func defaultConfig() *clientConfig {
	return &clientConfig{
		cache:      config.CacheConfig{Driver: config.DriverMemory},
		model:      "custom",
		tokenCache: true,
		scorerMode: config.ScorerDisabled,
	}
}

// WithEmbedder sets the embedding provider. Required.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) { c.embedder = e })
}

// WithDimensions sets the vector dimension the embedder produces. Required.
func WithDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) { c.dimensions = dim })
}

// WithModel names the embedding model. The name is part of the token cache key,
// so changing models never serves stale vectors. Defaults to "custom".
func WithModel(model string) Option {
	return optionFunc(func(c *clientConfig) { c.model = model })
}

// WithRedis stores cached results in Redis.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cache.Driver = config.DriverRedis
		c.cache.Addrs = []string{addr}
		c.cache.Password = password
	})
}

// WithValkey stores cached results in Valkey.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cache.Driver = config.DriverValkey
		c.cache.Addrs = []string{addr}
		c.cache.Password = password
	})
}

// WithMemoryCache keeps at most capacity cached entries in process (the default store).
func WithMemoryCache(capacity int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cache.Driver = config.DriverMemory
		c.cache.MemoryCapacity = capacity
	})
}

// WithCacheTTL sets how long ranked results stay cached. Default: 1h.
// The store keeps whole seconds, so a positive ttl is rounded up to the next second.
func WithCacheTTL(ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		if ttl <= 0 {
			return
		}
		c.cache.TTLSec = int((ttl + time.Second - 1) / time.Second)
	})
}

// WithKeyPrefix namespaces cache keys. Default: "neuromatch:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) { c.cache.KeyPrefix = prefix })
}

// WithTokenCache toggles caching of token embeddings used for highlights. Default: on.
func WithTokenCache(enabled bool) Option {
	return optionFunc(func(c *clientConfig) { c.tokenCache = enabled })
}

// WithLearnedScorer scores with a trained pairwise model from a native JSON artifact.
// A missing file falls back to cosine similarity; a corrupt one fails New.
func WithLearnedScorer(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.scorerMode = config.ScorerLearned
		c.scorerPath = path
		c.scorerFormat = config.FormatNative
	})
}

// WithONNXScorer is WithLearnedScorer for an ONNX model. Requires a cgo build.
func WithONNXScorer(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.scorerMode = config.ScorerLearned
		c.scorerPath = path
		c.scorerFormat = config.FormatONNX
	})
}

// WithTopKTokens sets how many highlights each side gets. Default: 5.
func WithTopKTokens(k int) Option {
	return optionFunc(func(c *clientConfig) { c.topKTokens = k })
}

// WithLogger enables structured logging. Default: disabled.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) { c.logger = l })
}
