package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the neuromatch service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Cache     CacheConfig     `yaml:"cache"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Scorer    ScorerConfig    `yaml:"scorer"`
	Index     IndexConfig     `yaml:"index"`
	Explain   ExplainConfig   `yaml:"explain"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// Cache drivers.
const (
	DriverRedis  = "redis"
	DriverValkey = "valkey"
	DriverMemory = "memory"
)

// CacheConfig holds result cache settings.
type CacheConfig struct {
	Driver           string   `yaml:"driver"` // redis, valkey, memory (default: redis)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	TTLSec           int      `yaml:"ttl_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
	MemoryCapacity   int      `yaml:"memory_capacity"`
}

// TTL returns the result cache TTL.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSec) * time.Second
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	BaseURL            string `yaml:"base_url"`
	APIKey             string `yaml:"api_key"`
	Model              string `yaml:"model"`
	Dimensions         int    `yaml:"dimensions"`
	BatchSize          int    `yaml:"batch_size"`
	ProfileInstruction string `yaml:"profile_instruction"`
	JobInstruction     string `yaml:"job_instruction"`
	TokenCache         bool   `yaml:"token_cache"`
	TokenCacheTTLSec   int    `yaml:"token_cache_ttl_sec"`
}

// Scorer modes.
const (
	ScorerDisabled = "disabled"
	ScorerLearned  = "learned"
)

// Scorer artifact formats.
const (
	FormatNative = "native"
	FormatONNX   = "onnx"
)

// ScorerConfig selects the scoring variant. "learned" requires a path.
type ScorerConfig struct {
	Mode   string `yaml:"mode"`   // disabled (default), learned
	Path   string `yaml:"path"`   // model artifact path
	Format string `yaml:"format"` // native (default), onnx
}

// IndexConfig holds corpus index settings.
type IndexConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path"`
	NClusters int    `yaml:"n_clusters"`
	NProbe    int    `yaml:"n_probe"`
	MaxTopK   int    `yaml:"max_top_k"`
}

// ExplainConfig holds token highlight settings.
type ExplainConfig struct {
	TopKTokens int `yaml:"top_k_tokens"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit YAML path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes, expanding ${VAR} references, then applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = DriverRedis
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 3600
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "neuromatch:"
	}
	if c.Cache.MemoryCapacity <= 0 {
		c.Cache.MemoryCapacity = 10000
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 64
	}
	if c.Embedding.TokenCacheTTLSec <= 0 {
		c.Embedding.TokenCacheTTLSec = 86400
	}
	if c.Scorer.Mode == "" {
		c.Scorer.Mode = ScorerDisabled
	}
	if c.Scorer.Format == "" {
		c.Scorer.Format = FormatNative
	}
	if c.Index.NClusters <= 0 {
		c.Index.NClusters = 100
	}
	if c.Index.NProbe <= 0 {
		c.Index.NProbe = 8
	}
	if c.Index.MaxTopK <= 0 {
		c.Index.MaxTopK = 100
	}
	if c.Explain.TopKTokens <= 0 {
		c.Explain.TopKTokens = 5
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Cache.Driver {
	case DriverRedis, DriverValkey:
		if len(c.Cache.Addrs) == 0 {
			return fmt.Errorf("cache.addrs is required for driver %q", c.Cache.Driver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("cache.driver must be one of redis, valkey, memory, got %q", c.Cache.Driver)
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	switch c.Scorer.Mode {
	case ScorerDisabled:
	case ScorerLearned:
		if c.Scorer.Path == "" {
			return fmt.Errorf("scorer.path is required when scorer.mode is %q", ScorerLearned)
		}
	default:
		return fmt.Errorf("scorer.mode must be \"disabled\" or \"learned\", got %q", c.Scorer.Mode)
	}
	switch c.Scorer.Format {
	case FormatNative, FormatONNX:
	default:
		return fmt.Errorf("scorer.format must be \"native\" or \"onnx\", got %q", c.Scorer.Format)
	}
	if c.Index.Enabled && c.Index.Path == "" {
		return fmt.Errorf("index.path is required when index.enabled is true")
	}
	if c.Index.NProbe > c.Index.NClusters {
		return fmt.Errorf("index.n_probe (%d) must not exceed index.n_clusters (%d)", c.Index.NProbe, c.Index.NClusters)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
