// Package config loads the docrag configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/docrag-mcp/internal/logging"
	"github.com/dshills/docrag-mcp/pkg/types"
)

// Backend names
const (
	BackendRemote = "remote"
	BackendLocal  = "local"
)

// Budget units
const (
	UnitWords = "words"
	UnitBytes = "bytes"
)

// Defaults
const (
	DefaultCacheSize      = 1000
	DefaultTimeoutSec     = 30
	DefaultTopK           = 20
	DefaultRerankK        = 5
	DefaultBudget         = 2000
	DefaultFuzzyThreshold = 0.6
	DefaultMaxSuggestions = 5
)

// Environment variables
const (
	EnvConfigPath       = "DOCRAG_CONFIG"
	EnvEmbeddingBackend = "DOCRAG_EMBEDDING_BACKEND"
	EnvEmbeddingURL     = "DOCRAG_EMBEDDING_URL"
	EnvRerankBackend    = "DOCRAG_RERANK_BACKEND"
	EnvRerankURL        = "DOCRAG_RERANK_URL"
	EnvAPIKey           = "NVIDIA_API_KEY"
	EnvAPICacheSize     = "DOCRAG_API_CACHE_SIZE"
	EnvLogLevel         = "DOCRAG_LOG_LEVEL"
)

// Config holds the docrag configuration.
type Config struct {
	Logging   logging.Config          `yaml:"logging"`
	Embedding ProviderConfig          `yaml:"embedding"`
	Reranking RerankingConfig         `yaml:"reranking"`
	Domains   map[string]DomainConfig `yaml:"domains"`
	APILookup APILookupConfig         `yaml:"api_lookup"`
	Metrics   MetricsConfig           `yaml:"metrics"`
}

// ProviderConfig selects and configures an embedding or reranking backend.
type ProviderConfig struct {
	Backend    string  `yaml:"backend"`     // remote, local (default: remote)
	BaseURL    string  `yaml:"base_url"`    // required for local
	Endpoint   string  `yaml:"endpoint"`    // remote endpoint override
	Model      string  `yaml:"model"`       // empty uses the backend default
	APIKey     string  `yaml:"api_key"`     // remote only
	TimeoutSec int     `yaml:"timeout_sec"` // per call (default: 30)
	RateLimit  float64 `yaml:"rate_limit"`  // requests per second, 0 = unlimited
	Breaker    bool    `yaml:"breaker"`     // trip after repeated failures
}

// RerankingConfig adds an on/off switch to the provider settings.
type RerankingConfig struct {
	Enabled        bool `yaml:"enabled"`
	ProviderConfig `yaml:",inline"`
}

// DomainConfig describes one knowledge domain served from its own index.
type DomainConfig struct {
	Description     string `yaml:"description"`
	IndexPath       string `yaml:"index_path"`
	TopK            int    `yaml:"top_k"`
	RerankK         int    `yaml:"rerank_k"`
	Budget          int    `yaml:"budget"`
	BudgetUnit      string `yaml:"budget_unit"` // words, bytes (default: words)
	KeywordFallback bool   `yaml:"keyword_fallback"`
}

// APILookupConfig configures the extension@Symbol lookup service.
type APILookupConfig struct {
	CacheSize      int      `yaml:"cache_size"`
	SourceDirs     []string `yaml:"source_dirs"`
	Threshold      float64  `yaml:"fuzzy_threshold"`
	MaxSuggestions int      `yaml:"max_suggestions"`
}

// MetricsConfig holds the optional prometheus listener.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables /metrics
}

// Timeout returns the per-call timeout
func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSec) * time.Second
}

// Load reads configuration from path. An empty path falls back to DOCRAG_CONFIG;
// a missing file yields defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		switch {
		case errors.Is(err, os.ErrNotExist):
			// defaults
		case err != nil:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			data = expandEnvVars(data)
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvEmbeddingBackend); v != "" {
		c.Embedding.Backend = v
	}
	if v := os.Getenv(EnvEmbeddingURL); v != "" {
		c.Embedding.BaseURL = v
	}
	if v := os.Getenv(EnvRerankBackend); v != "" {
		c.Reranking.Backend = v
	}
	if v := os.Getenv(EnvRerankURL); v != "" {
		c.Reranking.BaseURL = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		if c.Embedding.APIKey == "" {
			c.Embedding.APIKey = v
		}
		if c.Reranking.APIKey == "" {
			c.Reranking.APIKey = v
		}
	}
	if v, ok := os.LookupEnv(EnvAPICacheSize); ok {
		c.APILookup.CacheSize = ParseCapacity(v)
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	c.Embedding.applyDefaults()
	c.Reranking.applyDefaults()

	for name, d := range c.Domains {
		if d.TopK <= 0 {
			d.TopK = DefaultTopK
		}
		if d.RerankK <= 0 {
			d.RerankK = DefaultRerankK
		}
		if d.Budget <= 0 {
			d.Budget = DefaultBudget
		}
		if d.BudgetUnit == "" {
			d.BudgetUnit = UnitWords
		}
		c.Domains[name] = d
	}

	if c.APILookup.CacheSize <= 0 {
		c.APILookup.CacheSize = DefaultCacheSize
	}
	if c.APILookup.Threshold <= 0 || c.APILookup.Threshold > 1 {
		c.APILookup.Threshold = DefaultFuzzyThreshold
	}
	if c.APILookup.MaxSuggestions <= 0 {
		c.APILookup.MaxSuggestions = DefaultMaxSuggestions
	}
}

func (p *ProviderConfig) applyDefaults() {
	p.Backend = strings.ToLower(strings.TrimSpace(p.Backend))
	if p.Backend == "" {
		p.Backend = BackendRemote
	}
	if p.TimeoutSec <= 0 {
		p.TimeoutSec = DefaultTimeoutSec
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if err := c.Embedding.validate("embedding"); err != nil {
		return err
	}
	if c.Reranking.Enabled {
		if err := c.Reranking.validate("reranking"); err != nil {
			return err
		}
	}

	for _, name := range c.DomainNames() {
		d := c.Domains[name]
		field := "domains." + name
		if d.IndexPath == "" {
			return &types.ConfigError{Field: field + ".index_path", Reason: "is required"}
		}
		if d.BudgetUnit != UnitWords && d.BudgetUnit != UnitBytes {
			return &types.ConfigError{
				Field:  field + ".budget_unit",
				Reason: fmt.Sprintf("must be %q or %q, got %q", UnitWords, UnitBytes, d.BudgetUnit),
			}
		}
		if d.RerankK > d.TopK {
			return &types.ConfigError{
				Field:  field + ".rerank_k",
				Reason: fmt.Sprintf("must not exceed top_k (%d), got %d", d.TopK, d.RerankK),
			}
		}
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return &types.ConfigError{Field: "logging.level", Reason: err.Error()}
	}
	return nil
}

func (p ProviderConfig) validate(section string) error {
	switch p.Backend {
	case BackendRemote:
		return nil
	case BackendLocal:
		if p.BaseURL == "" {
			return &types.ConfigError{Field: section + ".base_url", Reason: "is required for the local backend"}
		}
		return nil
	default:
		return &types.ConfigError{
			Field:  section + ".backend",
			Reason: fmt.Sprintf("unknown backend %q (want %q or %q)", p.Backend, BackendRemote, BackendLocal),
		}
	}
}

// DomainNames returns configured domain names in sorted order
func (c *Config) DomainNames() []string {
	names := make([]string, 0, len(c.Domains))
	for name := range c.Domains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseCapacity parses a cache capacity, returning DefaultCacheSize when the
// value is empty, unparsable or not positive.
func ParseCapacity(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return DefaultCacheSize
	}
	return n
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
