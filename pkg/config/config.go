package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/pario-ai/ragcache/pkg/models"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "RAGCACHE_"

// Config holds all ragcache configuration.
type Config struct {
	Listen   string         `yaml:"listen" env:"LISTEN"`
	LogLevel string         `yaml:"log_level" env:"LOG_LEVEL"`
	DBPath   string         `yaml:"db_path" env:"DB_PATH"`
	Cache    CacheConfig    `yaml:"cache" envPrefix:"CACHE_"`
	Producer ProducerConfig `yaml:"producer" envPrefix:"PRODUCER_"`
	Index    IndexConfig    `yaml:"index" envPrefix:"INDEX_"`
	Usage    UsageConfig    `yaml:"usage" envPrefix:"USAGE_"`
}

// CacheConfig controls both answer cache tiers.
// A zero TTL keeps persistent entries forever.
type CacheConfig struct {
	MemorySize int           `yaml:"memory_size" env:"MEMORY_SIZE"`
	TTL        time.Duration `yaml:"ttl" env:"TTL"`
	Compress   bool          `yaml:"compress" env:"COMPRESS"`
}

// ProducerConfig defines the retrieval and generation pipeline.
// BaseURL points at any OpenAI-compatible API.
type ProducerConfig struct {
	BaseURL        string        `yaml:"base_url" env:"BASE_URL"`
	APIKey         string        `yaml:"api_key" env:"API_KEY"`
	ChatModel      string        `yaml:"chat_model" env:"CHAT_MODEL"`
	EmbeddingModel string        `yaml:"embedding_model" env:"EMBEDDING_MODEL"`
	Temperature    float32       `yaml:"temperature" env:"TEMPERATURE"`
	MaxTokens      int           `yaml:"max_tokens" env:"MAX_TOKENS"`
	TopK           int           `yaml:"top_k" env:"TOP_K"`
	Timeout        time.Duration `yaml:"timeout" env:"TIMEOUT"`
	RateLimit      float64       `yaml:"rate_limit" env:"RATE_LIMIT"`
	Burst          int           `yaml:"burst" env:"BURST"`
	PromptTemplate string        `yaml:"prompt_template" env:"PROMPT_TEMPLATE"`
}

// IndexConfig selects the vector index backend.
// Backend is "sqlite" (default) or "postgres".
type IndexConfig struct {
	Backend string `yaml:"backend" env:"BACKEND"`
	Path    string `yaml:"path" env:"PATH"`
	DSN     string `yaml:"dsn" env:"DSN"`
}

// UsageConfig controls token usage tracking. Budget requires Enabled.
type UsageConfig struct {
	Enabled bool                `yaml:"enabled" env:"ENABLED"`
	Budget  models.BudgetPolicy `yaml:"budget" envPrefix:"BUDGET_"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen:   ":8000",
		LogLevel: "info",
		DBPath:   "ragcache.db",
		Cache: CacheConfig{
			MemorySize: 100,
			Compress:   true,
		},
		Producer: ProducerConfig{
			BaseURL:        "https://generativelanguage.googleapis.com/v1beta/openai/",
			ChatModel:      "gemini-2.0-flash",
			EmbeddingModel: "text-embedding-004",
			Temperature:    0.3,
			MaxTokens:      1000,
			TopK:           5,
			Timeout:        60 * time.Second,
			Burst:          1,
		},
		Index: IndexConfig{
			Backend: "sqlite",
			Path:    "index.db",
		},
		Usage: UsageConfig{
			Enabled: true,
			Budget:  models.BudgetPolicy{Period: models.BudgetDaily},
		},
	}
}

// Load reads a YAML config file, expands environment variables, and applies
// RAGCACHE_* overrides. An empty path yields the defaults plus overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}

		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path must be set"))
	}
	if c.Cache.MemorySize <= 0 {
		errs = append(errs, fmt.Errorf("cache.memory_size must be positive, got %d", c.Cache.MemorySize))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, errors.New("cache.ttl must not be negative"))
	}
	if c.Producer.TopK <= 0 {
		errs = append(errs, fmt.Errorf("producer.top_k must be positive, got %d", c.Producer.TopK))
	}
	if c.Producer.Timeout <= 0 {
		errs = append(errs, errors.New("producer.timeout must be positive"))
	}
	if c.Producer.RateLimit < 0 {
		errs = append(errs, errors.New("producer.rate_limit must not be negative"))
	}
	if b := c.Usage.Budget; b.MaxTokens != 0 {
		if b.MaxTokens < 0 {
			errs = append(errs, errors.New("usage.budget.max_tokens must not be negative"))
		}
		if b.Period != models.BudgetDaily && b.Period != models.BudgetMonthly {
			errs = append(errs, fmt.Errorf("unknown budget period %q", b.Period))
		}
		if !c.Usage.Enabled {
			errs = append(errs, errors.New("usage.budget requires usage.enabled"))
		}
	}
	switch c.Index.Backend {
	case "sqlite":
		if c.Index.Path == "" {
			errs = append(errs, errors.New("index.path must be set for the sqlite backend"))
		}
	case "postgres":
		if c.Index.DSN == "" {
			errs = append(errs, errors.New("index.dsn must be set for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown index backend %q", c.Index.Backend))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
