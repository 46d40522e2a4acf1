// Package config handles loading and validating gateway configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"aigate/internal/usage"
)

// Config is the top-level configuration for the aigate gateway.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Provider  ProviderConfig  `koanf:"provider"`
	Models    ModelsConfig    `koanf:"models"`
	Cache     CacheConfig     `koanf:"cache"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Usage     UsageConfig     `koanf:"usage"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `koanf:"port"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// ProviderConfig holds the upstream AI provider settings.
type ProviderConfig struct {
	APIKey       string        `koanf:"api_key"`
	Organization string        `koanf:"organization"`
	BaseURL      string        `koanf:"base_url"`
	Timeout      time.Duration `koanf:"timeout"`
	MaxRetries   int           `koanf:"max_retries"`
}

// ModelsConfig selects the default models.
type ModelsConfig struct {
	Default   string `koanf:"default"`
	Embedding string `koanf:"embedding"`
}

// CacheConfig holds response cache settings. RedisURL switches the backend
// from in-memory to Redis when set.
type CacheConfig struct {
	Enabled  bool          `koanf:"enabled"`
	MaxSize  int           `koanf:"max_size"`
	TTL      time.Duration `koanf:"ttl"`
	RedisURL string        `koanf:"redis_url"`
}

// RateLimitConfig holds per-tenant limiter settings.
type RateLimitConfig struct {
	Enabled           bool    `koanf:"enabled"`
	RequestsPerMinute float64 `koanf:"requests_per_minute"`
}

// UsageConfig holds usage tracking settings. SQLitePath enables the durable
// sink; RetentionDays bounds how long records are kept.
type UsageConfig struct {
	SQLitePath    string                        `koanf:"sqlite_path"`
	RetentionDays int                           `koanf:"retention_days"`
	Pricing       map[string]usage.ModelPricing `koanf:"pricing"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // "text" or "json"
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
		},
		Provider: ProviderConfig{
			Timeout:    30 * time.Second,
			MaxRetries: 3,
		},
		Models: ModelsConfig{
			Default:   "gpt-4o-mini",
			Embedding: "text-embedding-3-small",
		},
		Cache: CacheConfig{
			Enabled: true,
			MaxSize: 1000,
			TTL:     5 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 60,
		},
		Usage: UsageConfig{
			RetentionDays: 90,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from an optional YAML file, layers environment
// variable overrides on top of the defaults, and validates the result.
// An empty path skips the file and uses defaults plus environment.
func Load(path string) (*Config, error) {
	// Load .env into the process environment (ignored if not present).
	_ = godotenv.Load()

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// Env vars starting with AIGATE_ override file values. Sections are all
	// single words while keys are snake_case, so only the first underscore is
	// the section delimiter:
	//   AIGATE_SERVER_PORT       -> server.port
	//   AIGATE_PROVIDER_API_KEY  -> provider.api_key
	if err := k.Load(env.Provider("AIGATE_", ".", func(s string) string {
		return strings.Replace(
			strings.ToLower(strings.TrimPrefix(s, "AIGATE_")),
			"_", ".", 1,
		)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand a ${VAR_NAME} placeholder in the API key.
	if strings.HasPrefix(cfg.Provider.APIKey, "${") && strings.HasSuffix(cfg.Provider.APIKey, "}") {
		cfg.Provider.APIKey = os.Getenv(cfg.Provider.APIKey[2 : len(cfg.Provider.APIKey)-1])
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants that would otherwise surface as confusing
// runtime behavior.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Cache.MaxSize < 0 {
		return fmt.Errorf("cache max_size must not be negative")
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("ratelimit requests_per_minute must be positive")
	}
	if c.Usage.RetentionDays <= 0 {
		return fmt.Errorf("usage retention_days must be positive")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid logging format: %q", c.Logging.Format)
	}
	return nil
}
