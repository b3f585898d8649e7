package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for deals-engine.
// Configuration comes from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values. Secrets (API keys,
// database passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	Cache     CacheConfig     `yaml:"cache"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Planner   PlannerConfig   `yaml:"planner"`
	Query     QueryConfig     `yaml:"query"`
	LLM       LLMConfig       `yaml:"llm"`
	Database  DatabaseConfig  `yaml:"database"`

	// SchemaPath optionally points at a YAML catalog file. When empty, the
	// built-in quick-commerce catalog is used.
	SchemaPath string `yaml:"schema_path" env:"SCHEMA_PATH" env-default:""`
}

// CacheConfig holds query result cache settings.
type CacheConfig struct {
	MaxSize    int           `yaml:"max_size" env:"CACHE_MAX_SIZE" env-default:"10000"`
	TTL        time.Duration `yaml:"ttl" env:"CACHE_TTL" env-default:"5m"`
	SweepEvery time.Duration `yaml:"sweep_every" env:"CACHE_SWEEP_EVERY" env-default:"5m"`
}

// RateLimitConfig holds per-client admission control settings.
type RateLimitConfig struct {
	Requests int           `yaml:"requests" env:"RATE_LIMIT_REQUESTS" env-default:"100"`
	Window   time.Duration `yaml:"window" env:"RATE_LIMIT_WINDOW" env-default:"1m"`
}

// PlannerConfig holds table selection and complexity settings.
type PlannerConfig struct {
	// MaxCandidateTables bounds how many tables a plan may touch.
	MaxCandidateTables int `yaml:"max_candidate_tables" env:"PLANNER_MAX_TABLES" env-default:"5"`
	// ComplexityCeiling rejects plans whose score exceeds it before any
	// generation or execution happens.
	ComplexityCeiling float64 `yaml:"complexity_ceiling" env:"PLANNER_COMPLEXITY_CEILING" env-default:"15"`
}

// QueryConfig holds execution-side settings.
type QueryConfig struct {
	MaxResultRows      int           `yaml:"max_result_rows" env:"QUERY_MAX_RESULT_ROWS" env-default:"1000"`
	ExecutionTimeout   time.Duration `yaml:"execution_timeout" env:"QUERY_EXECUTION_TIMEOUT" env-default:"30s"`
	SlowQueryThreshold time.Duration `yaml:"slow_query_threshold" env:"QUERY_SLOW_THRESHOLD" env-default:"5s"`
}

// LLMConfig holds SQL generation settings.
type LLMConfig struct {
	// Provider selects the generation client: "openai" (any OpenAI-compatible
	// endpoint) or "anthropic". Empty disables generation entirely and every
	// request uses the template fallback.
	Provider string `yaml:"provider" env:"LLM_PROVIDER" env-default:""`
	Endpoint string `yaml:"endpoint" env:"LLM_ENDPOINT" env-default:"https://api.openai.com/v1"`
	Model    string `yaml:"model" env:"LLM_MODEL" env-default:"gpt-4o-mini"`
	APIKey   string `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML

	Timeout time.Duration `yaml:"timeout" env:"LLM_TIMEOUT" env-default:"15s"`
}

// IsAvailable returns true if a generation provider is configured.
func (c *LLMConfig) IsAvailable() bool {
	return c.Provider != ""
}

// DatabaseConfig holds PostgreSQL connection settings for the executor.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"deals"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"quick_commerce"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Load reads configuration from config.yaml with environment variable
// overrides. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Cache.MaxSize <= 0 {
		return fmt.Errorf("cache max_size must be positive, got %d", c.Cache.MaxSize)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache ttl must be positive, got %v", c.Cache.TTL)
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit requests and window must be positive")
	}
	if c.Planner.MaxCandidateTables <= 0 {
		return fmt.Errorf("planner max_candidate_tables must be positive, got %d", c.Planner.MaxCandidateTables)
	}
	if c.Planner.ComplexityCeiling <= 0 {
		return fmt.Errorf("planner complexity_ceiling must be positive, got %v", c.Planner.ComplexityCeiling)
	}
	if c.Query.MaxResultRows <= 0 {
		return fmt.Errorf("query max_result_rows must be positive, got %d", c.Query.MaxResultRows)
	}
	if c.LLM.Provider != "" && c.LLM.Provider != "openai" && c.LLM.Provider != "anthropic" {
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	return nil
}
