// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	FrontendOrigin string        `yaml:"frontend_origin"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AIConfig struct {
	GeminiKey          string        `yaml:"gemini_key"`
	GeminiURL          string        `yaml:"gemini_url"`
	OpenAIKey          string        `yaml:"openai_key"`
	OpenAIBaseURL      string        `yaml:"openai_base_url"`
	DefaultModel       string        `yaml:"default_model"`
	FallbackModel      string        `yaml:"fallback_model"` // direct-chat tier; may route to openai
	EmbeddingModel     string        `yaml:"embedding_model"`
	EmbeddingDims      int           `yaml:"embedding_dims"`
	ConcurrentLimit    int           `yaml:"concurrent_limit"` // max concurrent AI calls
	MaxOutputTokens    int           `yaml:"max_output_tokens"`
	AgentTimeout       time.Duration `yaml:"agent_timeout"`
	AgentMaxIterations int           `yaml:"agent_max_iterations"`
	BufferTokenLimit   int           `yaml:"buffer_token_limit"`
	BufferCacheSize    int           `yaml:"buffer_cache_size"`
}

type MarketConfig struct {
	FinnhubKey      string        `yaml:"finnhub_key"`
	AlphaVantageKey string        `yaml:"alphavantage_key"`
	HTTPTimeout     time.Duration `yaml:"http_timeout"`
	QuoteCacheTTL   time.Duration `yaml:"quote_cache_ttl"`
}

type AuthConfig struct {
	SecretKey string        `yaml:"secret_key"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type RateLimitConfig struct {
	ChatPerMinute int `yaml:"chat_per_minute"`
}

type SchedulerConfig struct {
	SessionSweepInterval  time.Duration `yaml:"session_sweep_interval"`
	IndexBackfillInterval time.Duration `yaml:"index_backfill_interval"`
	Workers               int           `yaml:"workers"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	AI        AIConfig        `yaml:"ai"`
	Market    MarketConfig    `yaml:"market"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Security  SecurityConfig  `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, overlays environment variables
// (optionally sourced from a .env file) and applies defaults.
// A missing YAML file is tolerated so the service can run from env alone.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first missing required setting.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Auth.SecretKey == "" {
		return errors.New("auth.secret_key is required")
	}
	if c.Security.EncryptionKey != "" && len(c.Security.EncryptionKey) != 32 {
		return errors.New("security.encryption_key must be 32 bytes")
	}
	return nil
}

func applyEnv(cfg *Config) {
	envStr(&cfg.Market.FinnhubKey, "FINNHUB_API_KEY")
	envStr(&cfg.Market.AlphaVantageKey, "ALPHAVANTAGE_API_KEY")
	envStr(&cfg.AI.GeminiKey, "GEMINI_API_KEY")
	envStr(&cfg.AI.OpenAIKey, "OPENAI_API_KEY")
	envStr(&cfg.Database.URL, "DATABASE_URL")
	envStr(&cfg.Redis.URL, "REDIS_URL")
	envStr(&cfg.Auth.SecretKey, "SECRET_KEY")
	envStr(&cfg.HTTP.FrontendOrigin, "FRONTEND_ORIGIN")
}

func envStr(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Port <= 0 {
		cfg.HTTP.Port = 8000
	}
	if cfg.HTTP.FrontendOrigin == "" {
		cfg.HTTP.FrontendOrigin = "http://localhost:5173"
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 60 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "gemini-1.5-flash"
	}
	if cfg.AI.FallbackModel == "" {
		cfg.AI.FallbackModel = cfg.AI.DefaultModel
	}
	if cfg.AI.EmbeddingModel == "" {
		cfg.AI.EmbeddingModel = "text-embedding-004"
	}
	if cfg.AI.EmbeddingDims <= 0 {
		cfg.AI.EmbeddingDims = 768
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}
	if cfg.AI.MaxOutputTokens <= 0 {
		cfg.AI.MaxOutputTokens = 1024
	}
	if cfg.AI.AgentTimeout <= 0 {
		cfg.AI.AgentTimeout = 30 * time.Second
	}
	if cfg.AI.AgentMaxIterations <= 0 {
		cfg.AI.AgentMaxIterations = 5
	}
	if cfg.AI.BufferTokenLimit <= 0 {
		cfg.AI.BufferTokenLimit = 2000
	}
	if cfg.AI.BufferCacheSize <= 0 {
		cfg.AI.BufferCacheSize = 1000
	}

	if cfg.Market.HTTPTimeout <= 0 {
		cfg.Market.HTTPTimeout = 10 * time.Second
	}
	if cfg.Market.QuoteCacheTTL <= 0 {
		cfg.Market.QuoteCacheTTL = 15 * time.Second
	}

	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = 7 * 24 * time.Hour
	}
	if cfg.RateLimit.ChatPerMinute <= 0 {
		cfg.RateLimit.ChatPerMinute = 30
	}

	if cfg.Scheduler.SessionSweepInterval <= 0 {
		cfg.Scheduler.SessionSweepInterval = time.Hour
	}
	if cfg.Scheduler.IndexBackfillInterval <= 0 {
		cfg.Scheduler.IndexBackfillInterval = 10 * time.Minute
	}
	if cfg.Scheduler.Workers <= 0 {
		cfg.Scheduler.Workers = 4
	}
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
