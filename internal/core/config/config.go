package config

import (
	"time"

	"github.com/opsdesk/relay/internal/pipeline"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server     ServerConfig         `yaml:"server"`
	Logging    LoggingConfig        `yaml:"logging"`
	Backend    BackendConfig        `yaml:"backend"`
	Retry      RetryConfig          `yaml:"retry"`
	Cache      CacheConfig          `yaml:"cache"`
	RateLimit  RateLimitConfig      `yaml:"rate_limit"`
	Monitoring MonitoringConfig     `yaml:"monitoring"`
	Redis      pipeline.RedisConfig `yaml:"redis"`
}

// ServerConfig holds the health/metrics HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// BackendConfig holds the hosted backend this layer fronts.
type BackendConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
	Identity string        `yaml:"identity"`
}

// RetryConfig holds retry and backoff settings.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
}

// CacheConfig holds read-cache settings.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
	Backend string        `yaml:"backend"` // "memory" (default) or "redis"
}

// RateLimitConfig holds the per-identity request ceiling.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
}

// MonitoringConfig holds the error-report sinks. An empty URL disables the
// corresponding dispatch.
type MonitoringConfig struct {
	ErrorEndpoint   string `yaml:"error_endpoint"`
	CriticalWebhook string `yaml:"critical_webhook"`
}

// PipelineConfig converts the loaded settings into the pipeline's config.
func (c *AppConfig) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		BaseURL:          c.Backend.BaseURL,
		Timeout:          c.Backend.Timeout,
		Identity:         c.Backend.Identity,
		MaxRetries:       c.Retry.MaxAttempts,
		CacheEnabled:     c.Cache.Enabled,
		CacheTTL:         c.Cache.TTL,
		RateLimitEnabled: c.RateLimit.Enabled,
		RateLimit:        c.RateLimit.RequestsPerMinute,
		RateLimitWindow:  time.Minute,
	}
}
