package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultConfigPath is the config file picked up from the working directory
// when no explicit path is given.
const DefaultConfigPath = "config.yaml"

// Config holds all configuration for review-engine.
// Configuration can come from a YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"0.0.0.0"`
	Port     string `yaml:"port" env:"PORT" env-default:"8000"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// ShutdownTimeout bounds graceful HTTP shutdown and access-log draining.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"15s"`

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Redis configuration, used as the access-log broker when access_log.broker is "redis".
	Redis RedisConfig `yaml:"redis"`

	// Annotator configuration (tone/sentiment classification)
	Annotator AnnotatorConfig `yaml:"annotator"`

	Reviews    ReviewsConfig    `yaml:"reviews"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	AccessLog  AccessLogConfig  `yaml:"access_log"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"DATABASE_HOST_NAME" env-default:"localhost"`
	Port           int    `yaml:"port" env:"DATABASE_PORT" env-default:"5432"`
	User           string `yaml:"user" env:"DATABASE_USER" env-default:"reviews"`
	Password       string `yaml:"-" env:"DATABASE_PASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"DATABASE_NAME" env-default:"reviews"`
	MaxConnections int32  `yaml:"max_connections" env:"DATABASE_MAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"DATABASE_SSLMODE" env-default:"disable"`

	// Startup connection retry: fixed delay between a bounded number of attempts.
	ConnectRetries    int           `yaml:"connect_retries" env:"DATABASE_CONNECT_RETRIES" env-default:"5"`
	ConnectRetryDelay time.Duration `yaml:"connect_retry_delay" env:"DATABASE_CONNECT_RETRY_DELAY" env-default:"3s"`
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	// AccessLogKey is the Redis list carrying queued access-log entries.
	AccessLogKey string `yaml:"access_log_key" env:"REDIS_ACCESS_LOG_KEY" env-default:"review-engine:accesslog"`
}

// AnnotatorConfig configures the external tone/sentiment classifier.
type AnnotatorConfig struct {
	// Provider is "openai" (any OpenAI-compatible endpoint) or "anthropic".
	Provider string `yaml:"provider" env:"ANNOTATOR_PROVIDER" env-default:"openai"`
	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url" env:"ANNOTATOR_BASE_URL"`
	Model   string `yaml:"model" env:"ANNOTATOR_MODEL" env-default:"gpt-4o-mini"`

	OpenAIAPIKey    string `yaml:"-" env:"OPENAI_API_KEY"`    // Secret - not in YAML
	AnthropicAPIKey string `yaml:"-" env:"ANTHROPIC_API_KEY"` // Secret - not in YAML

	// Timeout bounds one annotator round-trip; expiry counts as a failure.
	Timeout time.Duration `yaml:"timeout" env:"ANNOTATOR_TIMEOUT" env-default:"20s"`

	// RequestsPerSecond throttles outgoing calls. Zero disables throttling.
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"ANNOTATOR_REQUESTS_PER_SECOND" env-default:"0"`

	// Circuit breaker: after BreakerThreshold consecutive failures calls fail fast
	// until BreakerResetAfter has elapsed.
	BreakerThreshold  int           `yaml:"breaker_threshold" env:"ANNOTATOR_BREAKER_THRESHOLD" env-default:"5"`
	BreakerResetAfter time.Duration `yaml:"breaker_reset_after" env:"ANNOTATOR_BREAKER_RESET_AFTER" env-default:"30s"`
}

// APIKey returns the secret for the configured provider.
func (c *AnnotatorConfig) APIKey() string {
	if c.Provider == ProviderAnthropic {
		return c.AnthropicAPIKey
	}
	return c.OpenAIAPIKey
}

// Endpoint returns BaseURL, or the provider's public API when unset.
func (c *AnnotatorConfig) Endpoint() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	if c.Provider == ProviderAnthropic {
		return "https://api.anthropic.com/v1"
	}
	return "https://api.openai.com/v1"
}

// Annotator providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// ReviewsConfig holds read-path sizing.
type ReviewsConfig struct {
	PageSize    int `yaml:"page_size" env:"REVIEWS_PAGE_SIZE" env-default:"15"`
	TrendsLimit int `yaml:"trends_limit" env:"REVIEWS_TRENDS_LIMIT" env-default:"5"`
}

// EnrichmentConfig controls how missing tone/sentiment is filled in.
type EnrichmentConfig struct {
	// MaxConcurrent is the number of annotator calls in flight for one page.
	// 1 keeps the calls serial.
	MaxConcurrent int `yaml:"max_concurrent" env:"ENRICHMENT_MAX_CONCURRENT" env-default:"1"`
	// RetryAfter is how long a row whose last attempt failed is left alone.
	RetryAfter time.Duration `yaml:"retry_after" env:"ENRICHMENT_RETRY_AFTER" env-default:"10m"`
	// AttemptTimeout bounds one classification shared by concurrent requests.
	AttemptTimeout time.Duration `yaml:"attempt_timeout" env:"ENRICHMENT_ATTEMPT_TIMEOUT" env-default:"30s"`
	// WriteTimeout bounds acquiring a connection for and persisting one result.
	WriteTimeout time.Duration `yaml:"write_timeout" env:"ENRICHMENT_WRITE_TIMEOUT" env-default:"5s"`
	// SweepInterval is how often the worker looks for unenriched rows. Zero disables the sweep.
	SweepInterval time.Duration `yaml:"sweep_interval" env:"ENRICHMENT_SWEEP_INTERVAL" env-default:"5m"`
	// SweepBatch is the maximum number of rows enriched per sweep.
	SweepBatch int `yaml:"sweep_batch" env:"ENRICHMENT_SWEEP_BATCH" env-default:"50"`
}

// AccessLogConfig controls the fire-and-forget access log.
type AccessLogConfig struct {
	// Broker is "direct" (workers insert into the accesslog table) or "redis"
	// (workers push to a Redis list drained by the worker command).
	Broker    string `yaml:"broker" env:"ACCESS_LOG_BROKER" env-default:"direct"`
	QueueSize int    `yaml:"queue_size" env:"ACCESS_LOG_QUEUE_SIZE" env-default:"1024"`
	Workers   int    `yaml:"workers" env:"ACCESS_LOG_WORKERS" env-default:"2"`
}

// Access-log brokers.
const (
	BrokerDirect = "direct"
	BrokerRedis  = "redis"
)

// Load reads configuration from the YAML file at path with environment variable overrides.
// An empty path reads the environment only.
// The version parameter is injected at build time and set on the returned Config.
func Load(version, path string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if path == "" {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg.Database.Host = ResolveHostForDocker(cfg.Database.Host)
	cfg.Redis.Host = ResolveHostForDocker(cfg.Redis.Host)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ResolvePath returns the config file to load: the explicit path if given,
// otherwise DefaultConfigPath when it exists, otherwise "" (environment only).
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(DefaultConfigPath); err == nil {
		return DefaultConfigPath
	}
	return ""
}

func (c *Config) validate() error {
	switch c.Annotator.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("unknown annotator provider %q", c.Annotator.Provider)
	}

	switch c.AccessLog.Broker {
	case BrokerDirect:
	case BrokerRedis:
		if c.Redis.Host == "" {
			return errors.New("access_log.broker is redis but redis.host is empty")
		}
	default:
		return fmt.Errorf("unknown access log broker %q", c.AccessLog.Broker)
	}

	if c.Reviews.PageSize < 1 {
		return fmt.Errorf("reviews.page_size must be positive, got %d", c.Reviews.PageSize)
	}
	if c.Reviews.TrendsLimit < 1 {
		return fmt.Errorf("reviews.trends_limit must be positive, got %d", c.Reviews.TrendsLimit)
	}
	if c.Database.ConnectRetries < 1 {
		return fmt.Errorf("database.connect_retries must be at least 1, got %d", c.Database.ConnectRetries)
	}
	return nil
}

// IsLocal reports whether the service runs in a developer environment.
func (c *Config) IsLocal() bool {
	return c.Env == "local" || c.Env == "test"
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Addr returns the Redis host:port address.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
