// Package config loads service settings from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/jupark12/go-content-queue/logger"
)

// Config is the root configuration for the content queue service.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Workers WorkersConfig `yaml:"workers"`
	Store   StoreConfig   `yaml:"store"`
	Scraper ScraperConfig `yaml:"scraper"`
	Browser BrowserConfig `yaml:"browser"`
	LLM     LLMConfig     `yaml:"llm"`
	Logging logger.Config `yaml:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port            int           `yaml:"port"             env:"PORT"`
	Debug           bool          `yaml:"debug"            env:"APP_DEBUG"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
	CORSOrigins     []string      `yaml:"cors_origins"     env:"CORS_ORIGINS"`
}

// Address returns the listen address for the HTTP server.
func (s ServerConfig) Address() string {
	return fmt.Sprintf(":%d", s.Port)
}

// WorkersConfig sizes the pipeline runner.
type WorkersConfig struct {
	Count     int `yaml:"count"      env:"WORKER_COUNT"`
	QueueSize int `yaml:"queue_size" env:"WORKER_QUEUE_SIZE"`
	// JobTimeout bounds one job end to end. Zero means no limit.
	JobTimeout time.Duration `yaml:"job_timeout" env:"WORKER_JOB_TIMEOUT"`
}

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// StoreConfig selects and configures the job store.
type StoreConfig struct {
	Driver        string `yaml:"driver"         env:"STORE_DRIVER"`
	PostgresURL   string `yaml:"postgres_url"   env:"DATABASE_URL"`
	RedisAddr     string `yaml:"redis_addr"     env:"REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db"       env:"REDIS_DB"`
	KeyPrefix     string `yaml:"key_prefix"     env:"STORE_KEY_PREFIX"`
}

// ScraperConfig configures the generic page extractor.
type ScraperConfig struct {
	UserAgent string        `yaml:"user_agent" env:"SCRAPER_USER_AGENT"`
	Timeout   time.Duration `yaml:"timeout"    env:"SCRAPER_TIMEOUT"`
}

// BrowserConfig configures the headless browser used for product pages.
type BrowserConfig struct {
	Enabled           bool          `yaml:"enabled"            env:"BROWSER_ENABLED"`
	Headless          bool          `yaml:"headless"           env:"BROWSER_HEADLESS"`
	ExecutablePath    string        `yaml:"executable_path"    env:"CHROME_PATH"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout" env:"BROWSER_NAVIGATION_TIMEOUT"`
	ElementTimeout    time.Duration `yaml:"element_timeout"    env:"BROWSER_ELEMENT_TIMEOUT"`
	ScreenshotDir     string        `yaml:"screenshot_dir"     env:"BROWSER_SCREENSHOT_DIR"`
	Install           bool          `yaml:"install"            env:"BROWSER_INSTALL"`
}

// LLM providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// LLMConfig configures the completion service.
type LLMConfig struct {
	Provider       string         `yaml:"provider"          env:"LLM_PROVIDER"`
	OpenAIKey      string         `yaml:"openai_api_key"    env:"OPENAI_API_KEY"`
	AnthropicKey   string         `yaml:"anthropic_api_key" env:"ANTHROPIC_API_KEY"`
	BaseURL        string         `yaml:"base_url"          env:"OPENAI_API_BASE"`
	RequestTimeout time.Duration  `yaml:"request_timeout"   env:"LLM_REQUEST_TIMEOUT"`
	MaxRetries     int            `yaml:"max_retries"       env:"LLM_MAX_RETRIES"`
	RateLimit      float64        `yaml:"rate_limit"        env:"LLM_RATE_LIMIT"` // calls per second, 0 is unlimited
	RateBurst      int            `yaml:"rate_burst"        env:"LLM_RATE_BURST"`
	Article        CompletionSpec `yaml:"article"`
	Product        CompletionSpec `yaml:"product"`
}

// CompletionSpec holds the fixed parameters for one prompt variant.
type CompletionSpec struct {
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// Default values.
const (
	defaultPort            = 5000
	defaultReadTimeout     = 30 * time.Second
	defaultWriteTimeout    = 60 * time.Second
	defaultShutdownTimeout = 30 * time.Second
	defaultWorkerCount     = 4
	defaultQueueSize       = 100
	defaultKeyPrefix       = "content-queue:"
	defaultScraperTimeout  = 15 * time.Second
	defaultNavTimeout      = 60 * time.Second
	defaultElementTimeout  = 30 * time.Second
	defaultScreenshotDir   = ".debug"
	defaultRequestTimeout  = 2 * time.Minute
	defaultMaxRetries      = 2
	defaultOpenAIModel     = "gpt-4"
	defaultAnthropicModel  = "claude-sonnet-4-5"

	// DefaultUserAgent is sent by the page extractor.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := base()
	cfg.SetDefaults()
	return cfg
}

// base holds the boolean defaults, which cannot be told apart from unset
// values after decoding and so are applied before it.
func base() *Config {
	return &Config{
		Browser: BrowserConfig{Enabled: true, Headless: true},
	}
}

// SetDefaults fills every zero-valued setting.
func (c *Config) SetDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = defaultReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = defaultWriteTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = defaultShutdownTimeout
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}

	if c.Workers.Count == 0 {
		c.Workers.Count = defaultWorkerCount
	}
	if c.Workers.QueueSize == 0 {
		c.Workers.QueueSize = defaultQueueSize
	}

	if c.Store.Driver == "" {
		c.Store.Driver = DriverMemory
	}
	if c.Store.RedisAddr == "" {
		c.Store.RedisAddr = "localhost:6379"
	}
	if c.Store.KeyPrefix == "" {
		c.Store.KeyPrefix = defaultKeyPrefix
	}

	if c.Scraper.UserAgent == "" {
		c.Scraper.UserAgent = DefaultUserAgent
	}
	if c.Scraper.Timeout == 0 {
		c.Scraper.Timeout = defaultScraperTimeout
	}

	if c.Browser.NavigationTimeout == 0 {
		c.Browser.NavigationTimeout = defaultNavTimeout
	}
	if c.Browser.ElementTimeout == 0 {
		c.Browser.ElementTimeout = defaultElementTimeout
	}
	if c.Browser.ScreenshotDir == "" {
		c.Browser.ScreenshotDir = defaultScreenshotDir
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = ProviderOpenAI
	}
	if c.LLM.RequestTimeout == 0 {
		c.LLM.RequestTimeout = defaultRequestTimeout
	}
	if c.LLM.MaxRetries == 0 {
		c.LLM.MaxRetries = defaultMaxRetries
	}
	model := defaultOpenAIModel
	if c.LLM.Provider == ProviderAnthropic {
		model = defaultAnthropicModel
	}
	c.LLM.Article.setDefaults(model, 4000, 0.7)
	c.LLM.Product.setDefaults(model, 2000, 0.2)

	c.Logging.SetDefaults()
}

func (s *CompletionSpec) setDefaults(model string, maxTokens int, temperature float64) {
	if s.Model == "" {
		s.Model = model
	}
	if s.MaxTokens == 0 {
		s.MaxTokens = maxTokens
	}
	if s.Temperature == 0 {
		s.Temperature = temperature
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, &ValidationError{Field: "server.port", Message: "must be between 1 and 65535"})
	}
	if c.Workers.Count < 1 {
		errs = append(errs, &ValidationError{Field: "workers.count", Message: "must be at least 1"})
	}
	if c.Workers.QueueSize < 1 {
		errs = append(errs, &ValidationError{Field: "workers.queue_size", Message: "must be at least 1"})
	}
	if c.Workers.JobTimeout < 0 {
		errs = append(errs, &ValidationError{Field: "workers.job_timeout", Message: "must not be negative"})
	}

	switch c.Store.Driver {
	case DriverMemory, DriverRedis:
	case DriverPostgres:
		if c.Store.PostgresURL == "" {
			errs = append(errs, &ValidationError{Field: "store.postgres_url", Message: "is required for the postgres driver"})
		}
	default:
		errs = append(errs, &ValidationError{Field: "store.driver", Message: "must be one of: memory, postgres, redis"})
	}

	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		errs = append(errs, &ValidationError{Field: "llm.provider", Message: "must be one of: openai, anthropic"})
	}

	if c.LLM.RateLimit < 0 {
		errs = append(errs, &ValidationError{Field: "llm.rate_limit", Message: "must not be negative"})
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error", "fatal":
	default:
		errs = append(errs, &ValidationError{Field: "logging.level", Message: "must be one of: debug, info, warn, error, fatal"})
	}

	return errors.Join(errs...)
}

// APIKey returns the key for the configured provider.
func (l LLMConfig) APIKey() string {
	if l.Provider == ProviderAnthropic {
		return l.AnthropicKey
	}
	return l.OpenAIKey
}
