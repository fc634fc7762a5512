// Package config provides configuration management for the venue search service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "VENUESEARCH"

// Config holds all configuration for the venue search service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// LLM contains chat model settings for keyword extraction and reranking.
	LLM LLMConfig `mapstructure:"llm"`
	// Search contains router and scan settings.
	Search SearchConfig `mapstructure:"search"`
	// Session contains refinement session settings.
	Session SessionConfig `mapstructure:"session"`
	// Sources contains per-backend settings.
	Sources SourcesConfig `mapstructure:"sources"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response. A full
	// confirm waits on the reranker, so keep this above llm.timeout.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// CORSAllowedOrigins lists origins allowed to call the API.
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
	// Namespace prefixes every metric name.
	Namespace string `mapstructure:"namespace"`
}

// LLMConfig holds chat model configuration.
type LLMConfig struct {
	// Provider names the vendor in errors and metrics.
	Provider string `mapstructure:"provider"`
	// APIKey is the default credential (loaded from VENUESEARCH_LLM_API_KEY,
	// falling back to DEEPSEEK_API_KEY). Callers may override it per session.
	APIKey string `mapstructure:"-"`
	// BaseURL is the OpenAI-compatible API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Model is the chat model identifier.
	Model string `mapstructure:"model"`
	// Temperature is the sampling temperature.
	Temperature float64 `mapstructure:"temperature"`
	// MaxTokens bounds the completion length.
	MaxTokens int `mapstructure:"max_tokens"`
	// Timeout is the timeout for one chat call.
	Timeout time.Duration `mapstructure:"timeout"`
	// TopN is the number of recommendations requested from the reranker.
	TopN int `mapstructure:"top_n"`
	// MaxRetries is how many times a transient chat failure is retried.
	MaxRetries int `mapstructure:"max_retries"`
	// RetryDelay is the first retry backoff; it doubles per attempt.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// SearchConfig holds search routing configuration.
type SearchConfig struct {
	// AdapterTimeout bounds one adapter call; a timed-out adapter yields no papers.
	AdapterTimeout time.Duration `mapstructure:"adapter_timeout"`
	// MaxParallel bounds concurrent queries in a multi-venue batch.
	MaxParallel int `mapstructure:"max_parallel"`
	// ScanConcurrency bounds concurrent keyword fetches within one scan.
	ScanConcurrency int `mapstructure:"scan_concurrency"`
}

// SessionConfig holds session store configuration.
type SessionConfig struct {
	// IdleTTL is how long an untouched session is kept.
	IdleTTL time.Duration `mapstructure:"idle_ttl"`
}

// SourcesConfig holds configuration for every paper backend.
type SourcesConfig struct {
	// OpenReview serves ICLR, NeurIPS and ICML.
	OpenReview OpenReviewConfig `mapstructure:"openreview"`
	// CVF serves CVPR, ECCV and ICCV.
	CVF SourceConfig `mapstructure:"cvf"`
	// ArXiv is the proxy source for AAAI.
	ArXiv ArXivConfig `mapstructure:"arxiv"`
}

// SourceConfig holds configuration for a single paper backend.
type SourceConfig struct {
	// Enabled controls whether this source is registered.
	Enabled bool `mapstructure:"enabled"`
	// BaseURL is the API or archive base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the HTTP client timeout.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// Burst is the maximum burst of requests.
	Burst int `mapstructure:"burst"`
	// UserAgent overrides the default User-Agent header.
	UserAgent string `mapstructure:"user_agent"`
}

// OpenReviewConfig holds OpenReview settings. BaseURL is the v1 API.
type OpenReviewConfig struct {
	SourceConfig `mapstructure:",squash"`
	// BaseURLV2 is the v2 API base URL.
	BaseURLV2 string `mapstructure:"base_url_v2"`
	// V2FromYear is the first year served by the v2 API.
	V2FromYear int `mapstructure:"v2_from_year"`
	// PageSize is the number of notes requested per page.
	PageSize int `mapstructure:"page_size"`
	// MaxPages bounds pagination for one query.
	MaxPages int `mapstructure:"max_pages"`
}

// ArXivConfig holds arXiv settings.
type ArXivConfig struct {
	SourceConfig `mapstructure:",squash"`
	// MaxResults is the number of feed entries requested.
	MaxResults int `mapstructure:"max_results"`
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/venue-search-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Load secrets exclusively from environment variables.
	// These fields use mapstructure:"-" to prevent loading from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
func loadSecrets(cfg *Config) {
	cfg.LLM.APIKey = os.Getenv(EnvPrefix + "_LLM_API_KEY")
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("DEEPSEEK_API_KEY")
	}
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "180s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.cors_allowed_origins", []string{})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "venue_search")

	// LLM defaults. The API key is loaded exclusively from the environment.
	v.SetDefault("llm.provider", "deepseek")
	v.SetDefault("llm.base_url", "https://api.deepseek.com")
	v.SetDefault("llm.model", "deepseek-chat")
	v.SetDefault("llm.temperature", 1.0)
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.timeout", "120s")
	v.SetDefault("llm.top_n", 25)
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.retry_delay", "1s")

	// Search defaults
	v.SetDefault("search.adapter_timeout", "45s")
	v.SetDefault("search.max_parallel", 4)
	v.SetDefault("search.scan_concurrency", 4)

	// Session defaults
	v.SetDefault("session.idle_ttl", "2h")

	// OpenReview defaults
	v.SetDefault("sources.openreview.enabled", true)
	v.SetDefault("sources.openreview.base_url", "https://api.openreview.net")
	v.SetDefault("sources.openreview.base_url_v2", "https://api2.openreview.net")
	v.SetDefault("sources.openreview.timeout", "30s")
	v.SetDefault("sources.openreview.rate_limit", 5.0)
	v.SetDefault("sources.openreview.user_agent", "")
	v.SetDefault("sources.openreview.burst", 5)
	v.SetDefault("sources.openreview.v2_from_year", 2023)
	v.SetDefault("sources.openreview.page_size", 1000)
	v.SetDefault("sources.openreview.max_pages", 50)

	// CVF open access defaults. The archive rejects non-browser agents.
	v.SetDefault("sources.cvf.enabled", true)
	v.SetDefault("sources.cvf.base_url", "https://openaccess.thecvf.com")
	v.SetDefault("sources.cvf.timeout", "15s")
	v.SetDefault("sources.cvf.rate_limit", 2.0)
	v.SetDefault("sources.cvf.user_agent", "")
	v.SetDefault("sources.cvf.burst", 2)

	// arXiv defaults
	v.SetDefault("sources.arxiv.enabled", true)
	v.SetDefault("sources.arxiv.base_url", "http://export.arxiv.org/api")
	v.SetDefault("sources.arxiv.timeout", "30s")
	v.SetDefault("sources.arxiv.rate_limit", 1.0) // arXiv asks for at most one request every few seconds
	v.SetDefault("sources.arxiv.user_agent", "")
	v.SetDefault("sources.arxiv.burst", 1)
	v.SetDefault("sources.arxiv.max_results", 50)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Validate server ports
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}
	if c.Metrics.Enabled && c.Server.MetricsPort == c.Server.HTTPPort {
		return fmt.Errorf("metrics port must differ from HTTP port")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Validate LLM config
	if err := validateURL("llm.base_url", c.LLM.BaseURL); err != nil {
		return err
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("LLM model is required")
	}
	if c.LLM.TopN <= 0 {
		return fmt.Errorf("LLM top_n must be positive")
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("LLM timeout must be positive")
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("LLM max_retries must not be negative")
	}

	// Validate search config
	if c.Search.AdapterTimeout <= 0 {
		return fmt.Errorf("search adapter_timeout must be positive")
	}
	if c.Search.MaxParallel <= 0 {
		return fmt.Errorf("search max_parallel must be positive")
	}
	if c.Search.ScanConcurrency <= 0 {
		return fmt.Errorf("search scan_concurrency must be positive")
	}

	// Validate sources
	sources := map[string]SourceConfig{
		"openreview": c.Sources.OpenReview.SourceConfig,
		"cvf":        c.Sources.CVF,
		"arxiv":      c.Sources.ArXiv.SourceConfig,
	}
	enabled := 0
	for name, src := range sources {
		if !src.Enabled {
			continue
		}
		enabled++
		if err := validateURL("sources."+name+".base_url", src.BaseURL); err != nil {
			return err
		}
		if src.RateLimit <= 0 {
			return fmt.Errorf("sources.%s.rate_limit must be positive", name)
		}
		if src.Burst < 0 {
			return fmt.Errorf("sources.%s.burst must not be negative", name)
		}
	}
	if enabled == 0 {
		return fmt.Errorf("at least one paper source must be enabled")
	}
	if c.Sources.OpenReview.Enabled {
		if err := validateURL("sources.openreview.base_url_v2", c.Sources.OpenReview.BaseURLV2); err != nil {
			return err
		}
		if c.Sources.OpenReview.PageSize <= 0 || c.Sources.OpenReview.MaxPages <= 0 {
			return fmt.Errorf("sources.openreview page_size and max_pages must be positive")
		}
	}
	if c.Sources.ArXiv.Enabled && c.Sources.ArXiv.MaxResults <= 0 {
		return fmt.Errorf("sources.arxiv.max_results must be positive")
	}

	return nil
}

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", field, raw)
	}
	return nil
}
