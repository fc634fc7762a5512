package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	clearEnvVars(t)
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Server defaults
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 9091, cfg.Server.MetricsPort)
	assert.Equal(t, 180*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.HTTPAddress())
	assert.Equal(t, "0.0.0.0:9091", cfg.Server.MetricsAddress())

	// Logging defaults
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	// Metrics defaults
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "venue_search", cfg.Metrics.Namespace)

	// LLM defaults
	assert.Equal(t, "deepseek", cfg.LLM.Provider)
	assert.Equal(t, "https://api.deepseek.com", cfg.LLM.BaseURL)
	assert.Equal(t, "deepseek-chat", cfg.LLM.Model)
	assert.Equal(t, 25, cfg.LLM.TopN)
	assert.Equal(t, 2, cfg.LLM.MaxRetries)
	assert.Equal(t, time.Second, cfg.LLM.RetryDelay)
	assert.Empty(t, cfg.LLM.APIKey)

	// Search defaults
	assert.Equal(t, 45*time.Second, cfg.Search.AdapterTimeout)
	assert.Equal(t, 4, cfg.Search.MaxParallel)
	assert.Equal(t, 4, cfg.Search.ScanConcurrency)
	assert.Equal(t, 2*time.Hour, cfg.Session.IdleTTL)

	// Source defaults
	assert.True(t, cfg.Sources.OpenReview.Enabled)
	assert.Equal(t, "https://api.openreview.net", cfg.Sources.OpenReview.BaseURL)
	assert.Equal(t, "https://api2.openreview.net", cfg.Sources.OpenReview.BaseURLV2)
	assert.Equal(t, 2023, cfg.Sources.OpenReview.V2FromYear)
	assert.Equal(t, 1000, cfg.Sources.OpenReview.PageSize)
	assert.Equal(t, 5, cfg.Sources.OpenReview.Burst)
	assert.True(t, cfg.Sources.CVF.Enabled)
	assert.Equal(t, "https://openaccess.thecvf.com", cfg.Sources.CVF.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.Sources.CVF.Timeout)
	assert.True(t, cfg.Sources.ArXiv.Enabled)
	assert.Equal(t, 50, cfg.Sources.ArXiv.MaxResults)
	assert.Equal(t, 1, cfg.Sources.ArXiv.Burst)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	clearEnvVars(t)
	chdir(t, t.TempDir())

	t.Setenv("VENUESEARCH_SERVER_HTTP_PORT", "8888")
	t.Setenv("VENUESEARCH_LOGGING_LEVEL", "debug")
	t.Setenv("VENUESEARCH_LLM_MODEL", "deepseek-reasoner")
	t.Setenv("VENUESEARCH_SEARCH_ADAPTER_TIMEOUT", "10s")
	t.Setenv("VENUESEARCH_SOURCES_CVF_ENABLED", "false")
	t.Setenv("VENUESEARCH_SOURCES_OPENREVIEW_V2_FROM_YEAR", "2024")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "deepseek-reasoner", cfg.LLM.Model)
	assert.Equal(t, 10*time.Second, cfg.Search.AdapterTimeout)
	assert.False(t, cfg.Sources.CVF.Enabled)
	assert.Equal(t, 2024, cfg.Sources.OpenReview.V2FromYear)
}

func TestLoad_ConfigFile(t *testing.T) {
	clearEnvVars(t)
	dir := t.TempDir()
	chdir(t, dir)

	yaml := `
server:
  http_port: 7000
llm:
  top_n: 10
  api_key: must-not-load
sources:
  arxiv:
    max_results: 20
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.HTTPPort)
	assert.Equal(t, 10, cfg.LLM.TopN)
	assert.Equal(t, 20, cfg.Sources.ArXiv.MaxResults)
	assert.Empty(t, cfg.LLM.APIKey)
}

func TestLoad_Secrets(t *testing.T) {
	t.Run("service key wins", func(t *testing.T) {
		clearEnvVars(t)
		chdir(t, t.TempDir())
		t.Setenv("VENUESEARCH_LLM_API_KEY", "sk-service")
		t.Setenv("DEEPSEEK_API_KEY", "sk-deepseek")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "sk-service", cfg.LLM.APIKey)
	})

	t.Run("falls back to vendor variable", func(t *testing.T) {
		clearEnvVars(t)
		chdir(t, t.TempDir())
		t.Setenv("DEEPSEEK_API_KEY", "sk-deepseek")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "sk-deepseek", cfg.LLM.APIKey)
	})
}

func TestLoad_InvalidConfigFails(t *testing.T) {
	clearEnvVars(t)
	chdir(t, t.TempDir())
	t.Setenv("VENUESEARCH_LOGGING_LEVEL", "loud")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		modifyFunc  func(*Config)
		expectedErr string
	}{
		{
			name:        "HTTP port zero",
			modifyFunc:  func(c *Config) { c.Server.HTTPPort = 0 },
			expectedErr: "invalid HTTP port: 0",
		},
		{
			name:        "HTTP port too high",
			modifyFunc:  func(c *Config) { c.Server.HTTPPort = 70000 },
			expectedErr: "invalid HTTP port: 70000",
		},
		{
			name:        "metrics port invalid",
			modifyFunc:  func(c *Config) { c.Server.MetricsPort = -5 },
			expectedErr: "invalid metrics port: -5",
		},
		{
			name:        "metrics port clashes with HTTP port",
			modifyFunc:  func(c *Config) { c.Server.MetricsPort = c.Server.HTTPPort },
			expectedErr: "metrics port must differ",
		},
		{
			name:        "invalid log level",
			modifyFunc:  func(c *Config) { c.Logging.Level = "verbose" },
			expectedErr: "invalid log level: verbose",
		},
		{
			name:        "relative LLM URL",
			modifyFunc:  func(c *Config) { c.LLM.BaseURL = "api.deepseek.com" },
			expectedErr: "llm.base_url must be an absolute URL",
		},
		{
			name:        "empty model",
			modifyFunc:  func(c *Config) { c.LLM.Model = "" },
			expectedErr: "LLM model is required",
		},
		{
			name:        "top_n zero",
			modifyFunc:  func(c *Config) { c.LLM.TopN = 0 },
			expectedErr: "top_n must be positive",
		},
		{
			name:        "adapter timeout zero",
			modifyFunc:  func(c *Config) { c.Search.AdapterTimeout = 0 },
			expectedErr: "adapter_timeout must be positive",
		},
		{
			name:        "scan concurrency zero",
			modifyFunc:  func(c *Config) { c.Search.ScanConcurrency = 0 },
			expectedErr: "scan_concurrency must be positive",
		},
		{
			name:        "source rate limit zero",
			modifyFunc:  func(c *Config) { c.Sources.CVF.RateLimit = 0 },
			expectedErr: "sources.cvf.rate_limit must be positive",
		},
		{
			name:        "negative source burst",
			modifyFunc:  func(c *Config) { c.Sources.ArXiv.Burst = -1 },
			expectedErr: "sources.arxiv.burst must not be negative",
		},
		{
			name:        "negative llm retries",
			modifyFunc:  func(c *Config) { c.LLM.MaxRetries = -1 },
			expectedErr: "max_retries must not be negative",
		},
		{
			name:        "bad openreview v2 URL",
			modifyFunc:  func(c *Config) { c.Sources.OpenReview.BaseURLV2 = "::" },
			expectedErr: "sources.openreview.base_url_v2",
		},
		{
			name: "no source enabled",
			modifyFunc: func(c *Config) {
				c.Sources.OpenReview.Enabled = false
				c.Sources.CVF.Enabled = false
				c.Sources.ArXiv.Enabled = false
			},
			expectedErr: "at least one paper source must be enabled",
		},
		{
			name:        "arxiv max results zero",
			modifyFunc:  func(c *Config) { c.Sources.ArXiv.MaxResults = 0 },
			expectedErr: "sources.arxiv.max_results must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modifyFunc(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedErr)
		})
	}
}

func TestValidate_DisabledSourceSkipsChecks(t *testing.T) {
	cfg := validConfig()
	cfg.Sources.CVF.Enabled = false
	cfg.Sources.CVF.BaseURL = ""
	cfg.Sources.CVF.RateLimit = 0

	assert.NoError(t, cfg.Validate())
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

// clearEnvVars unsets every variable Load reads, restoring them after the test.
func clearEnvVars(t *testing.T) {
	t.Helper()
	for _, env := range os.Environ() {
		key, _, _ := strings.Cut(env, "=")
		if strings.HasPrefix(key, EnvPrefix+"_") || key == "DEEPSEEK_API_KEY" {
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}
}

// validConfig returns a valid configuration for testing
func validConfig() *Config {
	source := func(base string) SourceConfig {
		return SourceConfig{Enabled: true, BaseURL: base, Timeout: 30 * time.Second, RateLimit: 5}
	}
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			HTTPPort:    8080,
			MetricsPort: 9091,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
		LLM: LLMConfig{
			BaseURL: "https://api.deepseek.com",
			Model:   "deepseek-chat",
			TopN:    25,
			Timeout: time.Minute,
		},
		Search: SearchConfig{
			AdapterTimeout:  45 * time.Second,
			MaxParallel:     4,
			ScanConcurrency: 4,
		},
		Sources: SourcesConfig{
			OpenReview: OpenReviewConfig{
				SourceConfig: source("https://api.openreview.net"),
				BaseURLV2:    "https://api2.openreview.net",
				V2FromYear:   2023,
				PageSize:     1000,
				MaxPages:     50,
			},
			CVF: source("https://openaccess.thecvf.com"),
			ArXiv: ArXivConfig{
				SourceConfig: source("http://export.arxiv.org/api"),
				MaxResults:   50,
			},
		},
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent to testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
