package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration. Values load in three layers:
// built-in defaults, then an optional YAML file, then LEXCACHE_* env
// variables. Secrets should come from the environment, not the file.
type Config struct {
	Listen   string         `yaml:"listen"`
	DataDir  string         `yaml:"data_dir"`
	LogLevel string         `yaml:"log_level"`
	LogJSON  bool           `yaml:"log_json"`
	Index    IndexConfig    `yaml:"index"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Report   ReportConfig   `yaml:"report"`
}

// IndexConfig controls the indexing engine and its trigger endpoints.
type IndexConfig struct {
	// Secret protects the indexing trigger endpoints. Required to serve.
	Secret    string `yaml:"secret"`
	BatchSize int    `yaml:"batch_size"`
	PageLimit int    `yaml:"page_limit"`
	ChunkSize int    `yaml:"chunk_size"`
	// MaxRetries and RetryBaseDelay shape the per-unit backoff inside
	// chunked jobs: RetryBaseDelay, then doubling per attempt.
	MaxRetries     int           `yaml:"max_retries"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	// LatestCongress is the congress whose relationship entries expire;
	// older congresses are immutable and never expire.
	LatestCongress int           `yaml:"latest_congress"`
	LatestTTL      time.Duration `yaml:"latest_ttl"`
}

// UpstreamConfig points at the legislative records API.
type UpstreamConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	RatePerSec float64       `yaml:"rate_per_sec"`
	Timeout    time.Duration `yaml:"timeout"`
}

// ReportConfig configures the failure reporter. With an empty token the
// reporter is disabled and failures are only logged.
type ReportConfig struct {
	GitHubToken string `yaml:"github_token"`
	GitHubOwner string `yaml:"github_owner"`
	GitHubRepo  string `yaml:"github_repo"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Listen:   ":8080",
		DataDir:  "./data",
		LogLevel: "info",
		LogJSON:  true,
		Index: IndexConfig{
			BatchSize:      100,
			PageLimit:      50,
			ChunkSize:      50,
			MaxRetries:     3,
			RetryBaseDelay: 5 * time.Second,
			LatestCongress: 20,
			LatestTTL:      5 * 24 * time.Hour,
		},
		Upstream: UpstreamConfig{
			RatePerSec: 1.0,
			Timeout:    30 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path (empty path skips the file layer) and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	envStr("LEXCACHE_LISTEN", &c.Listen)
	envStr("LEXCACHE_DATA_DIR", &c.DataDir)
	envStr("LEXCACHE_LOG_LEVEL", &c.LogLevel)
	envStr("LEXCACHE_INDEX_SECRET", &c.Index.Secret)
	envStr("LEXCACHE_UPSTREAM_URL", &c.Upstream.BaseURL)
	envStr("LEXCACHE_UPSTREAM_API_KEY", &c.Upstream.APIKey)
	envStr("LEXCACHE_GITHUB_TOKEN", &c.Report.GitHubToken)
	envStr("LEXCACHE_GITHUB_OWNER", &c.Report.GitHubOwner)
	envStr("LEXCACHE_GITHUB_REPO", &c.Report.GitHubRepo)
	envFloat("LEXCACHE_UPSTREAM_RATE", &c.Upstream.RatePerSec)
	envInt("LEXCACHE_LATEST_CONGRESS", &c.Index.LatestCongress)
	envInt("LEXCACHE_MAX_RETRIES", &c.Index.MaxRetries)
	envDuration("LEXCACHE_RETRY_BASE_DELAY", &c.Index.RetryBaseDelay)
}

// Validate checks the fields the server cannot run without.
func (c *Config) Validate() error {
	if c.Index.Secret == "" {
		return fmt.Errorf("index secret is required (set LEXCACHE_INDEX_SECRET)")
	}
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream base URL is required (set LEXCACHE_UPSTREAM_URL)")
	}
	if c.Report.GitHubToken != "" && (c.Report.GitHubOwner == "" || c.Report.GitHubRepo == "") {
		return fmt.Errorf("github reporting requires owner and repo alongside the token")
	}
	return nil
}

func envStr(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func envInt(name string, dst *int) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(name string, dst *float64) {
	if v := os.Getenv(name); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if v := os.Getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
