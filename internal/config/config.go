// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Storage   StorageConfig   `mapstructure:"storage"`
	DB        DBConfig        `mapstructure:"db"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// CrawlerConfig bounds a single domain crawl.
type CrawlerConfig struct {
	UserAgent             string `mapstructure:"user_agent"`
	Concurrency           int    `mapstructure:"concurrency"`
	MaxPagesTarget        int    `mapstructure:"max_pages_target"`
	MaxPagesComparison    int    `mapstructure:"max_pages_comparison"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds"`
	MaxPageBytes          int    `mapstructure:"max_page_bytes"`
	BudgetSeconds         int    `mapstructure:"budget_seconds"`
	RespectRobots         bool   `mapstructure:"respect_robots"`
}

// WorkerConfig governs the claim-and-process loop.
type WorkerConfig struct {
	Count               int `mapstructure:"count"`
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"`
}

// GeneratorConfig bounds the generation call and its repair loop.
type GeneratorConfig struct {
	Model              string  `mapstructure:"model"`
	APIKey             string  `mapstructure:"api_key"`
	MaxAttempts        int     `mapstructure:"max_attempts"`
	SamplePagesTarget  int     `mapstructure:"sample_pages_target"`
	SamplePagesPerComp int     `mapstructure:"sample_pages_per_comparison"`
	CallTimeoutSeconds int     `mapstructure:"call_timeout_seconds"`
	MaxTokens          int     `mapstructure:"max_tokens"`
	Temperature        float64 `mapstructure:"temperature"`
}

// StorageConfig selects the blob provider for raw page snapshots.
type StorageConfig struct {
	Provider    string `mapstructure:"provider"` // memory | gcs
	GCSBucket   string `mapstructure:"gcs_bucket"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// DBConfig controls access to the relational job store.
type DBConfig struct {
	Provider string `mapstructure:"provider"` // memory | postgres
	DSN      string `mapstructure:"dsn"`
}

// PubSubConfig holds metadata for completion-event publishing.
type PubSubConfig struct {
	Provider  string `mapstructure:"provider"` // memory | pubsub
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawler.user_agent", "domain-audit-bot/1.0")
	v.SetDefault("crawler.concurrency", 4)
	v.SetDefault("crawler.max_pages_target", 60)
	v.SetDefault("crawler.max_pages_comparison", 20)
	v.SetDefault("crawler.request_timeout_seconds", 10)
	v.SetDefault("crawler.max_page_bytes", 5*1024*1024)
	v.SetDefault("crawler.budget_seconds", 300)
	v.SetDefault("crawler.respect_robots", true)
	v.SetDefault("worker.count", 2)
	v.SetDefault("worker.poll_interval_seconds", 5)
	v.SetDefault("generator.model", "claude-sonnet-4-20250514")
	v.SetDefault("generator.max_attempts", 2)
	v.SetDefault("generator.sample_pages_target", 15)
	v.SetDefault("generator.sample_pages_per_comparison", 3)
	v.SetDefault("generator.call_timeout_seconds", 120)
	v.SetDefault("generator.max_tokens", 8192)
	v.SetDefault("generator.temperature", 0.2)
	v.SetDefault("storage.provider", "memory")
	v.SetDefault("storage.prefix", "pages")
	v.SetDefault("storage.content_type", "text/html; charset=utf-8")
	v.SetDefault("db.provider", "memory")
	v.SetDefault("pubsub.provider", "memory")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.MaxPagesTarget <= 0 {
		return fmt.Errorf("crawler.max_pages_target must be > 0")
	}
	if c.Crawler.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.request_timeout_seconds must be > 0")
	}
	if c.Crawler.MaxPageBytes <= 0 {
		return fmt.Errorf("crawler.max_page_bytes must be > 0")
	}
	if c.Worker.Count <= 0 {
		return fmt.Errorf("worker.count must be > 0")
	}
	if c.Generator.MaxAttempts <= 0 {
		return fmt.Errorf("generator.max_attempts must be > 0")
	}
	if c.Generator.SamplePagesTarget <= 0 {
		return fmt.Errorf("generator.sample_pages_target must be > 0")
	}
	if c.DB.Provider == "postgres" && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set when db.provider is postgres")
	}
	if c.Storage.Provider == "gcs" && c.Storage.GCSBucket == "" {
		return fmt.Errorf("storage.gcs_bucket must be set when storage.provider is gcs")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// CrawlBudget returns the wall-clock budget for one domain crawl.
func (c CrawlerConfig) CrawlBudget() time.Duration {
	return time.Duration(c.BudgetSeconds) * time.Second
}

// RequestTimeout returns the per-request fetch timeout.
func (c CrawlerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// PollInterval returns the worker's idle polling interval.
func (c WorkerConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// CallTimeout returns the timeout for one generation call attempt.
func (c GeneratorConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSeconds) * time.Second
}
