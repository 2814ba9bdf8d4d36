// Package config loads and validates ingestion configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures every recognized configuration knob. Unknown keys in the
// config file are ignored; every field here has a default and a documented
// effect, so an empty file yields a runnable (local-only) pipeline.
type Config struct {
	Source    SourceConfig    `mapstructure:"source"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Storage   StorageConfig   `mapstructure:"storage"`
	DB        DBConfig        `mapstructure:"db"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Ops       OpsConfig       `mapstructure:"ops"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// SourceConfig identifies the remote statistics source.
type SourceConfig struct {
	// BaseURL is the scheme+host of the statistics site.
	BaseURL string `mapstructure:"base_url"`
	// SeasonPath is the page path template; %s receives the season year.
	SeasonPath string `mapstructure:"season_path"`
	// RobotsUserAgent is the honest agent name used for robots.txt matching.
	RobotsUserAgent string `mapstructure:"robots_user_agent"`
	// ChallengeMarkers are lowercase substrings that mark an anti-bot page.
	ChallengeMarkers []string `mapstructure:"challenge_markers"`
}

// FetchConfig governs the resilient fetcher.
type FetchConfig struct {
	TimeoutSeconds          int      `mapstructure:"timeout_seconds"`
	MaxRetries              int      `mapstructure:"max_retries"`
	BackoffInitialMs        int      `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs            int      `mapstructure:"backoff_max_ms"`
	JitterMinMs             int      `mapstructure:"jitter_min_ms"`
	JitterMaxMs             int      `mapstructure:"jitter_max_ms"`
	RetryAfterDefaultSecs   int      `mapstructure:"retry_after_default_seconds"`
	UserAgentPool           []string `mapstructure:"user_agent_pool"`
	DebugDir                string   `mapstructure:"debug_dir"`
	RunDeadlineSeconds      int      `mapstructure:"run_deadline_seconds"`
	PersistFlushTimeoutSecs int      `mapstructure:"persist_flush_timeout_seconds"`
}

// RateLimitConfig overrides the robots-derived call budget when set.
type RateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	// MaxCallsPerWindow of 0 means derive from the robots crawl-delay.
	MaxCallsPerWindow int `mapstructure:"max_calls_per_window"`
}

// StorageConfig sets persistence destinations.
type StorageConfig struct {
	OutputRoot string `mapstructure:"output_root"`
	GCSBucket  string `mapstructure:"gcs_bucket"`
	GCSPrefix  string `mapstructure:"gcs_prefix"`
}

// DBConfig controls the document-store sink.
type DBConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// PubSubConfig holds metadata for run-completion notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// OpsConfig configures the health/metrics listener.
type OpsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk and environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STATCRAWLER")
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
	v.SetDefault("source.base_url", "https://www.basketball-reference.com")
	v.SetDefault("source.season_path", "/leagues/NBA_%s_per_game.html")
	v.SetDefault("source.robots_user_agent", "statcrawler/1.0 (analytics pipeline)")
	v.SetDefault("source.challenge_markers", []string{"captcha"})
	v.SetDefault("fetch.timeout_seconds", 15)
	v.SetDefault("fetch.max_retries", 5)
	v.SetDefault("fetch.backoff_initial_ms", 500)
	v.SetDefault("fetch.backoff_max_ms", 30000)
	v.SetDefault("fetch.jitter_min_ms", 1000)
	v.SetDefault("fetch.jitter_max_ms", 3000)
	v.SetDefault("fetch.retry_after_default_seconds", 60)
	v.SetDefault("fetch.run_deadline_seconds", 300)
	v.SetDefault("fetch.persist_flush_timeout_seconds", 30)
	v.SetDefault("rate_limit.window_seconds", 60)
	v.SetDefault("rate_limit.max_calls_per_window", 0)
	v.SetDefault("storage.output_root", "./data")
	v.SetDefault("storage.gcs_prefix", "player_stats")
	v.SetDefault("db.table", "player_stat_documents")
	v.SetDefault("ops.listen_addr", ":9090")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Source.BaseURL == "" {
		return fmt.Errorf("source.base_url must be set")
	}
	if !strings.Contains(c.Source.SeasonPath, "%s") {
		return fmt.Errorf("source.season_path must contain a %%s season placeholder")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Fetch.MaxRetries <= 0 {
		return fmt.Errorf("fetch.max_retries must be > 0")
	}
	if c.Fetch.JitterMaxMs < c.Fetch.JitterMinMs {
		return fmt.Errorf("fetch.jitter_max_ms must be >= fetch.jitter_min_ms")
	}
	if c.RateLimit.WindowSeconds <= 0 {
		return fmt.Errorf("rate_limit.window_seconds must be > 0")
	}
	if c.RateLimit.MaxCallsPerWindow < 0 {
		return fmt.Errorf("rate_limit.max_calls_per_window must be >= 0")
	}
	if c.Storage.OutputRoot == "" {
		return fmt.Errorf("storage.output_root must be set")
	}
	return nil
}

// RunDeadline returns the overall budget for one pipeline run.
func (c Config) RunDeadline() time.Duration {
	return time.Duration(c.Fetch.RunDeadlineSeconds) * time.Second
}

// PersistFlushTimeout bounds the best-effort sink flush after the run
// deadline fires.
func (c Config) PersistFlushTimeout() time.Duration {
	return time.Duration(c.Fetch.PersistFlushTimeoutSecs) * time.Second
}
