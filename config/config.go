package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Scraper    ScraperConfig    `yaml:"scraper"`
	Batch      BatchConfig      `yaml:"batch"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// ScraperConfig holds the browser session configuration.
type ScraperConfig struct {
	BaseURL            string        `yaml:"base_url"`
	UserAgent          string        `yaml:"user_agent"`
	Headless           bool          `yaml:"headless"`
	NavigationTimeoutS int           `yaml:"navigation_timeout_seconds"`
	NavigationTimeout  time.Duration `yaml:"-"`
	SelectorTimeoutS   int           `yaml:"selector_timeout_seconds"`
	SelectorTimeout    time.Duration `yaml:"-"`
	SettleDelayMS      int           `yaml:"settle_delay_ms"`
	SettleDelay        time.Duration `yaml:"-"`
	MaxRetries         int           `yaml:"max_retries"`
	BackoffBaseS       int           `yaml:"backoff_base_seconds"`
	BackoffBase        time.Duration `yaml:"-"`
	ScreenshotDir      string        `yaml:"screenshot_dir"`
	Timezone           string        `yaml:"timezone"`
}

// BatchConfig holds the daily batch run configuration.
type BatchConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"`
	Concurrency     int           `yaml:"concurrency"`
	RetryCap        int           `yaml:"retry_cap"`
}

// MonitorConfig holds the waitlist monitor and expiry sweep configuration.
type MonitorConfig struct {
	Enabled          bool          `yaml:"enabled"`
	TickSeconds      int           `yaml:"tick_seconds"`
	Tick             time.Duration `yaml:"-"`
	LookaheadHours   int           `yaml:"lookahead_hours"`
	Lookahead        time.Duration `yaml:"-"`
	SweepSeconds     int           `yaml:"sweep_seconds"`
	Sweep            time.Duration `yaml:"-"`
	PurgeSeconds     int           `yaml:"purge_seconds"`
	Purge            time.Duration `yaml:"-"`
	ExpiryGraceHours int           `yaml:"expiry_grace_hours"`
	ExpiryGrace      time.Duration `yaml:"-"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	ApplyDefaults(&cfg)
	return &cfg, nil
}

// ApplyDefaults fills in zero-valued fields and derives durations.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Scraper.BaseURL == "" {
		cfg.Scraper.BaseURL = "https://m.feelcycle.com/reserve"
	}
	if cfg.Scraper.UserAgent == "" {
		cfg.Scraper.UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"
	}
	if cfg.Scraper.NavigationTimeoutS <= 0 {
		cfg.Scraper.NavigationTimeoutS = 30
	}
	cfg.Scraper.NavigationTimeout = time.Duration(cfg.Scraper.NavigationTimeoutS) * time.Second

	if cfg.Scraper.SelectorTimeoutS <= 0 {
		cfg.Scraper.SelectorTimeoutS = 30
	}
	cfg.Scraper.SelectorTimeout = time.Duration(cfg.Scraper.SelectorTimeoutS) * time.Second

	if cfg.Scraper.SettleDelayMS <= 0 {
		cfg.Scraper.SettleDelayMS = 3000
	}
	cfg.Scraper.SettleDelay = time.Duration(cfg.Scraper.SettleDelayMS) * time.Millisecond

	if cfg.Scraper.MaxRetries <= 0 {
		cfg.Scraper.MaxRetries = 2
	}
	if cfg.Scraper.BackoffBaseS <= 0 {
		cfg.Scraper.BackoffBaseS = 2
	}
	cfg.Scraper.BackoffBase = time.Duration(cfg.Scraper.BackoffBaseS) * time.Second

	if cfg.Scraper.Timezone == "" {
		cfg.Scraper.Timezone = "Asia/Tokyo"
	}

	if cfg.Batch.IntervalSeconds <= 0 {
		cfg.Batch.IntervalSeconds = 86400
	}
	cfg.Batch.Interval = time.Duration(cfg.Batch.IntervalSeconds) * time.Second

	if cfg.Batch.Concurrency <= 0 {
		cfg.Batch.Concurrency = 5
	}
	if cfg.Batch.RetryCap <= 0 {
		cfg.Batch.RetryCap = 2
	}

	if cfg.Monitor.TickSeconds <= 0 {
		cfg.Monitor.TickSeconds = 60
	}
	cfg.Monitor.Tick = time.Duration(cfg.Monitor.TickSeconds) * time.Second

	if cfg.Monitor.LookaheadHours <= 0 {
		cfg.Monitor.LookaheadHours = 48
	}
	cfg.Monitor.Lookahead = time.Duration(cfg.Monitor.LookaheadHours) * time.Hour

	if cfg.Monitor.SweepSeconds <= 0 {
		cfg.Monitor.SweepSeconds = 3600
	}
	cfg.Monitor.Sweep = time.Duration(cfg.Monitor.SweepSeconds) * time.Second

	if cfg.Monitor.PurgeSeconds <= 0 {
		cfg.Monitor.PurgeSeconds = 6 * 3600
	}
	cfg.Monitor.Purge = time.Duration(cfg.Monitor.PurgeSeconds) * time.Second

	if cfg.Monitor.ExpiryGraceHours <= 0 {
		cfg.Monitor.ExpiryGraceHours = 24
	}
	cfg.Monitor.ExpiryGrace = time.Duration(cfg.Monitor.ExpiryGraceHours) * time.Hour

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
}
