// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Retailer   string           `mapstructure:"retailer"`
	Schedule   ScheduleConfig   `mapstructure:"schedule"`
	Crawl      CrawlConfig      `mapstructure:"crawl"`
	Categories []CategoryConfig `mapstructure:"categories"`
	Browser    BrowserConfig    `mapstructure:"browser"`
	DB         DBConfig         `mapstructure:"db"`
	Alerts     AlertConfig      `mapstructure:"alerts"`
	Export     ExportConfig     `mapstructure:"export"`
	Heartbeat  HeartbeatConfig  `mapstructure:"heartbeat"`
	Health     HealthConfig     `mapstructure:"health"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
	Quarantine QuarantineConfig `mapstructure:"quarantine"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ScheduleConfig controls the periodic cycle timer.
type ScheduleConfig struct {
	IntervalMinutes int `mapstructure:"interval_minutes"`
}

// CrawlConfig governs the per-cycle sweep across ZIP codes.
type CrawlConfig struct {
	Zips                  []string `mapstructure:"zips"`
	MaxConcurrentZips     int      `mapstructure:"max_concurrent_zips"`
	CategoryFilter        string   `mapstructure:"category_filter"`
	MaxPagesPerCategory   int      `mapstructure:"max_pages_per_category"`
	ClearancePctThreshold float64  `mapstructure:"clearance_pct_threshold"`
}

// CategoryConfig names one category listing page to harvest.
type CategoryConfig struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// BrowserConfig configures the chromedp session launcher.
type BrowserConfig struct {
	Headless            bool    `mapstructure:"headless"`
	UserAgent           string  `mapstructure:"user_agent"`
	CDPURL              string  `mapstructure:"cdp_url"`
	UserDataDir         string  `mapstructure:"user_data_dir"`
	NavTimeoutSec       int     `mapstructure:"nav_timeout_seconds"`
	WaitMinMs           int     `mapstructure:"wait_min_ms"`
	WaitMaxMs           int     `mapstructure:"wait_max_ms"`
	WaitMultiplier      float64 `mapstructure:"wait_multiplier"`
	CategoryDelayMinMs  int     `mapstructure:"category_delay_min_ms"`
	CategoryDelayMaxMs  int     `mapstructure:"category_delay_max_ms"`
	ZipDelayMinMs       int     `mapstructure:"zip_delay_min_ms"`
	ZipDelayMaxMs       int     `mapstructure:"zip_delay_max_ms"`
	ExtraArgs           []string `mapstructure:"extra_args"`
	ProbeTimeoutSeconds int     `mapstructure:"probe_timeout_seconds"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// AlertConfig sets transition thresholds and the notification transport.
type AlertConfig struct {
	PctDropThreshold float64            `mapstructure:"pct_drop_threshold"`
	AbsDropDefault   float64            `mapstructure:"abs_drop_default"`
	AbsDropByCat     map[string]float64 `mapstructure:"abs_drop_by_category"`
	TelegramToken    string             `mapstructure:"telegram_token"`
	TelegramChatID   string             `mapstructure:"telegram_chat_id"`
}

// ExportConfig controls the post-cycle CSV export.
type ExportConfig struct {
	CSVPath string `mapstructure:"csv_path"`
	Limit   int    `mapstructure:"limit"`
}

// HeartbeatConfig names the outbound ping invoked after a successful cycle.
type HeartbeatConfig struct {
	URL            string `mapstructure:"url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// HealthConfig controls the health/metrics HTTP surface.
type HealthConfig struct {
	Port int `mapstructure:"port"`
}

// MonitorConfig sets the file paths and limits for the reliability monitors.
type MonitorConfig struct {
	MetricsLogPath      string  `mapstructure:"metrics_log_path"`
	MetricsSummaryPath  string  `mapstructure:"metrics_summary_path"`
	CursorPath          string  `mapstructure:"cursor_path"`
	ConsistencyPath     string  `mapstructure:"consistency_path"`
	HistoryLength       int     `mapstructure:"history_length"`
	ZeroStreakThreshold int     `mapstructure:"zero_streak_threshold"`
	WatchdogMinutes     float64 `mapstructure:"watchdog_minutes"`
	MemoryLimitMB       float64 `mapstructure:"memory_limit_mb"`
	MemoryIntervalSec   int     `mapstructure:"memory_interval_seconds"`
}

// QuarantineConfig bounds how long rejected rows are retained.
type QuarantineConfig struct {
	RetentionDays int `mapstructure:"retention_days"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CLEARCRAWL")
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
	v.SetDefault("retailer", "lowes")
	v.SetDefault("schedule.interval_minutes", 360)
	v.SetDefault("crawl.max_concurrent_zips", 2)
	v.SetDefault("crawl.max_pages_per_category", 25)
	v.SetDefault("crawl.clearance_pct_threshold", 0.2)
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.nav_timeout_seconds", 45)
	v.SetDefault("browser.wait_min_ms", 200)
	v.SetDefault("browser.wait_max_ms", 900)
	v.SetDefault("browser.wait_multiplier", 1.0)
	v.SetDefault("browser.category_delay_min_ms", 1800)
	v.SetDefault("browser.category_delay_max_ms", 4200)
	v.SetDefault("browser.zip_delay_min_ms", 5000)
	v.SetDefault("browser.zip_delay_max_ms", 15000)
	v.SetDefault("browser.probe_timeout_seconds", 10)
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("alerts.pct_drop_threshold", 0.25)
	v.SetDefault("export.csv_path", "exports/latest.csv")
	v.SetDefault("export.limit", 1000)
	v.SetDefault("heartbeat.timeout_seconds", 10)
	v.SetDefault("health.port", 8090)
	v.SetDefault("monitor.metrics_log_path", "state/metrics.jsonl")
	v.SetDefault("monitor.metrics_summary_path", "state/metrics_summary.json")
	v.SetDefault("monitor.cursor_path", "state/cursor.json")
	v.SetDefault("monitor.consistency_path", "state/consistency.json")
	v.SetDefault("monitor.history_length", 10)
	v.SetDefault("monitor.zero_streak_threshold", 3)
	v.SetDefault("monitor.watchdog_minutes", 0)
	v.SetDefault("monitor.memory_limit_mb", 0)
	v.SetDefault("monitor.memory_interval_seconds", 30)
	v.SetDefault("quarantine.retention_days", 30)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Retailer == "" {
		return fmt.Errorf("retailer must be set")
	}
	if c.Crawl.MaxConcurrentZips <= 0 {
		return fmt.Errorf("crawl.max_concurrent_zips must be > 0")
	}
	if c.Crawl.MaxPagesPerCategory <= 0 {
		return fmt.Errorf("crawl.max_pages_per_category must be > 0")
	}
	if c.Crawl.ClearancePctThreshold < 0 || c.Crawl.ClearancePctThreshold >= 1 {
		return fmt.Errorf("crawl.clearance_pct_threshold must be in [0, 1)")
	}
	if c.Alerts.PctDropThreshold <= 0 || c.Alerts.PctDropThreshold >= 1 {
		return fmt.Errorf("alerts.pct_drop_threshold must be in (0, 1)")
	}
	if c.Schedule.IntervalMinutes <= 0 {
		return fmt.Errorf("schedule.interval_minutes must be > 0")
	}
	if c.Health.Port <= 0 {
		return fmt.Errorf("health.port must be > 0")
	}
	for _, cat := range c.Categories {
		if cat.Name == "" || cat.URL == "" {
			return fmt.Errorf("categories entries need both name and url")
		}
		if strings.Contains(cat.URL, "PASTE_REAL_CATEGORY_URL") {
			return fmt.Errorf("category %q still has a placeholder url", cat.Name)
		}
	}
	return nil
}

// NavTimeout converts the navigation timeout setting into a duration.
func (c BrowserConfig) NavTimeout() time.Duration {
	if c.NavTimeoutSec <= 0 {
		return 45 * time.Second
	}
	return time.Duration(c.NavTimeoutSec) * time.Second
}

// Interval converts the cycle interval setting into a duration.
func (c ScheduleConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}
