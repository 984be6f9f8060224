package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone    = "UTC"
	defaultFeedURL     = "https://hdencode.org/feed/"
	defaultDriver      = "sqlite3"
	defaultDSN         = "data/feedwatcher.db"
	defaultCron        = "*/5 * * * *"
	defaultHTTPTimeout = 30 * time.Second

	configPathEnv     = "FEEDWATCHER_CONFIG"
	feedURLEnv        = "FEED_URL"
	databaseDriverEnv = "DATABASE_DRIVER"
	databaseDSNEnv    = "DATABASE_DSN"
	discordURLEnv     = "DISCORD_WEBHOOK_URL"
	cronScheduleEnv   = "CRON_SCHEDULE"
	logLevelEnv       = "LOG_LEVEL"
)

// Config holds high-level settings required across the application.
type Config struct {
	Feed          FeedConfig         `yaml:"feed"`
	Database      DatabaseConfig     `yaml:"database"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Notifications NotificationConfig `yaml:"notifications"`
	Retention     RetentionConfig    `yaml:"retention"`
	Logging       LoggingConfig      `yaml:"logging"`
}

// FeedConfig points at the RSS feed to watch.
type FeedConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// DatabaseConfig selects the SQL driver (sqlite3 or postgres) and its DSN.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// SchedulerConfig defines when ticks should run.
type SchedulerConfig struct {
	Enabled        *bool          `yaml:"enabled"`
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// IsEnabled reports whether the recurring scheduler should start; unset means yes.
func (s SchedulerConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Discord DiscordConfig `yaml:"discord"`
	Timeout time.Duration `yaml:"timeout"`
}

// DiscordConfig wires the webhook endpoint.
type DiscordConfig struct {
	WebhookURL string `yaml:"webhookUrl"`
}

// RetentionConfig bounds how long records are kept, in days.
type RetentionConfig struct {
	ProcessedDays    int `yaml:"processedDays"`
	NotificationDays int `yaml:"notificationDays"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		fileCfg, err := ReadFile(path)
		if err != nil {
			log.Printf("config: %v (falling back to defaults)", err)
		} else {
			cfg = mergeConfig(cfg, fileCfg)
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()
	return cfg
}

// ReadFile parses one YAML file without applying defaults.
func ReadFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("cannot read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("cannot parse %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(feedURLEnv); v != "" {
		c.Feed.URL = v
	}

	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(discordURLEnv); v != "" {
		c.Notifications.Discord.WebhookURL = v
	}

	if v := os.Getenv(cronScheduleEnv); v != "" {
		c.Scheduler.CronExpression = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Feed.URL != "" {
		base.Feed.URL = override.Feed.URL
	}
	if override.Feed.Timeout > 0 {
		base.Feed.Timeout = override.Feed.Timeout
	}

	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	if override.Scheduler.Enabled != nil {
		base.Scheduler.Enabled = override.Scheduler.Enabled
	}
	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Notifications.Discord.WebhookURL != "" {
		base.Notifications.Discord.WebhookURL = override.Notifications.Discord.WebhookURL
	}
	if override.Notifications.Timeout > 0 {
		base.Notifications.Timeout = override.Notifications.Timeout
	}

	if override.Retention.ProcessedDays > 0 {
		base.Retention.ProcessedDays = override.Retention.ProcessedDays
	}
	if override.Retention.NotificationDays > 0 {
		base.Retention.NotificationDays = override.Retention.NotificationDays
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Feed:      FeedConfig{URL: defaultFeedURL, Timeout: defaultHTTPTimeout},
		Database:  DatabaseConfig{Driver: defaultDriver, DSN: defaultDSN},
		Scheduler: SchedulerConfig{CronExpression: defaultCron, Timezone: defaultTimezone, location: tz},
		Notifications: NotificationConfig{
			Discord: DiscordConfig{WebhookURL: ""},
			Timeout: defaultHTTPTimeout,
		},
		Retention: RetentionConfig{ProcessedDays: 30, NotificationDays: 7},
		Logging:   LoggingConfig{Level: "info"},
	}
}
