// Package config provides application configuration management.
// It loads settings from a .env file and environment variables and
// provides defaults for the server, the bot triggers and optional features.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ValidationMode selects which settings Validate requires.
type ValidationMode int

const (
	// ServerMode requires LINE, LINE Notify and Imgur credentials.
	ServerMode ValidationMode = iota
	// SeedMode only requires the data settings.
	SeedMode
)

// Config holds all application configuration
type Config struct {
	// LINE Messaging API
	LineChannelSecret string `env:"EYECARE_LINE_CHANNEL_SECRET"`
	LineChannelToken  string `env:"EYECARE_LINE_CHANNEL_ACCESS_TOKEN"`

	// LINE Notify OAuth client
	NotifyClientID     string `env:"EYECARE_NOTIFY_CLIENT_ID"`
	NotifyClientSecret string `env:"EYECARE_NOTIFY_CLIENT_SECRET"`
	NotifyCallbackURL  string `env:"EYECARE_NOTIFY_CALLBACK_URL"`

	// Imgur album used by the caring reminder
	ImgurClientID     string `env:"EYECARE_IMGUR_CLIENT_ID"`
	ImgurAccessToken  string `env:"EYECARE_IMGUR_ACCESS_TOKEN"`
	ImgurAlbumID      string `env:"EYECARE_IMGUR_ALBUM_ID"`
	ImgurImageBaseURL string `env:"EYECARE_IMGUR_IMAGE_BASE_URL" envDefault:"https://imgur.com/"`

	// Server Configuration
	Port            string        `env:"EYECARE_PORT" envDefault:"3000"`
	LogLevel        string        `env:"EYECARE_LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"EYECARE_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	SessionTTL      time.Duration `env:"EYECARE_SESSION_TTL" envDefault:"24h"`
	CookieSecure    bool          `env:"EYECARE_COOKIE_SECURE" envDefault:"true"`

	// Data Configuration
	DataDir      string `env:"EYECARE_DATA_DIR"`
	DatabaseFile string `env:"EYECARE_DATABASE_FILE" envDefault:"eyecare.db"`

	// Metrics Authentication (empty password = no auth)
	MetricsUsername string `env:"EYECARE_METRICS_USERNAME" envDefault:"prometheus"`
	MetricsPassword string `env:"EYECARE_METRICS_PASSWORD"`

	// Sentry
	SentryDSN         string  `env:"EYECARE_SENTRY_DSN"`
	SentryEnvironment string  `env:"EYECARE_SENTRY_ENVIRONMENT" envDefault:"production"`
	SentryRelease     string  `env:"EYECARE_SENTRY_RELEASE"`
	SentrySampleRate  float64 `env:"EYECARE_SENTRY_SAMPLE_RATE" envDefault:"1.0"`

	// Better Stack log shipping
	BetterStackToken    string `env:"EYECARE_BETTERSTACK_TOKEN"`
	BetterStackEndpoint string `env:"EYECARE_BETTERSTACK_ENDPOINT"`

	// R2 snapshot used to seed the disease database
	R2Enabled         bool   `env:"EYECARE_R2_ENABLED" envDefault:"false"`
	R2AccountID       string `env:"EYECARE_R2_ACCOUNT_ID"`
	R2AccessKeyID     string `env:"EYECARE_R2_ACCESS_KEY_ID"`
	R2SecretAccessKey string `env:"EYECARE_R2_SECRET_ACCESS_KEY"`
	R2BucketName      string `env:"EYECARE_R2_BUCKET_NAME"`
	R2SnapshotKey     string `env:"EYECARE_R2_SNAPSHOT_KEY" envDefault:"snapshots/eyecare.db.zst"`

	// Bot Configuration (embedded)
	Bot BotConfig
}

// BotConfig holds bot-specific configuration
type BotConfig struct {
	// Defaults to WebhookProcessing; must stay below WebhookHTTPWrite.
	WebhookTimeout time.Duration `env:"EYECARE_WEBHOOK_TIMEOUT"`

	// Exact texts that select a reply strategy
	DiseaseTrigger string `env:"EYECARE_DISEASE_TRIGGER" envDefault:"認識眼疾"`
	CaringTrigger  string `env:"EYECARE_CARING_TRIGGER" envDefault:"貼心叮嚀"`

	// Delay bounds for the deferred LINE Notify message, in seconds
	NotifyDefaultSeconds int `env:"EYECARE_NOTIFY_DEFAULT_SECONDS" envDefault:"5"`
	NotifyMaxSeconds     int `env:"EYECARE_NOTIFY_MAX_SECONDS" envDefault:"3600"`

	// Reply API pacing, also the burst size
	ReplyRateRPS float64 `env:"EYECARE_REPLY_RATE_RPS" envDefault:"100"`

	// LINE API Constraints
	MaxEventsPerWebhook int
	MaxEventWorkers     int
	MaxPostbackDataSize int
}

// Load reads configuration from environment variables for server mode.
func Load() (*Config, error) {
	return LoadForMode(ServerMode)
}

// LoadForMode reads configuration from environment variables.
// It attempts to load .env file first, then reads from env vars.
func LoadForMode(mode ValidationMode) (*Config, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		Bot: BotConfig{
			WebhookTimeout:      WebhookProcessing,
			MaxEventsPerWebhook: 100,
			MaxEventWorkers:     8,
			MaxPostbackDataSize: LINEMaxPostbackDataLength,
		},
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = getDefaultDataDir()
	}

	if err := cfg.Validate(mode); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if required configuration values are set
func (c *Config) Validate(mode ValidationMode) error {
	var errs []error

	if mode == ServerMode {
		if c.LineChannelSecret == "" {
			errs = append(errs, fmt.Errorf("%s is required", EnvLineChannelSecret))
		}
		if c.LineChannelToken == "" {
			errs = append(errs, fmt.Errorf("%s is required", EnvLineChannelAccessToken))
		}
		if c.NotifyClientID == "" {
			errs = append(errs, fmt.Errorf("%s is required", EnvNotifyClientID))
		}
		if c.NotifyClientSecret == "" {
			errs = append(errs, fmt.Errorf("%s is required", EnvNotifyClientSecret))
		}
		if c.NotifyCallbackURL == "" {
			errs = append(errs, fmt.Errorf("%s is required", EnvNotifyCallbackURL))
		}
		if c.ImgurClientID == "" {
			errs = append(errs, fmt.Errorf("%s is required", EnvImgurClientID))
		}
		if c.ImgurAlbumID == "" {
			errs = append(errs, fmt.Errorf("%s is required", EnvImgurAlbumID))
		}
		if c.Port == "" {
			errs = append(errs, fmt.Errorf("%s is required", EnvPort))
		}
		if c.SessionTTL <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvSessionTTL, c.SessionTTL))
		}
		if err := c.Bot.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("bot config: %w", err))
		}
	}

	if c.DataDir == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvDataDir))
	}
	if c.DatabaseFile == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvDatabaseFile))
	}

	if c.R2Enabled {
		if c.R2AccountID == "" || c.R2AccessKeyID == "" || c.R2SecretAccessKey == "" || c.R2BucketName == "" {
			errs = append(errs, errors.New("R2 snapshot requires account id, access key, secret key and bucket name"))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks bot limits and triggers.
func (b *BotConfig) Validate() error {
	var errs []error

	if b.WebhookTimeout <= 0 || b.WebhookTimeout >= WebhookHTTPWrite {
		errs = append(errs, fmt.Errorf("%s must be within (0, %v), got %v", EnvWebhookTimeout, WebhookHTTPWrite, b.WebhookTimeout))
	}
	if b.DiseaseTrigger == "" || b.CaringTrigger == "" {
		errs = append(errs, errors.New("message triggers cannot be empty"))
	}
	if b.DiseaseTrigger == b.CaringTrigger {
		errs = append(errs, errors.New("message triggers must differ"))
	}
	if b.NotifyMaxSeconds < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative, got %d", EnvNotifyMaxSec, b.NotifyMaxSeconds))
	}
	if b.NotifyDefaultSeconds < 0 || b.NotifyDefaultSeconds > b.NotifyMaxSeconds {
		errs = append(errs, fmt.Errorf("%s must be within [0, %d], got %d", EnvNotifyDefaultSec, b.NotifyMaxSeconds, b.NotifyDefaultSeconds))
	}
	if b.ReplyRateRPS <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvReplyRateRPS, b.ReplyRateRPS))
	}
	if b.MaxEventsPerWebhook <= 0 {
		errs = append(errs, fmt.Errorf("max events per webhook must be positive, got %d", b.MaxEventsPerWebhook))
	}
	if b.MaxEventWorkers <= 0 {
		errs = append(errs, fmt.Errorf("max event workers must be positive, got %d", b.MaxEventWorkers))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// getDefaultDataDir returns platform-specific default data directory
func getDefaultDataDir() string {
	if runtime.GOOS == "windows" {
		return "./data"
	}
	return "/data"
}

// SQLitePath returns the full path to the SQLite database file
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, c.DatabaseFile)
}

// R2Endpoint returns the S3-compatible endpoint of the configured R2 account.
func (c *Config) R2Endpoint() string {
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.R2AccountID)
}
