// Package config defines environment variable keys for configuration.
package config

//nolint:gosec,revive // Environment variable keys are not credentials and do not need per-const comments.
const (
	// LINE Messaging API (Required)
	EnvLineChannelSecret      = "EYECARE_LINE_CHANNEL_SECRET"
	EnvLineChannelAccessToken = "EYECARE_LINE_CHANNEL_ACCESS_TOKEN"

	// LINE Notify (Required)
	EnvNotifyClientID     = "EYECARE_NOTIFY_CLIENT_ID"
	EnvNotifyClientSecret = "EYECARE_NOTIFY_CLIENT_SECRET"
	EnvNotifyCallbackURL  = "EYECARE_NOTIFY_CALLBACK_URL"

	// Image API (Required)
	EnvImgurClientID     = "EYECARE_IMGUR_CLIENT_ID"
	EnvImgurAccessToken  = "EYECARE_IMGUR_ACCESS_TOKEN"
	EnvImgurAlbumID      = "EYECARE_IMGUR_ALBUM_ID"
	EnvImgurImageBaseURL = "EYECARE_IMGUR_IMAGE_BASE_URL"

	// Server
	EnvPort            = "EYECARE_PORT"
	EnvLogLevel        = "EYECARE_LOG_LEVEL"
	EnvShutdownTimeout = "EYECARE_SHUTDOWN_TIMEOUT"
	EnvSessionTTL      = "EYECARE_SESSION_TTL"
	EnvCookieSecure    = "EYECARE_COOKIE_SECURE"

	// Data
	EnvDataDir      = "EYECARE_DATA_DIR"
	EnvDatabaseFile = "EYECARE_DATABASE_FILE"

	// Bot
	EnvWebhookTimeout   = "EYECARE_WEBHOOK_TIMEOUT"
	EnvDiseaseTrigger   = "EYECARE_DISEASE_TRIGGER"
	EnvCaringTrigger    = "EYECARE_CARING_TRIGGER"
	EnvNotifyDefaultSec = "EYECARE_NOTIFY_DEFAULT_SECONDS"
	EnvNotifyMaxSec     = "EYECARE_NOTIFY_MAX_SECONDS"
	EnvReplyRateRPS     = "EYECARE_REPLY_RATE_RPS"

	// R2 Snapshot Feature
	EnvR2Enabled         = "EYECARE_R2_ENABLED"
	EnvR2AccountID       = "EYECARE_R2_ACCOUNT_ID"
	EnvR2AccessKeyID     = "EYECARE_R2_ACCESS_KEY_ID"
	EnvR2SecretAccessKey = "EYECARE_R2_SECRET_ACCESS_KEY"
	EnvR2BucketName      = "EYECARE_R2_BUCKET_NAME"
	EnvR2SnapshotKey     = "EYECARE_R2_SNAPSHOT_KEY"

	// Sentry Feature
	EnvSentryDSN         = "EYECARE_SENTRY_DSN"
	EnvSentryEnvironment = "EYECARE_SENTRY_ENVIRONMENT"
	EnvSentryRelease     = "EYECARE_SENTRY_RELEASE"
	EnvSentrySampleRate  = "EYECARE_SENTRY_SAMPLE_RATE"

	// Better Stack Feature
	EnvBetterStackToken    = "EYECARE_BETTERSTACK_TOKEN"
	EnvBetterStackEndpoint = "EYECARE_BETTERSTACK_ENDPOINT"

	// Metrics Auth Feature
	EnvMetricsUsername = "EYECARE_METRICS_USERNAME"
	EnvMetricsPassword = "EYECARE_METRICS_PASSWORD"
)
