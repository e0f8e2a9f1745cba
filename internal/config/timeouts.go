// Package config provides centralized timeout constants for the application.
//
// LINE webhook has specific timing requirements:
//   - Reply token: valid for a short time, reply as soon as possible
//   - Webhook response: LINE expects a quick acknowledgment
//
// Every event in a batch is answered before the webhook returns, so the
// processing timeout bounds the slowest strategy (Imgur fetch or DB query).
package config

import "time"

// LINE API limits
const (
	// LINEMaxPostbackDataLength is the maximum postback data size in bytes.
	LINEMaxPostbackDataLength = 300
)

// Webhook timeouts
const (
	// WebhookProcessing is the default timeout for answering a webhook batch.
	WebhookProcessing = 30 * time.Second

	// WebhookHTTPRead is the HTTP server read timeout for webhook requests.
	// Should be short since LINE sends small JSON payloads.
	WebhookHTTPRead = 10 * time.Second

	// WebhookHTTPWrite is the HTTP server write timeout.
	// Should accommodate WebhookProcessing + response serialization.
	WebhookHTTPWrite = 35 * time.Second

	// WebhookHTTPIdle is the HTTP server idle timeout for keep-alive connections.
	WebhookHTTPIdle = 120 * time.Second
)

// External API timeouts
const (
	// ImgurRequest is the timeout for a single album manifest request.
	ImgurRequest = 10 * time.Second

	// NotifyRequest is the timeout for LINE Notify token, status and send calls.
	NotifyRequest = 10 * time.Second

	// SnapshotDownload is the timeout for downloading the seed snapshot from R2.
	SnapshotDownload = 2 * time.Minute
)

// Database timeouts
const (
	// DatabaseBusyTimeout is SQLite busy_timeout pragma value.
	DatabaseBusyTimeout = 5 * time.Second

	// DatabaseConnMaxLifetime is the maximum lifetime of database connections.
	DatabaseConnMaxLifetime = time.Hour

	// ReadinessCheckTimeout bounds the database ping of /readyz.
	ReadinessCheckTimeout = 3 * time.Second
)

// Background job intervals
const (
	// SessionSweepSpec is the cron spec of the idle session sweep.
	SessionSweepSpec = "@every 10m"

	// MetricsUpdateInterval is how often gauge metrics are refreshed.
	MetricsUpdateInterval = time.Minute
)
