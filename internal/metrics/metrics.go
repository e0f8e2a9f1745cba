// Package metrics defines the Prometheus metrics exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Webhook metrics
	WebhookEventsTotal     *prometheus.CounterVec
	WebhookDurationSeconds *prometheus.HistogramVec
	WebhookRejectedTotal   *prometheus.CounterVec
	ReplyThrottledTotal    prometheus.Counter

	// Reply strategy outcomes
	StrategyTotal *prometheus.CounterVec

	// Outbound HTTP calls (Imgur, LINE Notify)
	ExternalRequestsTotal   *prometheus.CounterVec
	ExternalDurationSeconds *prometheus.HistogramVec

	// Singleflight metrics
	SingleflightDedupTotal *prometheus.CounterVec

	// Deferred notifier
	NotifySentTotal        *prometheus.CounterVec
	ScheduledNotifications prometheus.Gauge

	// Notify sessions
	ActiveSessions prometheus.Gauge
	OAuthTotal     *prometheus.CounterVec

	// Storage
	DiseaseRows prometheus.Gauge
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		WebhookEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eyecare_webhook_events_total",
				Help: "Total number of webhook events by event type and status",
			},
			[]string{"event_type", "status"}, // status: ok, degraded, reply_failed, dropped
		),

		WebhookDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eyecare_webhook_duration_seconds",
				Help:    "Webhook event processing duration in seconds by event type",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"event_type"}, // event_type: message, postback, other
		),

		WebhookRejectedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eyecare_webhook_rejected_total",
				Help: "Total webhook deliveries rejected before dispatch",
			},
			[]string{"reason"}, // reason: invalid_signature, parse_error, too_many_events
		),

		StrategyTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eyecare_strategy_total",
				Help: "Total reply strategy runs by strategy and outcome",
			},
			[]string{"strategy", "outcome"}, // outcome: ok, or the reply text of the failure
		),

		ExternalRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eyecare_external_requests_total",
				Help: "Total outbound API requests by service and status",
			},
			[]string{"service", "status"}, // service: imgur, notify_token, notify_status, notify_send
		),

		ExternalDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eyecare_external_duration_seconds",
				Help:    "Outbound API request duration in seconds by service",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"service"},
		),

		SingleflightDedupTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eyecare_singleflight_dedup_total",
				Help: "Total number of requests that joined an in-flight call instead of executing",
			},
			[]string{"module"},
		),

		NotifySentTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eyecare_notify_sent_total",
				Help: "Total deferred LINE Notify messages by status",
			},
			[]string{"status"}, // status: success, error, cancelled
		),

		ScheduledNotifications: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "eyecare_scheduled_notifications",
				Help: "Number of armed deferred notifications",
			},
		),

		ReplyThrottledTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "eyecare_reply_throttled_total",
				Help: "Total reply calls delayed by the reply rate limiter",
			},
		),

		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "eyecare_active_sessions",
				Help: "Number of notify sessions held in memory",
			},
		),

		OAuthTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eyecare_oauth_callbacks_total",
				Help: "Total LINE Notify OAuth callbacks by status",
			},
			[]string{"status"}, // status: success, denied, state_mismatch, error
		),

		DiseaseRows: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "eyecare_disease_rows",
				Help: "Number of rows in the disease table",
			},
		),
	}
}

// RecordWebhookEvent records one processed webhook event
func (m *Metrics) RecordWebhookEvent(eventType, status string, duration float64) {
	m.WebhookEventsTotal.WithLabelValues(eventType, status).Inc()
	m.WebhookDurationSeconds.WithLabelValues(eventType).Observe(duration)
}

// RecordWebhookDropped records an event cut from an oversized delivery.
// It has no processing time, so only the counter moves.
func (m *Metrics) RecordWebhookDropped(eventType string) {
	m.WebhookEventsTotal.WithLabelValues(eventType, "dropped").Inc()
}

// RecordWebhookRejected records a webhook delivery rejected before dispatch
func (m *Metrics) RecordWebhookRejected(reason string) {
	m.WebhookRejectedTotal.WithLabelValues(reason).Inc()
}

// RecordReplyThrottled records a reply that had to wait for a rate limit token
func (m *Metrics) RecordReplyThrottled() {
	m.ReplyThrottledTotal.Inc()
}

// RecordStrategy records the outcome of a reply strategy
func (m *Metrics) RecordStrategy(strategy, outcome string) {
	m.StrategyTotal.WithLabelValues(strategy, outcome).Inc()
}

// RecordExternalRequest records an outbound API call
func (m *Metrics) RecordExternalRequest(service, status string, duration float64) {
	m.ExternalRequestsTotal.WithLabelValues(service, status).Inc()
	m.ExternalDurationSeconds.WithLabelValues(service).Observe(duration)
}

// RecordSingleflightDedup records a deduplicated request
func (m *Metrics) RecordSingleflightDedup(module string) {
	m.SingleflightDedupTotal.WithLabelValues(module).Inc()
}

// RecordNotifySent records the result of a fired deferred notification
func (m *Metrics) RecordNotifySent(status string) {
	m.NotifySentTotal.WithLabelValues(status).Inc()
}

// SetScheduledNotifications sets the number of armed timers
func (m *Metrics) SetScheduledNotifications(n int) {
	m.ScheduledNotifications.Set(float64(n))
}

// SetActiveSessions sets the number of live sessions
func (m *Metrics) SetActiveSessions(n int) {
	m.ActiveSessions.Set(float64(n))
}

// RecordOAuth records an OAuth callback result
func (m *Metrics) RecordOAuth(status string) {
	m.OAuthTotal.WithLabelValues(status).Inc()
}

// SetDiseaseRows sets the size of the disease table
func (m *Metrics) SetDiseaseRows(n int) {
	m.DiseaseRows.Set(float64(n))
}
