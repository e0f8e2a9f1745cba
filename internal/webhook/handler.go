// Package webhook receives LINE webhook deliveries, answers every event
// through the bot processor and reports per-event results.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/garyellow/eyecare-linebot-go/internal/bot"
	"github.com/garyellow/eyecare-linebot-go/internal/config"
	"github.com/garyellow/eyecare-linebot-go/internal/ctxutil"
	domerrors "github.com/garyellow/eyecare-linebot-go/internal/errors"
	"github.com/garyellow/eyecare-linebot-go/internal/logger"
	"github.com/garyellow/eyecare-linebot-go/internal/metrics"
	"github.com/garyellow/eyecare-linebot-go/internal/ratelimit"
	"github.com/garyellow/eyecare-linebot-go/internal/sentry"
	"github.com/gin-gonic/gin"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"golang.org/x/sync/errgroup"
)

// maxMessagesPerReply is the LINE reply API limit.
const maxMessagesPerReply = 5

// Result statuses
const (
	StatusOK          = "ok"
	StatusDegraded    = "degraded"     // strategy failed, fallback text was sent
	StatusReplyFailed = "reply_failed" // the reply call itself failed
	StatusDropped     = "dropped"      // over the per-delivery event limit, not answered
)

// EventResult is the outcome of one event of a delivery.
type EventResult struct {
	Index     int    `json:"index"`
	EventType string `json:"event_type"`
	Strategy  string `json:"strategy"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// Response is the body returned to LINE.
type Response struct {
	Results []EventResult `json:"results"`
}

// Handler handles LINE webhook events
type Handler struct {
	channelSecret string
	replier       Replier
	processor     *bot.Processor
	limiter       *ratelimit.Limiter
	metrics       *metrics.Metrics
	logger        *logger.Logger

	webhookTimeout      time.Duration
	maxEventsPerWebhook int
	maxEventWorkers     int
}

// HandlerConfig holds configuration for creating a new Handler
type HandlerConfig struct {
	ChannelSecret string
	Replier       Replier
	Processor     *bot.Processor
	Limiter       *ratelimit.Limiter // optional
	BotConfig     *config.BotConfig
	Metrics       *metrics.Metrics
	Logger        *logger.Logger
}

// NewHandler creates a new webhook handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		channelSecret:       cfg.ChannelSecret,
		replier:             cfg.Replier,
		processor:           cfg.Processor,
		limiter:             cfg.Limiter,
		metrics:             cfg.Metrics,
		logger:              cfg.Logger.WithModule("webhook"),
		webhookTimeout:      cfg.BotConfig.WebhookTimeout,
		maxEventsPerWebhook: cfg.BotConfig.MaxEventsPerWebhook,
		maxEventWorkers:     cfg.BotConfig.MaxEventWorkers,
	}
}

// Handle is the Gin handler for the webhook endpoint.
//
// Every event is answered before the response is written. Signature and
// parse failures return 500 without any reply.
func (h *Handler) Handle(c *gin.Context) {
	cb, err := webhook.ParseRequest(h.channelSecret, c.Request)
	if err != nil {
		reason := "parse_error"
		if errors.Is(err, webhook.ErrInvalidSignature) {
			reason = "invalid_signature"
			h.logger.Warn("Invalid webhook signature")
		} else {
			h.logger.WithError(err).Error("Failed to parse webhook request")
		}
		h.metrics.RecordWebhookRejected(reason)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": reason})
		return
	}

	events := cb.Events
	results := make([]EventResult, len(events))
	if len(events) > h.maxEventsPerWebhook {
		h.logger.WithField("event_count", len(events)).
			WithField("limit", h.maxEventsPerWebhook).
			Warn("Too many events in webhook batch; dropping the rest")
		for i := h.maxEventsPerWebhook; i < len(events); i++ {
			results[i] = h.droppedResult(i, events[i])
		}
		events = events[:h.maxEventsPerWebhook]
	}

	// Replies must still go out if LINE drops the connection.
	ctx, cancel := context.WithTimeout(ctxutil.PreserveTracing(c.Request.Context()), h.webhookTimeout)
	defer cancel()

	start := time.Now()

	var g errgroup.Group
	g.SetLimit(h.maxEventWorkers)
	for i, event := range events {
		g.Go(func() error {
			results[i] = h.processEvent(ctx, i, event)
			return nil
		})
	}
	_ = g.Wait()

	h.logger.WithField("event_count", len(events)).
		WithField("batch_duration_ms", time.Since(start).Milliseconds()).
		Debug("Webhook batch processed")

	c.JSON(http.StatusOK, Response{Results: results})
}

// processEvent classifies and answers one event. Failures stay inside its result.
func (h *Handler) processEvent(ctx context.Context, index int, event webhook.EventInterface) (result EventResult) {
	start := time.Now()
	ev := bot.NewInboundEvent(event)
	eventType := ev.SourceType
	if eventType == "" {
		eventType = "unknown"
	}
	result = EventResult{Index: index, EventType: eventType}

	log := h.logger
	if ev.EventID != "" {
		ctx = ctxutil.WithRequestID(ctx, ev.EventID)
		log = log.WithRequestID(ev.EventID)
	}
	if redelivery := isRedelivery(event); redelivery != nil {
		log = log.WithField("is_redelivery", *redelivery)
	}

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Panic while processing event")
			result.Status = StatusReplyFailed
			result.Error = fmt.Sprintf("panic: %v", r)
		}
		h.metrics.RecordWebhookEvent(eventType, result.Status, time.Since(start).Seconds())
	}()

	res := h.processor.Process(ctx, ev)
	result.Strategy = res.Strategy
	result.Status = StatusOK
	if res.Err != nil {
		result.Status = StatusDegraded
		result.Error = res.Err.Error()
		if shouldReport(res.Err) {
			sentry.CaptureException(ctx, res.Err, map[string]string{
				"strategy":   res.Strategy,
				"event_type": eventType,
			})
		}
	}

	messages := res.Messages
	if len(messages) > maxMessagesPerReply {
		log.WithField("message_count", len(messages)).Warn("Message count exceeds limit; truncating")
		messages = messages[:maxMessagesPerReply]
	}

	h.waitForReplySlot(ctx, log)
	if err := h.replier.Reply(ctx, ev.ReplyToken, messages); err != nil {
		result.Status = StatusReplyFailed
		result.Error = errors.Join(res.Err, err).Error()
		if errors.Is(err, ErrNoReplyToken) {
			log.WithField("event_type", eventType).Debug("Event has no reply token")
		} else {
			log.WithError(err).WithField("strategy", res.Strategy).Error("Failed to send reply")
			sentry.CaptureException(ctx, err, map[string]string{"strategy": res.Strategy})
		}
		return result
	}

	log.WithField("event_type", eventType).
		WithField("strategy", res.Strategy).
		WithField("event_duration_ms", time.Since(start).Milliseconds()).
		Info("Event processed")
	return result
}

// droppedResult reports an event that was cut from an oversized delivery.
func (h *Handler) droppedResult(index int, event webhook.EventInterface) EventResult {
	eventType := bot.NewInboundEvent(event).SourceType
	if eventType == "" {
		eventType = "unknown"
	}
	h.metrics.RecordWebhookDropped(eventType)
	return EventResult{Index: index, EventType: eventType, Status: StatusDropped}
}

// waitForReplySlot paces reply calls. The reply is sent even when waiting
// is cut short by the deadline.
func (h *Handler) waitForReplySlot(ctx context.Context, log *logger.Logger) {
	if h.limiter == nil || h.limiter.Allow() {
		return
	}
	h.metrics.RecordReplyThrottled()
	log.WithField("tokens", h.limiter.Available()).Debug("Reply throttled")
	if err := h.limiter.Wait(ctx); err != nil {
		log.WithError(err).Warn("Reply rate limit wait interrupted")
	}
}

// shouldReport reports whether a strategy failure is unexpected enough for
// error tracking. Missing rows and bad input are ordinary user outcomes.
func shouldReport(err error) bool {
	return !errors.Is(err, domerrors.ErrNotFound) &&
		!errors.Is(err, domerrors.ErrDecode) &&
		!errors.Is(err, domerrors.ErrInvalidInput)
}

func isRedelivery(event webhook.EventInterface) *bool {
	var dc *webhook.DeliveryContext
	switch e := event.(type) {
	case webhook.MessageEvent:
		dc = e.DeliveryContext
	case webhook.PostbackEvent:
		dc = e.DeliveryContext
	case webhook.FollowEvent:
		dc = e.DeliveryContext
	}
	if dc == nil {
		return nil
	}
	val := dc.IsRedelivery
	return &val
}
