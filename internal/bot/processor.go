package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/garyellow/eyecare-linebot-go/internal/ctxutil"
	domerrors "github.com/garyellow/eyecare-linebot-go/internal/errors"
	"github.com/garyellow/eyecare-linebot-go/internal/lineutil"
	"github.com/garyellow/eyecare-linebot-go/internal/logger"
	"github.com/garyellow/eyecare-linebot-go/internal/metrics"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// Built-in strategy names. Handlers report their own through Name.
const (
	StrategyEcho     = "echo"
	StrategyPostback = "postback"
	StrategyFallback = "fallback"
)

// FallbackText answers events no strategy understands.
const FallbackText = "456"

// DecodeErrorText answers postbacks that cannot be decoded.
const DecodeErrorText = "error"

// Result is the outcome of one event. Messages always holds the reply to
// send; Err is set when a strategy failed and Messages is its fallback text.
type Result struct {
	Strategy string
	Messages []messaging_api.MessageInterface
	Err      error
}

// Processor classifies events and runs the selected strategy.
type Processor struct {
	registry       *Registry
	logger         *logger.Logger
	metrics        *metrics.Metrics
	webhookTimeout time.Duration
	maxPostback    int
}

// ProcessorConfig holds configuration for creating a new Processor.
type ProcessorConfig struct {
	Registry            *Registry
	Logger              *logger.Logger
	Metrics             *metrics.Metrics // optional
	WebhookTimeout      time.Duration
	MaxPostbackDataSize int
}

// NewProcessor creates a new event processor.
func NewProcessor(cfg ProcessorConfig) *Processor {
	maxPostback := cfg.MaxPostbackDataSize
	if maxPostback <= 0 {
		maxPostback = lineutil.MaxPostbackData
	}
	return &Processor{
		registry:       cfg.Registry,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
		webhookTimeout: cfg.WebhookTimeout,
		maxPostback:    maxPostback,
	}
}

// Process selects exactly one strategy for ev and returns its reply.
// It never returns an empty reply.
func (p *Processor) Process(ctx context.Context, ev InboundEvent) Result {
	ctx = ctxutil.WithEventID(ctx, ev.EventID)
	ctx = ctxutil.WithUserID(ctx, ev.UserID)
	ctx = ctxutil.WithChatID(ctx, ev.ChatID)
	if p.webhookTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.webhookTimeout)
		defer cancel()
	}

	var res Result
	switch ev.Type {
	case EventPostback:
		res = p.processPostback(ctx, ev.PostbackData)
	case EventMessage:
		res = p.processMessage(ctx, ev)
	default:
		p.logger.WithField("event_type", ev.SourceType).Debug("Unhandled event type")
		res = textResult(StrategyFallback, FallbackText, nil)
	}

	outcome := "success"
	if res.Err != nil {
		outcome = "error"
		p.logger.WithError(res.Err).
			WithField("strategy", res.Strategy).
			Warn("Strategy failed, replying with fallback text")
	}
	if p.metrics != nil {
		p.metrics.RecordStrategy(res.Strategy, outcome)
	}
	return res
}

func (p *Processor) processMessage(ctx context.Context, ev InboundEvent) Result {
	if ev.MessageType != "text" {
		return textResult(StrategyFallback, FallbackText, nil)
	}

	normalized := NormalizeText(ev.Text)
	if h := p.registry.Match(normalized); h != nil {
		msgs, err := h.HandleMessage(ctx, normalized)
		return strategyResult(h.Name(), msgs, err)
	}

	if ev.Text == "" {
		return textResult(StrategyFallback, FallbackText, nil)
	}
	return Result{
		Strategy: StrategyEcho,
		Messages: []messaging_api.MessageInterface{
			lineutil.NewTextMessage(lineutil.TruncateRunes(ev.Text, lineutil.MaxTextMessageLength)),
		},
	}
}

func (p *Processor) processPostback(ctx context.Context, data string) Result {
	h := p.registry.PostbackHandler()
	if h == nil {
		return textResult(StrategyPostback, DecodeErrorText, fmt.Errorf("%w: no postback handler", domerrors.ErrDecode))
	}
	if len(data) > p.maxPostback {
		return textResult(h.Name(), DecodeErrorText, fmt.Errorf("%w: postback data too long: %d bytes", domerrors.ErrDecode, len(data)))
	}

	cmd, err := ParsePostback(data)
	if err != nil {
		return textResult(h.Name(), DecodeErrorText, err)
	}

	p.logger.WithField("menu", cmd.Menu).WithField("type", cmd.Type).Debug("Received postback")
	msgs, err := h.HandlePostback(ctx, cmd)
	return strategyResult(h.Name(), msgs, err)
}

// strategyResult converts a strategy failure into its user-visible reply.
func strategyResult(name string, msgs []messaging_api.MessageInterface, err error) Result {
	if err != nil {
		return textResult(name, domerrors.GetUserMessage(err), err)
	}
	if len(msgs) == 0 {
		return textResult(name, FallbackText, nil)
	}
	return Result{Strategy: name, Messages: msgs}
}

func textResult(strategy, text string, err error) Result {
	return Result{
		Strategy: strategy,
		Messages: []messaging_api.MessageInterface{lineutil.NewTextMessage(text)},
		Err:      err,
	}
}
