// Package bot classifies inbound LINE events and dispatches each one to
// exactly one reply strategy.
package bot

import (
	"context"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// Handler is a reply strategy selected by the text of a message.
type Handler interface {
	// Name identifies the strategy in logs, metrics and webhook results.
	Name() string

	// CanHandle reports whether normalized text selects this strategy.
	CanHandle(text string) bool

	// HandleMessage builds the reply. A returned error should be created
	// with errors.Wrapper so its user message becomes the fallback reply.
	HandleMessage(ctx context.Context, text string) ([]messaging_api.MessageInterface, error)
}

// PostbackHandler answers decoded postback commands.
type PostbackHandler interface {
	Name() string
	HandlePostback(ctx context.Context, cmd PostbackCommand) ([]messaging_api.MessageInterface, error)
}
