package webhook

import (
	"context"
	"errors"
	"fmt"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// ErrNoReplyToken is returned for events LINE delivered without a reply token.
var ErrNoReplyToken = errors.New("event has no reply token")

// Replier sends the reply of one event.
type Replier interface {
	Reply(ctx context.Context, replyToken string, messages []messaging_api.MessageInterface) error
}

// LineReplier sends replies through the LINE Messaging API.
type LineReplier struct {
	client *messaging_api.MessagingApiAPI
}

// NewLineReplier creates a replier authenticated with the channel access token.
func NewLineReplier(channelToken string) (*LineReplier, error) {
	client, err := messaging_api.NewMessagingApiAPI(channelToken)
	if err != nil {
		return nil, fmt.Errorf("create messaging API client: %w", err)
	}
	return &LineReplier{client: client}, nil
}

// Reply calls the reply endpoint once. A missing token fails without a request.
func (r *LineReplier) Reply(_ context.Context, replyToken string, messages []messaging_api.MessageInterface) error {
	if replyToken == "" {
		return ErrNoReplyToken
	}
	_, err := r.client.ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   messages,
	})
	if err != nil {
		return fmt.Errorf("reply message: %w", err)
	}
	return nil
}
