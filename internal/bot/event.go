package bot

import (
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
)

// EventType is the coarse kind of an inbound event.
type EventType string

// Event kinds the classifier distinguishes.
const (
	EventMessage  EventType = "message"
	EventPostback EventType = "postback"
	EventOther    EventType = "other"
)

// InboundEvent is the part of a webhook event the classifier needs.
// It is built once per delivered event and never modified.
type InboundEvent struct {
	Type       EventType
	ReplyToken string

	// MessageType is the LINE message type ("text", "sticker", ...) of a message event.
	MessageType string
	// Text is set for text messages only.
	Text string
	// PostbackData is set for postback events only.
	PostbackData string

	// SourceType is the LINE event type, e.g. "follow" for EventOther.
	SourceType string
	EventID    string
	UserID     string
	ChatID     string
}

// NewInboundEvent converts a parsed webhook event.
func NewInboundEvent(event webhook.EventInterface) InboundEvent {
	switch e := event.(type) {
	case webhook.MessageEvent:
		ev := InboundEvent{
			Type:        EventMessage,
			ReplyToken:  e.ReplyToken,
			SourceType:  "message",
			MessageType: messageType(e.Message),
			EventID:     e.WebhookEventId,
			UserID:      GetUserID(e.Source),
			ChatID:      GetChatID(e.Source),
		}
		if text, ok := e.Message.(webhook.TextMessageContent); ok {
			ev.Text = text.Text
		}
		return ev
	case webhook.PostbackEvent:
		ev := InboundEvent{
			Type:       EventPostback,
			ReplyToken: e.ReplyToken,
			SourceType: "postback",
			EventID:    e.WebhookEventId,
			UserID:     GetUserID(e.Source),
			ChatID:     GetChatID(e.Source),
		}
		if e.Postback != nil {
			ev.PostbackData = e.Postback.Data
		}
		return ev
	}

	ev := InboundEvent{Type: EventOther, SourceType: otherEventType(event)}
	ev.ReplyToken, ev.EventID, ev.UserID, ev.ChatID = otherEventMeta(event)
	return ev
}

// messageType names the content kind from its Go type. The SDK only fills
// the Type discriminator when decoding JSON.
func messageType(content webhook.MessageContentInterface) string {
	switch content.(type) {
	case nil:
		return ""
	case webhook.TextMessageContent:
		return "text"
	case webhook.ImageMessageContent:
		return "image"
	case webhook.VideoMessageContent:
		return "video"
	case webhook.AudioMessageContent:
		return "audio"
	case webhook.FileMessageContent:
		return "file"
	case webhook.LocationMessageContent:
		return "location"
	case webhook.StickerMessageContent:
		return "sticker"
	}
	return content.GetType()
}

func otherEventType(event webhook.EventInterface) string {
	switch event.(type) {
	case nil:
		return ""
	case webhook.FollowEvent:
		return "follow"
	case webhook.UnfollowEvent:
		return "unfollow"
	case webhook.JoinEvent:
		return "join"
	case webhook.LeaveEvent:
		return "leave"
	}
	return event.GetType()
}

// otherEventMeta extracts reply token and tracing ids from the
// non-message event types that carry them.
func otherEventMeta(event webhook.EventInterface) (replyToken, eventID, userID, chatID string) {
	switch e := event.(type) {
	case webhook.FollowEvent:
		return e.ReplyToken, e.WebhookEventId, GetUserID(e.Source), GetChatID(e.Source)
	case webhook.JoinEvent:
		return e.ReplyToken, e.WebhookEventId, GetUserID(e.Source), GetChatID(e.Source)
	case webhook.UnfollowEvent:
		return "", e.WebhookEventId, GetUserID(e.Source), GetChatID(e.Source)
	case webhook.LeaveEvent:
		return "", e.WebhookEventId, GetUserID(e.Source), GetChatID(e.Source)
	}
	return "", "", "", ""
}
