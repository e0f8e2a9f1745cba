// Package lineutil provides utility functions for building LINE messages and actions.
package lineutil

import (
	"unicode/utf8"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// Action is an alias for the LINE SDK action interface for convenience.
type Action = messaging_api.ActionInterface

// NewTextMessage creates a text message, truncating past the LINE limit.
func NewTextMessage(text string) *messaging_api.TextMessage {
	return &messaging_api.TextMessage{
		Text: truncate(text, MaxTextMessageLength),
	}
}

// NewImageMessage creates an image message. LINE requires HTTPS URLs.
func NewImageMessage(originalContentURL, previewImageURL string) *messaging_api.ImageMessage {
	return &messaging_api.ImageMessage{
		OriginalContentUrl: originalContentURL,
		PreviewImageUrl:    previewImageURL,
	}
}

// NewButtonsTemplate creates a buttons template message without a thumbnail.
// Extra actions beyond the LINE limit of 4 are dropped and long texts are truncated.
func NewButtonsTemplate(altText, title, text string, actions []Action) *messaging_api.TemplateMessage {
	if len(actions) > MaxTemplateActionCount {
		actions = actions[:MaxTemplateActionCount]
	}

	template := &messaging_api.ButtonsTemplate{
		Text:    truncate(text, MaxTemplateTextNoImage),
		Actions: actions,
	}
	if title != "" {
		template.Title = truncate(title, MaxTemplateTitleLength)
	}

	return &messaging_api.TemplateMessage{
		AltText:  truncate(altText, MaxAltTextLength),
		Template: template,
	}
}

// NewPostbackAction creates a postback action that sends data to the bot
// when clicked. A non-empty displayText is also posted into the chat as the
// user's message.
func NewPostbackAction(label, displayText, data string) Action {
	return &messaging_api.PostbackAction{
		Label:       truncate(label, MaxActionLabel),
		DisplayText: displayText,
		Data:        data,
	}
}

// TruncateRunes returns at most maxRunes runes of text.
func TruncateRunes(text string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxRunes])
}

// truncate shortens text to limit runes, ending with "..." when cut.
func truncate(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	return TruncateRunes(text, limit-3) + "..."
}
