package lineutil

// LINE API character limits, counted in runes.
// References: https://developers.line.biz/en/reference/messaging-api/
const (
	MaxTextMessageLength = 5000 // Text message max content length
	MaxAltTextLength     = 400  // Template message alt text length
	MaxPostbackData      = 300  // Postback action data length (bytes)
	MaxActionLabel       = 20   // Template action label length

	// Template Message Limits
	MaxTemplateTitleLength = 40  // Buttons template title
	MaxTemplateTextNoImage = 160 // Buttons template text without image
	MaxTemplateActionCount = 4   // Max actions per buttons template
)
