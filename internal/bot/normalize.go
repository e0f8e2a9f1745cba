package bot

import (
	"strings"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// NormalizeText prepares message text for trigger comparison: NFC
// composition, width folding (full-width ASCII to half-width) and trimming.
// Replies that echo the user always use the original text.
func NormalizeText(text string) string {
	return strings.TrimSpace(width.Fold.String(norm.NFC.String(text)))
}
