package storage

import "strings"

// DescriptionDelimiter separates paragraphs inside a stored description.
const DescriptionDelimiter = "%D"

// Disease is one row of the disease table.
type Disease struct {
	Type        string `json:"type"`
	Number      int    `json:"number"`
	Description string `json:"description"`
}

// Paragraphs splits the stored description on DescriptionDelimiter.
func (d *Disease) Paragraphs() []string {
	return strings.Split(d.Description, DescriptionDelimiter)
}

// DisplayText joins the paragraphs with newlines, without a trailing newline.
func (d *Disease) DisplayText() string {
	return strings.Join(d.Paragraphs(), "\n")
}
