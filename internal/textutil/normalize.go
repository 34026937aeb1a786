// Package textutil holds small text helpers shared by the scraper and the
// extraction pipeline.
package textutil

import "strings"

// maxDescriptionChars caps normalized text so oversized job descriptions
// don't blow up storage or LLM prompts.
const maxDescriptionChars = 50000

// Normalize collapses every whitespace run to a single space and truncates
// the result to 50 000 characters. Whitespace-only input yields "".
// Normalize is idempotent.
func Normalize(s string) string {
	joined := strings.Join(strings.Fields(s), " ")
	runes := []rune(joined)
	if len(runes) > maxDescriptionChars {
		return string(runes[:maxDescriptionChars])
	}
	return joined
}
