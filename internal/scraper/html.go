package scraper

import (
	"html"
	"regexp"
	"strings"
)

var htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

// stripHTML converts an HTML or HTML-encoded string to plain text. It first
// unescapes entities (handles Greenhouse's double-encoding; no-op on real
// HTML), strips all tags, then collapses whitespace.
func stripHTML(content string) string {
	if content == "" {
		return ""
	}
	unescaped := html.UnescapeString(content)
	plain := htmlTagRegex.ReplaceAllString(unescaped, " ")
	return strings.Join(strings.Fields(plain), " ")
}
