package scan

import (
	"regexp"
	"strings"
)

// Titles worth sending through extraction. Anything that misses every
// keyword is skipped before the LLM is involved.
var potentialKeywords = []string{
	"program",
	"tpm",
	"technical program",
	"product manager",
	"platform",
	"infrastructure",
	"infra",
	"ai",
	"ml",
	"reliability",
	"sre",
	"principal",
	"senior",
}

var potentialPatterns = func() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(potentialKeywords))
	for _, kw := range potentialKeywords {
		expr := `(?i)\b` + strings.ReplaceAll(regexp.QuoteMeta(kw), ` `, `\s+`) + `\b`
		patterns = append(patterns, regexp.MustCompile(expr))
	}
	return patterns
}()

// IsPotentialMatch reports whether a job title contains any tracked keyword
// on a word boundary. "AI" matches "AI Platform Lead" but not "maintainer".
func IsPotentialMatch(title string) bool {
	for _, pattern := range potentialPatterns {
		if pattern.MatchString(title) {
			return true
		}
	}
	return false
}
