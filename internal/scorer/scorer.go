// Package scorer computes a weighted relevance score over title, keyword,
// years-of-experience, company-tier, and work-mode dimensions.
package scorer

import (
	"math"
	"regexp"
	"strings"
)

// Dimension weights; they sum to 1.0.
const (
	titleWeight    = 0.30
	keywordWeight  = 0.25
	yoeWeight      = 0.20
	tierWeight     = 0.15
	workModeWeight = 0.10
)

// Target years-of-experience band.
const (
	targetYOEMin = 8
	targetYOEMax = 15
)

var titleKeywords = []string{
	"principal",
	"senior",
	"staff",
	"lead",
	"tpm",
	"technical program",
	"program manager",
	"product manager",
}

var aiPlatformKeywords = []string{
	"ai",
	"ml",
	"machine learning",
	"platform",
	"infrastructure",
	"infra",
	"sre",
	"reliability",
	"observability",
	"cloud",
	"data",
	"genai",
	"llm",
	"ops",
	"devops",
}

var (
	titlePatterns   = compileKeywordPatterns(titleKeywords)
	keywordPatterns = compileKeywordPatterns(aiPlatformKeywords)
)

// compileKeywordPatterns builds case-insensitive word-boundary patterns;
// spaces inside a keyword match any whitespace run.
func compileKeywordPatterns(keywords []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(keywords))
	for _, kw := range keywords {
		expr := `(?i)\b` + strings.ReplaceAll(regexp.QuoteMeta(kw), " ", `\s+`) + `\b`
		patterns = append(patterns, regexp.MustCompile(expr))
	}
	return patterns
}

func countHits(patterns []*regexp.Regexp, text string) int {
	hits := 0
	for _, p := range patterns {
		if p.MatchString(text) {
			hits++
		}
	}
	return hits
}

// ScoreTitle scores seniority and role keywords in the title; saturates at
// three hits.
func ScoreTitle(title string) float64 {
	return math.Min(1.0, float64(countHits(titlePatterns, title))/3)
}

// ScoreKeywords scores AI/platform keywords in the description; saturates
// at five hits.
func ScoreKeywords(text string) float64 {
	return math.Min(1.0, float64(countHits(keywordPatterns, text))/5)
}

// ScoreYOE scores the overlap between a posting's experience band and the
// target band. Unknown bounds fall back to the target bounds; a posting
// with no band at all scores neutral 0.5.
func ScoreYOE(yoeMin, yoeMax *int) float64 {
	if yoeMin == nil && yoeMax == nil {
		return 0.5
	}
	low := targetYOEMin
	if yoeMin != nil {
		low = *yoeMin
	}
	high := targetYOEMax
	if yoeMax != nil {
		high = *yoeMax
	}

	overlap := math.Max(0, float64(min(high, targetYOEMax)-max(low, targetYOEMin)))
	span := math.Max(1, float64(high-low))
	return math.Min(1.0, overlap/span)
}

// ScoreTier maps the curated company tier to a score.
func ScoreTier(tier int) float64 {
	switch tier {
	case 1:
		return 1.0
	case 2:
		return 0.8
	default:
		return 0.6
	}
}

// ScoreWorkMode scores a posting's work mode against the preference.
// "any" disables the dimension entirely and always scores 1.0.
func ScoreWorkMode(workMode, preferred string) float64 {
	if strings.ToLower(preferred) == "any" {
		return 1.0
	}
	if workMode == "" {
		return 0.5
	}
	if strings.EqualFold(workMode, preferred) {
		return 1.0
	}
	return 0.2
}

// Input carries everything one match-score computation needs.
type Input struct {
	Title             string
	Description       string
	YOEMin            *int
	YOEMax            *int
	CompanyTier       int
	WorkMode          string
	PreferredWorkMode string
}

// ComputeMatchScore returns the weighted sum of the five dimension scores,
// clamped to [0,1] and rounded to 4 decimal places.
func ComputeMatchScore(in Input) float64 {
	total := ScoreTitle(in.Title)*titleWeight +
		ScoreKeywords(in.Description)*keywordWeight +
		ScoreYOE(in.YOEMin, in.YOEMax)*yoeWeight +
		ScoreTier(in.CompanyTier)*tierWeight +
		ScoreWorkMode(in.WorkMode, in.PreferredWorkMode)*workModeWeight

	clamped := math.Max(0.0, math.Min(1.0, total))
	return math.Round(clamped*10000) / 10000
}
