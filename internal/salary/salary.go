// Package salary extracts a salary band from a job description, falling
// back to an LLM estimate gated on confidence.
package salary

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/skalra/auros/internal/llm"
	"github.com/skalra/auros/internal/textutil"
)

// Range is a salary band in annual USD. Source is "jd" when taken from the
// description text and "ai" when estimated by the model.
type Range struct {
	Min        int
	Max        int
	Source     string
	Confidence float64
}

// Patterns tried in order: $150,000 - $200,000 / 150k-200k / $150k - $200k.
// Both "-" and the en-dash are accepted, as are spaces after "$" and around
// the separator.
var salaryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\$\s?(\d{2,3}(?:,\d{3})?)\s?[-–]\s?\$\s?(\d{2,3}(?:,\d{3})?)`),
	regexp.MustCompile(`(?i)(\d{2,3})\s?k\s?[-–]\s?(\d{2,3})\s?k`),
	regexp.MustCompile(`(?i)\$\s?(\d{2,3})\s?k\s?[-–]\s?\$\s?(\d{2,3})\s?k`),
}

// ExtractFromText runs the regex pass over a description. Returns nil when
// no pattern yields two parseable bounds.
//
// The k-notation patterns capture the digits only, so "150k-200k" comes out
// as (150, 200) rather than (150000, 200000). Kept for compatibility with
// the data already persisted; fixing it means amending the capture groups.
func ExtractFromText(text string) *Range {
	if text == "" {
		return nil
	}

	for _, pattern := range salaryPatterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		min, okMin := normalizeAmount(m[1])
		max, okMax := normalizeAmount(m[2])
		if okMin && okMax {
			return &Range{Min: min, Max: max, Source: "jd", Confidence: 0.9}
		}
	}
	return nil
}

// normalizeAmount parses a captured amount: commas and spaces stripped, a
// trailing "k" multiplies by 1000. Zero is treated as unparsed.
func normalizeAmount(value string) (int, bool) {
	v := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(value, ",", "")))
	mult := 1
	if strings.HasSuffix(v, "k") {
		v = strings.TrimSuffix(v, "k")
		mult = 1000
	}
	n, err := strconv.Atoi(v)
	if err != nil || n == 0 {
		return 0, false
	}
	return n * mult, true
}

// ApplyConfidenceThreshold discards a band whose confidence is strictly
// below min. The input is returned verbatim otherwise.
func ApplyConfidenceThreshold(r *Range, min float64) *Range {
	if r == nil || r.Confidence < min {
		return nil
	}
	return r
}

// estimatePrompt asks for an annual USD base-salary estimate as strict JSON.
const estimatePrompt = `You are estimating total compensation for a US tech role.
Return ONLY valid JSON with:
{
  "salary_min": int,
  "salary_max": int,
  "confidence": number
}
Rules:
- Use annual base salary in USD.
- confidence is 0.0 to 1.0.
- If you cannot estimate, return null.

Role Title: %s
Company: %s
Job Description:
%s`

// Estimator asks the model for a salary band when the regex pass found none.
type Estimator struct {
	generator llm.Generator
	logger    *slog.Logger
}

// NewEstimator creates an estimator backed by the given generator.
func NewEstimator(generator llm.Generator, logger *slog.Logger) *Estimator {
	return &Estimator{generator: generator, logger: logger}
}

// Estimate returns an "ai"-sourced band, or nil when the model response is
// missing, unparseable, or carries non-integer bounds. A non-numeric
// confidence is coerced to 0.0 (the gate then drops it).
func (e *Estimator) Estimate(ctx context.Context, title, company, description string) *Range {
	raw, err := e.generator.Generate(ctx, fmt.Sprintf(estimatePrompt, title, company, description))
	if err != nil {
		e.logger.Warn("llm salary estimate failed", "title", title, "company", company, "error", err)
		return nil
	}

	parsed := textutil.SalvageJSON(raw)
	if parsed == nil {
		e.logger.Warn("llm salary response unparseable", "title", title, "company", company, "raw_response_length", len(raw))
		return nil
	}

	min, okMin := integerValue(parsed["salary_min"])
	max, okMax := integerValue(parsed["salary_max"])
	if !okMin || !okMax {
		return nil
	}

	confidence := 0.0
	if c, ok := parsed["confidence"].(float64); ok {
		confidence = c
	}

	return &Range{Min: min, Max: max, Source: "ai", Confidence: confidence}
}

// integerValue accepts only integral JSON numbers.
func integerValue(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}
