package llm

import (
	"context"
	"fmt"

	"github.com/skalra/auros/internal/textutil"
)

// Extraction holds the structured fields pulled from a job description.
// The zero-ish sentinel (Other/unclear/Unknown) stands in when the model
// response cannot be salvaged.
type Extraction struct {
	PrimaryFunction string
	YOEMin          *int
	YOEMax          *int
	WorkMode        string
	Location        string
	RelevanceScore  float64
	KeyRequirements []string
}

func sentinelExtraction() Extraction {
	return Extraction{
		PrimaryFunction: "Other",
		WorkMode:        "unclear",
		Location:        "Unknown",
	}
}

// ExtractJobInfo extracts structured fields from a job description. It never
// fails: generation or parse failures are logged and replaced by the
// sentinel defaults, so one bad LLM response cannot abort job processing.
func (c *Client) ExtractJobInfo(ctx context.Context, description string) Extraction {
	raw, err := c.Generate(ctx, fmt.Sprintf(extractionPrompt, description))
	if err != nil {
		c.logger.Warn("llm extraction failed", "model", c.model, "error", err)
		return sentinelExtraction()
	}

	parsed := textutil.SalvageJSON(raw)
	if parsed == nil {
		c.logger.Warn("llm extraction unparseable", "model", c.model, "raw_response_length", len(raw))
		return sentinelExtraction()
	}

	ext := Extraction{
		PrimaryFunction: stringValue(parsed, "primary_function"),
		WorkMode:        stringValue(parsed, "work_mode"),
		Location:        stringValue(parsed, "location"),
	}
	if score, ok := parsed["relevance_score"].(float64); ok {
		ext.RelevanceScore = score
	}
	if yoe, ok := parsed["yoe_required"].(map[string]any); ok {
		ext.YOEMin = intValue(yoe, "min")
		ext.YOEMax = intValue(yoe, "max")
	}
	if reqs, ok := parsed["key_requirements"].([]any); ok {
		for _, r := range reqs {
			if s, ok := r.(string); ok {
				ext.KeyRequirements = append(ext.KeyRequirements, s)
			}
		}
	}
	return ext
}

func stringValue(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

// intValue reads an integral JSON number; fractional values are discarded.
func intValue(obj map[string]any, key string) *int {
	f, ok := obj[key].(float64)
	if !ok || f != float64(int(f)) {
		return nil
	}
	n := int(f)
	return &n
}
