package textutil

import (
	"encoding/json"
	"regexp"
)

// jsonObjectRegex locates the first maximal {…} span, newlines included.
// Greedy on purpose: LLMs tend to fence or preface an otherwise valid object.
var jsonObjectRegex = regexp.MustCompile(`(?s)\{.*\}`)

// SalvageJSON parses text as a JSON object. If strict parsing fails it
// retries on the first maximal {…} substring. Returns nil when both fail;
// it never returns an error.
func SalvageJSON(text string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err == nil {
		return obj
	}

	span := jsonObjectRegex.FindString(text)
	if span == "" {
		return nil
	}
	obj = nil
	if err := json.Unmarshal([]byte(span), &obj); err != nil {
		return nil
	}
	return obj
}
