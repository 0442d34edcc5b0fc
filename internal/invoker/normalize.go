package invoker

import (
	"encoding/json"
	"strings"
)

// normalizeResponse turns raw model text into a body map. JSON format
// strips a surrounding markdown code fence and parses; anything that does
// not parse to an object is wrapped with the original text preserved
// verbatim under raw_response. Text format passes through untouched.
func normalizeResponse(text, format string) map[string]any {
	if strings.ToLower(format) != FormatJSON {
		return map[string]any{
			"analysis_text": text,
			"output_format": format,
		}
	}

	content := strings.TrimSpace(text)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var body map[string]any
	if err := json.Unmarshal([]byte(content), &body); err != nil || body == nil {
		return map[string]any{
			"analysis_text":  text,
			"parsed_as_json": false,
			"raw_response":   text,
		}
	}

	return body
}

// confidenceIndicators derives confidence, data-quality impact and depth
// from a body map, with the documented defaults when fields are absent.
func confidenceIndicators(body map[string]any) (confidence float64, quality, depth string) {
	confidence = 0.5
	quality = "medium"
	depth = "standard"

	if v, ok := numberField(body, "confidence_score"); ok {
		confidence = v
	} else if v, ok := numberField(body, "confidence"); ok {
		confidence = v
	}

	if score, ok := numberField(body, "data_quality_score"); ok {
		switch {
		case score > 0.8:
			quality = "low"
		case score > 0.6:
			quality = "medium"
		default:
			quality = "high"
		}
	}

	keyCount := 0
	for key := range body {
		if !strings.HasPrefix(key, "_") {
			keyCount++
		}
	}
	switch {
	case keyCount > 8:
		depth = "comprehensive"
	case keyCount > 5:
		depth = "standard"
	default:
		depth = "basic"
	}

	return confidence, quality, depth
}

func numberField(body map[string]any, key string) (float64, bool) {
	switch v := body[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}
