package invoker

import (
	"encoding/json"
	"fmt"
	"strings"
)

// keyMetrics is the bounded set of financial metrics pulled from the
// payload into the prompt. The full payload never goes to the model.
var keyMetrics = []string{
	"total_net_worth", "total_assets", "total_liabilities",
	"credit_score", "epf_balance", "total_investment",
	"transaction_count", "monthly_income", "monthly_expenses",
}

// completenessMetrics are the core metrics used for the completeness ratio.
var completenessMetrics = []string{
	"total_net_worth", "total_assets", "total_liabilities", "credit_score",
}

// buildDataSummary condenses the payload into the fixed summary shape the
// prompt embeds: per-source status, known key metrics, quality indicators.
func buildDataSummary(payload map[string]any) map[string]any {
	sources := []map[string]any{}
	if raw, ok := payload["data_sources"].([]any); ok {
		for _, entry := range raw {
			src, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			sources = append(sources, map[string]any{
				"type":         stringOr(src["type"], "unknown"),
				"success":      boolOr(src["success"], false),
				"record_count": intOr(src["record_count"], 0),
			})
		}
	}

	extracted := map[string]any{}
	if data, ok := payload["data"].(map[string]any); ok {
		for _, metric := range keyMetrics {
			if v, present := data[metric]; present {
				extracted[metric] = v
			}
		}
	}

	successful := 0
	totalRecords := 0
	for _, src := range sources {
		if src["success"].(bool) {
			successful++
		}
		totalRecords += src["record_count"].(int)
	}

	present := 0
	for _, metric := range completenessMetrics {
		if _, ok := extracted[metric]; ok {
			present++
		}
	}

	return map[string]any{
		"data_sources": sources,
		"key_metrics":  extracted,
		"data_quality_indicators": map[string]any{
			"sources_available":  len(sources),
			"successful_sources": successful,
			"total_records":      totalRecords,
			"data_completeness":  float64(present) / float64(len(completenessMetrics)),
		},
	}
}

// buildAnalysisPrompt renders the analysis request the model receives:
// the data summary, caller instructions, and the fixed framework.
func buildAnalysisPrompt(analysisType string, payload map[string]any, instructions, format string) string {
	summary := buildDataSummary(payload)
	summaryJSON, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		summaryJSON = []byte("{}")
	}

	upperType := strings.ToUpper(analysisType)

	return fmt.Sprintf(`ANALYSIS REQUEST: %s

FINANCIAL DATA TO ANALYZE:
%s

SPECIFIC ANALYSIS REQUIREMENTS:
%s

ANALYSIS FRAMEWORK:
1. **Data Assessment**: Evaluate the quality and completeness of provided data
2. **Core Analysis**: Perform deep %s analysis using your expertise
3. **Risk Factors**: Identify key risk factors and concerns
4. **Opportunities**: Highlight potential opportunities or positive indicators
5. **Recommendations**: Provide specific, actionable recommendations
6. **Confidence Assessment**: Rate your confidence in the analysis (0.0-1.0)

OUTPUT FORMAT: %s
- If JSON: Return a structured JSON object with all analysis components
- Include numerical scores/ratings where appropriate
- Provide detailed explanations for all conclusions

CRITICAL REQUIREMENTS:
- Base analysis on the actual financial data provided
- Consider both quantitative metrics and qualitative factors
- Provide specific, actionable insights
- Include confidence levels for key conclusions
- Flag any data quality issues or limitations

Begin your %s analysis now:`,
		upperType, summaryJSON, instructions, analysisType, strings.ToUpper(format), analysisType)
}

func stringOr(v any, def string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return def
}

func boolOr(v any, def bool) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return def
}

func intOr(v any, def int) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return def
}
