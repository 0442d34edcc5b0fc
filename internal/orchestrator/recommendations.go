package orchestrator

import (
	"context"
	"fmt"

	"finsight/internal/invoker"
	"finsight/internal/metrics"
	"finsight/internal/quota"
)

// Normalization defaults applied to raw recommendations.
const (
	defaultCategory   = "financial_strategy"
	defaultPriority   = "medium"
	defaultTimeframe  = "medium_term"
	defaultImpact     = "moderate"
	defaultConfidence = 0.8
)

// runRecommendation turns the synthesis output plus workflow context
// into normalized recommendations. Never fatal: any failure yields a
// single system-error entry so Completed runs always carry a list.
func (o *Orchestrator) runRecommendation(ctx context.Context, run *WorkflowRun, userRequest map[string]any) {
	phaseStart := o.now()
	phase := PhaseResult{Phase: PhaseRecommendation}

	recs, errMsg := o.generateRecommendations(ctx, run, userRequest)
	if errMsg != "" {
		phase.Error = errMsg
		recs = []Recommendation{systemErrorRecommendation(errMsg)}
	} else {
		phase.Success = true
	}

	phase.Output = map[string]any{"recommendations": recs, "total": len(recs)}
	run.addPhase(phase)
	run.Recommendations = recs
	metrics.ObservePhase(PhaseRecommendation, o.now().Sub(phaseStart))
}

func (o *Orchestrator) generateRecommendations(ctx context.Context, run *WorkflowRun, userRequest map[string]any) ([]Recommendation, string) {
	st, ok := o.gate.TryReserve(ctx, 1)
	if !ok {
		return nil, quota.QuotaError(st).Error()
	}

	res := o.inv.Invoke(ctx, invoker.Request{
		AgentID:      "orchestrator",
		AnalysisType: "comprehensive_recommendations",
		Payload: map[string]any{
			"synthesis":     run.Synthesis,
			"agent_outputs": run.AgentOutputs,
			"user_request":  userRequest,
		},
		Instructions: "Generate the final recommendation list for this analysis. Return JSON with a " +
			"\"recommendations\" array; each entry needs recommendation text and may carry category, " +
			"priority, timeframe, expected_impact, implementation_steps and confidence.",
		System: "You are a financial advisor turning multi-agent analysis into specific, actionable recommendations.",
	})

	if fallback, _ := res.Body["fallback_used"].(bool); fallback {
		errMsg, _ := res.Body["error"].(string)
		return nil, errMsg
	}

	raw, _ := res.Body["recommendations"].([]any)
	recs := normalizeRecommendations(raw)
	if len(recs) == 0 {
		recs = []Recommendation{{
			ID:                  "rec_1",
			Category:            "general",
			Recommendation:      "Continue monitoring portfolio and market conditions",
			Priority:            "low",
			Timeframe:           "ongoing",
			ExpectedImpact:      defaultImpact,
			ImplementationSteps: []string{},
			Confidence:          defaultConfidence,
		}}
	}
	return recs, ""
}

// normalizeRecommendations converts raw model recommendations, whether
// plain strings or partial maps, into the fixed shape with defaults for
// every missing field.
func normalizeRecommendations(raw []any) []Recommendation {
	recs := make([]Recommendation, 0, len(raw))
	for i, entry := range raw {
		rec := Recommendation{
			ID:                  fmt.Sprintf("rec_%d", i+1),
			Category:            defaultCategory,
			Priority:            defaultPriority,
			Timeframe:           defaultTimeframe,
			ExpectedImpact:      defaultImpact,
			ImplementationSteps: []string{},
			Confidence:          defaultConfidence,
		}

		switch v := entry.(type) {
		case string:
			rec.Recommendation = v
		case map[string]any:
			rec.Recommendation = stringField(v, "recommendation", fmt.Sprintf("%v", v))
			rec.Category = stringField(v, "category", rec.Category)
			rec.Priority = stringField(v, "priority", rec.Priority)
			rec.Timeframe = stringField(v, "timeframe", rec.Timeframe)
			rec.ExpectedImpact = stringField(v, "expected_impact", rec.ExpectedImpact)
			if steps, ok := v["implementation_steps"].([]any); ok {
				for _, step := range steps {
					if s, ok := step.(string); ok {
						rec.ImplementationSteps = append(rec.ImplementationSteps, s)
					}
				}
			}
			if c, ok := v["confidence"].(float64); ok {
				rec.Confidence = c
			}
		default:
			continue
		}

		recs = append(recs, rec)
	}
	return recs
}

// systemErrorRecommendation is the single entry returned when the
// recommendation phase itself failed.
func systemErrorRecommendation(reason string) Recommendation {
	return Recommendation{
		ID:                  "rec_system_error",
		Category:            "system",
		Recommendation:      fmt.Sprintf("Recommendation generation failed: %s. Review per-agent outputs directly.", reason),
		Priority:            defaultPriority,
		Timeframe:           defaultTimeframe,
		ExpectedImpact:      defaultImpact,
		ImplementationSteps: []string{},
		Confidence:          0.0,
	}
}

func stringField(m map[string]any, key, def string) string {
	if s, ok := m[key].(string); ok && s != "" {
		return s
	}
	return def
}
