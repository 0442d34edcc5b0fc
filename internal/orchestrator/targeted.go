package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"finsight/internal/agents"
	"finsight/internal/invoker"
	"finsight/internal/quota"
)

// ExecuteTargetedAnalysis runs a single two-step pipeline: collect data,
// then invoke one capability for the requested analysis type. An unknown
// type is a validation failure; no data is collected and no model call
// or quota usage happens.
func (o *Orchestrator) ExecuteTargetedAnalysis(ctx context.Context, analysisType string, parameters map[string]any, identity string) TargetedResult {
	result := TargetedResult{
		AnalysisType: analysisType,
		Status:       string(StatusInProgress),
		Results:      map[string]any{},
		AgentsUsed:   []string{},
		Timestamp:    o.now().UTC(),
	}

	route, known := o.targetedRoute(analysisType, parameters)
	if !known {
		result.Status = string(StatusFailed)
		result.Error = fmt.Sprintf("Unknown analysis type: %s", analysisType)
		result.Results = map[string]any{"supported_types": agents.TargetedTypes()}
		o.log.Warnf("Targeted analysis rejected: %s", result.Error)
		return result
	}

	o.log.Infof("Starting targeted analysis: %s", analysisType)

	collection := o.collect.Collect(ctx, identity)
	if !collection.Success {
		result.Status = string(StatusFailed)
		result.Error = "Data collection failed"
		return result
	}

	res, ok := route(ctx, collection)
	if !ok {
		result.Status = string(StatusFailed)
		result.Error = "AI quota exceeded for targeted analysis"
		return result
	}

	result.Results = res.Body
	result.AgentsUsed = []string{agents.AgentCollector, res.Meta.AgentID}
	result.Status = string(StatusCompleted)
	o.log.Infof("Targeted analysis %s completed", analysisType)
	return result
}

type targetedFn func(ctx context.Context, collection agents.CollectionResult) (invoker.Result, bool)

// targetedRoute maps an analysis type to its capability call. The bool
// reports whether the type is part of the supported enum.
func (o *Orchestrator) targetedRoute(analysisType string, parameters map[string]any) (targetedFn, bool) {
	switch analysisType {
	case agents.TypeRiskAssessment:
		return o.gated(func(ctx context.Context, c agents.CollectionResult) invoker.Result {
			return o.risk.AnalyzeType(ctx, agents.TypeRiskAssessment,
				"Assess overall portfolio risk. Score each risk category, identify the key risks, and recommend mitigations.",
				c.ToMap())
		}), true

	case agents.TypeMarketAnalysis:
		return o.gated(func(ctx context.Context, c agents.CollectionResult) invoker.Result {
			return o.market.AnalyzeType(ctx, agents.TypeMarketAnalysis,
				"Analyze current market conditions and trends affecting this portfolio.",
				c.ToMap())
		}), true

	case agents.TypeOpportunity:
		return o.gated(func(ctx context.Context, c agents.CollectionResult) invoker.Result {
			return o.market.AnalyzeType(ctx, agents.TypeOpportunity,
				"Identify market and portfolio opportunities: undervalued allocations, rebalancing candidates, "+
					"and growth options consistent with the observed risk profile.",
				c.ToMap())
		}), true

	case agents.TypeStressTesting:
		return o.gated(func(ctx context.Context, c agents.CollectionResult) invoker.Result {
			return o.risk.AnalyzeType(ctx, agents.TypeStressTesting,
				stressInstructions(parameters), c.ToMap())
		}), true

	case agents.TypeDataQuality:
		return o.gated(func(ctx context.Context, c agents.CollectionResult) invoker.Result {
			return o.collect.AssessDataQuality(ctx, c)
		}), true
	}

	return nil, false
}

// gated wraps a capability call with a single-call quota reservation.
func (o *Orchestrator) gated(fn func(ctx context.Context, c agents.CollectionResult) invoker.Result) targetedFn {
	return func(ctx context.Context, c agents.CollectionResult) (invoker.Result, bool) {
		st, ok := o.gate.TryReserve(ctx, 1)
		if !ok {
			o.log.Warnf("Quota refused for targeted analysis: %v", quota.QuotaError(st))
			return invoker.Result{}, false
		}
		return fn(ctx, c), true
	}
}

// stressInstructions renders stress testing instructions, embedding any
// caller-supplied scenarios.
func stressInstructions(parameters map[string]any) string {
	base := "Stress test the portfolio against adverse scenarios. Quantify the impact of each scenario " +
		"on net worth and liquidity, and identify the most vulnerable holdings."

	scenarios, ok := parameters["scenarios"]
	if !ok {
		return base + " Use standard scenarios: market crash (-30% equities), interest rate spike (+3%), " +
			"job loss (6 months without income)."
	}

	encoded, err := json.Marshal(scenarios)
	if err != nil {
		return base
	}
	return fmt.Sprintf("%s Scenarios to test: %s", base, encoded)
}
