package agents

import (
	"context"

	"finsight/internal/invoker"
	"finsight/pkg/logger"
)

// AIAgent is an invoker-backed capability: a static system prompt, a
// default analysis type, and a minimum output shape filled in when the
// model omits fields.
type AIAgent struct {
	id           string
	analysisType string
	system       string
	instructions string
	defaults     map[string]any
	inv          *invoker.Invoker
	log          *logger.Logger
}

// NewRiskAgent creates the portfolio risk assessment capability.
func NewRiskAgent(inv *invoker.Invoker) *AIAgent {
	return newAIAgent(inv, AgentRisk, TypeRiskAssessment,
		"You are an expert portfolio risk analyst. Quantify market, credit, liquidity and concentration risk "+
			"from the provided financial data and return structured JSON.",
		"Assess overall portfolio risk. Score each risk category, identify the key risks, and recommend mitigations.",
		map[string]any{
			"overall_risk_level": "medium",
			"risk_score":         0.5,
			"key_risks":          []any{},
		})
}

// NewMarketAgent creates the market trend analysis capability.
func NewMarketAgent(inv *invoker.Invoker) *AIAgent {
	return newAIAgent(inv, AgentMarket, TypeMarketAnalysis,
		"You are an expert market analyst. Determine the prevailing market regime and trends relevant to the "+
			"provided portfolio and return structured JSON.",
		"Analyze current market conditions and trends affecting this portfolio. Identify the market regime, "+
			"trend direction, and the key insights an investor should act on.",
		map[string]any{
			"market_regime":    "neutral",
			"trend_direction":  "sideways",
			"key_insights":     []any{},
			"confidence_score": 0.5,
		})
}

func newAIAgent(inv *invoker.Invoker, id, analysisType, system, instructions string, defaults map[string]any) *AIAgent {
	return &AIAgent{
		id:           id,
		analysisType: analysisType,
		system:       system,
		instructions: instructions,
		defaults:     defaults,
		inv:          inv,
		log:          logger.Get().With("agent", id),
	}
}

// ID returns the agent identifier.
func (a *AIAgent) ID() string {
	return a.id
}

// Analyze runs the agent's default analysis over collected data.
func (a *AIAgent) Analyze(ctx context.Context, data map[string]any) invoker.Result {
	return a.AnalyzeType(ctx, a.analysisType, a.instructions, data)
}

// AnalyzeType runs a specific analysis type through this agent. The
// targeted pipelines use it to reuse an agent for related analyses
// (opportunity identification, stress testing).
func (a *AIAgent) AnalyzeType(ctx context.Context, analysisType, instructions string, data map[string]any) invoker.Result {
	res := a.inv.Invoke(ctx, invoker.Request{
		AgentID:      a.id,
		AnalysisType: analysisType,
		Payload:      data,
		Instructions: instructions,
		System:       a.system,
	})

	// Only the agent's own analysis type carries its shape guarantee.
	if analysisType == a.analysisType {
		a.fillDefaults(res.Body)
	}
	return res
}

// fillDefaults guarantees the minimum output shape: missing fields get
// their documented defaults, present fields are left untouched.
func (a *AIAgent) fillDefaults(body map[string]any) {
	for key, def := range a.defaults {
		if _, present := body[key]; !present {
			body[key] = def
		}
	}
}
