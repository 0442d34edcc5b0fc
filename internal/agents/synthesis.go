package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"finsight/internal/invoker"
	"finsight/pkg/logger"
)

// Synthesis focus modes, selected from the user request type.
const (
	FocusComprehensive = "comprehensive"
	FocusRisk          = "risk_focused"
	FocusOpportunity   = "opportunity_focused"
	FocusPerformance   = "performance_focused"
)

// Synthesizer cross-references the outputs of all analysis agents into
// one integrated insight set.
type Synthesizer struct {
	inv *invoker.Invoker
	log *logger.Logger
}

// NewSynthesizer creates the synthesis capability.
func NewSynthesizer(inv *invoker.Invoker) *Synthesizer {
	return &Synthesizer{
		inv: inv,
		log: logger.Get().With("agent", AgentSynthesis),
	}
}

// ID returns the synthesis agent identifier.
func (s *Synthesizer) ID() string {
	return AgentSynthesis
}

// Analyze satisfies Capability with a comprehensive-focus synthesis.
func (s *Synthesizer) Analyze(ctx context.Context, data map[string]any) invoker.Result {
	return s.Synthesize(ctx, data, FocusComprehensive)
}

// Synthesize merges per-agent outputs (keyed by agent name) into ranked,
// categorized recommendations plus risk and opportunity summaries.
func (s *Synthesizer) Synthesize(ctx context.Context, agentOutputs map[string]any, focus string) invoker.Result {
	return s.inv.InvokeWithPrompt(ctx, invoker.Request{
		AgentID:      AgentSynthesis,
		AnalysisType: "synthesis",
		System: "You are an expert financial analyst specializing in synthesizing complex multi-agent " +
			"analysis results into actionable insights.",
	}, synthesisPrompt(agentOutputs, focus))
}

func synthesisPrompt(agentOutputs map[string]any, focus string) string {
	outputsJSON, err := json.MarshalIndent(agentOutputs, "", "  ")
	if err != nil {
		outputsJSON = []byte("{}")
	}

	return fmt.Sprintf(`MULTI-AGENT SYNTHESIS REQUEST

AGENT OUTPUTS TO SYNTHESIZE:
%s

SYNTHESIS FOCUS: %s

SYNTHESIS REQUIREMENTS:
1. **Cross-Agent Insights**: Identify patterns and correlations across different agent analyses
2. **Conflict Resolution**: Address any contradictions between agent findings
3. **Confidence Weighting**: Weight insights based on agent confidence levels and data quality
4. **Integrated Recommendations**: Generate cohesive recommendations that consider all agent inputs
5. **Risk-Opportunity Balance**: Balance risk management with growth opportunities
6. **Priority Ranking**: Rank recommendations by impact and urgency

OUTPUT STRUCTURE (JSON):
{
    "synthesis_summary": "Brief overview of key findings",
    "cross_agent_insights": [
        {
            "insight": "Description of insight",
            "supporting_agents": ["agent1", "agent2"],
            "confidence": 0.8,
            "impact": "high/medium/low"
        }
    ],
    "integrated_recommendations": [
        {
            "category": "risk_management/growth/operational",
            "recommendation": "Specific actionable recommendation",
            "priority": "high/medium/low",
            "timeframe": "immediate/short_term/long_term",
            "expected_impact": "Description of expected impact",
            "supporting_analysis": "Which agent analyses support this"
        }
    ],
    "risk_assessment": {
        "overall_risk_level": "high/medium/low",
        "key_risk_factors": ["factor1", "factor2"],
        "mitigation_priorities": ["priority1", "priority2"]
    },
    "opportunity_assessment": {
        "growth_potential": "high/medium/low",
        "key_opportunities": ["opportunity1", "opportunity2"],
        "implementation_priorities": ["priority1", "priority2"]
    },
    "confidence_assessment": {
        "synthesis_confidence": 0.8,
        "data_quality_impact": "low/medium/high",
        "analysis_completeness": 0.9
    }
}

Perform the synthesis analysis now:`, outputsJSON, focus)
}
