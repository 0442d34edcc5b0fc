// Package agents holds the capability adapters the orchestrator drives:
// the financial data collector plus the AI-backed risk, market and
// synthesis agents. Each AI agent owns its domain prompt and guarantees
// a minimum output shape by filling defaults for missing fields.
package agents

// Agent identifiers. These double as the keys under which agent outputs
// appear in workflow results.
const (
	AgentCollector = "financial_data_collector"
	AgentRisk      = "risk_assessment_agent"
	AgentMarket    = "market_analysis_agent"
	AgentSynthesis = "synthesis_agent"
)

// Targeted analysis types accepted by the orchestrator.
const (
	TypeRiskAssessment = "risk_assessment"
	TypeMarketAnalysis = "market_analysis"
	TypeOpportunity    = "opportunity_identification"
	TypeStressTesting  = "stress_testing"
	TypeDataQuality    = "data_quality_assessment"
)

// TargetedTypes lists every analysis type ExecuteTargetedAnalysis accepts.
func TargetedTypes() []string {
	return []string{
		TypeRiskAssessment,
		TypeMarketAnalysis,
		TypeOpportunity,
		TypeStressTesting,
		TypeDataQuality,
	}
}
