package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/internal/invoker"
)

type scriptedModel struct {
	text       string
	lastSystem string
	lastPrompt string
}

func (m *scriptedModel) Invoke(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	m.lastSystem = systemPrompt
	m.lastPrompt = userPrompt
	return m.text, nil
}

func (m *scriptedModel) Model() string { return "gemini-1.5-flash" }

func TestRiskAgentFillsDefaultShape(t *testing.T) {
	model := &scriptedModel{text: `{"narrative": "portfolio looks fine"}`}
	agent := NewRiskAgent(invoker.New(model))

	res := agent.Analyze(context.Background(), map[string]any{})

	assert.Equal(t, "medium", res.Body["overall_risk_level"])
	assert.Equal(t, 0.5, res.Body["risk_score"])
	assert.Equal(t, []any{}, res.Body["key_risks"])
	assert.Equal(t, "portfolio looks fine", res.Body["narrative"])
}

func TestRiskAgentKeepsModelFields(t *testing.T) {
	model := &scriptedModel{text: `{"overall_risk_level": "high", "risk_score": 0.9}`}
	agent := NewRiskAgent(invoker.New(model))

	res := agent.Analyze(context.Background(), map[string]any{})

	assert.Equal(t, "high", res.Body["overall_risk_level"])
	assert.Equal(t, 0.9, res.Body["risk_score"])
}

func TestMarketAgentDefaultShape(t *testing.T) {
	model := &scriptedModel{text: `{"commentary": "quiet week"}`}
	agent := NewMarketAgent(invoker.New(model))

	res := agent.Analyze(context.Background(), map[string]any{})

	assert.Equal(t, "neutral", res.Body["market_regime"])
	assert.Equal(t, "sideways", res.Body["trend_direction"])
	assert.Equal(t, []any{}, res.Body["key_insights"])
}

func TestAnalyzeTypeSkipsDefaultsForOtherTypes(t *testing.T) {
	model := &scriptedModel{text: `{"scenarios": []}`}
	agent := NewRiskAgent(invoker.New(model))

	res := agent.AnalyzeType(context.Background(), TypeStressTesting, "Run stress scenarios", map[string]any{})

	assert.NotContains(t, res.Body, "overall_risk_level")
	assert.Equal(t, TypeStressTesting, res.Meta.AnalysisType)
	assert.Contains(t, model.lastPrompt, "STRESS_TESTING")
}

func TestSynthesizerEmbedsAgentOutputs(t *testing.T) {
	model := &scriptedModel{text: `{"synthesis_summary": "balanced outlook"}`}
	synth := NewSynthesizer(invoker.New(model))

	res := synth.Synthesize(context.Background(), map[string]any{
		AgentRisk:   map[string]any{"overall_risk_level": "low"},
		AgentMarket: map[string]any{"market_regime": "risk_on"},
	}, FocusRisk)

	assert.Equal(t, "balanced outlook", res.Body["synthesis_summary"])
	assert.Contains(t, model.lastPrompt, "MULTI-AGENT SYNTHESIS REQUEST")
	assert.Contains(t, model.lastPrompt, "SYNTHESIS FOCUS: risk_focused")
	assert.Contains(t, model.lastPrompt, "risk_on")
	assert.Contains(t, model.lastSystem, "synthesizing")
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	reg := NewRegistry()
	model := &scriptedModel{text: `{}`}
	inv := invoker.New(model)

	require.NoError(t, reg.Register(NewRiskAgent(inv)))
	require.NoError(t, reg.Register(NewMarketAgent(inv)))

	_, ok := reg.Get(AgentRisk)
	assert.True(t, ok)
	_, ok = reg.Get("nonexistent")
	assert.False(t, ok)
	assert.Equal(t, 2, reg.Len())

	err := reg.Register(NewRiskAgent(inv))
	assert.Error(t, err)
}
