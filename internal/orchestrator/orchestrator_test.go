package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/internal/agents"
	"finsight/internal/invoker"
	"finsight/internal/quota"
)

type fakeModel struct {
	text string
}

func (m *fakeModel) Invoke(_ context.Context, _, _ string) (string, error) {
	return m.text, nil
}

func (m *fakeModel) Model() string { return "gemini-1.5-flash" }

type fakeCollector struct {
	result    agents.CollectionResult
	dqBody    map[string]any
	collected int
}

func (c *fakeCollector) Collect(_ context.Context, identity string) agents.CollectionResult {
	c.collected++
	c.result.Identity = identity
	return c.result
}

func (c *fakeCollector) AssessDataQuality(_ context.Context, _ agents.CollectionResult) invoker.Result {
	return invoker.Result{
		Body: c.dqBody,
		Meta: invoker.Metadata{AgentID: agents.AgentCollector, AnalysisType: agents.TypeDataQuality},
	}
}

type fakeCapability struct {
	id       string
	body     map[string]any
	panicMsg string
	calls    int
}

func (f *fakeCapability) ID() string { return f.id }

func (f *fakeCapability) Analyze(ctx context.Context, data map[string]any) invoker.Result {
	return f.AnalyzeType(ctx, "", "", data)
}

func (f *fakeCapability) AnalyzeType(_ context.Context, analysisType, _ string, _ map[string]any) invoker.Result {
	f.calls++
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return invoker.Result{
		Body: f.body,
		Meta: invoker.Metadata{AgentID: f.id, AnalysisType: analysisType},
	}
}

type fakeSynth struct {
	body  map[string]any
	focus string
	calls int
}

func (s *fakeSynth) ID() string { return agents.AgentSynthesis }

func (s *fakeSynth) Analyze(ctx context.Context, data map[string]any) invoker.Result {
	return s.Synthesize(ctx, data, agents.FocusComprehensive)
}

func (s *fakeSynth) Synthesize(_ context.Context, _ map[string]any, focus string) invoker.Result {
	s.calls++
	s.focus = focus
	return invoker.Result{Body: s.body, Meta: invoker.Metadata{AgentID: agents.AgentSynthesis}}
}

type fakeGate struct {
	allow    bool
	reserved int
}

func (g *fakeGate) TryReserve(_ context.Context, count int) (quota.Status, bool) {
	if g.allow {
		g.reserved += count
	}
	return quota.Status{Available: g.allow, Requested: count}, g.allow
}

func (g *fakeGate) UsageStats() map[string]any {
	return map[string]any{"reserved": g.reserved}
}

func goodCollection() agents.CollectionResult {
	return agents.CollectionResult{
		Success:          true,
		Data:             map[string]any{"total_net_worth": 1000000.0},
		DataQualityScore: 0.9,
		TotalRecords:     12,
		Errors:           []string{},
	}
}

type testDeps struct {
	collector *fakeCollector
	risk      *fakeCapability
	market    *fakeCapability
	synth     *fakeSynth
	gate      *fakeGate
	model     *fakeModel
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *testDeps) {
	t.Helper()
	deps := &testDeps{
		collector: &fakeCollector{result: goodCollection(), dqBody: map[string]any{"data_quality_score": 0.9}},
		risk:      &fakeCapability{id: agents.AgentRisk, body: map[string]any{"overall_risk_level": "low"}},
		market:    &fakeCapability{id: agents.AgentMarket, body: map[string]any{"market_regime": "risk_on"}},
		synth:     &fakeSynth{body: map[string]any{"synthesis_summary": "steady"}},
		gate:      &fakeGate{allow: true},
		model:     &fakeModel{text: `{"recommendations": ["Keep the emergency fund topped up"]}`},
	}

	registry := agents.NewRegistry()
	require.NoError(t, registry.Register(deps.risk))
	require.NoError(t, registry.Register(deps.market))
	require.NoError(t, registry.Register(deps.synth))

	orch := New(Deps{
		Registry:    registry,
		Collector:   deps.collector,
		Risk:        deps.risk,
		Market:      deps.market,
		Synthesizer: deps.synth,
		Invoker:     invoker.New(deps.model),
		Gate:        deps.gate,
	})
	return orch, deps
}

func TestComprehensiveAnalysisHappyPath(t *testing.T) {
	orch, deps := newTestOrchestrator(t)

	run := orch.ExecuteComprehensiveAnalysis(context.Background(), map[string]any{"type": "general"}, "2222222222")

	assert.Equal(t, StatusCompleted, run.Status)
	assert.Len(t, run.Phases, 4)
	require.Len(t, run.Recommendations, 1)
	assert.Equal(t, "Keep the emergency fund topped up", run.Recommendations[0].Recommendation)
	assert.Equal(t, "medium", run.Recommendations[0].Priority)

	assert.Contains(t, run.AgentOutputs, agents.AgentCollector)
	assert.Contains(t, run.AgentOutputs, agents.AgentRisk)
	assert.Contains(t, run.AgentOutputs, agents.AgentMarket)
	assert.Equal(t, "steady", run.Synthesis["synthesis_summary"])

	// Two parallel tasks, one synthesis, one recommendation.
	assert.Equal(t, 4, deps.gate.reserved)
}

func TestFatalCollectionSkipsAllLaterPhases(t *testing.T) {
	orch, deps := newTestOrchestrator(t)
	deps.collector.result = agents.CollectionResult{Success: false, Errors: []string{"all sources down"}}

	run := orch.ExecuteComprehensiveAnalysis(context.Background(), nil, "id")

	assert.Equal(t, StatusFailed, run.Status)
	assert.Len(t, run.Phases, 1)
	_, hasCollection := run.Phase(PhaseCollection)
	assert.True(t, hasCollection)

	assert.Zero(t, deps.risk.calls)
	assert.Zero(t, deps.market.calls)
	assert.Zero(t, deps.synth.calls)
	assert.Zero(t, deps.gate.reserved)
	assert.Empty(t, run.Recommendations)
}

func TestParallelIsolationPanicDoesNotAbortSibling(t *testing.T) {
	orch, deps := newTestOrchestrator(t)
	deps.risk.panicMsg = "risk model exploded"
	deps.market.body = map[string]any{"trend": "bullish"}

	run := orch.ExecuteComprehensiveAnalysis(context.Background(), nil, "id")

	phase, ok := run.Phase(PhaseParallel)
	require.True(t, ok)
	assert.True(t, phase.Success)

	riskOut := phase.Output["risk_analysis"].(map[string]any)
	assert.Contains(t, riskOut["error"], "risk model exploded")

	marketOut := phase.Output["market_analysis"].(map[string]any)
	assert.Equal(t, "bullish", marketOut["trend"])

	// The workflow still completes despite the panicked task.
	assert.Equal(t, StatusCompleted, run.Status)
}

func TestQuotaRefusalBecomesErrorEntries(t *testing.T) {
	orch, deps := newTestOrchestrator(t)
	deps.gate.allow = false

	run := orch.ExecuteComprehensiveAnalysis(context.Background(), nil, "id")

	phase, ok := run.Phase(PhaseParallel)
	require.True(t, ok)
	riskOut := phase.Output["risk_analysis"].(map[string]any)
	assert.Contains(t, riskOut["error"], "quota")
	assert.Zero(t, deps.risk.calls)
	assert.Zero(t, deps.market.calls)

	// Synthesis degraded, recommendation degraded to the system entry.
	assert.Equal(t, true, run.Synthesis["fallback"])
	require.Len(t, run.Recommendations, 1)
	assert.Equal(t, "rec_system_error", run.Recommendations[0].ID)
	assert.Equal(t, StatusCompleted, run.Status)
}

func TestSynthesisFallbackIsNonFatal(t *testing.T) {
	orch, deps := newTestOrchestrator(t)
	deps.synth.body = map[string]any{"error": "model unreachable", "fallback_used": true}

	run := orch.ExecuteComprehensiveAnalysis(context.Background(), nil, "id")

	assert.Equal(t, StatusCompleted, run.Status)
	phase, _ := run.Phase(PhaseSynthesis)
	assert.False(t, phase.Success)
	assert.Equal(t, true, run.Synthesis["fallback"])
	assert.Contains(t, run.Synthesis["synthesis_summary"], "AI synthesis failed")
}

func TestSynthesisFocusSelection(t *testing.T) {
	cases := map[string]string{
		"risk_review":         agents.FocusRisk,
		"investment_planning": agents.FocusOpportunity,
		"opportunity_scan":    agents.FocusOpportunity,
		"performance_check":   agents.FocusPerformance,
		"anything_else":       agents.FocusComprehensive,
		"":                    agents.FocusComprehensive,
	}
	for reqType, want := range cases {
		got := synthesisFocus(map[string]any{"type": reqType})
		assert.Equal(t, want, got, "type %q", reqType)
	}
}

func TestRecommendationNormalization(t *testing.T) {
	recs := normalizeRecommendations([]any{
		"Reduce exposure",
		map[string]any{"recommendation": "Add bonds", "priority": "high"},
	})

	require.Len(t, recs, 2)

	assert.Equal(t, "rec_1", recs[0].ID)
	assert.Equal(t, "Reduce exposure", recs[0].Recommendation)
	assert.Equal(t, "medium", recs[0].Priority)
	assert.Equal(t, "financial_strategy", recs[0].Category)
	assert.Equal(t, "medium_term", recs[0].Timeframe)
	assert.Equal(t, "moderate", recs[0].ExpectedImpact)
	assert.Empty(t, recs[0].ImplementationSteps)
	assert.Equal(t, 0.8, recs[0].Confidence)

	assert.Equal(t, "rec_2", recs[1].ID)
	assert.Equal(t, "Add bonds", recs[1].Recommendation)
	assert.Equal(t, "high", recs[1].Priority)
	assert.Equal(t, "financial_strategy", recs[1].Category)
}

func TestInitializeSystemReport(t *testing.T) {
	orch, _ := newTestOrchestrator(t)

	report := orch.InitializeSystem()
	assert.Equal(t, "ready", report.SystemHealth)
	assert.Len(t, report.ReadyAgents, 4)
	assert.Empty(t, report.Errors)
}

func TestSystemStatusIncludesModelAndQuota(t *testing.T) {
	orch, deps := newTestOrchestrator(t)
	deps.gate.reserved = 3

	report := orch.SystemStatus()
	assert.Equal(t, "gemini-1.5-flash", report.Model)
	assert.Equal(t, 3, report.QuotaStats["reserved"])
}

func TestInitializeSystemPartial(t *testing.T) {
	deps := &testDeps{
		collector: &fakeCollector{result: goodCollection()},
		risk:      &fakeCapability{id: agents.AgentRisk},
		gate:      &fakeGate{allow: true},
	}
	registry := agents.NewRegistry()
	require.NoError(t, registry.Register(deps.risk))

	orch := New(Deps{
		Registry:  registry,
		Collector: deps.collector,
		Risk:      deps.risk,
		Gate:      deps.gate,
	})

	report := orch.InitializeSystem()
	assert.Equal(t, "partial", report.SystemHealth)
	assert.NotEmpty(t, report.Errors)
}
