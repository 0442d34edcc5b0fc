// Package orchestrator drives the fixed analysis workflow: data
// collection, parallel risk and market analysis, synthesis, and final
// recommendations. Each phase has defined failure semantics; only a
// failed collection aborts the run.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"finsight/internal/agents"
	"finsight/internal/invoker"
	"finsight/internal/metrics"
	"finsight/internal/quota"
	"finsight/pkg/logger"
)

// DataCollector is the collection capability the workflow starts with.
type DataCollector interface {
	Collect(ctx context.Context, identity string) agents.CollectionResult
	AssessDataQuality(ctx context.Context, collection agents.CollectionResult) invoker.Result
}

// TypedCapability is an analysis capability that can also run related
// analysis types, used by the targeted pipelines.
type TypedCapability interface {
	agents.Capability
	AnalyzeType(ctx context.Context, analysisType, instructions string, data map[string]any) invoker.Result
}

// InsightSynthesizer merges per-agent outputs into one insight set.
type InsightSynthesizer interface {
	Synthesize(ctx context.Context, agentOutputs map[string]any, focus string) invoker.Result
}

// QuotaGate reserves model call budget before each AI invocation.
type QuotaGate interface {
	TryReserve(ctx context.Context, count int) (quota.Status, bool)
	UsageStats() map[string]any
}

// Deps carries everything the orchestrator coordinates.
type Deps struct {
	Registry    *agents.Registry
	Collector   DataCollector
	Risk        TypedCapability
	Market      TypedCapability
	Synthesizer InsightSynthesizer
	Invoker     *invoker.Invoker
	Gate        QuotaGate
}

// Orchestrator coordinates agents through the workflow phases.
type Orchestrator struct {
	registry *agents.Registry
	collect  DataCollector
	risk     TypedCapability
	market   TypedCapability
	synth    InsightSynthesizer
	inv      *invoker.Invoker
	gate     QuotaGate
	log      *logger.Logger
	now      func() time.Time
}

// New creates an orchestrator over the given dependencies.
func New(deps Deps) *Orchestrator {
	return &Orchestrator{
		registry: deps.Registry,
		collect:  deps.Collector,
		risk:     deps.Risk,
		market:   deps.Market,
		synth:    deps.Synthesizer,
		inv:      deps.Invoker,
		gate:     deps.Gate,
		log:      logger.Get().With("component", "orchestrator"),
		now:      time.Now,
	}
}

// InitializeSystem verifies every expected capability is wired and
// reports readiness. Health is ready when all agents are present,
// partial when some are, failed when none are.
func (o *Orchestrator) InitializeSystem() SystemReport {
	report := SystemReport{
		ReadyAgents: []string{},
		Errors:      []string{},
		Timestamp:   o.now().UTC(),
	}

	expected := []string{agents.AgentRisk, agents.AgentMarket, agents.AgentSynthesis}
	for _, id := range expected {
		if _, ok := o.registry.Get(id); ok {
			report.ReadyAgents = append(report.ReadyAgents, id)
		} else {
			report.Errors = append(report.Errors, fmt.Sprintf("agent %s not registered", id))
		}
	}

	if o.collect != nil {
		report.ReadyAgents = append(report.ReadyAgents, agents.AgentCollector)
	} else {
		report.Errors = append(report.Errors, "financial data collector not configured")
	}

	switch {
	case len(report.Errors) == 0:
		report.SystemHealth = "ready"
	case len(report.ReadyAgents) > 0:
		report.SystemHealth = "partial"
	default:
		report.SystemHealth = "failed"
	}

	o.log.Infof("System initialized: %s (%d agents ready, registered: %v)",
		report.SystemHealth, len(report.ReadyAgents), o.registry.IDs())
	return report
}

// SystemStatus is InitializeSystem plus current quota usage, for the
// status endpoint.
func (o *Orchestrator) SystemStatus() SystemReport {
	report := o.InitializeSystem()
	if o.inv != nil {
		report.Model = o.inv.Model()
	}
	if o.gate != nil {
		report.QuotaStats = o.gate.UsageStats()
	}
	return report
}

// ExecuteComprehensiveAnalysis runs the full four-phase workflow. A
// failed collection aborts the run; every later phase degrades to a
// partial result instead. The returned run is always well-formed, and
// an unexpected panic is caught and reported as status error.
func (o *Orchestrator) ExecuteComprehensiveAnalysis(ctx context.Context, userRequest map[string]any, identity string) (run *WorkflowRun) {
	start := o.now()
	run = &WorkflowRun{
		WorkflowID:   fmt.Sprintf("workflow_%s", uuid.NewString()),
		Identity:     identity,
		StartedAt:    start.UTC(),
		Status:       StatusInProgress,
		AgentOutputs: map[string]any{},
		Synthesis:    map[string]any{},
	}

	defer func() {
		if r := recover(); r != nil {
			o.log.Errorf("Workflow %s panicked: %v", run.WorkflowID, r)
			run.Status = StatusError
			run.Error = fmt.Sprintf("unexpected error: %v", r)
		}
		run.ExecutionSeconds = o.now().Sub(start).Seconds()
		metrics.WorkflowRuns.WithLabelValues(string(run.Status)).Inc()
	}()

	o.log.Infof("Starting comprehensive analysis workflow %s", run.WorkflowID)

	// Phase 1: data collection. The only fatal phase.
	collection := o.runCollection(ctx, run, identity)
	if !collection.Success {
		run.Status = StatusFailed
		run.Error = "Data collection phase failed"
		o.log.Warnf("Workflow %s failed: data collection unsuccessful", run.WorkflowID)
		return run
	}

	// Phase 2: parallel risk and market analysis.
	o.runParallelAnalysis(ctx, run, collection)

	// Phase 3: synthesis across agent outputs.
	o.runSynthesis(ctx, run, userRequest)

	// Phase 4: final recommendations.
	o.runRecommendation(ctx, run, userRequest)

	run.Status = StatusCompleted
	o.log.Infof("Comprehensive analysis %s completed in %.1fs", run.WorkflowID, o.now().Sub(start).Seconds())
	return run
}

func (o *Orchestrator) runCollection(ctx context.Context, run *WorkflowRun, identity string) agents.CollectionResult {
	phaseStart := o.now()
	collection := o.collect.Collect(ctx, identity)
	metrics.ObservePhase(PhaseCollection, o.now().Sub(phaseStart))

	phase := PhaseResult{
		Phase:   PhaseCollection,
		Success: collection.Success,
		Output:  collection.ToMap(),
	}
	if !collection.Success {
		phase.Error = strings.Join(collection.Errors, "; ")
	}
	run.addPhase(phase)
	run.AgentOutputs[agents.AgentCollector] = collection.ToMap()
	return collection
}

// runParallelAnalysis fans out risk and market analysis concurrently.
// Each task is isolated: a panic or failure in one is recorded under its
// own key and never disturbs the sibling. The phase itself succeeds as
// long as results were merged.
func (o *Orchestrator) runParallelAnalysis(ctx context.Context, run *WorkflowRun, collection agents.CollectionResult) {
	phaseStart := o.now()
	data := collection.ToMap()

	type taskResult struct {
		key    string
		output map[string]any
	}

	tasks := []struct {
		key   string
		agent agents.Capability
	}{
		{"risk_analysis", o.risk},
		{"market_analysis", o.market},
	}

	results := make(chan taskResult, len(tasks))
	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func(key string, agent agents.Capability) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					o.log.Errorf("Task %s panicked: %v", key, r)
					results <- taskResult{key, map[string]any{"error": fmt.Sprintf("%v", r)}}
				}
			}()
			results <- taskResult{key, o.runGatedAnalysis(ctx, agent, data)}
		}(task.key, task.agent)
	}
	wg.Wait()
	close(results)

	output := map[string]any{}
	completed := []string{}
	for res := range results {
		output[res.key] = res.output
		completed = append(completed, res.key)
	}

	run.addPhase(PhaseResult{
		Phase:   PhaseParallel,
		Success: len(output) > 0,
		Output:  output,
	})
	if risk, ok := output["risk_analysis"].(map[string]any); ok {
		run.AgentOutputs[agents.AgentRisk] = risk
	}
	if market, ok := output["market_analysis"].(map[string]any); ok {
		run.AgentOutputs[agents.AgentMarket] = market
	}

	metrics.ObservePhase(PhaseParallel, o.now().Sub(phaseStart))
	o.log.Infof("Parallel analysis completed: %v", completed)
}

// runGatedAnalysis reserves quota for one model call and runs the agent.
// A refused reservation becomes an error entry, not a model call.
func (o *Orchestrator) runGatedAnalysis(ctx context.Context, agent agents.Capability, data map[string]any) map[string]any {
	st, ok := o.gate.TryReserve(ctx, 1)
	if !ok {
		o.log.Warnf("Quota refused for %s: daily %d/%d, hourly %d/%d",
			agent.ID(), st.DailyUsed, st.DailyLimit, st.HourlyUsed, st.HourlyLimit)
		return map[string]any{"error": quota.QuotaError(st).Error()}
	}
	return agent.Analyze(ctx, data).Body
}

func (o *Orchestrator) runSynthesis(ctx context.Context, run *WorkflowRun, userRequest map[string]any) {
	phaseStart := o.now()
	focus := synthesisFocus(userRequest)

	phase := PhaseResult{Phase: PhaseSynthesis}

	st, ok := o.gate.TryReserve(ctx, 1)
	if !ok {
		phase.Error = quota.QuotaError(st).Error()
		phase.Output = minimalSynthesis(focus, phase.Error)
	} else {
		res := o.synth.Synthesize(ctx, run.AgentOutputs, focus)
		if fallback, _ := res.Body["fallback_used"].(bool); fallback {
			phase.Error, _ = res.Body["error"].(string)
			phase.Output = minimalSynthesis(focus, phase.Error)
		} else {
			phase.Success = true
			phase.Output = res.Body
		}
	}

	run.addPhase(phase)
	run.Synthesis = phase.Output
	metrics.ObservePhase(PhaseSynthesis, o.now().Sub(phaseStart))
}

// minimalSynthesis is the degraded synthesis object used when the AI
// synthesis call could not run or fell back.
func minimalSynthesis(focus, reason string) map[string]any {
	return map[string]any{
		"synthesis_summary": "AI synthesis failed; per-agent outputs are available individually",
		"synthesis_focus":   focus,
		"fallback":          true,
		"reason":            reason,
	}
}

// synthesisFocus selects the synthesis mode from keywords in the
// requested analysis type.
func synthesisFocus(userRequest map[string]any) string {
	reqType, _ := userRequest["type"].(string)
	reqType = strings.ToLower(reqType)
	switch {
	case strings.Contains(reqType, "risk"):
		return agents.FocusRisk
	case strings.Contains(reqType, "opportunity"), strings.Contains(reqType, "investment"):
		return agents.FocusOpportunity
	case strings.Contains(reqType, "performance"):
		return agents.FocusPerformance
	default:
		return agents.FocusComprehensive
	}
}
