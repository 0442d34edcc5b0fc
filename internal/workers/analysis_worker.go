package workers

import (
	"context"

	"finsight/internal/adapters/config"
	"finsight/internal/orchestrator"
	"finsight/internal/quota"
	"finsight/pkg/errors"
)

// AnalysisRunner is the orchestrator surface the periodic worker drives.
type AnalysisRunner interface {
	ExecuteComprehensiveAnalysis(ctx context.Context, userRequest map[string]any, identity string) *orchestrator.WorkflowRun
}

// QuotaChecker lets the worker skip a cycle when the budget is spent.
type QuotaChecker interface {
	CheckAvailable(requested int) quota.Status
}

// AnalysisWorker periodically runs a comprehensive analysis for each
// configured identity. When the deployment is on-demand only the worker
// registers disabled and never runs.
type AnalysisWorker struct {
	*BaseWorker
	runner     AnalysisRunner
	gate       QuotaChecker
	identities []string
}

// NewAnalysisWorker creates the periodic analysis worker from scheduler
// config. OnDemandOnly forces the worker off regardless of Enabled.
func NewAnalysisWorker(runner AnalysisRunner, gate QuotaChecker, cfg config.SchedulerConfig) *AnalysisWorker {
	enabled := cfg.Enabled && !cfg.OnDemandOnly
	return &AnalysisWorker{
		BaseWorker: NewBaseWorker("periodic_analysis", cfg.AnalysisInterval, enabled),
		runner:     runner,
		gate:       gate,
		identities: cfg.Identities,
	}
}

// Run executes one comprehensive analysis per identity. The whole cycle
// is skipped when the quota cannot cover even one identity's calls; a
// mid-cycle exhaustion stops the remaining identities.
func (w *AnalysisWorker) Run(ctx context.Context) error {
	if len(w.identities) == 0 {
		w.Log().Debug("No identities configured, skipping analysis cycle")
		w.RecordRun(nil)
		return nil
	}

	// A comprehensive run makes up to 4 model calls.
	const callsPerRun = 4

	var firstErr error
	for _, identity := range w.identities {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if st := w.gate.CheckAvailable(callsPerRun); !st.Available {
			w.Log().Warnf("Quota too low for scheduled analysis (daily %d/%d, hourly %d/%d), stopping cycle",
				st.DailyUsed, st.DailyLimit, st.HourlyUsed, st.HourlyLimit)
			break
		}

		run := w.runner.ExecuteComprehensiveAnalysis(ctx, map[string]any{"type": "scheduled"}, identity)
		if run.Status != orchestrator.StatusCompleted {
			w.Log().Warnf("Scheduled analysis for %s finished with status %s: %s", identity, run.Status, run.Error)
			if firstErr == nil && run.Status == orchestrator.StatusError {
				firstErr = errors.Wrapf(errors.ErrInternal, "scheduled analysis for %s: %s", identity, run.Error)
			}
		}
	}

	w.RecordRun(firstErr)
	return firstErr
}
