package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Invocation outcomes for the model_invocations counter.
const (
	OutcomeOK            = "ok"
	OutcomeFallback      = "fallback"
	OutcomeParseFallback = "parse_fallback"
)

var (
	// ModelInvocations counts AI model calls by agent, analysis type and outcome.
	ModelInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finsight_model_invocations_total",
		Help: "Total AI model invocations",
	}, []string{"agent", "analysis_type", "outcome"})

	// QuotaRejections counts requests rejected by the quota gate.
	QuotaRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finsight_quota_rejections_total",
		Help: "Requests rejected because the hourly or daily AI quota was spent",
	})

	// QuotaUsage reports current usage of the active windows.
	QuotaUsage = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "finsight_quota_usage",
		Help: "AI requests used in the current quota window",
	}, []string{"scope"})

	// PhaseDuration tracks orchestrator phase wall-clock time.
	PhaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "finsight_phase_duration_seconds",
		Help:    "Duration of workflow phases",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"phase"})

	// WorkflowRuns counts completed workflow runs by final status.
	WorkflowRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finsight_workflow_runs_total",
		Help: "Workflow runs by final status",
	}, []string{"status"})
)

// ObservePhase records a phase duration sample.
func ObservePhase(phase string, d time.Duration) {
	PhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}
