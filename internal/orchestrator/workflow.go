package orchestrator

import "time"

// Status is the lifecycle state of a workflow run. Failed marks a known,
// handled business failure; Error marks an unexpected panic caught at the
// top level. Only Completed runs carry final recommendations.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusError      Status = "error"
)

// Phase names in execution order.
const (
	PhaseCollection     = "data_collection"
	PhaseParallel       = "parallel_analysis"
	PhaseSynthesis      = "synthesis"
	PhaseRecommendation = "recommendation"
)

// PhaseResult records the outcome of one workflow phase.
type PhaseResult struct {
	Phase   string         `json:"phase"`
	Success bool           `json:"success"`
	Output  map[string]any `json:"output"`
	Error   string         `json:"error,omitempty"`
}

// WorkflowRun is the full record of one orchestrator invocation. It is
// built fresh per call and returned to the caller; nothing persists it.
type WorkflowRun struct {
	WorkflowID       string           `json:"workflow_id"`
	Identity         string           `json:"identity"`
	StartedAt        time.Time        `json:"started_at"`
	Status           Status           `json:"status"`
	Phases           []PhaseResult    `json:"phases"`
	AgentOutputs     map[string]any   `json:"agent_outputs"`
	Synthesis        map[string]any   `json:"synthesis"`
	Recommendations  []Recommendation `json:"recommendations"`
	ExecutionSeconds float64          `json:"execution_time_seconds"`
	Error            string           `json:"error,omitempty"`
}

// Phase returns the named phase result, if that phase ran.
func (w *WorkflowRun) Phase(name string) (PhaseResult, bool) {
	for _, p := range w.Phases {
		if p.Phase == name {
			return p, true
		}
	}
	return PhaseResult{}, false
}

func (w *WorkflowRun) addPhase(p PhaseResult) {
	w.Phases = append(w.Phases, p)
}

// Recommendation is the fixed output shape every raw model suggestion is
// normalized into.
type Recommendation struct {
	ID                  string   `json:"id"`
	Category            string   `json:"category"`
	Recommendation      string   `json:"recommendation"`
	Priority            string   `json:"priority"`
	Timeframe           string   `json:"timeframe"`
	ExpectedImpact      string   `json:"expected_impact"`
	ImplementationSteps []string `json:"implementation_steps"`
	Confidence          float64  `json:"confidence"`
}

// TargetedResult is the outcome of a single targeted analysis pipeline.
type TargetedResult struct {
	AnalysisType string         `json:"analysis_type"`
	Status       string         `json:"status"`
	Results      map[string]any `json:"results"`
	AgentsUsed   []string       `json:"agents_used"`
	Timestamp    time.Time      `json:"timestamp"`
	Error        string         `json:"error,omitempty"`
}

// SystemReport summarizes agent readiness at startup or on demand.
type SystemReport struct {
	ReadyAgents  []string       `json:"ready_agents"`
	SystemHealth string         `json:"system_health"`
	Errors       []string       `json:"errors"`
	Model        string         `json:"model,omitempty"`
	QuotaStats   map[string]any `json:"quota_stats,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}
