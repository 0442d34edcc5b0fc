// Package invoker is the normalizing layer between capability agents and
// the AI model. It renders a bounded prompt, makes exactly one model call,
// and always hands back a well-formed result: parse failures wrap the raw
// text, invocation failures produce a fallback body. Quota enforcement is
// the caller's job.
package invoker

import (
	"context"
	"time"

	"finsight/internal/adapters/ai"
	"finsight/internal/metrics"
	"finsight/pkg/logger"
)

// Output formats accepted on a Request.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Request describes one analysis invocation. Immutable once built.
type Request struct {
	AgentID      string
	AnalysisType string
	Payload      map[string]any
	Instructions string
	Format       string
	System       string
}

// Metadata accompanies every result, including fallbacks.
type Metadata struct {
	AgentID           string    `json:"agent_id"`
	AnalysisType      string    `json:"analysis_type"`
	Model             string    `json:"model"`
	Timestamp         time.Time `json:"timestamp"`
	Confidence        float64   `json:"confidence"`
	DataQualityImpact string    `json:"data_quality_impact"`
	AnalysisDepth     string    `json:"analysis_depth"`
}

// Result is the normalized outcome of an invocation. Body is never nil.
type Result struct {
	Body map[string]any `json:"body"`
	Meta Metadata       `json:"metadata"`
}

// Invoker turns analysis requests into normalized results.
type Invoker struct {
	client ai.Client
	log    *logger.Logger
	now    func() time.Time
}

// New creates an invoker on top of the given model client.
func New(client ai.Client) *Invoker {
	return &Invoker{
		client: client,
		log:    logger.Get().With("component", "analysis_invoker"),
		now:    time.Now,
	}
}

// Invoke makes one model call and normalizes the response. It never
// returns an error to the caller: invocation failures (including a
// context deadline) become a fallback body with fallback_used set, and
// unparseable responses wrap the raw text. Retries are the caller's
// concern; this layer attempts exactly once.
func (inv *Invoker) Invoke(ctx context.Context, req Request) Result {
	format := req.Format
	if format == "" {
		format = FormatJSON
	}
	prompt := buildAnalysisPrompt(req.AnalysisType, req.Payload, req.Instructions, format)
	return inv.InvokeWithPrompt(ctx, req, prompt)
}

// InvokeWithPrompt is Invoke with a caller-supplied user prompt instead
// of the standard analysis prompt. Used for synthesis, whose prompt
// embeds other agents' outputs rather than a data summary.
func (inv *Invoker) InvokeWithPrompt(ctx context.Context, req Request, prompt string) Result {
	format := req.Format
	if format == "" {
		format = FormatJSON
	}

	inv.log.Infof("Starting AI analysis: %s for %s", req.AnalysisType, req.AgentID)

	text, err := inv.client.Invoke(ctx, req.System, prompt)
	if err != nil {
		inv.log.Errorf("AI analysis failed for %s: %v", req.AgentID, err)
		metrics.ModelInvocations.WithLabelValues(req.AgentID, req.AnalysisType, metrics.OutcomeFallback).Inc()
		return inv.finish(req, map[string]any{
			"error":         err.Error(),
			"analysis_type": req.AnalysisType,
			"fallback_used": true,
			"timestamp":     inv.now().UTC().Format(time.RFC3339),
		})
	}

	body := normalizeResponse(text, format)
	outcome := metrics.OutcomeOK
	if parsed, ok := body["parsed_as_json"].(bool); ok && !parsed {
		outcome = metrics.OutcomeParseFallback
	}
	metrics.ModelInvocations.WithLabelValues(req.AgentID, req.AnalysisType, outcome).Inc()

	inv.log.Infof("AI analysis completed: %s", req.AnalysisType)
	return inv.finish(req, body)
}

// Model returns the underlying model identifier.
func (inv *Invoker) Model() string {
	return inv.client.Model()
}

func (inv *Invoker) finish(req Request, body map[string]any) Result {
	confidence, quality, depth := confidenceIndicators(body)
	return Result{
		Body: body,
		Meta: Metadata{
			AgentID:           req.AgentID,
			AnalysisType:      req.AnalysisType,
			Model:             inv.client.Model(),
			Timestamp:         inv.now().UTC(),
			Confidence:        confidence,
			DataQualityImpact: quality,
			AnalysisDepth:     depth,
		},
	}
}
