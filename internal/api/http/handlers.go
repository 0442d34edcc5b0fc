package http

import (
	"encoding/json"
	"net/http"

	"finsight/pkg/logger"
)

type handlers struct {
	workflows       Workflows
	quota           QuotaReader
	defaultIdentity string
	log             *logger.Logger
}

type comprehensiveRequest struct {
	Identity string         `json:"identity"`
	Request  map[string]any `json:"request"`
}

type targetedRequest struct {
	Identity     string         `json:"identity"`
	AnalysisType string         `json:"analysis_type"`
	Parameters   map[string]any `json:"parameters"`
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// comprehensiveAnalysis runs the full workflow. Analysis failures are
// carried in the run's status field, not as HTTP errors; only malformed
// requests get a 4xx.
func (h *handlers) comprehensiveAnalysis(w http.ResponseWriter, r *http.Request) {
	var req comprehensiveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	identity := req.Identity
	if identity == "" {
		identity = h.defaultIdentity
	}

	run := h.workflows.ExecuteComprehensiveAnalysis(r.Context(), req.Request, identity)
	writeJSON(w, http.StatusOK, run)
}

func (h *handlers) targetedAnalysis(w http.ResponseWriter, r *http.Request) {
	var req targetedRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AnalysisType == "" {
		writeError(w, http.StatusBadRequest, "analysis_type is required")
		return
	}

	identity := req.Identity
	if identity == "" {
		identity = h.defaultIdentity
	}

	result := h.workflows.ExecuteTargetedAnalysis(r.Context(), req.AnalysisType, req.Parameters, identity)
	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) systemStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.workflows.SystemStatus())
}

func (h *handlers) quotaUsage(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.quota.UsageStats())
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Get().Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
