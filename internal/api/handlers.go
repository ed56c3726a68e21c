package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sentinelstack/sentinel-engine/internal/models"
	"github.com/sentinelstack/sentinel-engine/internal/security"
	"github.com/sentinelstack/sentinel-engine/internal/tracker"
	"github.com/sentinelstack/sentinel-engine/internal/utils"
)

// Handlers adapts HTTP requests onto the engine's ingestion surface.
type Handlers struct {
	tracker  *tracker.Tracker
	monitor  *security.Monitor
	detector *security.Detector
	auth     *security.AuthTracker
	logger   *slog.Logger
}

// NewHandlers constructs the HTTP handler set.
func NewHandlers(logger *slog.Logger, t *tracker.Tracker, m *security.Monitor, d *security.Detector, a *security.AuthTracker) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{tracker: t, monitor: m, detector: d, auth: a, logger: logger}
}

type contextDTO struct {
	ProducerID  string `json:"producer_id"`
	SessionID   string `json:"session_id"`
	Origin      string `json:"origin"`
	Resource    string `json:"resource"`
	Timestamp   string `json:"timestamp"`
	Environment string `json:"environment"`
	Deployment  string `json:"deployment"`
}

func (dto contextDTO) toModel() models.ErrorContext {
	ctx := models.ErrorContext{
		ProducerID:  dto.ProducerID,
		SessionID:   dto.SessionID,
		Origin:      dto.Origin,
		Resource:    dto.Resource,
		Environment: dto.Environment,
		Deployment:  dto.Deployment,
	}
	if ts, err := utils.ParseRFC3339(dto.Timestamp); err == nil {
		ctx.Timestamp = ts
	}
	return ctx
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// RecordError ingests a generic error occurrence.
func (h *Handlers) RecordError(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message        string         `json:"message"`
		Classification string         `json:"classification"`
		Severity       string         `json:"severity"`
		Category       string         `json:"category"`
		Context        contextDTO     `json:"context"`
		Metadata       map[string]any `json:"metadata"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	id := h.tracker.RecordError(
		body.Message,
		models.Classification(body.Classification),
		models.Severity(body.Severity),
		body.Category,
		body.Context.toModel(),
		body.Metadata,
	)
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

// RecordTileError ingests a dashboard tile failure.
func (h *Handlers) RecordTileError(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ResourceID string     `json:"resource_id"`
		Message    string     `json:"message"`
		StackTrace string     `json:"stack_trace"`
		Context    contextDTO `json:"context"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.ResourceID == "" || body.Message == "" {
		writeError(w, http.StatusBadRequest, "resource_id and message are required")
		return
	}
	id := h.tracker.RecordTileError(body.ResourceID, body.Message, body.StackTrace, body.Context.toModel())
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

// RecordAPIError ingests a failed upstream call.
func (h *Handlers) RecordAPIError(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Endpoint   string     `json:"endpoint"`
		StatusCode int        `json:"status_code"`
		Message    string     `json:"message"`
		Context    contextDTO `json:"context"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "endpoint is required")
		return
	}
	id := h.tracker.RecordAPIError(body.Endpoint, body.StatusCode, body.Message, body.Context.toModel())
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

// RecordSecurityError ingests an always-critical security failure.
func (h *Handlers) RecordSecurityError(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message string     `json:"message"`
		Context contextDTO `json:"context"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	id := h.tracker.RecordSecurityError(body.Message, body.Context.toModel())
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

// RecordPerformanceError ingests a performance budget violation.
func (h *Handlers) RecordPerformanceError(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Metric    string     `json:"metric"`
		Observed  float64    `json:"observed"`
		Threshold float64    `json:"threshold"`
		Context   contextDTO `json:"context"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.Metric == "" {
		writeError(w, http.StatusBadRequest, "metric is required")
		return
	}
	id := h.tracker.RecordPerformanceError(body.Metric, body.Observed, body.Threshold, body.Context.toModel())
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

// ResolveError marks a record resolved.
func (h *Handlers) ResolveError(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !h.tracker.Resolve(id) {
		writeError(w, http.StatusNotFound, "unknown record id")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "resolved"})
}

// ListErrors returns every aggregated record.
func (h *Handlers) ListErrors(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"errors": h.tracker.Errors()})
}

// ReportThreat records an externally detected threat.
func (h *Handlers) ReportThreat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Type        string         `json:"type"`
		Severity    string         `json:"severity"`
		Origin      string         `json:"origin"`
		Target      string         `json:"target"`
		Description string         `json:"description"`
		Metadata    map[string]any `json:"metadata"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.Type == "" {
		writeError(w, http.StatusBadRequest, "type is required")
		return
	}
	id := h.monitor.Report(security.NewThreat{
		Type:        models.ThreatType(body.Type),
		Severity:    models.Severity(body.Severity),
		Origin:      body.Origin,
		Target:      body.Target,
		Description: body.Description,
		Metadata:    body.Metadata,
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

// InspectRequest runs the rule checks against a request descriptor.
func (h *Handlers) InspectRequest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Origin        string `json:"origin"`
		Method        string `json:"method"`
		Target        string `json:"target"`
		Payload       string `json:"payload"`
		Authenticated bool   `json:"authenticated"`
		SessionID     string `json:"session_id"`
	}
	if !decode(w, r, &body) {
		return
	}
	raised := h.detector.Inspect(security.RequestDescriptor{
		Origin:        body.Origin,
		Method:        body.Method,
		Target:        body.Target,
		Payload:       body.Payload,
		Authenticated: body.Authenticated,
		SessionID:     body.SessionID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"threat_ids": raised})
}

// RecordAuthAttempt notes an authentication attempt outcome.
func (h *Handlers) RecordAuthAttempt(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Origin   string `json:"origin"`
		Identity string `json:"identity"`
		Success  bool   `json:"success"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.Origin == "" || body.Identity == "" {
		writeError(w, http.StatusBadRequest, "origin and identity are required")
		return
	}
	h.auth.RecordAttempt(body.Origin, body.Identity, body.Success)
	w.WriteHeader(http.StatusAccepted)
}

// SecurityMetrics returns the recomputed rollup.
func (h *Handlers) SecurityMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.monitor.Metrics())
}

// ListIncidents returns all incidents.
func (h *Handlers) ListIncidents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"incidents": h.monitor.Incidents()})
}

// ListPatterns returns all observed patterns.
func (h *Handlers) ListPatterns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"patterns": h.tracker.Patterns()})
}

func decode(w http.ResponseWriter, r *http.Request, out any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
