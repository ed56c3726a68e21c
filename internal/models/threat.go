package models

import "time"

// ThreatType enumerates the categories of security-relevant detections.
type ThreatType string

const (
	ThreatBruteForce         ThreatType = "brute-force"
	ThreatInjection          ThreatType = "injection"
	ThreatXSS                ThreatType = "cross-site-scripting"
	ThreatCSRF               ThreatType = "cross-site-request-forgery"
	ThreatDataExfiltration   ThreatType = "data-exfiltration"
	ThreatUnauthorizedAccess ThreatType = "unauthorized-access"
	ThreatSuspiciousActivity ThreatType = "suspicious-activity"
)

// ThreatStatus tracks a threat through its lifecycle.
type ThreatStatus string

const (
	ThreatDetected      ThreatStatus = "detected"
	ThreatInvestigating ThreatStatus = "investigating"
	ThreatMitigated     ThreatStatus = "mitigated"
	ThreatResolved      ThreatStatus = "resolved"
)

// SecurityThreat is a single detection. Threats are not deduplicated;
// every positive check produces its own record.
type SecurityThreat struct {
	ID            string         `json:"id"`
	Type          ThreatType     `json:"type"`
	Severity      Severity       `json:"severity"`
	Origin        string         `json:"origin"`
	Target        string         `json:"target"`
	Description   string         `json:"description"`
	Timestamp     time.Time      `json:"timestamp"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Status        ThreatStatus   `json:"status"`
	AutoMitigated bool           `json:"auto_mitigated"`
	IncidentID    string         `json:"incident_id,omitempty"`
}

// IncidentStatus tracks an incident through containment.
type IncidentStatus string

const (
	IncidentOpen          IncidentStatus = "open"
	IncidentInvestigating IncidentStatus = "investigating"
	IncidentContained     IncidentStatus = "contained"
	IncidentResolved      IncidentStatus = "resolved"
)

// TimelineEntry records one action taken during an incident.
type TimelineEntry struct {
	Time   time.Time `json:"time"`
	Action string    `json:"action"`
	Detail string    `json:"detail,omitempty"`
}

// IncidentResponse summarises what has been done and what remains.
type IncidentResponse struct {
	AutomatedActions []string `json:"automated_actions,omitempty"`
	ManualPending    []string `json:"manual_pending,omitempty"`
	Recommendations  []string `json:"recommendations,omitempty"`
}

// SecurityIncident correlates a cluster of related high-severity threats.
type SecurityIncident struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Severity    Severity         `json:"severity"`
	StartTime   time.Time        `json:"start_time"`
	EndTime     *time.Time       `json:"end_time,omitempty"`
	Status      IncidentStatus   `json:"status"`
	ThreatIDs   []string         `json:"threat_ids"`
	Timeline    []TimelineEntry  `json:"timeline"`
	Response    IncidentResponse `json:"response"`
	Impact      string           `json:"impact,omitempty"`
}

// OriginCount pairs an origin with how many threats it produced.
type OriginCount struct {
	Origin string `json:"origin"`
	Count  int    `json:"count"`
}

// SecurityMetrics is a point-in-time rollup. It is recomputed from the
// threat log on each refresh tick, never mutated incrementally.
type SecurityMetrics struct {
	TotalThreats   int                `json:"total_threats"`
	ThreatsBlocked int                `json:"threats_blocked"`
	FailedAuth     int                `json:"failed_auth"`
	ByType         map[ThreatType]int `json:"by_type"`
	BySeverity     map[Severity]int   `json:"by_severity"`
	TopOrigins     []OriginCount      `json:"top_origins"`
	SecurityScore  float64            `json:"security_score"`
	GeneratedAt    time.Time          `json:"generated_at"`
}
