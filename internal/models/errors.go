package models

import "time"

// Classification buckets an error by how it was produced.
type Classification string

const (
	ClassRuntime      Classification = "runtime"
	ClassAPI          Classification = "api"
	ClassNetwork      Classification = "network"
	ClassRender       Classification = "component-render"
	ClassSecurity     Classification = "security"
	ClassPerformance  Classification = "performance"
	ClassBusinessRule Classification = "business-rule"
)

// Severity captures impact levels.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityRank orders severities for comparisons; higher is worse.
func SeverityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// ErrorContext carries producer-side details attached to an occurrence.
type ErrorContext struct {
	ProducerID  string    `json:"producer_id,omitempty"`
	SessionID   string    `json:"session_id,omitempty"`
	Origin      string    `json:"origin,omitempty"`
	Resource    string    `json:"resource,omitempty"`
	Timestamp   time.Time `json:"timestamp,omitempty"`
	Environment string    `json:"environment,omitempty"`
	Deployment  string    `json:"deployment,omitempty"`
}

// ErrorRecord is the deduplicated aggregate for one fingerprint.
// Repeat occurrences merge into the existing record rather than creating
// a new one; records are never removed during the process lifetime.
type ErrorRecord struct {
	ID             string         `json:"id"`
	Message        string         `json:"message"`
	StackTrace     string         `json:"stack_trace,omitempty"`
	Classification Classification `json:"classification"`
	Severity       Severity       `json:"severity"`
	Category       string         `json:"category"`
	Context        ErrorContext   `json:"context"`
	Fingerprint    string         `json:"fingerprint"`
	Count          int            `json:"count"`
	FirstSeen      time.Time      `json:"first_seen"`
	LastSeen       time.Time      `json:"last_seen"`
	Resolved       bool           `json:"resolved"`
	Tags           []string       `json:"tags,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}
