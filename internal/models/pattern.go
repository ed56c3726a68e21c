package models

import "time"

// ErrorPattern groups structurally identical messages under one template.
// Templates are derived deterministically, so the same message always maps
// to the same pattern.
type ErrorPattern struct {
	Fingerprint string         `json:"fingerprint"`
	Template    string         `json:"template"`
	Count       int            `json:"count"`
	Examples    []*ErrorRecord `json:"examples,omitempty"`
	Suggestion  string         `json:"suggestion,omitempty"`
	Automated   bool           `json:"automated"`
	FirstSeen   time.Time      `json:"first_seen"`
	LastSeen    time.Time      `json:"last_seen"`
}
