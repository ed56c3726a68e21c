package security

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sentinelstack/sentinel-engine/internal/models"
	"github.com/sentinelstack/sentinel-engine/internal/utils"
)

// CheckIncidents scans for clusters of unresolved high or critical threats
// inside the correlation window and escalates them into a new incident once
// the cluster reaches the configured minimum. Threats already attached to an
// incident never form a second one. Called from the periodic incident check.
func (m *Monitor) CheckIncidents() *models.SecurityIncident {
	now := m.now()

	m.mu.Lock()
	cluster := make([]*models.SecurityThreat, 0)
	for _, threat := range m.threats {
		if threat.IncidentID != "" {
			continue
		}
		if threat.Status == models.ThreatResolved {
			continue
		}
		if threat.Severity != models.SeverityHigh && threat.Severity != models.SeverityCritical {
			continue
		}
		if !utils.WithinWindow(threat.Timestamp, now, m.cfg.IncidentWindow) {
			continue
		}
		cluster = append(cluster, threat)
	}
	if len(cluster) < m.cfg.IncidentMinThreats {
		m.mu.Unlock()
		return nil
	}

	incident := m.buildIncidentLocked(cluster, now)
	m.incidents[incident.ID] = incident
	for _, threat := range cluster {
		threat.IncidentID = incident.ID
	}
	clone := cloneIncident(incident)
	m.mu.Unlock()

	m.logger.Warn("security incident opened",
		slog.String("incident_id", incident.ID),
		slog.String("severity", string(incident.Severity)),
		slog.Int("threats", len(cluster)))

	if m.alerter != nil {
		m.alerter.SendIncidentAlert(clone)
	}
	return clone
}

func (m *Monitor) buildIncidentLocked(cluster []*models.SecurityThreat, now time.Time) *models.SecurityIncident {
	severity := models.SeverityHigh
	start := cluster[0].Timestamp
	automated := make([]string, 0)
	types := make(map[models.ThreatType]struct{})
	threatIDs := make([]string, 0, len(cluster))

	for _, threat := range cluster {
		threatIDs = append(threatIDs, threat.ID)
		if models.SeverityRank(threat.Severity) > models.SeverityRank(severity) {
			severity = threat.Severity
		}
		if threat.Timestamp.Before(start) {
			start = threat.Timestamp
		}
		if threat.AutoMitigated {
			automated = append(automated, fmt.Sprintf("auto-mitigated %s from %s", threat.Type, threat.Origin))
		}
		types[threat.Type] = struct{}{}
	}

	incident := &models.SecurityIncident{
		ID:          uuid.NewString(),
		Title:       fmt.Sprintf("Coordinated activity: %d related threats", len(cluster)),
		Description: fmt.Sprintf("%d high-severity threats within %s", len(cluster), m.cfg.IncidentWindow),
		Severity:    severity,
		StartTime:   start,
		Status:      models.IncidentOpen,
		ThreatIDs:   threatIDs,
		Timeline: []models.TimelineEntry{{
			Time:   now,
			Action: "incident-opened",
			Detail: fmt.Sprintf("correlated %d threats", len(cluster)),
		}},
		Response: models.IncidentResponse{
			AutomatedActions: automated,
			ManualPending:    []string{"review correlated threats", "confirm containment"},
			Recommendations:  recommendationsFor(types),
		},
		Impact: fmt.Sprintf("%d origins involved", countOrigins(cluster)),
	}
	return incident
}

// AppendIncidentTimeline records a follow-up action on an open incident.
func (m *Monitor) AppendIncidentTimeline(incidentID, action, detail string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	incident, ok := m.incidents[incidentID]
	if !ok {
		return false
	}
	incident.Timeline = append(incident.Timeline, models.TimelineEntry{
		Time:   m.now(),
		Action: action,
		Detail: detail,
	})
	return true
}

// ResolveIncident closes an incident and stamps its end time.
func (m *Monitor) ResolveIncident(incidentID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	incident, ok := m.incidents[incidentID]
	if !ok {
		return false
	}
	end := m.now()
	incident.Status = models.IncidentResolved
	incident.EndTime = &end
	incident.Timeline = append(incident.Timeline, models.TimelineEntry{
		Time:   end,
		Action: "incident-resolved",
	})
	return true
}

// Incidents returns copies of all incidents.
func (m *Monitor) Incidents() []*models.SecurityIncident {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.SecurityIncident, 0, len(m.incidents))
	for _, incident := range m.incidents {
		out = append(out, cloneIncident(incident))
	}
	return out
}

func cloneIncident(incident *models.SecurityIncident) *models.SecurityIncident {
	clone := *incident
	clone.ThreatIDs = append([]string(nil), incident.ThreatIDs...)
	clone.Timeline = append([]models.TimelineEntry(nil), incident.Timeline...)
	return &clone
}

func recommendationsFor(types map[models.ThreatType]struct{}) []string {
	recs := make([]string, 0, 3)
	if _, ok := types[models.ThreatBruteForce]; ok {
		recs = append(recs, "Enforce lockout policy and rotate credentials for targeted identities")
	}
	if _, ok := types[models.ThreatInjection]; ok {
		recs = append(recs, "Audit input validation on the targeted endpoints")
	}
	if _, ok := types[models.ThreatXSS]; ok {
		recs = append(recs, "Review output encoding and content security policy")
	}
	if len(recs) == 0 {
		recs = append(recs, "Review the correlated threats and confirm origin blocks")
	}
	return recs
}

func countOrigins(cluster []*models.SecurityThreat) int {
	set := make(map[string]struct{}, len(cluster))
	for _, threat := range cluster {
		if threat.Origin != "" {
			set[threat.Origin] = struct{}{}
		}
	}
	return len(set)
}
