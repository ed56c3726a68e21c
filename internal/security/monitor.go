package security

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sentinelstack/sentinel-engine/internal/metrics"
	"github.com/sentinelstack/sentinel-engine/internal/models"
	"github.com/sentinelstack/sentinel-engine/internal/utils"
)

// Alerter delivers out-of-band notifications. Implementations must not block
// the caller on network I/O.
type Alerter interface {
	SendSecurityAlert(threat *models.SecurityThreat)
	SendIncidentAlert(incident *models.SecurityIncident)
}

// Reporter is the threat submission surface the detectors depend on.
type Reporter interface {
	Report(t NewThreat) string
	NoteFailedAuth()
}

// NewThreat carries the fields a detector knows about a detection.
type NewThreat struct {
	Type        models.ThreatType
	Severity    models.Severity
	Origin      string
	Target      string
	Description string
	Metadata    map[string]any
}

// MonitorConfig bundles the thresholds the monitor and its periodic checks use.
type MonitorConfig struct {
	IncidentWindow     time.Duration
	IncidentMinThreats int
	ScoreWindow        time.Duration
}

// Monitor owns the threat log: every detection is recorded here, mitigation
// is attempted, and high-severity threats are alerted immediately. It also
// correlates threats into incidents and derives the security metrics
// snapshot. All methods are safe for concurrent use.
type Monitor struct {
	mu         sync.Mutex
	threats    []*models.SecurityThreat
	byID       map[string]*models.SecurityThreat
	incidents  map[string]*models.SecurityIncident
	byType     map[models.ThreatType]int
	bySeverity map[models.Severity]int
	byOrigin   map[string]int
	blocked    int
	failedAuth int

	cfg       MonitorConfig
	mitigator *Mitigator
	alerter   Alerter
	logger    *slog.Logger
	now       func() time.Time
}

// NewMonitor constructs a Monitor. mitigator and alerter may be nil; zero
// config fields fall back to the engine defaults.
func NewMonitor(logger *slog.Logger, cfg MonitorConfig, mitigator *Mitigator, alerter Alerter) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.IncidentWindow <= 0 {
		cfg.IncidentWindow = 30 * time.Minute
	}
	if cfg.IncidentMinThreats <= 0 {
		cfg.IncidentMinThreats = 3
	}
	if cfg.ScoreWindow <= 0 {
		cfg.ScoreWindow = time.Hour
	}
	return &Monitor{
		byID:       make(map[string]*models.SecurityThreat),
		incidents:  make(map[string]*models.SecurityIncident),
		byType:     make(map[models.ThreatType]int),
		bySeverity: make(map[models.Severity]int),
		byOrigin:   make(map[string]int),
		cfg:        cfg,
		mitigator:  mitigator,
		alerter:    alerter,
		logger:     logger,
		now:        time.Now,
	}
}

// Report records a detection, attempts auto-mitigation, and alerts
// immediately when severity is high or critical. It returns the threat id
// and never fails; internal faults are logged only.
func (m *Monitor) Report(t NewThreat) string {
	threat := &models.SecurityThreat{
		ID:          uuid.NewString(),
		Type:        t.Type,
		Severity:    t.Severity,
		Origin:      t.Origin,
		Target:      t.Target,
		Description: t.Description,
		Timestamp:   m.now(),
		Metadata:    t.Metadata,
		Status:      models.ThreatDetected,
	}

	mitigated := false
	if m.mitigator != nil {
		mitigated = m.mitigator.Mitigate(threat)
	}
	if mitigated {
		threat.AutoMitigated = true
		threat.Status = models.ThreatMitigated
	}

	m.mu.Lock()
	m.threats = append(m.threats, threat)
	m.byID[threat.ID] = threat
	m.byType[threat.Type]++
	m.bySeverity[threat.Severity]++
	if threat.Origin != "" {
		m.byOrigin[threat.Origin]++
	}
	if mitigated {
		m.blocked++
	}
	m.mu.Unlock()

	metrics.ObserveThreat(string(threat.Type), string(threat.Severity))
	if mitigated {
		metrics.ObserveBlocked()
	}

	m.logger.Warn("security threat detected",
		slog.String("threat_id", threat.ID),
		slog.String("type", string(threat.Type)),
		slog.String("severity", string(threat.Severity)),
		slog.String("origin", threat.Origin),
		slog.Bool("auto_mitigated", mitigated))

	if threat.Severity == models.SeverityHigh || threat.Severity == models.SeverityCritical {
		if m.alerter != nil {
			clone := *threat
			m.alerter.SendSecurityAlert(&clone)
		}
	}

	return threat.ID
}

// NoteFailedAuth counts one failed authentication toward the metrics snapshot.
func (m *Monitor) NoteFailedAuth() {
	m.mu.Lock()
	m.failedAuth++
	m.mu.Unlock()
}

// Threat returns a copy of the threat with the given id, or nil.
func (m *Monitor) Threat(id string) *models.SecurityThreat {
	m.mu.Lock()
	defer m.mu.Unlock()
	threat, ok := m.byID[id]
	if !ok {
		return nil
	}
	clone := *threat
	return &clone
}

// ResolveThreat advances a threat to resolved.
func (m *Monitor) ResolveThreat(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	threat, ok := m.byID[id]
	if !ok {
		return false
	}
	threat.Status = models.ThreatResolved
	return true
}

// Threats returns copies of every recorded threat.
func (m *Monitor) Threats() []*models.SecurityThreat {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.SecurityThreat, 0, len(m.threats))
	for _, threat := range m.threats {
		clone := *threat
		out = append(out, &clone)
	}
	return out
}

// Metrics recomputes the point-in-time security rollup.
func (m *Monitor) Metrics() models.SecurityMetrics {
	now := m.now()

	m.mu.Lock()
	snapshot := models.SecurityMetrics{
		TotalThreats:   len(m.threats),
		ThreatsBlocked: m.blocked,
		FailedAuth:     m.failedAuth,
		ByType:         make(map[models.ThreatType]int, len(m.byType)),
		BySeverity:     make(map[models.Severity]int, len(m.bySeverity)),
		GeneratedAt:    now,
	}
	for k, v := range m.byType {
		snapshot.ByType[k] = v
	}
	for k, v := range m.bySeverity {
		snapshot.BySeverity[k] = v
	}
	origins := make([]models.OriginCount, 0, len(m.byOrigin))
	for origin, count := range m.byOrigin {
		origins = append(origins, models.OriginCount{Origin: origin, Count: count})
	}
	recent := m.recentThreatsLocked(now, m.cfg.ScoreWindow)
	m.mu.Unlock()

	sort.Slice(origins, func(i, j int) bool {
		if origins[i].Count != origins[j].Count {
			return origins[i].Count > origins[j].Count
		}
		return origins[i].Origin < origins[j].Origin
	})
	if len(origins) > 5 {
		origins = origins[:5]
	}
	snapshot.TopOrigins = origins
	snapshot.SecurityScore = Score(recent)

	metrics.SetSecurityScore(snapshot.SecurityScore)
	return snapshot
}

// recentThreatsLocked copies threats within the window ending at now.
// Caller must hold m.mu.
func (m *Monitor) recentThreatsLocked(now time.Time, window time.Duration) []*models.SecurityThreat {
	out := make([]*models.SecurityThreat, 0)
	for _, threat := range m.threats {
		if utils.WithinWindow(threat.Timestamp, now, window) {
			clone := *threat
			out = append(out, &clone)
		}
	}
	return out
}

// SetNow overrides the clock, for tests.
func (m *Monitor) SetNow(now func() time.Time) {
	m.now = now
}
