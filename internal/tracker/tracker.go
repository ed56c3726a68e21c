package tracker

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/sentinelstack/sentinel-engine/internal/dispatch"
	"github.com/sentinelstack/sentinel-engine/internal/metrics"
	"github.com/sentinelstack/sentinel-engine/internal/models"
	"github.com/sentinelstack/sentinel-engine/internal/patterns"
	"github.com/sentinelstack/sentinel-engine/internal/recovery"
	"github.com/sentinelstack/sentinel-engine/internal/security"
	"github.com/sentinelstack/sentinel-engine/internal/store"
	"github.com/sentinelstack/sentinel-engine/internal/utils"
)

// Tracker is the ingestion facade producers call. Every entry point is safe
// for concurrent use, never blocks on network I/O, and never lets an
// internal fault escape to the caller.
type Tracker struct {
	logger     *slog.Logger
	events     *store.EventStore
	patterns   *patterns.Detector
	recovery   *recovery.Engine
	dispatcher *dispatch.Dispatcher
	reporter   security.Reporter
	latencies  *utils.LatencyTracker
}

// New wires the ingestion pipeline together. reporter may be nil when no
// threat monitor is attached.
func New(
	logger *slog.Logger,
	events *store.EventStore,
	detector *patterns.Detector,
	recoveryEngine *recovery.Engine,
	dispatcher *dispatch.Dispatcher,
	reporter security.Reporter,
) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		logger:     logger,
		events:     events,
		patterns:   detector,
		recovery:   recoveryEngine,
		dispatcher: dispatcher,
		reporter:   reporter,
		latencies:  utils.NewLatencyTracker(1024),
	}
}

// RecordError ingests a generic error occurrence and returns the record id.
func (t *Tracker) RecordError(message string, classification models.Classification, severity models.Severity, category string, ctx models.ErrorContext, metadata map[string]any) string {
	return t.ingest(store.Occurrence{
		Message:        message,
		Classification: classification,
		Severity:       severity,
		Category:       category,
		Context:        ctx,
		Metadata:       metadata,
	})
}

// RecordTileError ingests a rendering failure for one dashboard tile.
func (t *Tracker) RecordTileError(resourceID, message, stackTrace string, ctx models.ErrorContext) string {
	ctx.Resource = resourceID
	return t.ingest(store.Occurrence{
		Message:        message,
		StackTrace:     stackTrace,
		Classification: models.ClassRender,
		Severity:       models.SeverityMedium,
		Category:       "tile",
		Context:        ctx,
		Tags:           []string{"tile:" + resourceID},
	})
}

// RecordAPIError ingests a failed upstream call. Server errors are high
// severity; auth rejections additionally raise a suspicious-activity threat
// with the monitor. A single rejection only puts the origin on the
// watchlist; sustained failures escalate through the auth tracker.
func (t *Tracker) RecordAPIError(endpoint string, statusCode int, message string, ctx models.ErrorContext) string {
	severity := models.SeverityMedium
	if statusCode >= 500 {
		severity = models.SeverityHigh
	}
	var tags []string
	if statusCode == 401 || statusCode == 403 {
		tags = []string{"auth-rejected"}
		if t.reporter != nil {
			t.reporter.Report(security.NewThreat{
				Type:        models.ThreatSuspiciousActivity,
				Severity:    models.SeverityMedium,
				Origin:      ctx.Origin,
				Target:      endpoint,
				Description: fmt.Sprintf("upstream rejected request with %d", statusCode),
				Metadata:    map[string]any{"status_code": statusCode},
			})
		}
	}
	ctx.Resource = endpoint
	return t.ingest(store.Occurrence{
		Message:        message,
		Classification: models.ClassAPI,
		Severity:       severity,
		Category:       fmt.Sprintf("http-%d", statusCode),
		Context:        ctx,
		Tags:           tags,
		Metadata:       map[string]any{"status_code": statusCode, "endpoint": endpoint},
	})
}

// RecordSecurityError ingests a security-relevant failure. It is always
// critical and always alerted immediately.
func (t *Tracker) RecordSecurityError(message string, ctx models.ErrorContext) string {
	return t.ingest(store.Occurrence{
		Message:        message,
		Classification: models.ClassSecurity,
		Severity:       models.SeverityCritical,
		Category:       "security",
		Context:        ctx,
	})
}

// RecordPerformanceError ingests a budget violation for a named metric.
func (t *Tracker) RecordPerformanceError(metricName string, observed, threshold float64, ctx models.ErrorContext) string {
	severity := models.SeverityMedium
	if threshold > 0 && observed > 2*threshold {
		severity = models.SeverityHigh
	}
	return t.ingest(store.Occurrence{
		Message:        fmt.Sprintf("%s exceeded budget: %.2f > %.2f", metricName, observed, threshold),
		Classification: models.ClassPerformance,
		Severity:       severity,
		Category:       metricName,
		Context:        ctx,
		Metadata:       map[string]any{"observed": observed, "threshold": threshold},
	})
}

// Resolve marks a record resolved by operator action.
func (t *Tracker) Resolve(id string) bool {
	return t.events.Resolve(id)
}

// Errors returns a copy of every aggregated record.
func (t *Tracker) Errors() []*models.ErrorRecord {
	return t.events.Snapshot()
}

// Patterns returns a copy of every observed pattern.
func (t *Tracker) Patterns() []*models.ErrorPattern {
	return t.patterns.Snapshot()
}

// Subscribe registers a listener for remediation signals.
func (t *Tracker) Subscribe(listener recovery.ActionListener) {
	t.recovery.Subscribe(listener)
}

// LatencyP95 returns the current p95 ingestion latency.
func (t *Tracker) LatencyP95() time.Duration {
	return t.latencies.Percentile(95)
}

func (t *Tracker) ingest(occ store.Occurrence) (id string) {
	start := time.Now()
	// Producer isolation: a fault anywhere downstream must not surface to
	// the request handler that reported the error.
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("ingestion fault",
				slog.String("classification", string(occ.Classification)),
				slog.Any("panic", r))
		}
		duration := time.Since(start)
		t.latencies.Observe(duration)
		metrics.ObserveIngest(duration)
	}()

	record, _ := t.events.Record(occ)
	metrics.ObserveError(string(occ.Classification), string(occ.Severity))

	t.patterns.Observe(record)
	t.recovery.Attempt(record)

	// Critical occurrences alert immediately on every repeat; the batch
	// queue only ever sees a record once, on creation.
	if record.Severity == models.SeverityCritical && t.dispatcher != nil {
		t.dispatcher.SendCriticalAlert(record)
	}

	return record.ID
}
