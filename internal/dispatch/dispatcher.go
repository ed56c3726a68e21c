package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sentinelstack/sentinel-engine/internal/metrics"
	"github.com/sentinelstack/sentinel-engine/internal/models"
)

const sendTimeout = 10 * time.Second

// BatchSink delivers batched error payloads to the external error sink.
type BatchSink interface {
	SendErrorBatch(ctx context.Context, batch []*models.ErrorRecord) error
}

// AlertSink delivers immediate, out-of-band notifications.
type AlertSink interface {
	SendCriticalAlert(ctx context.Context, record *models.ErrorRecord) error
	SendSecurityAlert(ctx context.Context, threat *models.SecurityThreat) error
	SendIncidentAlert(ctx context.Context, incident *models.SecurityIncident) error
}

// Dispatcher batches non-critical records for periodic delivery and sends
// critical and security notifications immediately. Batched payloads are
// requeued on failure; immediate sends are best-effort because the
// underlying event stays recorded in memory either way.
type Dispatcher struct {
	mu        sync.Mutex
	flushMu   sync.Mutex
	queue     []*models.ErrorRecord
	batchSize int
	batch     BatchSink
	alerts    []AlertSink
	logger    *slog.Logger
}

// NewDispatcher constructs a Dispatcher. batch may be nil to disable batched
// delivery; alerts may be empty.
func NewDispatcher(logger *slog.Logger, batchSize int, batch BatchSink, alerts ...AlertSink) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Dispatcher{
		batchSize: batchSize,
		batch:     batch,
		alerts:    alerts,
		logger:    logger,
	}
}

// Enqueue adds a record to the pending batch queue.
func (d *Dispatcher) Enqueue(record *models.ErrorRecord) {
	if record == nil {
		return
	}
	d.mu.Lock()
	d.queue = append(d.queue, record)
	depth := len(d.queue)
	d.mu.Unlock()
	metrics.SetQueueDepth(depth)
}

// Flush drains up to one batch from the queue and forwards it. On delivery
// failure the whole batch returns to the head of the queue, in order, for
// the next tick. Called from the periodic flush task.
func (d *Dispatcher) Flush(ctx context.Context) {
	// Serialised so a slow send cannot interleave with the next tick and
	// reorder requeued batches.
	d.flushMu.Lock()
	defer d.flushMu.Unlock()

	d.mu.Lock()
	if len(d.queue) == 0 {
		d.mu.Unlock()
		return
	}
	n := d.batchSize
	if n > len(d.queue) {
		n = len(d.queue)
	}
	batch := d.queue[:n]
	d.queue = append([]*models.ErrorRecord(nil), d.queue[n:]...)
	d.mu.Unlock()

	if d.batch == nil {
		d.logger.Debug("error sink not configured; dropping batch", slog.Int("size", len(batch)))
		metrics.SetQueueDepth(d.Pending())
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	err := d.batch.SendErrorBatch(sendCtx, batch)
	cancel()
	if err != nil {
		d.logger.Warn("error batch delivery failed; requeueing",
			slog.Int("size", len(batch)),
			slog.Any("error", err))
		metrics.ObserveDelivery("error_batch", metrics.OutcomeError)
		d.mu.Lock()
		d.queue = append(batch, d.queue...)
		depth := len(d.queue)
		d.mu.Unlock()
		metrics.SetQueueDepth(depth)
		return
	}

	metrics.ObserveDelivery("error_batch", metrics.OutcomeSuccess)
	metrics.SetQueueDepth(d.Pending())
}

// SendCriticalAlert bypasses the queue and notifies every alert sink
// asynchronously. Failures are logged only.
func (d *Dispatcher) SendCriticalAlert(record *models.ErrorRecord) {
	if record == nil {
		return
	}
	for _, sink := range d.alerts {
		go func(s AlertSink) {
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()
			if err := s.SendCriticalAlert(ctx, record); err != nil {
				metrics.ObserveDelivery("critical_alert", metrics.OutcomeError)
				d.logger.Warn("critical alert delivery failed", slog.Any("error", err))
				return
			}
			metrics.ObserveDelivery("critical_alert", metrics.OutcomeSuccess)
		}(sink)
	}
}

// SendSecurityAlert bypasses the queue for high-severity threats.
func (d *Dispatcher) SendSecurityAlert(threat *models.SecurityThreat) {
	if threat == nil {
		return
	}
	for _, sink := range d.alerts {
		go func(s AlertSink) {
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()
			if err := s.SendSecurityAlert(ctx, threat); err != nil {
				metrics.ObserveDelivery("security_alert", metrics.OutcomeError)
				d.logger.Warn("security alert delivery failed",
					slog.String("threat_id", threat.ID),
					slog.Any("error", err))
				return
			}
			metrics.ObserveDelivery("security_alert", metrics.OutcomeSuccess)
		}(sink)
	}
}

// SendIncidentAlert notifies every alert sink about a newly opened incident.
func (d *Dispatcher) SendIncidentAlert(incident *models.SecurityIncident) {
	if incident == nil {
		return
	}
	for _, sink := range d.alerts {
		go func(s AlertSink) {
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()
			if err := s.SendIncidentAlert(ctx, incident); err != nil {
				metrics.ObserveDelivery("incident_alert", metrics.OutcomeError)
				d.logger.Warn("incident alert delivery failed",
					slog.String("incident_id", incident.ID),
					slog.Any("error", err))
				return
			}
			metrics.ObserveDelivery("incident_alert", metrics.OutcomeSuccess)
		}(sink)
	}
}

// Pending returns the current queue depth.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// PendingRecords returns a copy of the queue, for inspection.
func (d *Dispatcher) PendingRecords() []*models.ErrorRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*models.ErrorRecord(nil), d.queue...)
}
