package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels deliveries that reached the sink.
	OutcomeSuccess = "success"
	// OutcomeError labels deliveries that failed and were requeued or dropped.
	OutcomeError = "error"
)

var (
	errorsRecordedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "errors_recorded_total",
			Help:      "Total error occurrences ingested, partitioned by classification and severity.",
		},
		[]string{"classification", "severity"},
	)

	threatsDetectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "threats_detected_total",
			Help:      "Total security threats detected, partitioned by type and severity.",
		},
		[]string{"type", "severity"},
	)

	threatsBlockedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "threats_blocked_total",
			Help:      "Threats that were auto-mitigated.",
		},
	)

	recoveryActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "recovery_actions_total",
			Help:      "Automated recovery actions executed, partitioned by action type.",
		},
		[]string{"action"},
	)

	alertDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "alert_deliveries_total",
			Help:      "Outbound alert deliveries, partitioned by channel and outcome.",
		},
		[]string{"channel", "outcome"},
	)

	dispatchQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sentinel",
			Name:      "dispatch_queue_depth",
			Help:      "Alerts waiting in the batch queue.",
		},
	)

	securityScore = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sentinel",
			Name:      "security_score",
			Help:      "Current 0-100 security health score.",
		},
	)

	ingestDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sentinel",
			Name:      "ingest_seconds",
			Help:      "Latency of a single ingestion call in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
	)
)

// Register attaches sentinel collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		errorsRecordedTotal,
		threatsDetectedTotal,
		threatsBlockedTotal,
		recoveryActionsTotal,
		alertDeliveriesTotal,
		dispatchQueueDepth,
		securityScore,
		ingestDurationSeconds,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveError counts one ingested error occurrence.
func ObserveError(classification, severity string) {
	errorsRecordedTotal.WithLabelValues(classification, severity).Inc()
}

// ObserveThreat counts one detected threat.
func ObserveThreat(threatType, severity string) {
	threatsDetectedTotal.WithLabelValues(threatType, severity).Inc()
}

// ObserveBlocked counts one auto-mitigated threat.
func ObserveBlocked() {
	threatsBlockedTotal.Inc()
}

// ObserveRecoveryAction counts one executed recovery action.
func ObserveRecoveryAction(action string) {
	recoveryActionsTotal.WithLabelValues(action).Inc()
}

// ObserveDelivery counts one outbound delivery attempt.
func ObserveDelivery(channel, outcome string) {
	if outcome != OutcomeError {
		outcome = OutcomeSuccess
	}
	alertDeliveriesTotal.WithLabelValues(channel, outcome).Inc()
}

// SetQueueDepth records the current batch queue length.
func SetQueueDepth(depth int) {
	dispatchQueueDepth.Set(float64(depth))
}

// SetSecurityScore records the latest recomputed score.
func SetSecurityScore(score float64) {
	securityScore.Set(score)
}

// ObserveIngest records the duration of one ingestion call.
func ObserveIngest(duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	ingestDurationSeconds.Observe(duration.Seconds())
}
