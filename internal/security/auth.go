package security

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/sentinelstack/sentinel-engine/internal/models"
)

// AuthConfig holds the lockout thresholds.
type AuthConfig struct {
	FailThreshold int
	HighThreshold int
}

// AuthTracker counts consecutive authentication failures per
// (origin, identity) pair and raises brute-force threats past the
// thresholds. A success resets the pair's counter.
type AuthTracker struct {
	mu       sync.Mutex
	failures map[string]int
	cfg      AuthConfig
	reporter Reporter
	logger   *slog.Logger
}

// NewAuthTracker constructs an AuthTracker reporting into reporter.
func NewAuthTracker(logger *slog.Logger, reporter Reporter, cfg AuthConfig) *AuthTracker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FailThreshold <= 0 {
		cfg.FailThreshold = 5
	}
	if cfg.HighThreshold <= cfg.FailThreshold {
		cfg.HighThreshold = 10
	}
	return &AuthTracker{
		failures: make(map[string]int),
		cfg:      cfg,
		reporter: reporter,
		logger:   logger,
	}
}

// RecordAttempt notes one authentication attempt. Strictly more failures
// than FailThreshold raises a medium brute-force threat; strictly more than
// HighThreshold escalates it to high.
func (a *AuthTracker) RecordAttempt(origin, identity string, success bool) {
	key := origin + "|" + identity

	a.mu.Lock()
	if success {
		delete(a.failures, key)
		a.mu.Unlock()
		return
	}
	a.failures[key]++
	count := a.failures[key]
	a.mu.Unlock()

	a.reporter.NoteFailedAuth()

	if count <= a.cfg.FailThreshold {
		return
	}

	severity := models.SeverityMedium
	if count > a.cfg.HighThreshold {
		severity = models.SeverityHigh
	}
	a.reporter.Report(NewThreat{
		Type:        models.ThreatBruteForce,
		Severity:    severity,
		Origin:      origin,
		Target:      identity,
		Description: fmt.Sprintf("%d consecutive failed logins for %s", count, identity),
		Metadata:    map[string]any{"failures": count},
	})
}

// Failures returns the current consecutive failure count for a pair.
func (a *AuthTracker) Failures(origin, identity string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.failures[origin+"|"+identity]
}
