package security

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sentinelstack/sentinel-engine/internal/models"
)

const mitigationTimeout = 2 * time.Second

// Mitigator maps a detected threat to an automated containment action:
// a temporary origin block with a duration scaled by threat type, or a
// heightened-surveillance flag for suspicious activity.
type Mitigator struct {
	mu        sync.Mutex
	watchlist map[string]time.Time
	blocks    BlockStore
	logger    *slog.Logger
	now       func() time.Time
}

// NewMitigator constructs a Mitigator over the given block store.
func NewMitigator(logger *slog.Logger, blocks BlockStore) *Mitigator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mitigator{
		watchlist: make(map[string]time.Time),
		blocks:    blocks,
		logger:    logger,
		now:       time.Now,
	}
}

// Mitigate attempts a containment action for the threat and reports whether
// one was taken. A block-store failure is logged and counts as no action;
// the threat stays recorded and alerted regardless.
func (m *Mitigator) Mitigate(threat *models.SecurityThreat) bool {
	if threat == nil {
		return false
	}

	switch threat.Type {
	case models.ThreatBruteForce:
		return m.block(threat.Origin, 15*time.Minute)
	case models.ThreatInjection, models.ThreatXSS:
		return m.block(threat.Origin, 30*time.Minute)
	case models.ThreatUnauthorizedAccess:
		return m.block(threat.Origin, time.Hour)
	case models.ThreatSuspiciousActivity:
		return m.watch(threat.Origin)
	}
	return false
}

func (m *Mitigator) block(origin string, duration time.Duration) bool {
	if origin == "" || m.blocks == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), mitigationTimeout)
	defer cancel()
	if err := m.blocks.Block(ctx, origin, duration); err != nil {
		m.logger.Error("origin block failed",
			slog.String("origin", origin),
			slog.Any("error", err))
		return false
	}
	m.logger.Info("origin temporarily blocked",
		slog.String("origin", origin),
		slog.Duration("duration", duration))
	return true
}

func (m *Mitigator) watch(origin string) bool {
	if origin == "" {
		return false
	}
	m.mu.Lock()
	m.watchlist[origin] = m.now()
	m.mu.Unlock()
	m.logger.Info("origin placed under surveillance", slog.String("origin", origin))
	return true
}

// IsWatched reports whether an origin is under heightened surveillance.
func (m *Mitigator) IsWatched(origin string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.watchlist[origin]
	return ok
}

// IsBlocked reports whether an origin currently has an active block.
func (m *Mitigator) IsBlocked(origin string) bool {
	if m.blocks == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), mitigationTimeout)
	defer cancel()
	return m.blocks.IsBlocked(ctx, origin)
}
