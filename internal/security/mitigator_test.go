package security

import (
	"testing"
	"time"

	"github.com/sentinelstack/sentinel-engine/internal/models"
)

func TestMitigateBlockDurations(t *testing.T) {
	cases := []struct {
		threatType models.ThreatType
		duration   time.Duration
	}{
		{models.ThreatBruteForce, 15 * time.Minute},
		{models.ThreatInjection, 30 * time.Minute},
		{models.ThreatXSS, 30 * time.Minute},
		{models.ThreatUnauthorizedAccess, time.Hour},
	}

	for _, tc := range cases {
		t.Run(string(tc.threatType), func(t *testing.T) {
			blocks := newRecordingBlockStore()
			m := NewMitigator(nil, blocks)

			ok := m.Mitigate(&models.SecurityThreat{Type: tc.threatType, Origin: "203.0.113.9"})
			if !ok {
				t.Fatalf("%s should be auto-mitigated", tc.threatType)
			}
			got, blocked := blocks.duration("203.0.113.9")
			if !blocked {
				t.Fatal("origin should be blocked")
			}
			if got != tc.duration {
				t.Fatalf("block duration = %v, want %v", got, tc.duration)
			}
		})
	}
}

func TestMitigateSuspiciousActivityWatches(t *testing.T) {
	blocks := newRecordingBlockStore()
	m := NewMitigator(nil, blocks)

	ok := m.Mitigate(&models.SecurityThreat{Type: models.ThreatSuspiciousActivity, Origin: "198.51.100.4"})
	if !ok {
		t.Fatal("suspicious activity should be handled")
	}
	if !m.IsWatched("198.51.100.4") {
		t.Fatal("origin should land on the watchlist")
	}
	if _, blocked := blocks.duration("198.51.100.4"); blocked {
		t.Fatal("surveillance must not block the origin")
	}
}

func TestMitigateUnhandledTypes(t *testing.T) {
	m := NewMitigator(nil, newRecordingBlockStore())

	for _, threatType := range []models.ThreatType{models.ThreatCSRF, models.ThreatDataExfiltration} {
		if m.Mitigate(&models.SecurityThreat{Type: threatType, Origin: "10.0.0.1"}) {
			t.Fatalf("%s has no automated containment and must report false", threatType)
		}
	}
}

func TestMitigateEmptyOrigin(t *testing.T) {
	m := NewMitigator(nil, newRecordingBlockStore())
	if m.Mitigate(&models.SecurityThreat{Type: models.ThreatBruteForce}) {
		t.Fatal("a threat without an origin cannot be blocked")
	}
}

func TestMitigateBlockStoreFailure(t *testing.T) {
	blocks := newRecordingBlockStore()
	blocks.failBlock = true
	m := NewMitigator(nil, blocks)

	if m.Mitigate(&models.SecurityThreat{Type: models.ThreatInjection, Origin: "10.0.0.1"}) {
		t.Fatal("a failed block must count as no action taken")
	}
}
