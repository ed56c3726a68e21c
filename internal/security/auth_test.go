package security

import (
	"testing"

	"github.com/sentinelstack/sentinel-engine/internal/models"
)

func TestRecordAttemptBelowThresholdIsQuiet(t *testing.T) {
	reporter := &fakeReporter{}
	a := NewAuthTracker(nil, reporter, AuthConfig{FailThreshold: 5, HighThreshold: 10})

	for i := 0; i < 5; i++ {
		a.RecordAttempt("10.0.0.1", "alice", false)
	}

	if got := len(reporter.reported()); got != 0 {
		t.Fatalf("five failures raised %d threats, want 0", got)
	}
	if reporter.failedAuth != 5 {
		t.Fatalf("failed auth noted %d times, want 5", reporter.failedAuth)
	}
	if got := a.Failures("10.0.0.1", "alice"); got != 5 {
		t.Fatalf("failure count = %d, want 5", got)
	}
}

func TestRecordAttemptSixthFailureIsMedium(t *testing.T) {
	reporter := &fakeReporter{}
	a := NewAuthTracker(nil, reporter, AuthConfig{FailThreshold: 5, HighThreshold: 10})

	for i := 0; i < 6; i++ {
		a.RecordAttempt("10.0.0.1", "alice", false)
	}

	threats := reporter.reported()
	if len(threats) != 1 {
		t.Fatalf("raised %d threats, want 1", len(threats))
	}
	threat := threats[0]
	if threat.Type != models.ThreatBruteForce {
		t.Fatalf("threat type = %s, want brute-force", threat.Type)
	}
	if threat.Severity != models.SeverityMedium {
		t.Fatalf("severity = %s, want medium", threat.Severity)
	}
	if threat.Origin != "10.0.0.1" || threat.Target != "alice" {
		t.Fatalf("threat origin/target = %s/%s", threat.Origin, threat.Target)
	}
}

func TestRecordAttemptEscalatesToHigh(t *testing.T) {
	reporter := &fakeReporter{}
	a := NewAuthTracker(nil, reporter, AuthConfig{FailThreshold: 5, HighThreshold: 10})

	for i := 0; i < 11; i++ {
		a.RecordAttempt("10.0.0.1", "alice", false)
	}

	threats := reporter.reported()
	// Failures 6 through 11 each raise a threat; the eleventh is high.
	if len(threats) != 6 {
		t.Fatalf("raised %d threats, want 6", len(threats))
	}
	last := threats[len(threats)-1]
	if last.Severity != models.SeverityHigh {
		t.Fatalf("eleventh failure severity = %s, want high", last.Severity)
	}
	if threats[0].Severity != models.SeverityMedium {
		t.Fatalf("sixth failure severity = %s, want medium", threats[0].Severity)
	}
}

func TestRecordAttemptSuccessResetsCounter(t *testing.T) {
	reporter := &fakeReporter{}
	a := NewAuthTracker(nil, reporter, AuthConfig{FailThreshold: 5, HighThreshold: 10})

	for i := 0; i < 4; i++ {
		a.RecordAttempt("10.0.0.1", "alice", false)
	}
	a.RecordAttempt("10.0.0.1", "alice", true)
	if got := a.Failures("10.0.0.1", "alice"); got != 0 {
		t.Fatalf("failure count after success = %d, want 0", got)
	}

	// The streak starts over, so the next five failures stay quiet.
	for i := 0; i < 5; i++ {
		a.RecordAttempt("10.0.0.1", "alice", false)
	}
	if got := len(reporter.reported()); got != 0 {
		t.Fatalf("post-reset failures raised %d threats, want 0", got)
	}
}

func TestRecordAttemptTracksPairsIndependently(t *testing.T) {
	reporter := &fakeReporter{}
	a := NewAuthTracker(nil, reporter, AuthConfig{FailThreshold: 5, HighThreshold: 10})

	for i := 0; i < 6; i++ {
		a.RecordAttempt("10.0.0.1", "alice", false)
	}
	// Same identity from another origin is a separate streak.
	for i := 0; i < 5; i++ {
		a.RecordAttempt("10.0.0.2", "alice", false)
	}

	if got := len(reporter.reported()); got != 1 {
		t.Fatalf("raised %d threats, want 1 (only the first pair crossed)", got)
	}
	if a.Failures("10.0.0.2", "alice") != 5 {
		t.Fatal("second pair should hold its own count")
	}
}
