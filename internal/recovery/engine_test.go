package recovery

import (
	"sync"
	"testing"
	"time"

	"github.com/sentinelstack/sentinel-engine/internal/models"
)

type recordingListener struct {
	mu        sync.Mutex
	retries   []string
	fallbacks []string
	reloads   []string
	redirects []string
	notices   []string
	signal    chan struct{}
}

func newRecordingListener() *recordingListener {
	return &recordingListener{signal: make(chan struct{}, 32)}
}

func (l *recordingListener) RetryResource(resourceID string) {
	l.mu.Lock()
	l.retries = append(l.retries, resourceID)
	l.mu.Unlock()
	l.signal <- struct{}{}
}

func (l *recordingListener) ShowFallback(resourceID, message string) {
	l.mu.Lock()
	l.fallbacks = append(l.fallbacks, resourceID+"|"+message)
	l.mu.Unlock()
	l.signal <- struct{}{}
}

func (l *recordingListener) Reload(reason string) {
	l.mu.Lock()
	l.reloads = append(l.reloads, reason)
	l.mu.Unlock()
	l.signal <- struct{}{}
}

func (l *recordingListener) Redirect(target string) {
	l.mu.Lock()
	l.redirects = append(l.redirects, target)
	l.mu.Unlock()
	l.signal <- struct{}{}
}

func (l *recordingListener) Notify(message string) {
	l.mu.Lock()
	l.notices = append(l.notices, message)
	l.mu.Unlock()
	l.signal <- struct{}{}
}

func (l *recordingListener) wait(t *testing.T) {
	t.Helper()
	select {
	case <-l.signal:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a remediation signal")
	}
}

func fingerprinted(classification models.Classification, message string, metadata map[string]any) *models.ErrorRecord {
	return &models.ErrorRecord{
		ID:             "rec-1",
		Message:        message,
		Classification: classification,
		Fingerprint:    "fp-" + string(classification) + "-" + message,
		Metadata:       metadata,
		Context:        models.ErrorContext{Resource: "widget-7"},
	}
}

func TestAttemptPolicySelection(t *testing.T) {
	cases := []struct {
		name      string
		record    *models.ErrorRecord
		attempted bool
		action    ActionType
	}{
		{
			name:      "network retries",
			record:    fingerprinted(models.ClassNetwork, "connection reset", nil),
			attempted: true,
			action:    ActionRetry,
		},
		{
			name:      "server error retries",
			record:    fingerprinted(models.ClassAPI, "upstream exploded", map[string]any{"status_code": 503}),
			attempted: true,
			action:    ActionRetry,
		},
		{
			name:      "expired session redirects",
			record:    fingerprinted(models.ClassAPI, "unauthorized", map[string]any{"status_code": 401}),
			attempted: true,
			action:    ActionRedirect,
		},
		{
			name:      "render falls back",
			record:    fingerprinted(models.ClassRender, "cannot draw tile", nil),
			attempted: true,
			action:    ActionFallback,
		},
		{
			name:      "memory pressure reloads",
			record:    fingerprinted(models.ClassRuntime, "out of memory in parser", nil),
			attempted: true,
			action:    ActionReload,
		},
		{
			name:      "plain runtime has no policy",
			record:    fingerprinted(models.ClassRuntime, "nil dereference", nil),
			attempted: false,
		},
		{
			name:      "client error has no policy",
			record:    fingerprinted(models.ClassAPI, "bad request", map[string]any{"status_code": 400}),
			attempted: false,
		},
		{
			name:      "security has no policy",
			record:    fingerprinted(models.ClassSecurity, "token replay", nil),
			attempted: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := NewEngine(nil)
			got := e.Attempt(tc.record)
			if got != tc.attempted {
				t.Fatalf("Attempt = %v, want %v", got, tc.attempted)
			}
			if tc.attempted && e.Attempts(tc.record.Fingerprint, tc.action) != 1 {
				t.Fatalf("expected one %s attempt recorded", tc.action)
			}
		})
	}
}

func TestAttemptStatusCodeAsFloat(t *testing.T) {
	// JSON-decoded metadata carries numbers as float64.
	e := NewEngine(nil)
	record := fingerprinted(models.ClassAPI, "upstream exploded", map[string]any{"status_code": float64(502)})
	if !e.Attempt(record) {
		t.Fatal("float64 status codes must select the retry policy")
	}
}

func TestAttemptHonorsRetryBudget(t *testing.T) {
	e := NewEngine(nil)
	record := fingerprinted(models.ClassRender, "cannot draw tile", nil)

	if !e.Attempt(record) || !e.Attempt(record) {
		t.Fatal("first two fallback attempts should run")
	}
	if e.Attempt(record) {
		t.Fatal("third attempt must be refused: budget is 2")
	}
	if got := e.Attempts(record.Fingerprint, ActionFallback); got != 2 {
		t.Fatalf("attempts = %d, want 2", got)
	}
}

func TestBudgetsAreIndependentPerFingerprint(t *testing.T) {
	e := NewEngine(nil)
	a := fingerprinted(models.ClassRender, "tile A broke", nil)
	b := fingerprinted(models.ClassRender, "tile B broke", nil)

	e.Attempt(a)
	e.Attempt(a)
	if e.Attempt(a) {
		t.Fatal("fingerprint A budget should be exhausted")
	}
	if !e.Attempt(b) {
		t.Fatal("fingerprint B has its own budget")
	}
}

func TestFallbackDeliversToSubscribers(t *testing.T) {
	e := NewEngine(nil)
	listener := newRecordingListener()
	e.Subscribe(listener)

	record := fingerprinted(models.ClassRender, "cannot draw tile", nil)
	if !e.Attempt(record) {
		t.Fatal("expected a fallback attempt")
	}
	listener.wait(t)

	listener.mu.Lock()
	defer listener.mu.Unlock()
	if len(listener.fallbacks) != 1 {
		t.Fatalf("fallback signals = %d, want 1", len(listener.fallbacks))
	}
	if listener.fallbacks[0] != "widget-7|cannot draw tile" {
		t.Fatalf("fallback payload = %q", listener.fallbacks[0])
	}
}

func TestRedirectTargetsLogin(t *testing.T) {
	e := NewEngine(nil)
	listener := newRecordingListener()
	e.Subscribe(listener)

	record := fingerprinted(models.ClassAPI, "unauthorized", map[string]any{"status_code": 401})
	if !e.Attempt(record) {
		t.Fatal("expected a redirect attempt")
	}
	listener.wait(t)

	listener.mu.Lock()
	defer listener.mu.Unlock()
	if len(listener.redirects) != 1 || listener.redirects[0] != "/login" {
		t.Fatalf("redirects = %v, want one /login", listener.redirects)
	}
}

func TestPanickingListenerDoesNotAffectOthers(t *testing.T) {
	e := NewEngine(nil)
	e.Subscribe(panickyListener{})
	healthy := newRecordingListener()
	e.Subscribe(healthy)

	record := fingerprinted(models.ClassRender, "cannot draw tile", nil)
	if !e.Attempt(record) {
		t.Fatal("expected a fallback attempt")
	}
	healthy.wait(t)
}

type panickyListener struct{}

func (panickyListener) RetryResource(string) { panic("retry") }

func (panickyListener) ShowFallback(string, string) { panic("fallback") }

func (panickyListener) Reload(string) { panic("reload") }

func (panickyListener) Redirect(string) { panic("redirect") }

func (panickyListener) Notify(string) { panic("notify") }
