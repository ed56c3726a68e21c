package security

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sentinelstack/sentinel-engine/internal/cache"
	"github.com/sentinelstack/sentinel-engine/internal/models"
)

// fakeReporter captures threats raised by the detectors.
type fakeReporter struct {
	mu         sync.Mutex
	threats    []NewThreat
	failedAuth int
}

func (r *fakeReporter) Report(t NewThreat) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.threats = append(r.threats, t)
	return "threat-" + string(t.Type)
}

func (r *fakeReporter) NoteFailedAuth() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failedAuth++
}

func (r *fakeReporter) reported() []NewThreat {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]NewThreat(nil), r.threats...)
}

// captureAlerter records alert deliveries from the monitor.
type captureAlerter struct {
	mu        sync.Mutex
	threats   []*models.SecurityThreat
	incidents []*models.SecurityIncident
}

func (a *captureAlerter) SendSecurityAlert(threat *models.SecurityThreat) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.threats = append(a.threats, threat)
}

func (a *captureAlerter) SendIncidentAlert(incident *models.SecurityIncident) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.incidents = append(a.incidents, incident)
}

func (a *captureAlerter) threatAlerts() []*models.SecurityThreat {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*models.SecurityThreat(nil), a.threats...)
}

func (a *captureAlerter) incidentAlerts() []*models.SecurityIncident {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*models.SecurityIncident(nil), a.incidents...)
}

// recordingBlockStore captures block calls and can be made to fail.
type recordingBlockStore struct {
	mu        sync.Mutex
	blocks    map[string]time.Duration
	failBlock bool
}

func newRecordingBlockStore() *recordingBlockStore {
	return &recordingBlockStore{blocks: make(map[string]time.Duration)}
}

func (s *recordingBlockStore) Block(_ context.Context, origin string, duration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failBlock {
		return errors.New("store unavailable")
	}
	s.blocks[origin] = duration
	return nil
}

func (s *recordingBlockStore) IsBlocked(_ context.Context, origin string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blocks[origin]
	return ok
}

func (s *recordingBlockStore) Unblock(_ context.Context, origin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blocks, origin)
	return nil
}

func (s *recordingBlockStore) duration(origin string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.blocks[origin]
	return d, ok
}

// stubCache is an in-memory cache.Provider honoring TTLs lazily.
type stubCache struct {
	mu    sync.Mutex
	store map[string][]byte
}

func newStubCache() *stubCache {
	return &stubCache{store: make(map[string][]byte)}
}

func (s *stubCache) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.store[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return append([]byte(nil), value...), nil
}

func (s *stubCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store[key] = append([]byte(nil), value...)
	return nil
}

func (s *stubCache) SetNX(_ context.Context, key string, value []byte, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.store[key]; ok {
		return false, nil
	}
	s.store[key] = append([]byte(nil), value...)
	return true, nil
}

func (s *stubCache) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.store, key)
	return nil
}

func (s *stubCache) Close() error { return nil }
