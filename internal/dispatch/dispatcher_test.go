package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sentinelstack/sentinel-engine/internal/models"
)

type fakeBatchSink struct {
	mu      sync.Mutex
	batches [][]*models.ErrorRecord
	err     error
}

func (s *fakeBatchSink) SendErrorBatch(_ context.Context, batch []*models.ErrorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	copied := append([]*models.ErrorRecord(nil), batch...)
	s.batches = append(s.batches, copied)
	return nil
}

func (s *fakeBatchSink) sent() [][]*models.ErrorRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]*models.ErrorRecord(nil), s.batches...)
}

func (s *fakeBatchSink) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

type fakeAlertSink struct {
	mu        sync.Mutex
	critical  []*models.ErrorRecord
	threats   []*models.SecurityThreat
	incidents []*models.SecurityIncident
	delivered chan struct{}
	err       error
}

func newFakeAlertSink() *fakeAlertSink {
	return &fakeAlertSink{delivered: make(chan struct{}, 32)}
}

func (s *fakeAlertSink) SendCriticalAlert(_ context.Context, record *models.ErrorRecord) error {
	s.mu.Lock()
	s.critical = append(s.critical, record)
	err := s.err
	s.mu.Unlock()
	s.delivered <- struct{}{}
	return err
}

func (s *fakeAlertSink) SendSecurityAlert(_ context.Context, threat *models.SecurityThreat) error {
	s.mu.Lock()
	s.threats = append(s.threats, threat)
	err := s.err
	s.mu.Unlock()
	s.delivered <- struct{}{}
	return err
}

func (s *fakeAlertSink) SendIncidentAlert(_ context.Context, incident *models.SecurityIncident) error {
	s.mu.Lock()
	s.incidents = append(s.incidents, incident)
	err := s.err
	s.mu.Unlock()
	s.delivered <- struct{}{}
	return err
}

func (s *fakeAlertSink) wait(t *testing.T) {
	t.Helper()
	select {
	case <-s.delivered:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for an alert delivery")
	}
}

func queued(n int) []*models.ErrorRecord {
	out := make([]*models.ErrorRecord, n)
	for i := range out {
		out[i] = &models.ErrorRecord{ID: fmt.Sprintf("rec-%d", i), Message: "boom"}
	}
	return out
}

func TestFlushDrainsOneBatch(t *testing.T) {
	sink := &fakeBatchSink{}
	d := NewDispatcher(nil, 10, sink)

	for _, record := range queued(25) {
		d.Enqueue(record)
	}

	d.Flush(context.Background())
	if got := d.Pending(); got != 15 {
		t.Fatalf("pending after one flush = %d, want 15", got)
	}

	batches := sink.sent()
	if len(batches) != 1 || len(batches[0]) != 10 {
		t.Fatalf("sent %d batches (first size %d), want one batch of 10", len(batches), len(batches[0]))
	}
	if batches[0][0].ID != "rec-0" || batches[0][9].ID != "rec-9" {
		t.Fatal("batch must preserve enqueue order")
	}

	d.Flush(context.Background())
	d.Flush(context.Background())
	if got := d.Pending(); got != 0 {
		t.Fatalf("pending after draining = %d, want 0", got)
	}
}

func TestFlushEmptyQueueIsNoop(t *testing.T) {
	sink := &fakeBatchSink{}
	d := NewDispatcher(nil, 10, sink)

	d.Flush(context.Background())
	if len(sink.sent()) != 0 {
		t.Fatal("flushing an empty queue must not call the sink")
	}
}

func TestFlushRequeuesFailedBatchInOrder(t *testing.T) {
	sink := &fakeBatchSink{}
	sink.setErr(errors.New("sink down"))
	d := NewDispatcher(nil, 3, sink)

	records := queued(5)
	for _, record := range records {
		d.Enqueue(record)
	}

	d.Flush(context.Background())
	if got := d.Pending(); got != 5 {
		t.Fatalf("pending after failed flush = %d, want all 5 requeued", got)
	}

	// Identities and order survive the round trip.
	pending := d.PendingRecords()
	for i, record := range pending {
		if record.ID != records[i].ID {
			t.Fatalf("pending[%d] = %s, want %s", i, record.ID, records[i].ID)
		}
	}

	// After recovery the same records deliver in the original order.
	sink.setErr(nil)
	d.Flush(context.Background())
	batches := sink.sent()
	if len(batches) != 1 || batches[0][0].ID != "rec-0" {
		t.Fatal("recovered flush must deliver the requeued records first")
	}
}

func TestFlushWithoutBatchSinkDrops(t *testing.T) {
	d := NewDispatcher(nil, 10, nil)
	for _, record := range queued(3) {
		d.Enqueue(record)
	}

	d.Flush(context.Background())
	if got := d.Pending(); got != 0 {
		t.Fatalf("pending = %d, want 0: without a sink the batch is dropped", got)
	}
}

func TestSendCriticalAlertFansOut(t *testing.T) {
	first := newFakeAlertSink()
	second := newFakeAlertSink()
	d := NewDispatcher(nil, 10, nil, first, second)

	d.SendCriticalAlert(&models.ErrorRecord{ID: "rec-crit", Severity: models.SeverityCritical})
	first.wait(t)
	second.wait(t)

	first.mu.Lock()
	defer first.mu.Unlock()
	if len(first.critical) != 1 || first.critical[0].ID != "rec-crit" {
		t.Fatalf("first sink critical alerts = %+v", first.critical)
	}
}

func TestSendSecurityAlertFailureIsIsolated(t *testing.T) {
	failing := newFakeAlertSink()
	failing.err = errors.New("webhook down")
	healthy := newFakeAlertSink()
	d := NewDispatcher(nil, 10, nil, failing, healthy)

	d.SendSecurityAlert(&models.SecurityThreat{ID: "threat-1"})
	failing.wait(t)
	healthy.wait(t)

	healthy.mu.Lock()
	defer healthy.mu.Unlock()
	if len(healthy.threats) != 1 {
		t.Fatal("a failing sink must not stop delivery to the others")
	}
}

func TestSendIncidentAlert(t *testing.T) {
	sink := newFakeAlertSink()
	d := NewDispatcher(nil, 10, nil, sink)

	d.SendIncidentAlert(&models.SecurityIncident{ID: "inc-1"})
	sink.wait(t)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.incidents) != 1 || sink.incidents[0].ID != "inc-1" {
		t.Fatalf("incident alerts = %+v", sink.incidents)
	}
}

func TestEnqueueNilIsIgnored(t *testing.T) {
	d := NewDispatcher(nil, 10, nil)
	d.Enqueue(nil)
	if d.Pending() != 0 {
		t.Fatal("nil records must not enter the queue")
	}
}
