package store

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sentinelstack/sentinel-engine/internal/models"
)

// Enqueuer receives newly created records for eventual batch delivery.
// Repeat occurrences are not re-enqueued.
type Enqueuer interface {
	Enqueue(record *models.ErrorRecord)
}

// Occurrence is a single error event as reported by a producer.
type Occurrence struct {
	Message        string
	StackTrace     string
	Classification models.Classification
	Severity       models.Severity
	Category       string
	Context        models.ErrorContext
	Tags           []string
	Metadata       map[string]any
}

var digitRuns = regexp.MustCompile(`\d+`)

// Fingerprint derives the dedup identity for an occurrence. Messages that
// differ only in embedded digits collapse to the same fingerprint.
func Fingerprint(classification models.Classification, category, message string) string {
	collapsed := digitRuns.ReplaceAllString(message, "#")
	h := fnv.New64a()
	h.Write([]byte(string(classification)))
	h.Write([]byte{0})
	h.Write([]byte(category))
	h.Write([]byte{0})
	h.Write([]byte(collapsed))
	return fmt.Sprintf("%016x", h.Sum64())
}

// EventStore aggregates error occurrences by fingerprint. All methods are
// safe for concurrent use.
type EventStore struct {
	mu      sync.Mutex
	records map[string]*models.ErrorRecord
	byID    map[string]*models.ErrorRecord
	queue   Enqueuer
	logger  *slog.Logger
	now     func() time.Time
}

// NewEventStore constructs an empty store. queue may be nil for dry runs.
func NewEventStore(logger *slog.Logger, queue Enqueuer) *EventStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventStore{
		records: make(map[string]*models.ErrorRecord),
		byID:    make(map[string]*models.ErrorRecord),
		queue:   queue,
		logger:  logger,
		now:     time.Now,
	}
}

// Record merges the occurrence into the existing record for its fingerprint,
// or creates a new record with count 1. The returned record is a detached
// copy safe to read without further locking; the bool reports whether a new
// record was created. New records are handed to the enqueuer.
func (s *EventStore) Record(occ Occurrence) (*models.ErrorRecord, bool) {
	ts := occ.Context.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	fingerprint := Fingerprint(occ.Classification, occ.Category, occ.Message)

	s.mu.Lock()
	existing, ok := s.records[fingerprint]
	if ok {
		existing.Count++
		existing.LastSeen = ts
		if existing.Metadata == nil && len(occ.Metadata) > 0 {
			existing.Metadata = make(map[string]any, len(occ.Metadata))
		}
		for k, v := range occ.Metadata {
			existing.Metadata[k] = v
		}
		existing.Tags = mergeTags(existing.Tags, occ.Tags)
		clone := detach(existing)
		s.mu.Unlock()

		s.logger.Debug("repeat occurrence",
			slog.String("fingerprint", fingerprint),
			slog.Int("count", clone.Count))
		return clone, false
	}

	record := &models.ErrorRecord{
		ID:             uuid.NewString(),
		Message:        occ.Message,
		StackTrace:     occ.StackTrace,
		Classification: occ.Classification,
		Severity:       occ.Severity,
		Category:       occ.Category,
		Context:        occ.Context,
		Fingerprint:    fingerprint,
		Count:          1,
		FirstSeen:      ts,
		LastSeen:       ts,
		Tags:           mergeTags(nil, occ.Tags),
		Metadata:       copyMetadata(occ.Metadata),
	}
	s.records[fingerprint] = record
	s.byID[record.ID] = record
	clone := detach(record)
	s.mu.Unlock()

	if s.queue != nil {
		s.queue.Enqueue(clone)
	}
	return clone, true
}

// Get returns a copy of the record with the given id, or nil.
func (s *EventStore) Get(id string) *models.ErrorRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.byID[id]
	if !ok {
		return nil
	}
	return detach(record)
}

// ByFingerprint returns a copy of the record for a fingerprint, or nil.
func (s *EventStore) ByFingerprint(fingerprint string) *models.ErrorRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[fingerprint]
	if !ok {
		return nil
	}
	return detach(record)
}

// Resolve marks a record resolved. Records are never deleted.
func (s *EventStore) Resolve(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.byID[id]
	if !ok {
		return false
	}
	record.Resolved = true
	return true
}

// Snapshot returns a copy of every record, for read-only reporting.
func (s *EventStore) Snapshot() []*models.ErrorRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.ErrorRecord, 0, len(s.records))
	for _, record := range s.records {
		out = append(out, detach(record))
	}
	return out
}

// Len returns the number of unique records.
func (s *EventStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// SetNow overrides the clock, for tests.
func (s *EventStore) SetNow(now func() time.Time) {
	s.now = now
}

func mergeTags(existing, additions []string) []string {
	if len(additions) == 0 {
		return existing
	}
	seen := make(map[string]struct{}, len(existing))
	for _, tag := range existing {
		seen[tag] = struct{}{}
	}
	for _, tag := range additions {
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		existing = append(existing, tag)
		seen[tag] = struct{}{}
	}
	return existing
}

// detach deep-copies a record so the caller can read it after the store's
// lock is released. Metadata and Tags must not alias the stored record:
// later occurrences mutate those in place under the lock.
func detach(record *models.ErrorRecord) *models.ErrorRecord {
	clone := *record
	clone.Metadata = copyMetadata(record.Metadata)
	clone.Tags = append([]string(nil), record.Tags...)
	return &clone
}

func copyMetadata(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return nil
	}
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
