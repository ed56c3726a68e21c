package security

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/sentinelstack/sentinel-engine/internal/cache"
)

// BlockStore holds temporary origin blocks. Implementations must be safe for
// concurrent use.
type BlockStore interface {
	// Block marks origin as blocked for the given duration.
	Block(ctx context.Context, origin string, duration time.Duration) error
	// IsBlocked reports whether origin currently has an active block.
	IsBlocked(ctx context.Context, origin string) bool
	// Unblock lifts a block before it expires.
	Unblock(ctx context.Context, origin string) error
}

const blockListCapacity = 4096

// MemoryBlockList is the in-process BlockStore. Entries carry their own
// expiry because block durations differ per threat type; the LRU's TTL only
// caps the longest one.
type MemoryBlockList struct {
	entries *expirable.LRU[string, time.Time]
	now     func() time.Time
}

// NewMemoryBlockList constructs the default block list.
func NewMemoryBlockList(maxDuration time.Duration) *MemoryBlockList {
	if maxDuration <= 0 {
		maxDuration = time.Hour
	}
	return &MemoryBlockList{
		entries: expirable.NewLRU[string, time.Time](blockListCapacity, nil, maxDuration),
		now:     time.Now,
	}
}

// Block implements BlockStore.
func (b *MemoryBlockList) Block(_ context.Context, origin string, duration time.Duration) error {
	if origin == "" {
		return errors.New("empty origin")
	}
	b.entries.Add(origin, b.now().Add(duration))
	return nil
}

// IsBlocked implements BlockStore.
func (b *MemoryBlockList) IsBlocked(_ context.Context, origin string) bool {
	expiry, ok := b.entries.Get(origin)
	if !ok {
		return false
	}
	if b.now().After(expiry) {
		b.entries.Remove(origin)
		return false
	}
	return true
}

// Unblock implements BlockStore.
func (b *MemoryBlockList) Unblock(_ context.Context, origin string) error {
	b.entries.Remove(origin)
	return nil
}

// SetNow overrides the clock, for tests.
func (b *MemoryBlockList) SetNow(now func() time.Time) {
	b.now = now
}

// SharedBlockStore keeps blocks in a Valkey-compatible store so multiple
// engine replicas converge on the same containment decisions.
type SharedBlockStore struct {
	provider cache.Provider
	prefix   string
}

// NewSharedBlockStore wraps a cache provider as a BlockStore.
func NewSharedBlockStore(provider cache.Provider) *SharedBlockStore {
	return &SharedBlockStore{provider: provider, prefix: "sentinel:block:"}
}

// Block implements BlockStore using a TTL'd key. SetNX keeps the first
// block's expiry when replicas mitigate the same origin concurrently.
func (s *SharedBlockStore) Block(ctx context.Context, origin string, duration time.Duration) error {
	if origin == "" {
		return errors.New("empty origin")
	}
	if _, err := s.provider.SetNX(ctx, s.prefix+origin, []byte("1"), duration); err != nil {
		return fmt.Errorf("store block: %w", err)
	}
	return nil
}

// IsBlocked implements BlockStore.
func (s *SharedBlockStore) IsBlocked(ctx context.Context, origin string) bool {
	_, err := s.provider.Get(ctx, s.prefix+origin)
	return err == nil
}

// Unblock implements BlockStore.
func (s *SharedBlockStore) Unblock(ctx context.Context, origin string) error {
	return s.provider.Del(ctx, s.prefix+origin)
}
