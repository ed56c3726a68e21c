package security

import (
	"context"
	"testing"
	"time"
)

func TestMemoryBlockListExpiry(t *testing.T) {
	b := NewMemoryBlockList(time.Hour)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b.SetNow(func() time.Time { return base })

	ctx := context.Background()
	if err := b.Block(ctx, "203.0.113.1", 15*time.Minute); err != nil {
		t.Fatalf("Block: %v", err)
	}
	if !b.IsBlocked(ctx, "203.0.113.1") {
		t.Fatal("origin should be blocked immediately after Block")
	}

	b.SetNow(func() time.Time { return base.Add(14 * time.Minute) })
	if !b.IsBlocked(ctx, "203.0.113.1") {
		t.Fatal("block should still hold inside its duration")
	}

	b.SetNow(func() time.Time { return base.Add(16 * time.Minute) })
	if b.IsBlocked(ctx, "203.0.113.1") {
		t.Fatal("block should expire after its duration")
	}
}

func TestMemoryBlockListUnblock(t *testing.T) {
	b := NewMemoryBlockList(time.Hour)
	ctx := context.Background()

	if err := b.Block(ctx, "203.0.113.2", time.Hour); err != nil {
		t.Fatalf("Block: %v", err)
	}
	if err := b.Unblock(ctx, "203.0.113.2"); err != nil {
		t.Fatalf("Unblock: %v", err)
	}
	if b.IsBlocked(ctx, "203.0.113.2") {
		t.Fatal("unblocked origin should not report blocked")
	}
}

func TestMemoryBlockListRejectsEmptyOrigin(t *testing.T) {
	b := NewMemoryBlockList(time.Hour)
	if err := b.Block(context.Background(), "", time.Minute); err == nil {
		t.Fatal("empty origin must be rejected")
	}
}

func TestSharedBlockStoreRoundTrip(t *testing.T) {
	provider := newStubCache()
	s := NewSharedBlockStore(provider)
	ctx := context.Background()

	if s.IsBlocked(ctx, "203.0.113.3") {
		t.Fatal("unknown origin should not be blocked")
	}
	if err := s.Block(ctx, "203.0.113.3", 30*time.Minute); err != nil {
		t.Fatalf("Block: %v", err)
	}
	if !s.IsBlocked(ctx, "203.0.113.3") {
		t.Fatal("origin should be blocked")
	}
	if err := s.Unblock(ctx, "203.0.113.3"); err != nil {
		t.Fatalf("Unblock: %v", err)
	}
	if s.IsBlocked(ctx, "203.0.113.3") {
		t.Fatal("unblocked origin should not be blocked")
	}
}

func TestSharedBlockStoreFirstBlockWins(t *testing.T) {
	provider := newStubCache()
	s := NewSharedBlockStore(provider)
	ctx := context.Background()

	if err := s.Block(ctx, "203.0.113.3", 30*time.Minute); err != nil {
		t.Fatalf("Block: %v", err)
	}
	provider.store["sentinel:block:203.0.113.3"] = []byte("original")

	if err := s.Block(ctx, "203.0.113.3", time.Hour); err != nil {
		t.Fatalf("re-Block: %v", err)
	}
	value, err := provider.Get(ctx, "sentinel:block:203.0.113.3")
	if err != nil || string(value) != "original" {
		t.Fatalf("Get = (%q, %v), want the existing entry untouched", value, err)
	}
	if !s.IsBlocked(ctx, "203.0.113.3") {
		t.Fatal("origin should remain blocked")
	}
}

func TestSharedBlockStoreKeyPrefix(t *testing.T) {
	provider := newStubCache()
	s := NewSharedBlockStore(provider)
	ctx := context.Background()

	if err := s.Block(ctx, "origin-a", time.Minute); err != nil {
		t.Fatalf("Block: %v", err)
	}
	if _, err := provider.Get(ctx, "sentinel:block:origin-a"); err != nil {
		t.Fatal("blocks should be namespaced under the sentinel block prefix")
	}
}
