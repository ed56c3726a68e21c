package cache

import (
	"context"
	"errors"
	"time"
)

// Provider defines the minimal key/value operations the engine needs for
// shared state (currently only the temporary block list).
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX stores the value only when the key is absent, reporting whether
	// it was written. An existing key keeps its value and TTL.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
	Close() error
}

// ErrCacheMiss signals that a cache key was not found.
var ErrCacheMiss = errors.New("cache miss")
