package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrKeyNotFound is returned when a key is not found in the cache
	ErrKeyNotFound = errors.New("key not found in cache")
	// ErrBackendUnavailable is returned when a backend cannot be reached
	ErrBackendUnavailable = errors.New("cache backend unavailable")
)

// Backend is a key-value store with TTL and prefix-scoped deletion.
type Backend interface {
	// Name identifies the backend in logs and stats
	Name() string
	// Ping checks that the backend is reachable
	Ping(ctx context.Context) error
	// Get retrieves a value, returning ErrKeyNotFound on a miss
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores a value with a TTL. A zero TTL means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// DeleteByPrefix removes every key starting with prefix and returns how many were removed
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)
	// Count returns the number of live keys starting with prefix
	Count(ctx context.Context, prefix string) (int, error)
	// Close releases the backend
	Close() error
}
