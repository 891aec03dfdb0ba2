package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/soundprediction/go-evolsynth/pkg/telemetry"
)

// Store is the cache used by the pipeline. The backend is chosen once at
// construction: the primary when it answers a probe, otherwise the fallback
// for the rest of the process lifetime.
type Store struct {
	backend  Backend
	degraded bool
	logger   *slog.Logger
	metrics  *telemetry.Metrics

	hits   atomic.Int64
	misses atomic.Int64
	writes atomic.Int64
	errors atomic.Int64
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets the logger.
func WithStoreLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// WithStoreMetrics records lookups in m.
func WithStoreMetrics(m *telemetry.Metrics) StoreOption {
	return func(s *Store) { s.metrics = m }
}

// NewStore probes primary once and falls back when it is nil or unreachable.
// A nil fallback uses a MemoryBackend.
func NewStore(ctx context.Context, primary, fallback Backend, opts ...StoreOption) *Store {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if fallback == nil {
		fallback = NewMemoryBackend()
	}

	if primary == nil {
		s.backend = fallback
		s.logger.Info("cache using in-process backend", "backend", fallback.Name())
		return s
	}

	if err := primary.Ping(ctx); err != nil {
		s.logger.Warn("cache backend unavailable, falling back to in-process cache",
			"primary", primary.Name(),
			"fallback", fallback.Name(),
			"error", err)
		_ = primary.Close()
		s.backend = fallback
		s.degraded = true
		return s
	}

	if fallback != primary {
		_ = fallback.Close()
	}
	s.backend = primary
	s.logger.Info("cache backend connected", "backend", primary.Name())
	return s
}

// Backend returns the backend name in use.
func (s *Store) Backend() string {
	return s.backend.Name()
}

// Degraded reports whether the store fell back after a failed probe.
func (s *Store) Degraded() bool {
	return s.degraded
}

// Get returns the value for key or ErrKeyNotFound. Backend errors are
// reported as-is and counted; callers treat them as a miss.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	ns := strings.TrimSuffix(NamespaceOf(key), ":")
	val, err := s.backend.Get(ctx, key)
	switch {
	case err == nil:
		s.hits.Add(1)
		s.metrics.ObserveCache(ns, "hit")
		return val, nil
	case errors.Is(err, ErrKeyNotFound):
		s.misses.Add(1)
		s.metrics.ObserveCache(ns, "miss")
		return nil, ErrKeyNotFound
	default:
		s.errors.Add(1)
		s.metrics.ObserveCache(ns, "error")
		s.logger.Warn("cache read failed", "key", key, "error", err)
		return nil, err
	}
}

// Set stores value under key.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.backend.Set(ctx, key, value, ttl); err != nil {
		s.errors.Add(1)
		return fmt.Errorf("cache write failed: %w", err)
	}
	s.writes.Add(1)
	return nil
}

// GetJSON decodes the value for key into v.
func (s *Store) GetJSON(ctx context.Context, key string, v interface{}) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode cached value: %w", err)
	}
	return nil
}

// SetJSON encodes v and stores it under key.
func (s *Store) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache value: %w", err)
	}
	return s.Set(ctx, key, data, ttl)
}

// DeleteByPrefix clears one namespace and returns the number of removed entries.
func (s *Store) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	prefix = NormalizePrefix(prefix)
	if prefix == "" {
		return 0, fmt.Errorf("refusing to delete with an empty prefix")
	}
	n, err := s.backend.DeleteByPrefix(ctx, prefix)
	if err != nil {
		return n, fmt.Errorf("failed to clear %s: %w", prefix, err)
	}
	s.logger.Info("cache namespace cleared", "prefix", prefix, "deleted", n)
	return n, nil
}

// StoreStats describes cache usage since construction.
type StoreStats struct {
	Backend  string         `json:"backend"`
	Degraded bool           `json:"degraded"`
	Hits     int64          `json:"hits"`
	Misses   int64          `json:"misses"`
	Writes   int64          `json:"writes"`
	Errors   int64          `json:"errors"`
	HitRate  float64        `json:"hit_rate"`
	Entries  map[string]int `json:"entries"`
}

// Stats returns counters and per-namespace entry counts.
func (s *Store) Stats(ctx context.Context) (StoreStats, error) {
	st := StoreStats{
		Backend:  s.backend.Name(),
		Degraded: s.degraded,
		Hits:     s.hits.Load(),
		Misses:   s.misses.Load(),
		Writes:   s.writes.Load(),
		Errors:   s.errors.Load(),
		Entries:  make(map[string]int, len(Namespaces)),
	}
	if lookups := st.Hits + st.Misses; lookups > 0 {
		st.HitRate = float64(st.Hits) / float64(lookups)
	}
	for _, ns := range Namespaces {
		n, err := s.backend.Count(ctx, ns)
		if err != nil {
			return st, fmt.Errorf("failed to count %s: %w", ns, err)
		}
		st.Entries[strings.TrimSuffix(ns, ":")] = n
	}
	return st, nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
