package cache_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/soundprediction/go-evolsynth/pkg/cache"
	"github.com/soundprediction/go-evolsynth/pkg/logger"
	"github.com/soundprediction/go-evolsynth/pkg/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreUsesReachablePrimary(t *testing.T) {
	primary, _ := newRedisBackend(t)
	store := cache.NewStore(context.Background(), primary, nil)

	assert.Equal(t, "redis", store.Backend())
	assert.False(t, store.Degraded())
}

func TestStoreFallsBackOnceWhenPrimaryUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	primary, err := cache.NewRedisBackend("redis://" + mr.Addr())
	require.NoError(t, err)
	mr.Close()

	var buf bytes.Buffer
	store := cache.NewStore(context.Background(), primary, cache.NewMemoryBackend(),
		cache.WithStoreLogger(logger.NewLogger(&buf, slog.LevelDebug)))

	assert.Equal(t, "memory", store.Backend())
	assert.True(t, store.Degraded())
	assert.Equal(t, 1, strings.Count(buf.String(), "falling back"))

	// The fallback keeps serving reads and writes.
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "generation:k", []byte("v"), time.Minute))
	got, err := store.Get(ctx, "generation:k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
	assert.Equal(t, 1, strings.Count(buf.String(), "falling back"))
}

func TestStoreNilPrimaryUsesFallback(t *testing.T) {
	store := cache.NewStore(context.Background(), nil, newBadgerBackend(t))
	assert.Equal(t, "badger", store.Backend())
	assert.False(t, store.Degraded())
}

func TestStoreJSONRoundTripIsByteIdentical(t *testing.T) {
	ctx := context.Background()
	primary, _ := newRedisBackend(t)
	store := cache.NewStore(ctx, primary, nil)

	type payload struct {
		Questions []string           `json:"questions"`
		Scores    map[string]float64 `json:"scores"`
	}
	in := payload{
		Questions: []string{"What is Go?", "Why are goroutines cheap?"},
		Scores:    map[string]float64{"answer_accuracy": 0.8, "question_quality": 0.95},
	}

	key := cache.HashKey(cache.PrefixGeneration, "doc")
	require.NoError(t, store.SetJSON(ctx, key, in, time.Hour))

	raw1, err := store.Get(ctx, key)
	require.NoError(t, err)

	var out payload
	require.NoError(t, store.GetJSON(ctx, key, &out))
	assert.Equal(t, in, out)

	raw2, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, raw1, raw2)
}

func TestStoreDeleteByPrefixIsolatesNamespaces(t *testing.T) {
	ctx := context.Background()
	store := cache.NewStore(ctx, nil, nil)

	require.NoError(t, store.Set(ctx, "docs:1", []byte("a"), time.Hour))
	require.NoError(t, store.Set(ctx, "docs:2", []byte("b"), time.Hour))
	require.NoError(t, store.Set(ctx, "generation:1", []byte("c"), time.Hour))
	require.NoError(t, store.Set(ctx, "contexts:1", []byte("d"), time.Hour))

	n, err := store.DeleteByPrefix(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Entries["docs"])
	assert.Equal(t, 1, stats.Entries["generation"])
	assert.Equal(t, 1, stats.Entries["contexts"])

	_, err = store.DeleteByPrefix(ctx, "")
	assert.Error(t, err)
}

func TestStoreStatsAndMetrics(t *testing.T) {
	ctx := context.Background()
	metrics := telemetry.NewMetrics()
	store := cache.NewStore(ctx, nil, nil, cache.WithStoreMetrics(metrics))

	require.NoError(t, store.Set(ctx, "docs:1", []byte("a"), time.Hour))
	_, err := store.Get(ctx, "docs:1")
	require.NoError(t, err)
	_, err = store.Get(ctx, "docs:2")
	assert.ErrorIs(t, err, cache.ErrKeyNotFound)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Writes)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheRequests.WithLabelValues("docs", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheRequests.WithLabelValues("docs", "miss")))
}
