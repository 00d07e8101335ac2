package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jeremy-Tarlie/smartmarket/internal/adapters/driven/storage/memory"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
)

func newTestCache() *Cache {
	return NewCache(memory.NewCacheStore(100), domain.CacheSettings{Enabled: true, TTL: time.Hour})
}

// counter returns a compute func that counts its calls.
func counter(payload string, calls *int) func(context.Context) ([]byte, error) {
	return func(context.Context) ([]byte, error) {
		*calls++
		return []byte(payload), nil
	}
}

func TestFingerprint(t *testing.T) {
	req := domain.SearchRequest{Query: "tv", K: 5}
	gens := map[string]uint64{domain.ArtifactProductIndex: 3}

	a, err := Fingerprint(domain.EngineSearch, req, gens)
	require.NoError(t, err)
	b, err := Fingerprint(domain.EngineSearch, req, map[string]uint64{domain.ArtifactProductIndex: 3})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	others := []struct {
		name   string
		engine string
		params any
		gens   map[string]uint64
	}{
		{"engine", domain.EngineRecommend, req, gens},
		{"params", domain.EngineSearch, domain.SearchRequest{Query: "tv", K: 6}, gens},
		{"generation", domain.EngineSearch, req, map[string]uint64{domain.ArtifactProductIndex: 4}},
	}
	for _, tt := range others {
		t.Run(tt.name, func(t *testing.T) {
			fp, err := Fingerprint(tt.engine, tt.params, tt.gens)
			require.NoError(t, err)
			assert.NotEqual(t, a, fp)
		})
	}

	_, err = Fingerprint(domain.EngineSearch, func() {}, gens)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCache_HitAndMiss(t *testing.T) {
	c := newTestCache()
	ctx := context.Background()
	calls := 0

	payload, hit, err := c.GetOrCompute(ctx, "fp", 0, counter("one", &calls))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "one", string(payload))

	payload, hit, err = c.GetOrCompute(ctx, "fp", 0, counter("two", &calls))
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "one", string(payload))
	assert.Equal(t, 1, calls)

	stats := c.Stats(ctx)
	assert.Equal(t, "memory", stats.Backend)
	assert.True(t, stats.Healthy)
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
	c := newTestCache()
	ctx := context.Background()
	boom := errors.New("boom")

	_, _, err := c.GetOrCompute(ctx, "fp", 0, func(context.Context) ([]byte, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	calls := 0
	_, hit, err := c.GetOrCompute(ctx, "fp", 0, counter("ok", &calls))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, calls)
}

func TestCache_DisabledAndNil(t *testing.T) {
	ctx := context.Background()
	disabled := NewCache(memory.NewCacheStore(10), domain.CacheSettings{Enabled: false})
	var nilCache *Cache

	for name, c := range map[string]*Cache{"disabled": disabled, "nil": nilCache} {
		t.Run(name, func(t *testing.T) {
			calls := 0
			for range 2 {
				_, hit, err := c.GetOrCompute(ctx, "fp", 0, counter("x", &calls))
				require.NoError(t, err)
				assert.False(t, hit)
			}
			assert.Equal(t, 2, calls)
			assert.NoError(t, c.InvalidateAll(ctx))
		})
	}

	assert.Equal(t, "disabled", nilCache.Stats(ctx).Backend)
	n, err := nilCache.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCache_StoreFailureDegradesToCompute(t *testing.T) {
	c := NewCache(failingCacheStore{}, domain.CacheSettings{Enabled: true, TTL: time.Minute})
	ctx := context.Background()
	calls := 0

	payload, hit, err := c.GetOrCompute(ctx, "fp", 0, counter("fresh", &calls))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "fresh", string(payload))
	assert.False(t, c.Stats(ctx).Healthy)

	assert.ErrorIs(t, c.InvalidateAll(ctx), errCacheDown)
	_, err = c.PurgeExpired(ctx)
	assert.ErrorIs(t, err, errCacheDown)
}

func TestCache_InvalidateAllIsIdempotent(t *testing.T) {
	c := newTestCache()
	ctx := context.Background()
	calls := 0

	_, _, err := c.GetOrCompute(ctx, "fp", 0, counter("x", &calls))
	require.NoError(t, err)

	require.NoError(t, c.InvalidateAll(ctx))
	require.NoError(t, c.InvalidateAll(ctx))
	assert.Zero(t, c.Stats(ctx).Entries)

	_, hit, err := c.GetOrCompute(ctx, "fp", 0, counter("x", &calls))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, calls)
}

func TestCache_TTL(t *testing.T) {
	c := newTestCache()
	ctx := context.Background()
	base := time.Now()
	c.now = func() time.Time { return base }
	calls := 0

	_, _, err := c.GetOrCompute(ctx, "fp", 0, counter("x", &calls))
	require.NoError(t, err)

	c.now = func() time.Time { return base.Add(59 * time.Minute) }
	_, hit, err := c.GetOrCompute(ctx, "fp", 0, counter("x", &calls))
	require.NoError(t, err)
	assert.True(t, hit)

	c.now = func() time.Time { return base.Add(61 * time.Minute) }
	_, hit, err = c.GetOrCompute(ctx, "fp", 0, counter("x", &calls))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, calls)
}

func TestCache_PurgeExpired(t *testing.T) {
	c := newTestCache()
	ctx := context.Background()
	calls := 0

	// Entries stamped an hour ago with a one minute ttl are already expired.
	c.now = func() time.Time { return time.Now().Add(-time.Hour) }
	_, _, err := c.GetOrCompute(ctx, "old", time.Minute, counter("x", &calls))
	require.NoError(t, err)
	c.now = time.Now
	_, _, err = c.GetOrCompute(ctx, "new", 0, counter("y", &calls))
	require.NoError(t, err)

	n, err := c.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, c.Stats(ctx).Entries)
}

func TestCached_DecodesPayload(t *testing.T) {
	c := newTestCache()
	ctx := context.Background()
	compute := func(context.Context) ([]domain.Recommendation, error) {
		return []domain.Recommendation{{ItemID: 7, Score: 0.5, Reason: "Related product"}}, nil
	}

	first, hit, err := cached(ctx, c, "fp", compute)
	require.NoError(t, err)
	assert.False(t, hit)
	second, hit, err := cached(ctx, c, "fp", compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first, second)

	require.NoError(t, c.store.Set(ctx, domain.CacheEntry{Fingerprint: "bad", Payload: []byte("{")}))
	_, _, err = cached(ctx, c, "bad", compute)
	assert.Error(t, err)
}
