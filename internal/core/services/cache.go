package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driving"
	"github.com/Jeremy-Tarlie/smartmarket/internal/logger"
)

// Verify interface compliance.
var _ driving.CacheService = (*Cache)(nil)

// Cache memoises engine payloads keyed by request fingerprint.
// A nil *Cache is valid and computes every request.
type Cache struct {
	store   driven.CacheStore
	ttl     time.Duration
	enabled bool
	now     func() time.Time

	hits    atomic.Uint64
	misses  atomic.Uint64
	healthy atomic.Bool
}

// NewCache creates a cache over a store.
func NewCache(store driven.CacheStore, settings domain.CacheSettings) *Cache {
	c := &Cache{
		store:   store,
		ttl:     settings.TTL,
		enabled: settings.Enabled && store != nil,
		now:     time.Now,
	}
	c.healthy.Store(true)
	return c
}

// fingerprintKey is the canonical form hashed into a fingerprint.
// encoding/json sorts map keys, so equal inputs encode identically.
type fingerprintKey struct {
	Engine      string            `json:"engine"`
	Params      any               `json:"params"`
	Generations map[string]uint64 `json:"generations"`
}

// Fingerprint derives the cache key of a request. params must already be
// normalised (sorted filter lists, clamped k). Including the generation ids
// makes every rebuild self-invalidating.
func Fingerprint(engine string, params any, generations map[string]uint64) (string, error) {
	raw, err := json.Marshal(fingerprintKey{Engine: engine, Params: params, Generations: generations})
	if err != nil {
		return "", fmt.Errorf("%w: fingerprint params: %w", domain.ErrValidation, err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// GetOrCompute returns the cached payload for fingerprint, or runs compute
// and stores its result for ttl. Failed computations are not cached.
// A zero ttl uses the configured default. Store failures degrade to compute.
func (c *Cache) GetOrCompute(ctx context.Context, fingerprint string, ttl time.Duration,
	compute func(ctx context.Context) ([]byte, error)) ([]byte, bool, error) {
	if !c.active() {
		payload, err := compute(ctx)
		return payload, false, err
	}

	entry, ok, err := c.store.Get(ctx, fingerprint)
	switch {
	case err != nil:
		c.healthy.Store(false)
		logger.Warn("cache: get %.12s: %v", fingerprint, err)
	case ok && !entry.Expired(c.now()):
		c.hits.Add(1)
		logger.Debug("cache: hit %.12s", fingerprint)
		return entry.Payload, true, nil
	}
	c.misses.Add(1)

	payload, err := compute(ctx)
	if err != nil {
		return nil, false, err
	}

	if ttl <= 0 {
		ttl = c.ttl
	}
	entry = domain.CacheEntry{Fingerprint: fingerprint, Payload: payload}
	if ttl > 0 {
		entry.ExpiresAt = c.now().Add(ttl)
	}
	if err := c.store.Set(ctx, entry); err != nil {
		c.healthy.Store(false)
		logger.Warn("cache: set %.12s: %v", fingerprint, err)
	} else {
		c.healthy.Store(true)
	}
	return payload, false, nil
}

// InvalidateAll drops every cached entry. Idempotent.
func (c *Cache) InvalidateAll(ctx context.Context) error {
	if c == nil || c.store == nil {
		return nil
	}
	if err := c.store.Clear(ctx); err != nil {
		c.healthy.Store(false)
		return fmt.Errorf("invalidate cache: %w", err)
	}
	logger.Info("cache: invalidated")
	return nil
}

// PurgeExpired removes expired entries.
func (c *Cache) PurgeExpired(ctx context.Context) (int, error) {
	if c == nil || c.store == nil {
		return 0, nil
	}
	n, err := c.store.PurgeExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	if n > 0 {
		logger.Debug("cache: purged %d expired entries", n)
	}
	return n, nil
}

// Stats reports cache health and hit counts.
func (c *Cache) Stats(ctx context.Context) domain.CacheStats {
	if c == nil || c.store == nil {
		return domain.CacheStats{Backend: "disabled", Healthy: true}
	}
	stats := domain.CacheStats{
		Backend: c.store.Name(),
		Healthy: c.healthy.Load(),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
	n, err := c.store.Len(ctx)
	if err != nil {
		stats.Healthy = false
		return stats
	}
	stats.Entries = n
	return stats
}

func (c *Cache) active() bool {
	return c != nil && c.enabled
}

// cached runs compute through the cache, encoding the result as JSON.
func cached[T any](ctx context.Context, c *Cache, fingerprint string, compute func(ctx context.Context) (T, error)) (T, bool, error) {
	var zero T
	payload, hit, err := c.GetOrCompute(ctx, fingerprint, 0, func(ctx context.Context) ([]byte, error) {
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return zero, false, err
	}
	var out T
	if err := json.Unmarshal(payload, &out); err != nil {
		return zero, false, fmt.Errorf("decode cached payload: %w", err)
	}
	return out, hit, nil
}
