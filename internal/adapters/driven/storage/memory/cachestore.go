package memory

import (
	"bytes"
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
)

// Ensure CacheStore implements the interface.
var _ driven.CacheStore = (*CacheStore)(nil)

// CacheStore is a bounded in-memory LRU cache. Entries expire at their own
// ExpiresAt and never outlive the store's max age. When full, expired
// entries are purged first, then the least recently used one is evicted.
type CacheStore struct {
	lru        *expirable.LRU[string, domain.CacheEntry]
	maxEntries int
	now        func() time.Time
}

// CacheOption configures a CacheStore.
type CacheOption func(*cacheOptions)

type cacheOptions struct {
	maxAge time.Duration
}

// WithMaxAge bounds how long any entry is kept, whatever its ExpiresAt.
func WithMaxAge(d time.Duration) CacheOption {
	return func(o *cacheOptions) { o.maxAge = d }
}

// NewCacheStore creates a cache holding at most maxEntries (0 = unbounded).
func NewCacheStore(maxEntries int, opts ...CacheOption) *CacheStore {
	var o cacheOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &CacheStore{
		lru:        expirable.NewLRU[string, domain.CacheEntry](max(maxEntries, 0), nil, o.maxAge),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns a copy of a live entry.
func (s *CacheStore) Get(_ context.Context, fingerprint string) (domain.CacheEntry, bool, error) {
	e, ok := s.lru.Get(fingerprint)
	if !ok {
		return domain.CacheEntry{}, false, nil
	}
	if e.Expired(s.now()) {
		s.lru.Remove(fingerprint)
		return domain.CacheEntry{}, false, nil
	}
	e.Payload = bytes.Clone(e.Payload)
	return e, true, nil
}

// Set stores a copy of entry.
func (s *CacheStore) Set(_ context.Context, entry domain.CacheEntry) error {
	entry.Payload = bytes.Clone(entry.Payload)
	if s.maxEntries > 0 && s.lru.Len() >= s.maxEntries && !s.lru.Contains(entry.Fingerprint) {
		s.purge()
	}
	s.lru.Add(entry.Fingerprint, entry)
	return nil
}

// Clear removes every entry.
func (s *CacheStore) Clear(_ context.Context) error {
	s.lru.Purge()
	return nil
}

// PurgeExpired removes expired entries.
func (s *CacheStore) PurgeExpired(_ context.Context) (int, error) {
	return s.purge(), nil
}

// Len returns the number of stored entries, expired ones included.
func (s *CacheStore) Len(_ context.Context) (int, error) {
	return s.lru.Len(), nil
}

// Name returns "memory".
func (s *CacheStore) Name() string { return "memory" }

func (s *CacheStore) purge() int {
	now := s.now()
	n := 0
	for _, k := range s.lru.Keys() {
		if e, ok := s.lru.Peek(k); ok && e.Expired(now) && s.lru.Remove(k) {
			n++
		}
	}
	return n
}
