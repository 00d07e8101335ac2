package driven

import (
	"context"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
)

// CacheStore holds memoised engine payloads.
// Implementations must be safe for concurrent use and must never return
// a partially written entry.
type CacheStore interface {
	// Get returns the entry for fingerprint. The boolean is false on a miss
	// or when the entry has expired.
	Get(ctx context.Context, fingerprint string) (domain.CacheEntry, bool, error)

	// Set stores an entry, replacing any previous one.
	Set(ctx context.Context, entry domain.CacheEntry) error

	// Clear removes every entry. Clearing an empty store is not an error.
	Clear(ctx context.Context) error

	// PurgeExpired removes expired entries and returns how many were removed.
	PurgeExpired(ctx context.Context) (int, error)

	// Len returns the number of stored entries.
	Len(ctx context.Context) (int, error)

	// Name identifies the backend in status reports.
	Name() string
}
