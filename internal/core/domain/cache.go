package domain

import "time"

// CacheEntry is a memoised engine result.
type CacheEntry struct {
	// Fingerprint encodes engine, normalised parameters and generation ids.
	Fingerprint string

	// Payload is the serialised engine result.
	Payload []byte

	// ExpiresAt is when the entry stops being served.
	ExpiresAt time.Time
}

// Expired reports whether the entry is past its expiry at now.
func (e CacheEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}
