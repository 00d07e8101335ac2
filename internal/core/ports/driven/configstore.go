package driven

import "time"

// ConfigStore holds the persisted configuration as flat dot keys
// ("search.semantic_weight"). Typed getters return the zero value when a
// key is missing or holds another type.
type ConfigStore interface {
	// Get returns the raw value and whether the key is set.
	Get(key string) (any, bool)
	GetString(key string) string
	GetInt(key string) int
	GetFloat(key string) float64
	GetBool(key string) bool

	// GetDuration accepts a Go duration string ("30m") or a number of seconds.
	GetDuration(key string) time.Duration
	GetStringSlice(key string) []string

	// Keys lists the set keys in sorted order.
	Keys() []string

	// Set and Delete change the in-memory values. Save persists them.
	Set(key string, value any) error
	Delete(key string) bool

	Save() error

	// Load rereads storage, discarding unsaved changes.
	Load() error

	// Path identifies the backing file.
	Path() string
}
