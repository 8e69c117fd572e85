package cache

import (
	"context"
	"time"
)

// Cache is a process-wide key/value store used for resolved relationship paths.
// A zero TTL means the entry never expires.
type Cache interface {
	// Get returns the value and true if the key is present and not expired.
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set stores a value. A zero ttl uses the cache default.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	Delete(ctx context.Context, key string) error

	Clear(ctx context.Context) error

	// Len returns the number of live entries.
	Len() int

	Close() error

	Metrics() *Metrics
}

// Metrics holds cache statistics.
type Metrics struct {
	Hits        uint64
	Misses      uint64
	KeysAdded   uint64
	KeysEvicted uint64
	Entries     int
}

// HitRate returns the cache hit rate (0.0 to 1.0).
func (m *Metrics) HitRate() float64 {
	total := m.Hits + m.Misses
	if total == 0 {
		return 0.0
	}
	return float64(m.Hits) / float64(total)
}
