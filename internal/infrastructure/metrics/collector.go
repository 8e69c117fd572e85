package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/asakaida/relata/pkg/cache"
)

// Collector collects and aggregates metrics for the relationship engines.
type Collector struct {
	// Operation metrics
	opCalls    sync.Map // map[string]*uint64 - operation -> count
	opErrors   sync.Map // map[string]*uint64 - operation -> error count
	opDuration sync.Map // map[string]*durationValue - operation -> total duration in seconds

	// Path cache reference (optional)
	cache cache.Cache
}

// durationValue holds duration with mutex for thread-safe updates.
type durationValue struct {
	mu           sync.Mutex
	totalSeconds float64
}

// CacheMetrics holds path cache metrics.
type CacheMetrics struct {
	Hits        uint64
	Misses      uint64
	HitRate     float64
	KeysCurrent int64
	Evictions   uint64
}

// OperationMetrics holds engine operation metrics.
type OperationMetrics struct {
	CallCounts           map[string]uint64
	ErrorCounts          map[string]uint64
	TotalDurationSeconds map[string]float64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{}
}

// SetCache sets the path cache for collecting cache metrics.
func (c *Collector) SetCache(cache cache.Cache) {
	c.cache = cache
}

// RecordCall records an operation call.
func (c *Collector) RecordCall(op string) {
	atomic.AddUint64(c.getOrCreateCounter(&c.opCalls, op), 1)
}

// RecordError records a failed operation.
func (c *Collector) RecordError(op string) {
	atomic.AddUint64(c.getOrCreateCounter(&c.opErrors, op), 1)
}

// RecordDuration records the duration of an operation in seconds.
func (c *Collector) RecordDuration(op string, durationSeconds float64) {
	val, _ := c.opDuration.LoadOrStore(op, &durationValue{})
	dv := val.(*durationValue)

	dv.mu.Lock()
	dv.totalSeconds += durationSeconds
	dv.mu.Unlock()
}

// GetCacheMetrics returns current path cache metrics.
func (c *Collector) GetCacheMetrics() *CacheMetrics {
	if c.cache == nil {
		return &CacheMetrics{}
	}

	metrics := c.cache.Metrics()
	if metrics == nil {
		return &CacheMetrics{}
	}

	return &CacheMetrics{
		Hits:        metrics.Hits,
		Misses:      metrics.Misses,
		HitRate:     metrics.HitRate(),
		KeysCurrent: int64(c.cache.Len()),
		Evictions:   metrics.KeysEvicted,
	}
}

// GetOperationMetrics returns current operation metrics.
func (c *Collector) GetOperationMetrics() *OperationMetrics {
	result := &OperationMetrics{
		CallCounts:           make(map[string]uint64),
		ErrorCounts:          make(map[string]uint64),
		TotalDurationSeconds: make(map[string]float64),
	}

	c.opCalls.Range(func(key, value interface{}) bool {
		result.CallCounts[key.(string)] = atomic.LoadUint64(value.(*uint64))
		return true
	})

	c.opErrors.Range(func(key, value interface{}) bool {
		result.ErrorCounts[key.(string)] = atomic.LoadUint64(value.(*uint64))
		return true
	})

	c.opDuration.Range(func(key, value interface{}) bool {
		dv := value.(*durationValue)
		dv.mu.Lock()
		result.TotalDurationSeconds[key.(string)] = dv.totalSeconds
		dv.mu.Unlock()
		return true
	})

	return result
}

// getOrCreateCounter gets or creates a counter for the given key.
func (c *Collector) getOrCreateCounter(m *sync.Map, key string) *uint64 {
	val, _ := m.LoadOrStore(key, new(uint64))
	return val.(*uint64)
}
