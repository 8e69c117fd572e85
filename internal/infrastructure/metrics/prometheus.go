package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusExporter exports metrics to Prometheus format.
type PrometheusExporter struct {
	collector *Collector

	pathCacheHitRate prometheus.Gauge
	pathCacheKeys    prometheus.Gauge
	pathCacheHits    prometheus.Gauge
	pathCacheMisses  prometheus.Gauge
	operations       *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	errors           *prometheus.CounterVec
	reindexed        prometheus.Counter
}

// NewPrometheusExporter creates a new Prometheus exporter registered on reg.
// A nil reg uses the default registerer.
func NewPrometheusExporter(collector *Collector, reg prometheus.Registerer) *PrometheusExporter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusExporter{
		collector: collector,
		pathCacheHitRate: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relata_path_cache_hit_rate",
			Help: "Current relationship path cache hit rate (0.0 to 1.0)",
		}),
		pathCacheKeys: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relata_path_cache_keys_current",
			Help: "Current number of resolved paths in the cache",
		}),
		pathCacheHits: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relata_path_cache_hits",
			Help: "Number of path cache hits since start",
		}),
		pathCacheMisses: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relata_path_cache_misses",
			Help: "Number of path cache misses since start",
		}),
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relata_operations_total",
				Help: "Total number of relationship operations",
			},
			[]string{"operation"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relata_operation_duration_seconds",
				Help:    "Duration of relationship operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
			},
			[]string{"operation"},
		),
		errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relata_operation_errors_total",
				Help: "Total number of failed relationship operations",
			},
			[]string{"operation"},
		),
		reindexed: factory.NewCounter(prometheus.CounterOpts{
			Name: "relata_reindex_entries_total",
			Help: "Total number of search index entries processed",
		}),
	}
}

// Update updates gauge metrics from the collector.
// Counters are updated by the instrumenter, so only gauges are set here.
func (e *PrometheusExporter) Update() {
	cacheMetrics := e.collector.GetCacheMetrics()
	e.pathCacheHitRate.Set(cacheMetrics.HitRate)
	e.pathCacheKeys.Set(float64(cacheMetrics.KeysCurrent))
	e.pathCacheHits.Set(float64(cacheMetrics.Hits))
	e.pathCacheMisses.Set(float64(cacheMetrics.Misses))
}

// RecordCall records an operation call.
func (e *PrometheusExporter) RecordCall(op string) {
	e.operations.WithLabelValues(op).Inc()
}

// RecordDuration records an operation duration.
func (e *PrometheusExporter) RecordDuration(op string, durationSeconds float64) {
	e.duration.WithLabelValues(op).Observe(durationSeconds)
}

// RecordError records a failed operation.
func (e *PrometheusExporter) RecordError(op string) {
	e.errors.WithLabelValues(op).Inc()
}

// RecordReindexed records processed search index entries.
func (e *PrometheusExporter) RecordReindexed(n int) {
	e.reindexed.Add(float64(n))
}
