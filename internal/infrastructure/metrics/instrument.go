package metrics

import "time"

// Instrumenter records calls, errors and durations of engine operations on a
// collector and an optional exporter. A nil Instrumenter records nothing.
type Instrumenter struct {
	collector *Collector
	exporter  *PrometheusExporter
}

// NewInstrumenter creates an instrumenter. exporter may be nil.
func NewInstrumenter(collector *Collector, exporter *PrometheusExporter) *Instrumenter {
	return &Instrumenter{collector: collector, exporter: exporter}
}

// Observe records one finished operation
func (i *Instrumenter) Observe(op string, start time.Time, err error) {
	if i == nil || i.collector == nil {
		return
	}
	duration := time.Since(start).Seconds()

	i.collector.RecordCall(op)
	i.collector.RecordDuration(op, duration)
	if i.exporter != nil {
		i.exporter.RecordCall(op)
		i.exporter.RecordDuration(op, duration)
	}

	if err != nil {
		i.collector.RecordError(op)
		if i.exporter != nil {
			i.exporter.RecordError(op)
		}
	}
}

// Reindexed records processed search index entries
func (i *Instrumenter) Reindexed(n int) {
	if i == nil || i.exporter == nil {
		return
	}
	i.exporter.RecordReindexed(n)
}
