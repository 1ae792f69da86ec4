// Package stats provides a unified interface for collecting metrics.
package stats

// Metric names used throughout the library.
const (
	// Search metrics.
	MetricSearches      = "enginebridge_searches_total"
	MetricTimeouts      = "enginebridge_search_timeouts_total"
	MetricCancellations = "enginebridge_search_cancellations_total"
	MetricCrashes       = "enginebridge_engine_crashes_total"
	MetricSearchSeconds = "enginebridge_search_duration_seconds"
	MetricQueueDepth    = "enginebridge_queue_depth"

	// Move-cache metrics.
	MetricCacheHits   = "enginebridge_movecache_hits_total"
	MetricCacheMisses = "enginebridge_movecache_misses_total"
)

// Collector defines the interface for collecting metrics.
type Collector interface {
	// IncCounter increments a counter metric by delta.
	IncCounter(name string, delta int64)

	// SetGauge sets a gauge metric to value.
	SetGauge(name string, value int64)

	// ObserveHistogram records a value in a histogram metric.
	ObserveHistogram(name string, value float64)
}
