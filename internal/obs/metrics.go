// Package obs provides Prometheus metrics for the build and query
// engine. A nil *Metrics is always safe to call into and records
// nothing, so instrumentation is opt-in.
package obs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's counters and histograms, registered
// against their own private registry so multiple Metrics instances
// (e.g. one per test) never collide on Prometheus's default registry.
type Metrics struct {
	registry         *prometheus.Registry
	buildDuration    prometheus.Histogram
	queryLatency     prometheus.Histogram
	partitionLoads   prometheus.Counter
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	digestMismatches prometheus.Counter
}

// NewMetrics creates a fresh metrics instance with its own registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		buildDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name: "annstore_build_duration_seconds",
			Help: "Time spent training and encoding a database.",
		}),
		queryLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name: "annstore_query_latency_seconds",
			Help: "Time spent answering a single query.",
		}),
		partitionLoads: factory.NewCounter(prometheus.CounterOpts{
			Name: "annstore_partition_loads_total",
			Help: "Partitions fetched from the blob store (cache misses only).",
		}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "annstore_cache_hits_total",
			Help: "Lazy-load cache hits, across partitions and attribute logs.",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "annstore_cache_misses_total",
			Help: "Lazy-load cache misses, across partitions and attribute logs.",
		}),
		digestMismatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "annstore_digest_mismatches_total",
			Help: "Content-address verification failures on blob read.",
		}),
	}
}

// Registry returns the private registry metrics were registered
// against, for callers that want to expose it on an HTTP handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// BuildObserved records one Build call's wall-clock duration.
func (m *Metrics) BuildObserved(d time.Duration) {
	if m == nil {
		return
	}
	m.buildDuration.Observe(d.Seconds())
}

// QueryObserved records one Query call's wall-clock duration.
func (m *Metrics) QueryObserved(d time.Duration) {
	if m == nil {
		return
	}
	m.queryLatency.Observe(d.Seconds())
}

// PartitionLoaded records one partition fetched from the blob store.
func (m *Metrics) PartitionLoaded() {
	if m == nil {
		return
	}
	m.partitionLoads.Inc()
}

// Hit records a lazy-load cache hit. Satisfies internal/store's
// CacheMetrics interface.
func (m *Metrics) Hit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

// Miss records a lazy-load cache miss. Satisfies internal/store's
// CacheMetrics interface.
func (m *Metrics) Miss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

// DigestMismatch records a content-address verification failure.
func (m *Metrics) DigestMismatch() {
	if m == nil {
		return
	}
	m.digestMismatches.Inc()
}
