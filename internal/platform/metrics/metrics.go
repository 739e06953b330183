package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the resolver.
type Metrics struct {
	ResolutionsTotal *prometheus.CounterVec
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	StoreCheckMs     prometheus.Histogram
}

// New creates and registers all Prometheus metrics. Call once per process;
// promauto registers against the default registry.
func New() *Metrics {
	return &Metrics{
		ResolutionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_resolutions_total",
			Help: "Credential resolutions by outcome (resolved, system_bypass, or rejection kind)",
		}, []string{"outcome"}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "authgate_resolution_cache_hits_total",
			Help: "Resolution cache hits",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "authgate_resolution_cache_misses_total",
			Help: "Resolution cache misses",
		}),
		StoreCheckMs: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "authgate_store_check_duration_ms",
			Help:    "Latency of organization store lookups in milliseconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100},
		}),
	}
}

// RecordResolution increments the outcome counter. Nil-safe so services can
// run without metrics in tests.
func (m *Metrics) RecordResolution(outcome string) {
	if m == nil {
		return
	}
	m.ResolutionsTotal.WithLabelValues(outcome).Inc()
}

// RecordCacheHit increments the cache hit counter.
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

// RecordCacheMiss increments the cache miss counter.
func (m *Metrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.CacheMisses.Inc()
}

// ObserveStoreCheck records one store lookup duration.
func (m *Metrics) ObserveStoreCheck(d time.Duration) {
	if m == nil {
		return
	}
	m.StoreCheckMs.Observe(float64(d.Microseconds()) / 1000.0)
}
