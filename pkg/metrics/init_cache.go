package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initCacheMetrics() {
	r.CacheHitsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "clusokv_cache_hits_total",
			Help: "Total number of buffer pool hits",
		},
	)

	r.CacheMissesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "clusokv_cache_misses_total",
			Help: "Total number of buffer pool misses",
		},
	)

	r.CacheEvictions = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "clusokv_cache_evictions_total",
			Help: "Total number of pages evicted from the buffer pool",
		},
	)

	r.CachePages = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "clusokv_cache_pages",
			Help: "Current number of pages held by the buffer pool",
		},
	)
}
