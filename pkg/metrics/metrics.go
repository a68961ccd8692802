// Package metrics exports the store's Prometheus metric families. The
// Registry is optional everywhere it is accepted; a nil receiver records
// nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// NewRegistry creates a registry with every metric family initialized.
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}
	r.initStorageMetrics()
	r.initCacheMetrics()
	return r
}

// Gatherer exposes the underlying registry for embedding applications
// that scrape or push metrics themselves.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// RecordOperation records one public store operation.
func (r *Registry) RecordOperation(operation, status string, duration time.Duration) {
	if r == nil {
		return
	}
	r.StoreOperationsTotal.WithLabelValues(operation, status).Inc()
	r.StoreOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordFlush records a memtable flush.
func (r *Registry) RecordFlush() {
	if r == nil {
		return
	}
	r.FlushesTotal.Inc()
}

// RecordCompaction records one level merge and its duration.
func (r *Registry) RecordCompaction(duration time.Duration) {
	if r == nil {
		return
	}
	r.CompactionsTotal.Inc()
	r.CompactionDuration.Observe(duration.Seconds())
}

// SetMemtableEntries tracks the memtable's current size.
func (r *Registry) SetMemtableEntries(n int) {
	if r == nil {
		return
	}
	r.MemtableEntries.Set(float64(n))
}

// SetLevelSSTables tracks how many tables a level holds.
func (r *Registry) SetLevelSSTables(level, count int) {
	if r == nil {
		return
	}
	r.SSTablesPerLevel.WithLabelValues(levelLabel(level)).Set(float64(count))
}

// RecordCacheHit counts a buffer-pool hit.
func (r *Registry) RecordCacheHit() {
	if r == nil {
		return
	}
	r.CacheHitsTotal.Inc()
}

// RecordCacheMiss counts a buffer-pool miss.
func (r *Registry) RecordCacheMiss() {
	if r == nil {
		return
	}
	r.CacheMissesTotal.Inc()
}

// RecordCacheEviction counts one evicted page.
func (r *Registry) RecordCacheEviction() {
	if r == nil {
		return
	}
	r.CacheEvictions.Inc()
}

// SetCachePages tracks the number of cached pages.
func (r *Registry) SetCachePages(n int) {
	if r == nil {
		return
	}
	r.CachePages.Set(float64(n))
}
