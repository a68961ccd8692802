package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every metric family the store exports. A nil *Registry
// is valid and records nothing, so metrics stay optional.
type Registry struct {
	registry *prometheus.Registry

	// Storage
	StoreOperationsTotal   *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec
	MemtableEntries        prometheus.Gauge
	FlushesTotal           prometheus.Counter
	CompactionsTotal       prometheus.Counter
	CompactionDuration     prometheus.Histogram
	SSTablesPerLevel       *prometheus.GaugeVec

	// Buffer cache
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter
	CacheEvictions   prometheus.Counter
	CachePages       prometheus.Gauge
}
