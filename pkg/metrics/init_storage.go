package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func levelLabel(level int) string {
	return strconv.Itoa(level)
}

func (r *Registry) initStorageMetrics() {
	r.StoreOperationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "clusokv_store_operations_total",
			Help: "Total number of public store operations",
		},
		[]string{"operation", "status"},
	)

	r.StoreOperationDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clusokv_store_operation_duration_seconds",
			Help:    "Store operation duration in seconds",
			Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
		[]string{"operation"},
	)

	r.MemtableEntries = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "clusokv_memtable_entries",
			Help: "Current number of entries buffered in the memtable",
		},
	)

	r.FlushesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "clusokv_flushes_total",
			Help: "Total number of memtable flushes",
		},
	)

	r.CompactionsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "clusokv_compactions_total",
			Help: "Total number of level merges",
		},
	)

	r.CompactionDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clusokv_compaction_duration_seconds",
			Help:    "Level merge duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
	)

	r.SSTablesPerLevel = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "clusokv_sstables_per_level",
			Help: "Number of SST files held by each level",
		},
		[]string{"level"},
	)
}
