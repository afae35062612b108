package datamanager

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the custom prometheus registry for data-manager metrics,
// mirroring the teacher's package-local Registry + promauto.With pattern.
var Registry = prometheus.NewRegistry()

var (
	// TickersLoaded counts successfully loaded tickers per run.
	TickersLoaded = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stagebacktest",
			Subsystem: "datamanager",
			Name:      "tickers_loaded_total",
			Help:      "Tickers successfully loaded and annotated.",
		},
		[]string{"market"},
	)

	// TickersDropped counts per-ticker load failures, demoted rather than
	// aborting the whole bulk load (spec §4.7).
	TickersDropped = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stagebacktest",
			Subsystem: "datamanager",
			Name:      "tickers_dropped_total",
			Help:      "Tickers dropped due to a per-ticker load failure.",
		},
		[]string{"market", "reason"},
	)

	// CacheHits and CacheMisses track the enriched-table cache hit ratio.
	CacheHits = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: "stagebacktest",
			Subsystem: "datamanager",
			Name:      "cache_hits_total",
			Help:      "Enriched-table cache hits.",
		},
	)
	CacheMisses = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: "stagebacktest",
			Subsystem: "datamanager",
			Name:      "cache_misses_total",
			Help:      "Enriched-table cache misses.",
		},
	)

	// LoadDuration observes how long a full bulk load takes.
	LoadDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "stagebacktest",
			Subsystem: "datamanager",
			Name:      "load_duration_seconds",
			Help:      "Duration of a full universe bulk load.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
