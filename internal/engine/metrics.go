package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the custom prometheus registry for backtest-run metrics,
// mirroring the teacher's package-local Registry + promauto.With pattern
// (retargeted from live-trader metrics to backtest-run metrics).
var Registry = prometheus.NewRegistry()

var (
	// TradesExecuted counts ledger entries per run, labeled by reason
	// family (stop_loss, exit_signal, entry).
	TradesExecuted = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stagebacktest",
			Subsystem: "engine",
			Name:      "trades_executed_total",
			Help:      "Trades appended to the ledger, by reason family.",
		},
		[]string{"run_id", "reason"},
	)

	// SignalsCoercedToLong counts sell signals the long-only backtest
	// policy coerced into a buy (Open Question #2 observability).
	SignalsCoercedToLong = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stagebacktest",
			Subsystem: "engine",
			Name:      "signals_coerced_to_long_total",
			Help:      "Sell-side entry signals coerced into a long buy by the backtest-only policy.",
		},
		[]string{"run_id", "ticker"},
	)

	// DayDuration observes per-day loop duration.
	DayDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "stagebacktest",
			Subsystem: "engine",
			Name:      "day_duration_seconds",
			Help:      "Duration of one day's orchestrator loop iteration.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// FinalEquity reports the final equity of the most recently completed run.
	FinalEquity = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "stagebacktest",
			Subsystem: "engine",
			Name:      "final_equity",
			Help:      "Final equity of the most recently completed run.",
		},
		[]string{"run_id"},
	)
)
