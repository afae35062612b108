package analytics

import (
	"time"

	"github.com/kosix/stagebacktest/internal/portfolio"
)

// Drawdown is the max-drawdown report named in spec §4.9: the running
// peak/drawdown series reduced to its worst point, plus recovery tracking.
type Drawdown struct {
	Series        []float64 // (equity/peak - 1) * 100, one per history row
	MaxDrawdownPct float64  // most negative value in Series (0 if never underwater)
	PeakDate      time.Time
	TroughDate    time.Time
	RecoveryDate  *time.Time // nil if equity never returned to the peak's level
	DurationDays  int        // calendar days from peak to trough
}

// ComputeDrawdown walks the snapshot history once, tracking the running
// peak and the worst drawdown observed, then looks forward from the
// trough for the first day equity closes at or above the peak again.
func ComputeDrawdown(history []portfolio.Snapshot) Drawdown {
	if len(history) == 0 {
		return Drawdown{}
	}

	series := make([]float64, len(history))
	peak := history[0].Equity
	peakIdx := 0

	worstPct := 0.0
	worstPeakIdx, worstTroughIdx := 0, 0

	for i, snap := range history {
		if snap.Equity.GreaterThan(peak) {
			peak = snap.Equity
			peakIdx = i
		}
		peakF, _ := peak.Float64()
		eqF, _ := snap.Equity.Float64()
		pct := 0.0
		if peakF > 0 {
			pct = (eqF/peakF - 1) * 100
		}
		series[i] = pct
		if pct < worstPct {
			worstPct = pct
			worstPeakIdx = peakIdx
			worstTroughIdx = i
		}
	}

	dd := Drawdown{
		Series:         series,
		MaxDrawdownPct: worstPct,
		PeakDate:       history[worstPeakIdx].Date,
		TroughDate:     history[worstTroughIdx].Date,
		DurationDays:   int(history[worstTroughIdx].Date.Sub(history[worstPeakIdx].Date).Hours() / 24),
	}

	peakEquity := history[worstPeakIdx].Equity
	for i := worstTroughIdx; i < len(history); i++ {
		if history[i].Equity.GreaterThanOrEqual(peakEquity) {
			d := history[i].Date
			dd.RecoveryDate = &d
			break
		}
	}

	return dd
}
