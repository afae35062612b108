package signal

import (
	"strings"

	"github.com/kosix/stagebacktest/internal/numerics"
	"github.com/kosix/stagebacktest/internal/stage"
)

// FilterConfig toggles and parameterizes the four admission filters
// (spec §4.3).
type FilterConfig struct {
	StrengthEnabled             bool
	StrengthThreshold           int
	VolatilityEnabled           bool
	VolatilityPercentileCeiling float64
	TrendEnabled                bool
	MinSlope                    float64
	ConflictEnabled             bool
}

// DefaultFilterConfig mirrors spec §6 defaults: all four filters enabled.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		StrengthEnabled:             true,
		StrengthThreshold:           50,
		VolatilityEnabled:           true,
		VolatilityPercentileCeiling: 90,
		TrendEnabled:                true,
		MinSlope:                    0.1,
		ConflictEnabled:             true,
	}
}

// FilterResult is one row's filter outcome.
type FilterResult struct {
	StrengthPass   bool
	VolatilityPass bool
	TrendPass      bool
	ConflictPass   bool
	FilterPassed   bool
	Reasons        string
}

// ApplyFilters evaluates the four admission filters over every row. A row
// passes iff every *enabled* filter passes; a disabled filter, or a filter
// whose prerequisite data is undefined for that row, always passes
// (spec §4.3: "a failed filter evaluates as pass-through"). Empty input
// produces empty output.
func ApplyFilters(t *numerics.EnrichedTable, strengths []Strength, entries EntrySeries, exits ExitSeries, cfg FilterConfig) []FilterResult {
	n := t.Len()
	out := make([]FilterResult, n)
	if n == 0 {
		return out
	}

	atrPct := percentileRank(t.ATR)
	ema40Slope, err := numerics.Slope(t.EMA40, stage.DefaultMASlopeWindow)
	if err != nil {
		ema40Slope = numerics.NewUndefinedSeries(n)
	}

	for i := 0; i < n; i++ {
		r := FilterResult{StrengthPass: true, VolatilityPass: true, TrendPass: true, ConflictPass: true}
		var failed []string

		if cfg.StrengthEnabled && i < len(strengths) {
			if strengths[i].Total < cfg.StrengthThreshold {
				r.StrengthPass = false
				failed = append(failed, "strength")
			}
		}

		if cfg.VolatilityEnabled {
			if pct := atrPct[i]; pct >= 0 && pct > cfg.VolatilityPercentileCeiling {
				r.VolatilityPass = false
				failed = append(failed, "volatility")
			}
		}

		if cfg.TrendEnabled {
			if v, ok := ema40Slope[i].Get(); ok {
				if absf(v) < cfg.MinSlope {
					r.TrendPass = false
					failed = append(failed, "trend")
				}
			}
		}

		if cfg.ConflictEnabled && i < len(entries) && i < len(exits) {
			if entries[i].Signal != NoEntry && exits[i].Level != NoExit {
				r.ConflictPass = false
				failed = append(failed, "conflict")
			}
		}

		r.FilterPassed = r.StrengthPass && r.VolatilityPass && r.TrendPass && r.ConflictPass
		if len(failed) > 0 {
			r.Reasons = "failed: " + strings.Join(failed, ", ")
		} else {
			r.Reasons = "all enabled filters passed"
		}
		out[i] = r
	}
	return out
}
