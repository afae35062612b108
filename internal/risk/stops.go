package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kosix/stagebacktest/internal/common"
)

// ATRMultiplierDefault is the default volatility-stop multiplier
// (spec §6 risk.atr_multiplier).
const ATRMultiplierDefault = 2.0

// VolatilityStop computes entry ∓ atrMult*ATR for the given side, clamped
// to >= 0 for a long (spec §4.4). atr must be non-negative; entry must be
// positive.
func VolatilityStop(entry decimal.Decimal, atr float64, atrMult float64, side common.Side) (decimal.Decimal, error) {
	if entry.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("risk: VolatilityStop: entry must be positive, got %s", entry)
	}
	if atr < 0 {
		return decimal.Zero, fmt.Errorf("risk: VolatilityStop: ATR must be non-negative, got %f", atr)
	}
	offset := decimal.NewFromFloat(atrMult * atr)
	switch side {
	case common.SideLong:
		stop := entry.Sub(offset)
		if stop.Sign() < 0 {
			stop = decimal.Zero
		}
		return stop, nil
	case common.SideShort:
		return entry.Add(offset), nil
	default:
		return decimal.Zero, fmt.Errorf("risk: VolatilityStop: unknown side %q", side)
	}
}

// TrendStop returns the EMA_20-based stop reference: the EMA_20 value
// itself is used as stop for both sides (spec §4.4 "use EMA_20 as the
// stop reference; for a short, the mirror side" — EMA_20 is symmetric,
// so callers on both sides read the same reference).
func TrendStop(ema20 decimal.Decimal) decimal.Decimal {
	return ema20
}

// StopResult is the outcome of CombinedStop.
type StopResult struct {
	Stop             decimal.Decimal
	Type             common.StopType
	AbsoluteDistance decimal.Decimal
	PercentDistance  float64
	PerShareRisk     decimal.Decimal
}

// CombinedStop picks the stricter of volatility and trend stops for the
// side: for a long, the higher of the two; for a short, the lower
// (spec §4.4).
func CombinedStop(currentPrice, volatilityStop, trendStop decimal.Decimal, side common.Side) (StopResult, error) {
	if currentPrice.Sign() <= 0 {
		return StopResult{}, fmt.Errorf("risk: CombinedStop: currentPrice must be positive, got %s", currentPrice)
	}
	var chosen decimal.Decimal
	var typ common.StopType
	switch side {
	case common.SideLong:
		if volatilityStop.GreaterThan(trendStop) {
			chosen, typ = volatilityStop, common.StopVolatility
		} else {
			chosen, typ = trendStop, common.StopTrend
		}
	case common.SideShort:
		if volatilityStop.LessThan(trendStop) {
			chosen, typ = volatilityStop, common.StopVolatility
		} else {
			chosen, typ = trendStop, common.StopTrend
		}
	default:
		return StopResult{}, fmt.Errorf("risk: CombinedStop: unknown side %q", side)
	}

	dist := currentPrice.Sub(chosen)
	if dist.Sign() < 0 {
		dist = dist.Neg()
	}
	pct := 0.0
	if f, _ := currentPrice.Float64(); f != 0 {
		d, _ := dist.Float64()
		pct = d / f * 100
	}
	return StopResult{
		Stop:             chosen,
		Type:             typ,
		AbsoluteDistance: dist,
		PercentDistance:  pct,
		PerShareRisk:     dist,
	}, nil
}

// TrailingStopUpdate computes the next trailing-stop candidate for a long
// or short position: candidate tightens from the running extreme by
// atrMult*ATR, floored at entryPrice so the stop never drops below
// break-even once any update occurs (spec §4.4, and Open Question #3:
// Portfolio's monotonicity rule is canonical, so this floor-at-entry
// candidate is a stricter special case of that rule, not a competing one).
func TrailingStopUpdate(entryPrice, highestObserved decimal.Decimal, atr, atrMult float64, side common.Side) (decimal.Decimal, error) {
	if entryPrice.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("risk: TrailingStopUpdate: entryPrice must be positive, got %s", entryPrice)
	}
	if atr < 0 {
		return decimal.Zero, fmt.Errorf("risk: TrailingStopUpdate: ATR must be non-negative, got %f", atr)
	}
	offset := decimal.NewFromFloat(atrMult * atr)
	switch side {
	case common.SideLong:
		candidate := highestObserved.Sub(offset)
		if candidate.LessThan(entryPrice) {
			candidate = entryPrice
		}
		return candidate, nil
	case common.SideShort:
		candidate := highestObserved.Add(offset)
		if candidate.GreaterThan(entryPrice) {
			candidate = entryPrice
		}
		return candidate, nil
	default:
		return decimal.Zero, fmt.Errorf("risk: TrailingStopUpdate: unknown side %q", side)
	}
}
