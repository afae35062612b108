// Package risk implements volatility-based position sizing, dual
// stop-loss derivation, trailing stops and exposure accounting
// (spec §4.4). Money and share-count arithmetic uses decimal.Decimal
// throughout, matching the teacher's own PnL/margin math.
package risk

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// UnitSize computes the Turtle-method unit size:
// units = round((accountBalance * riskPct) / atr), as integer shares.
// Rejects non-positive balance, non-positive ATR, or riskPct outside
// (0, 1] (spec §4.4).
func UnitSize(accountBalance decimal.Decimal, atr float64, riskPct float64) (int, error) {
	if accountBalance.Sign() <= 0 {
		return 0, fmt.Errorf("risk: UnitSize: account balance must be positive, got %s", accountBalance)
	}
	if atr <= 0 {
		return 0, fmt.Errorf("risk: UnitSize: ATR must be positive, got %f", atr)
	}
	if riskPct <= 0 || riskPct > 1 {
		return 0, fmt.Errorf("risk: UnitSize: risk_pct must be in (0, 1], got %f", riskPct)
	}
	riskBudget := accountBalance.Mul(decimal.NewFromFloat(riskPct))
	raw, _ := riskBudget.Div(decimal.NewFromFloat(atr)).Float64()
	return int(math.Round(raw)), nil
}

// StrengthThresholdDefault is the default signal-strength threshold for
// full-size admission (spec §6 risk.strength_threshold).
const StrengthThresholdDefault = 80

// StrengthAdjustedSize multiplies baseShares by a piecewise-constant
// factor keyed on signal strength against threshold: >= threshold -> 1.00,
// >= 70 -> 0.75, >= 60 -> 0.50, >= 50 -> 0.25, < 50 -> 0.00 (no entry).
// Negative inputs are a hard error (spec §4.4).
func StrengthAdjustedSize(baseShares int, strength int, threshold int) (int, error) {
	if baseShares < 0 {
		return 0, fmt.Errorf("risk: StrengthAdjustedSize: baseShares must be >= 0, got %d", baseShares)
	}
	if strength < 0 {
		return 0, fmt.Errorf("risk: StrengthAdjustedSize: strength must be >= 0, got %d", strength)
	}
	factor := strengthFactor(strength, threshold)
	return int(math.Floor(float64(baseShares)*factor + 1e-9)), nil
}

func strengthFactor(strength, threshold int) float64 {
	switch {
	case strength >= threshold:
		return 1.00
	case strength >= 70:
		return 0.75
	case strength >= 60:
		return 0.50
	case strength >= 50:
		return 0.25
	default:
		return 0.00
	}
}

// CapitalCapRatioDefault is the default single-name capital cap fraction
// of equity (spec §6 risk.max_capital_ratio).
const CapitalCapRatioDefault = 0.25

// CapitalCap limits a single-name position to a fraction of equity:
// floor(account * cap / price) (spec §4.4).
func CapitalCap(account decimal.Decimal, capRatio float64, price decimal.Decimal) (int, error) {
	if account.Sign() <= 0 {
		return 0, fmt.Errorf("risk: CapitalCap: account must be positive, got %s", account)
	}
	if price.Sign() <= 0 {
		return 0, fmt.Errorf("risk: CapitalCap: price must be positive, got %s", price)
	}
	limit := account.Mul(decimal.NewFromFloat(capRatio)).Div(price)
	f, _ := limit.Float64()
	return int(math.Floor(f)), nil
}

// FinalEntrySize is min(volatility-sized, cap-sized) (spec §4.4).
func FinalEntrySize(volatilitySized, capSized int) int {
	if volatilitySized < capSized {
		return volatilitySized
	}
	return capSized
}
