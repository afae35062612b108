package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kosix/stagebacktest/internal/common"
)

// Config bundles every tunable the risk layer needs (spec §6's risk.*
// options, defaults named alongside).
type Config struct {
	RiskPct           float64 // risk.risk_pct, default 0.01
	ATRMultiplier     float64 // risk.atr_multiplier, default 2.0
	StrengthThreshold int     // risk.strength_threshold, default 80
	CapitalCapRatio   float64 // risk.max_capital_ratio, default 0.25
	SlippageRate      float64 // execution.slippage_pct
	CommissionRate    float64 // execution.commission_pct
}

// DefaultConfig mirrors the spec §6 defaults for the risk subsystem.
func DefaultConfig() Config {
	return Config{
		RiskPct:           0.01,
		ATRMultiplier:     ATRMultiplierDefault,
		StrengthThreshold: StrengthThresholdDefault,
		CapitalCapRatio:   CapitalCapRatioDefault,
	}
}

// Signal is the minimal entry proposal passed to ApplyRiskManagement:
// ticker, action, signal strength and current price (spec §4.4).
type Signal struct {
	Ticker       string
	Action       common.OrderAction
	Strength     int
	CurrentPrice decimal.Decimal
}

// TickerReference is the per-ticker market data ApplyRiskManagement needs:
// the latest ATR and EMA_20 (the trend-stop reference).
type TickerReference struct {
	ATR   float64
	EMA20 decimal.Decimal
}

// Decision is the result of ApplyRiskManagement.
type Decision struct {
	Approved     bool
	Reason       string
	Side         common.Side
	Shares       int
	Units        int // pre-strength-adjustment unit size
	StopPrice    decimal.Decimal
	StopType     common.StopType
	RiskAmount   decimal.Decimal
}

// ApplyRiskManagement is the integrated entry check (spec §4.4): derives
// side from action, sizes via the unit formula and ATR, applies the
// strength multiplier, caps by capital, derives the combined stop, and
// rejects if the resulting share count is zero or cash is insufficient at
// shares*price*(1+slippage)+commission. Portfolio-wide unit caps are
// intentionally not consulted here (spec §4.4: "skipped in the backtest
// configuration").
func ApplyRiskManagement(sig Signal, equity decimal.Decimal, availableCash decimal.Decimal, ref TickerReference, cfg Config) (Decision, error) {
	var side common.Side
	switch sig.Action {
	case common.ActionBuy:
		side = common.SideLong
	case common.ActionSell:
		side = common.SideShort
	default:
		return Decision{}, fmt.Errorf("risk: ApplyRiskManagement: unknown action %q", sig.Action)
	}

	units, err := UnitSize(equity, ref.ATR, cfg.RiskPct)
	if err != nil {
		return Decision{}, err
	}

	adjusted, err := StrengthAdjustedSize(units, sig.Strength, cfg.StrengthThreshold)
	if err != nil {
		return Decision{}, err
	}

	capped, err := CapitalCap(equity, cfg.CapitalCapRatio, sig.CurrentPrice)
	if err != nil {
		return Decision{}, err
	}

	shares := FinalEntrySize(adjusted, capped)
	if shares <= 0 {
		return Decision{Approved: false, Reason: "zero share count after sizing/strength/capital constraints", Side: side}, nil
	}

	volStop, err := VolatilityStop(sig.CurrentPrice, ref.ATR, cfg.ATRMultiplier, side)
	if err != nil {
		return Decision{}, err
	}
	trendStop := TrendStop(ref.EMA20)
	combined, err := CombinedStop(sig.CurrentPrice, volStop, trendStop, side)
	if err != nil {
		return Decision{}, err
	}

	cost := sig.CurrentPrice.
		Mul(decimal.NewFromInt(int64(shares))).
		Mul(decimal.NewFromFloat(1 + cfg.SlippageRate)).
		Add(sig.CurrentPrice.Mul(decimal.NewFromInt(int64(shares))).Mul(decimal.NewFromFloat(cfg.CommissionRate)))

	if cost.GreaterThan(availableCash) {
		return Decision{Approved: false, Reason: fmt.Sprintf("insufficient cash: need %s, have %s", cost, availableCash), Side: side}, nil
	}

	risk := NewPositionRisk(sig.Ticker, "", sig.CurrentPrice, combined.Stop, shares)

	return Decision{
		Approved:   true,
		Reason:     "approved",
		Side:       side,
		Shares:     shares,
		Units:      units,
		StopPrice:  combined.Stop,
		StopType:   combined.Type,
		RiskAmount: risk.TotalRisk,
	}, nil
}
