package risk

import (
	"github.com/shopspring/decimal"
)

// MaxTotalExposureDefault and MaxSingleExposureDefault are the default
// informational exposure ceilings (spec §4.4, §6 risk.max_total_risk_pct /
// risk.max_single_risk_pct).
const (
	MaxTotalExposureDefault  = 0.02
	MaxSingleExposureDefault = 0.01
)

// PositionRisk is one open position's per-share and total dollar risk.
type PositionRisk struct {
	Ticker       string
	Group        string
	PerShareRisk decimal.Decimal
	Shares       int
	TotalRisk    decimal.Decimal
}

// NewPositionRisk computes per-share risk = |entry - stop| and
// position risk = per-share * shares (spec §4.4).
func NewPositionRisk(ticker, group string, entry, stop decimal.Decimal, shares int) PositionRisk {
	perShare := entry.Sub(stop)
	if perShare.Sign() < 0 {
		perShare = perShare.Neg()
	}
	return PositionRisk{
		Ticker:       ticker,
		Group:        group,
		PerShareRisk: perShare,
		Shares:       shares,
		TotalRisk:    perShare.Mul(decimal.NewFromInt(int64(shares))),
	}
}

// LimitBreach reports a single-position or total exposure check.
type LimitBreach struct {
	Actual  decimal.Decimal
	Limit   decimal.Decimal
	Breach  bool
	Subject string
}

// CheckRiskLimits reports total risk vs max_total*equity and the largest
// single-position risk vs max_single*equity. Both breaches are surfaced,
// but per spec §4.4 they are informational in the backtest path and never
// block entries — callers must not use this to gate ApplyRiskManagement.
func CheckRiskLimits(positions []PositionRisk, equity decimal.Decimal, maxTotal, maxSingle float64) (total, largestSingle LimitBreach) {
	totalRisk := decimal.Zero
	var largest decimal.Decimal
	var largestTicker string
	for _, p := range positions {
		totalRisk = totalRisk.Add(p.TotalRisk)
		if p.TotalRisk.GreaterThan(largest) {
			largest = p.TotalRisk
			largestTicker = p.Ticker
		}
	}
	totalLimit := equity.Mul(decimal.NewFromFloat(maxTotal))
	singleLimit := equity.Mul(decimal.NewFromFloat(maxSingle))

	total = LimitBreach{
		Actual:  totalRisk,
		Limit:   totalLimit,
		Breach:  totalRisk.GreaterThan(totalLimit),
		Subject: "portfolio",
	}
	largestSingle = LimitBreach{
		Actual:  largest,
		Limit:   singleLimit,
		Breach:  largest.GreaterThan(singleLimit),
		Subject: largestTicker,
	}
	return total, largestSingle
}

// RiskReport aggregates exposure by ticker and, when correlation groups are
// supplied, by group, plus the single largest risk (spec §4.4
// generate_risk_report).
type RiskReport struct {
	ByTicker     map[string]decimal.Decimal
	ByGroup      map[string]decimal.Decimal
	LargestRisk  decimal.Decimal
	LargestAsset string
	TotalRisk    decimal.Decimal
}

// GenerateRiskReport aggregates positions per-ticker and, for positions
// whose Group is non-empty, per-group.
func GenerateRiskReport(positions []PositionRisk) RiskReport {
	r := RiskReport{
		ByTicker: make(map[string]decimal.Decimal),
		ByGroup:  make(map[string]decimal.Decimal),
	}
	for _, p := range positions {
		r.ByTicker[p.Ticker] = r.ByTicker[p.Ticker].Add(p.TotalRisk)
		if p.Group != "" {
			r.ByGroup[p.Group] = r.ByGroup[p.Group].Add(p.TotalRisk)
		}
		r.TotalRisk = r.TotalRisk.Add(p.TotalRisk)
		if p.TotalRisk.GreaterThan(r.LargestRisk) {
			r.LargestRisk = p.TotalRisk
			r.LargestAsset = p.Ticker
		}
	}
	return r
}
