package analytics

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/kosix/stagebacktest/internal/portfolio"
)

// TradeStats is the win/loss summary over a closed-trade ledger (spec
// §4.9 "Win rate" and "Profit factor").
type TradeStats struct {
	TotalTrades  int
	Wins         int
	Losses       int
	WinRatePct   float64
	AvgWin       decimal.Decimal
	AvgLoss      decimal.Decimal // negative, or zero if there were no losses
	ProfitFactor float64         // math.Inf(1) when losses sum to zero and wins don't
}

// ComputeTradeStats reduces the ledger to win-rate and profit-factor
// statistics. A trade with PnL == 0 counts toward the total but not
// toward wins or losses.
func ComputeTradeStats(ledger []portfolio.TradeRecord) TradeStats {
	var stats TradeStats
	stats.TotalTrades = len(ledger)

	winSum := decimal.Zero
	lossSum := decimal.Zero // accumulated as a positive magnitude

	for _, trade := range ledger {
		switch {
		case trade.PnL.IsPositive():
			stats.Wins++
			winSum = winSum.Add(trade.PnL)
		case trade.PnL.IsNegative():
			stats.Losses++
			lossSum = lossSum.Add(trade.PnL.Abs())
		}
	}

	if stats.TotalTrades > 0 {
		stats.WinRatePct = float64(stats.Wins) / float64(stats.TotalTrades) * 100
	}
	if stats.Wins > 0 {
		stats.AvgWin = winSum.Div(decimal.NewFromInt(int64(stats.Wins)))
	}
	if stats.Losses > 0 {
		stats.AvgLoss = lossSum.Div(decimal.NewFromInt(int64(stats.Losses))).Neg()
	}

	switch {
	case lossSum.IsZero() && winSum.IsPositive():
		stats.ProfitFactor = math.Inf(1)
	case lossSum.IsZero():
		stats.ProfitFactor = 0
	default:
		winF, _ := winSum.Float64()
		lossF, _ := lossSum.Float64()
		stats.ProfitFactor = winF / lossF
	}

	return stats
}
