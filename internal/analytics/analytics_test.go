package analytics

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kosix/stagebacktest/internal/common"
	"github.com/kosix/stagebacktest/internal/config"
	"github.com/kosix/stagebacktest/internal/portfolio"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestComputeReturnsOnePositionRoundTrip(t *testing.T) {
	day0 := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	day1 := day0.AddDate(0, 0, 1)

	history := []portfolio.Snapshot{
		{Date: day0, Equity: d("4994249.25")},
		{Date: day1, Equity: d("10187280.03")},
	}

	returns := ComputeReturns(history, d("10000000"))

	assert.InDelta(t, 1.87, returns.TotalReturnPct, 0.01,
		"total_return should match the round-trip scenario's ~1.87%%, got %f", returns.TotalReturnPct)
}

func TestSharpeGuardsZeroVariance(t *testing.T) {
	assert.Equal(t, 0.0, Sharpe(0.001, 0, 0.03))
}

func TestSharpePositiveForPositiveExcessReturn(t *testing.T) {
	s := Sharpe(0.002, 0.01, 0.0)
	assert.Greater(t, s, 0.0)
}

func TestComputeDrawdownTracksPeakTroughAndRecovery(t *testing.T) {
	d0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	history := []portfolio.Snapshot{
		{Date: d0, Equity: d("100")},
		{Date: d0.AddDate(0, 0, 1), Equity: d("120")}, // new peak
		{Date: d0.AddDate(0, 0, 2), Equity: d("90")},  // trough: -25%
		{Date: d0.AddDate(0, 0, 3), Equity: d("110")}, // still below peak
		{Date: d0.AddDate(0, 0, 4), Equity: d("125")}, // recovered
	}

	dd := ComputeDrawdown(history)

	assert.InDelta(t, -25.0, dd.MaxDrawdownPct, 0.001)
	assert.True(t, dd.PeakDate.Equal(d0.AddDate(0, 0, 1)))
	assert.True(t, dd.TroughDate.Equal(d0.AddDate(0, 0, 2)))
	require.NotNil(t, dd.RecoveryDate)
	assert.True(t, dd.RecoveryDate.Equal(d0.AddDate(0, 0, 4)))
	assert.Equal(t, 1, dd.DurationDays)
}

func TestComputeDrawdownNeverRecovers(t *testing.T) {
	d0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	history := []portfolio.Snapshot{
		{Date: d0, Equity: d("100")},
		{Date: d0.AddDate(0, 0, 1), Equity: d("50")},
	}
	dd := ComputeDrawdown(history)
	assert.Nil(t, dd.RecoveryDate)
}

func TestComputeTradeStatsWinRateAndProfitFactor(t *testing.T) {
	ledger := []portfolio.TradeRecord{
		{Ticker: "AAA", Action: common.ActionSell, PnL: d("100")},
		{Ticker: "BBB", Action: common.ActionSell, PnL: d("-50")},
		{Ticker: "CCC", Action: common.ActionSell, PnL: d("200")},
	}

	stats := ComputeTradeStats(ledger)

	assert.Equal(t, 3, stats.TotalTrades)
	assert.Equal(t, 2, stats.Wins)
	assert.Equal(t, 1, stats.Losses)
	assert.InDelta(t, 66.666, stats.WinRatePct, 0.01)
	assert.True(t, stats.AvgWin.Equal(d("150")))
	assert.True(t, stats.AvgLoss.Equal(d("-50")))
	assert.InDelta(t, 6.0, stats.ProfitFactor, 0.001)
}

func TestComputeTradeStatsProfitFactorInfiniteWithNoLosses(t *testing.T) {
	ledger := []portfolio.TradeRecord{{PnL: d("50")}}
	stats := ComputeTradeStats(ledger)
	assert.True(t, math.IsInf(stats.ProfitFactor, 1))
}

func TestComputeTradeStatsProfitFactorZeroWhenEmpty(t *testing.T) {
	stats := ComputeTradeStats(nil)
	assert.Equal(t, 0.0, stats.ProfitFactor)
	assert.Equal(t, 0, stats.TotalTrades)
}

func TestAnalyzeProducesReadableTextReport(t *testing.T) {
	day0 := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	day1 := day0.AddDate(0, 0, 1)
	history := []portfolio.Snapshot{
		{Date: day0, Equity: d("4994249.25")},
		{Date: day1, Equity: d("10187280.03")},
	}
	ledger := []portfolio.TradeRecord{
		{Date: day1, Ticker: "005930", Action: common.ActionSell, Shares: 100,
			EntryPrice: d("50050"), ExitPrice: d("51948"), PnL: d("187280.03"), Reason: "exit_signal (level 3)"},
	}

	report := Analyze("run-1", day0, day1, d("10000000"), d("10187280.03"), history, ledger, config.AnalyticsConfig{RiskFreeRate: 0.03})
	text := report.TextReport()

	assert.Contains(t, text, "run-1")
	assert.Contains(t, text, "Total return:")
	assert.Contains(t, text, "Max drawdown:")
	assert.Contains(t, text, "Win rate:")
	assert.True(t, strings.Contains(text, "Profit factor:"))
}
