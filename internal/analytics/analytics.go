package analytics

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kosix/stagebacktest/internal/config"
	"github.com/kosix/stagebacktest/internal/portfolio"
)

// Report bundles every statistic named in spec §4.9 for one completed run.
type Report struct {
	RunID         string
	StartDate     time.Time
	EndDate       time.Time
	InitialEquity string // decimal-formatted for display convenience
	FinalEquity   string

	Returns    Returns
	SharpeRatio float64
	Drawdown   Drawdown
	Trades     TradeStats

	Ledger  []portfolio.TradeRecord
	History []portfolio.Snapshot
}

// Analyze reduces a completed run's history and ledger into a Report. The
// CLI and apiserver build their reports through it; the CLI additionally
// calls the CSV and PNG writers of this package.
func Analyze(runID string, startDate, endDate time.Time, initialEquity, finalEquity decimal.Decimal,
	history []portfolio.Snapshot, ledger []portfolio.TradeRecord, cfg config.AnalyticsConfig) Report {

	returns := ComputeReturns(history, initialEquity)
	sharpe := Sharpe(returns.DailyMean, returns.DailyStdDev, cfg.RiskFreeRate)
	drawdown := ComputeDrawdown(history)
	trades := ComputeTradeStats(ledger)

	return Report{
		RunID:         runID,
		StartDate:     startDate,
		EndDate:       endDate,
		InitialEquity: initialEquity.StringFixed(2),
		FinalEquity:   finalEquity.StringFixed(2),
		Returns:       returns,
		SharpeRatio:   sharpe,
		Drawdown:      drawdown,
		Trades:        trades,
		Ledger:        ledger,
		History:       history,
	}
}

// TextReport stitches every statistic into the human-readable text report
// named in spec §4.9 ("Text report stitches all of the above").
func (r Report) TextReport() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Backtest Report — run %s\n", r.RunID)
	fmt.Fprintf(&b, "Period: %s to %s\n", r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02"))
	fmt.Fprintf(&b, "Initial equity: %s   Final equity: %s\n\n", r.InitialEquity, r.FinalEquity)

	fmt.Fprintf(&b, "Returns\n")
	fmt.Fprintf(&b, "  Total return:   %.2f%%\n", r.Returns.TotalReturnPct)
	fmt.Fprintf(&b, "  CAGR:           %.2f%%\n", r.Returns.CAGRPct)
	fmt.Fprintf(&b, "  Daily mean:     %.6f   Daily stdev: %.6f\n", r.Returns.DailyMean, r.Returns.DailyStdDev)
	fmt.Fprintf(&b, "  Sharpe ratio:   %s\n\n", sharpeString(r.SharpeRatio))

	fmt.Fprintf(&b, "Drawdown\n")
	fmt.Fprintf(&b, "  Max drawdown:   %.2f%%\n", r.Drawdown.MaxDrawdownPct)
	fmt.Fprintf(&b, "  Peak date:      %s\n", r.Drawdown.PeakDate.Format("2006-01-02"))
	fmt.Fprintf(&b, "  Trough date:    %s\n", r.Drawdown.TroughDate.Format("2006-01-02"))
	if r.Drawdown.RecoveryDate != nil {
		fmt.Fprintf(&b, "  Recovery date:  %s\n", r.Drawdown.RecoveryDate.Format("2006-01-02"))
	} else {
		fmt.Fprintf(&b, "  Recovery date:  (not recovered)\n")
	}
	fmt.Fprintf(&b, "  Duration:       %d days\n\n", r.Drawdown.DurationDays)

	fmt.Fprintf(&b, "Trades\n")
	fmt.Fprintf(&b, "  Total:          %d   Wins: %d   Losses: %d\n", r.Trades.TotalTrades, r.Trades.Wins, r.Trades.Losses)
	fmt.Fprintf(&b, "  Win rate:       %.2f%%\n", r.Trades.WinRatePct)
	fmt.Fprintf(&b, "  Avg win:        %s   Avg loss: %s\n", r.Trades.AvgWin.StringFixed(2), r.Trades.AvgLoss.StringFixed(2))
	if r.Trades.ProfitFactor > 1e18 {
		fmt.Fprintf(&b, "  Profit factor:  +Inf\n")
	} else {
		fmt.Fprintf(&b, "  Profit factor:  %.2f\n", r.Trades.ProfitFactor)
	}

	return b.String()
}
