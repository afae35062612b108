// Package analytics is the performance analyzer (spec §4.9): it turns a
// completed run's snapshot history and trade ledger into return/risk
// statistics, a text report, an optional pair of plots, and a CSV export.
package analytics

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kosix/stagebacktest/internal/portfolio"
)

// TradingDaysPerYear is the annualization convention used throughout this
// package (spec §4.9: "using trading-day count (252)").
const TradingDaysPerYear = 252.0

// Returns holds the return-family statistics derived from a snapshot
// history.
type Returns struct {
	TotalReturnPct float64
	CAGRPct        float64
	DailyMean      float64
	DailyStdDev    float64
	MonthlyReturns []MonthlyReturn
}

// MonthlyReturn is one calendar month's resampled return, taken from the
// last equity observation on or before the end of that month.
type MonthlyReturn struct {
	Month      time.Time // first day of the month, UTC
	ReturnPct  float64
	EndEquity  decimal.Decimal
}

// ComputeReturns derives total return, CAGR, daily log-return mean/std, and
// month-end resampled returns from a chronological snapshot history.
// history must be non-empty and already sorted ascending by Date; callers
// (the orchestrator) guarantee this.
func ComputeReturns(history []portfolio.Snapshot, initialEquity decimal.Decimal) Returns {
	if len(history) == 0 {
		return Returns{}
	}

	final := history[len(history)-1].Equity
	initialF, _ := initialEquity.Float64()
	finalF, _ := final.Float64()

	var totalReturn float64
	if initialF != 0 {
		totalReturn = (finalF/initialF - 1) * 100
	}

	nDays := len(history)
	var cagr float64
	if initialF > 0 && finalF > 0 && nDays > 0 {
		cagr = (math.Pow(finalF/initialF, TradingDaysPerYear/float64(nDays)) - 1) * 100
	}

	logReturns := dailyLogReturns(history, initialEquity)
	mean, std := meanStdDev(logReturns)

	return Returns{
		TotalReturnPct: totalReturn,
		CAGRPct:        cagr,
		DailyMean:      mean,
		DailyStdDev:    std,
		MonthlyReturns: monthlyResample(history),
	}
}

// dailyLogReturns returns ln(equity_t / equity_t-1) for each day, with the
// first day's prior equity taken as the run's initial capital.
func dailyLogReturns(history []portfolio.Snapshot, initialEquity decimal.Decimal) []float64 {
	out := make([]float64, 0, len(history))
	prev := initialEquity
	for _, snap := range history {
		prevF, _ := prev.Float64()
		curF, _ := snap.Equity.Float64()
		if prevF > 0 && curF > 0 {
			out = append(out, math.Log(curF/prevF))
		} else {
			out = append(out, 0)
		}
		prev = snap.Equity
	}
	return out
}

func meanStdDev(xs []float64) (mean, std float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean = sum / float64(len(xs))

	if len(xs) < 2 {
		return mean, 0
	}
	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	std = math.Sqrt(sq / float64(len(xs)-1))
	return mean, std
}

// monthlyResample groups snapshots by calendar month and keeps the last
// observation in each month, reporting that month's return against the
// previous month's closing equity (the first month has no previous
// month-end, so its return is reported as zero).
func monthlyResample(history []portfolio.Snapshot) []MonthlyReturn {
	if len(history) == 0 {
		return nil
	}

	type bucket struct {
		month time.Time
		last  portfolio.Snapshot
	}
	var buckets []bucket
	for _, snap := range history {
		m := time.Date(snap.Date.Year(), snap.Date.Month(), 1, 0, 0, 0, 0, time.UTC)
		if len(buckets) > 0 && buckets[len(buckets)-1].month.Equal(m) {
			buckets[len(buckets)-1].last = snap
			continue
		}
		buckets = append(buckets, bucket{month: m, last: snap})
	}

	out := make([]MonthlyReturn, 0, len(buckets))
	prevEquity := buckets[0].last.Equity
	for i, b := range buckets {
		baseline := prevEquity
		if i == 0 {
			baseline = b.last.Equity
		}
		baseF, _ := baseline.Float64()
		endF, _ := b.last.Equity.Float64()
		var pct float64
		if baseF != 0 {
			pct = (endF/baseF - 1) * 100
		}
		out = append(out, MonthlyReturn{Month: b.month, ReturnPct: pct, EndEquity: b.last.Equity})
		prevEquity = b.last.Equity
	}
	return out
}

// Sharpe computes the annualized Sharpe ratio (spec §4.9):
// (mean_daily_return − rf/252) / std_daily_return × √252, with a zero
// variance guard returning 0.
func Sharpe(dailyMean, dailyStdDev, riskFreeRate float64) float64 {
	if dailyStdDev == 0 {
		return 0
	}
	excess := dailyMean - riskFreeRate/TradingDaysPerYear
	return (excess / dailyStdDev) * math.Sqrt(TradingDaysPerYear)
}

// sharpeString formats a Sharpe ratio, which can legitimately be very large
// for a near-zero-variance equity curve but is never +/-Inf by construction
// of the zero-variance guard above.
func sharpeString(s float64) string {
	return fmt.Sprintf("%.3f", s)
}
