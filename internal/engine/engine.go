// Package engine is the backtest orchestrator (spec §4.8): it owns time,
// threads the per-day slice through every stage-sensitive step, and is
// the only code that mutates the Portfolio.
package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/kosix/stagebacktest/internal/common"
	"github.com/kosix/stagebacktest/internal/config"
	"github.com/kosix/stagebacktest/internal/datamanager"
	"github.com/kosix/stagebacktest/internal/execution"
	"github.com/kosix/stagebacktest/internal/korlog"
	"github.com/kosix/stagebacktest/internal/portfolio"
	"github.com/kosix/stagebacktest/internal/risk"
	"github.com/kosix/stagebacktest/internal/signal"
	"github.com/kosix/stagebacktest/internal/stage"
)

// BacktestAllowsShort pins Open Question #2: the orchestrator always
// coerces an entry to a long buy, and hands every entry (a coerced sell
// signal included) to the risk module as a buy, so the risk decision on
// this path is always long-side. This is a documented narrowing of capability,
// not a silent hardcoding (spec §9 "Sell signals coerced to buys").
const BacktestAllowsShort = false

// Run executes the per-day loop over every date in the common trading
// index from startDate through endDate (inclusive), in the fixed step
// order of spec §4.8: mark-to-market, trailing-stop update, stop
// check & execute, exit signals, entry scan, snapshot.
func Run(ctx context.Context, dataset datamanager.Dataset, cfg config.BacktestConfig, startDate, endDate time.Time, logger *zerolog.Logger) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine: Run: %w", err)
	}
	if len(dataset) == 0 {
		return nil, fmt.Errorf("engine: Run: empty universe")
	}
	if endDate.Before(startDate) {
		return nil, fmt.Errorf("engine: Run: end_date %s before start_date %s", endDate, startDate)
	}

	log := korlog.Default()
	if logger != nil {
		log = *logger
	}

	runID := uuid.New().String()
	tickers := sortedTickers(dataset)
	dates := commonDateIndex(dataset, startDate, endDate)

	pf := portfolio.New(decimal.NewFromFloat(cfg.InitialCapital))
	riskCfg := risk.Config{
		RiskPct:           cfg.Risk.RiskPercentage,
		ATRMultiplier:     cfg.Risk.ATRMultiplier,
		StrengthThreshold: cfg.Risk.StrengthThreshold,
		CapitalCapRatio:   cfg.Risk.MaxCapitalRatio,
		SlippageRate:      cfg.SlippagePct,
		CommissionRate:    cfg.CommissionRate,
	}

	for _, d := range dates {
		dayStart := time.Now()

		prices, atrs := markToMarket(dataset, tickers, d)

		if err := pf.UpdateTrailingStops(prices, atrs, cfg.Risk.ATRMultiplier); err != nil {
			return nil, fmt.Errorf("engine: Run: trailing-stop update on %s: %w", d.Format("2006-01-02"), err)
		}

		if err := executeStopExits(pf, prices, d, cfg, runID); err != nil {
			return nil, err
		}

		if err := executeExitSignals(pf, dataset, prices, d, cfg, runID, log); err != nil {
			return nil, err
		}

		if err := scanEntries(pf, dataset, tickers, prices, d, riskCfg, cfg, runID, log); err != nil {
			return nil, err
		}

		pf.RecordSnapshot(d, prices)
		DayDuration.Observe(time.Since(dayStart).Seconds())
	}

	finalEquity := pf.InitialCapital
	if len(pf.Snapshots) > 0 {
		finalEquity = pf.Snapshots[len(pf.Snapshots)-1].Equity
	}
	FinalEquity.WithLabelValues(runID).Set(mustFloat(finalEquity))

	return &Result{
		RunID:           runID,
		StartDate:       startDate,
		EndDate:         endDate,
		InitialEquity:   pf.InitialCapital,
		FinalEquity:     finalEquity,
		UniverseSize:    len(tickers),
		History:         pf.Snapshots,
		Ledger:          pf.Ledger,
		ClosedPositions: pf.Closed,
	}, nil
}

func sortedTickers(dataset datamanager.Dataset) []string {
	out := make([]string, 0, len(dataset))
	for t := range dataset {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// commonDateIndex is the union of every ticker's trading dates at or
// after startDate and at or before endDate (spec §4.8: the loop iterates
// only over dates >= start_date; earlier bars exist solely to warm
// indicators).
func commonDateIndex(dataset datamanager.Dataset, startDate, endDate time.Time) []time.Time {
	seen := make(map[time.Time]bool)
	for _, et := range dataset {
		for _, b := range et.Table.Bars {
			if b.Date.Before(startDate) || b.Date.After(endDate) {
				continue
			}
			seen[b.Date] = true
		}
	}
	out := make([]time.Time, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// markToMarket reads Close of row d per ticker, skipping tickers missing
// the date, and the last known ATR up to and including d (spec §4.8
// step 1).
func markToMarket(dataset datamanager.Dataset, tickers []string, d time.Time) (map[string]decimal.Decimal, map[string]float64) {
	prices := make(map[string]decimal.Decimal, len(tickers))
	atrs := make(map[string]float64, len(tickers))
	for _, ticker := range tickers {
		et := dataset[ticker]
		for _, b := range et.Table.Bars {
			if b.Date.Equal(d) {
				prices[ticker] = decimal.NewFromFloat(b.Close)
				break
			}
		}
		if _, ok := prices[ticker]; !ok {
			continue
		}
		sliced := et.Table.Slice(d)
		if atr, ok := sliced.ATR.Last(); ok {
			atrs[ticker] = atr
		}
	}
	return prices, atrs
}

// executeStopExits is step 3: every open position whose stop triggers at
// the day's price is closed via a market-sell at the stop price (not
// Close), in deterministic ticker order.
func executeStopExits(pf *portfolio.Portfolio, prices map[string]decimal.Decimal, d time.Time, cfg config.BacktestConfig, runID string) error {
	triggered := pf.CheckStopLoss(prices)
	sort.Slice(triggered, func(i, j int) bool { return triggered[i].Ticker < triggered[j].Ticker })

	for _, t := range triggered {
		pos := pf.Open[t.Ticker]
		if pos == nil {
			continue
		}
		order := execution.Order{Ticker: t.Ticker, Action: common.ActionSell, Shares: pos.Shares, Price: t.StopPrice, Timestamp: d}
		fill, err := execution.Simulate(order, cfg.CommissionRate, cfg.SlippagePct)
		if err != nil {
			return fmt.Errorf("engine: executeStopExits(%s): %w", t.Ticker, err)
		}
		reason := fmt.Sprintf("stop_loss (%s)", t.StopType)
		if _, err := pf.ClosePosition(t.Ticker, d, fill.FillPrice, pos.Shares, fill.Commission, reason); err != nil {
			return fmt.Errorf("engine: executeStopExits(%s): %w", t.Ticker, err)
		}
		TradesExecuted.WithLabelValues(runID, "stop_loss").Inc()
	}
	return nil
}

// executeExitSignals is step 4: for each still-open position, compute
// the exit signal on its no-look-ahead slice; level 3 sells all shares,
// level 2 sells half rounded down to >= 1.
func executeExitSignals(pf *portfolio.Portfolio, dataset datamanager.Dataset, prices map[string]decimal.Decimal, d time.Time, cfg config.BacktestConfig, runID string, log zerolog.Logger) error {
	openTickers := make([]string, 0, len(pf.Open))
	for t := range pf.Open {
		openTickers = append(openTickers, t)
	}
	sort.Strings(openTickers)

	for _, ticker := range openTickers {
		pos := pf.Open[ticker]
		et, ok := dataset[ticker]
		if !ok {
			continue
		}
		sliced := et.Table.Slice(d)
		if sliced.Len() == 0 {
			continue
		}
		exits, err := signal.GenerateExitSignal(sliced, pos.Side)
		if err != nil {
			log.Warn().Str("ticker", ticker).Err(err).Msg("skipping exit-signal evaluation for this ticker/day")
			continue
		}
		last := exits[len(exits)-1]
		if !last.ShouldExit {
			continue
		}

		price, ok := prices[ticker]
		if !ok {
			continue
		}
		shares := pos.Shares
		if last.Level == signal.ExitHalfClose {
			shares = pos.Shares / 2
			if shares < 1 {
				shares = 1
			}
		}

		order := execution.Order{Ticker: ticker, Action: common.ActionSell, Shares: shares, Price: price, Timestamp: d}
		fill, err := execution.Simulate(order, cfg.CommissionRate, cfg.SlippagePct)
		if err != nil {
			return fmt.Errorf("engine: executeExitSignals(%s): %w", ticker, err)
		}
		if _, err := pf.ClosePosition(ticker, d, fill.FillPrice, shares, fill.Commission, last.Reason); err != nil {
			return fmt.Errorf("engine: executeExitSignals(%s): %w", ticker, err)
		}
		TradesExecuted.WithLabelValues(runID, "exit_signal").Inc()
	}
	return nil
}

// scanEntries is step 5: for each ticker not currently held, evaluate an
// entry signal; sell-side signals are coerced into a long buy per the
// backtest-only policy, surfaced via a structured log field and a metric
// rather than silently discarded.
func scanEntries(pf *portfolio.Portfolio, dataset datamanager.Dataset, tickers []string, prices map[string]decimal.Decimal, d time.Time, riskCfg risk.Config, cfg config.BacktestConfig, runID string, log zerolog.Logger) error {
	for _, ticker := range tickers {
		if _, held := pf.Open[ticker]; held {
			continue
		}
		price, ok := prices[ticker]
		if !ok {
			continue
		}
		et := dataset[ticker]
		sliced := et.Table.Slice(d)
		if sliced.Len() == 0 {
			continue
		}
		slicedStages := sliceStages(et.Stages, sliced.Len())

		entries, err := signal.GenerateEntrySignal(sliced, slicedStages, cfg.Signal.EnableEarlySignals)
		if err != nil {
			log.Warn().Str("ticker", ticker).Err(err).Msg("skipping entry-signal evaluation for this ticker/day")
			continue
		}
		last := entries[len(entries)-1]
		if last.Signal == signal.NoEntry {
			continue
		}

		if last.Type == signal.EntryTypeSell {
			SignalsCoercedToLong.WithLabelValues(runID, ticker).Inc()
			log.Info().Str("ticker", ticker).Str("coerced_from_side", "short").Time("date", d).
				Msg("backtest policy forces long-only entry: sell signal coerced to buy")
		}

		strengths := signal.ComputeStrengthSeries(sliced, slicedStages)
		strength := strengths[len(strengths)-1]

		stageN := 0
		if s, ok := slicedStages[len(slicedStages)-1].Get(); ok {
			stageN = int(s)
		}

		ema20, _ := sliced.EMA20.Last()
		atr, _ := sliced.ATR.Last()
		sig := risk.Signal{Ticker: ticker, Action: common.ActionBuy, Strength: strength.Total, CurrentPrice: price}
		ref := risk.TickerReference{ATR: atr, EMA20: decimal.NewFromFloat(ema20)}

		equity := pf.Equity(prices)
		decision, err := risk.ApplyRiskManagement(sig, equity, pf.Cash, ref, riskCfg)
		if err != nil {
			return fmt.Errorf("engine: scanEntries(%s): %w", ticker, err)
		}
		if !decision.Approved {
			continue
		}

		order := execution.Order{Ticker: ticker, Action: common.ActionBuy, Shares: decision.Shares, Price: price, Timestamp: d}
		fill, err := execution.Simulate(order, cfg.CommissionRate, cfg.SlippagePct)
		if err != nil {
			return fmt.Errorf("engine: scanEntries(%s): %w", ticker, err)
		}
		reason := fmt.Sprintf("%s (Stage %d)", last.Type, stageN)
		if err := pf.AddPosition(ticker, common.SideLong, d, fill.FillPrice, decision.Shares, decision.Units, decision.StopPrice, decision.StopType, fill.TotalCost, reason, strength.Total, stageN); err != nil {
			continue // cash became insufficient between the check and now is not expected, but never abort the day
		}
		TradesExecuted.WithLabelValues(runID, "entry").Inc()
	}
	return nil
}

func sliceStages(s stage.Series, n int) stage.Series {
	if n > len(s) {
		n = len(s)
	}
	return append(stage.Series(nil), s[:n]...)
}

func mustFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
