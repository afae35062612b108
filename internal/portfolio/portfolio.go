package portfolio

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kosix/stagebacktest/internal/common"
	"github.com/kosix/stagebacktest/internal/risk"
)

// Portfolio is the singleton mutable aggregate of a backtest run
// (spec §4.5). It is mutated by the orchestrator only.
type Portfolio struct {
	InitialCapital decimal.Decimal
	Cash           decimal.Decimal
	Open           map[string]*Position
	Closed         []*Position
	Ledger         []TradeRecord
	Snapshots      []Snapshot
}

// New creates a Portfolio seeded with initialCapital cash.
func New(initialCapital decimal.Decimal) *Portfolio {
	return &Portfolio{
		InitialCapital: initialCapital,
		Cash:           initialCapital,
		Open:           make(map[string]*Position),
	}
}

// AddPosition opens a new position or merges into an existing one with
// weighted-average entry pricing and summed units (spec §4.5). Cash
// decreases by cost (fill price*shares+commission, already computed by
// the caller). An entry whose cost exceeds cash is rejected.
//
// entryReason, strengthAtEntry and stageAtEntry are the signal
// provenance the spec requires on Position (spec §3): they seed a new
// position and are left untouched by a re-entry merge, since a merge
// doesn't change what originally opened the position.
func (pf *Portfolio) AddPosition(ticker string, side common.Side, date time.Time, price decimal.Decimal, shares, units int, stop decimal.Decimal, stopType common.StopType, cost decimal.Decimal, entryReason string, strengthAtEntry, stageAtEntry int) error {
	if cost.GreaterThan(pf.Cash) {
		return fmt.Errorf("portfolio: AddPosition(%s): cost %s exceeds cash %s", ticker, cost, pf.Cash)
	}
	if existing, ok := pf.Open[ticker]; ok {
		totalShares := existing.Shares + shares
		weighted := existing.EntryPrice.Mul(decimal.NewFromInt(int64(existing.Shares))).
			Add(price.Mul(decimal.NewFromInt(int64(shares)))).
			Div(decimal.NewFromInt(int64(totalShares)))
		existing.EntryPrice = weighted
		existing.Shares = totalShares
		existing.Units += units
		// existing.Stop/Side/provenance/metadata are preserved (spec §4.5).
	} else {
		pos := &Position{
			Ticker:          ticker,
			Side:            side,
			EntryDate:       date,
			EntryPrice:      price,
			Shares:          shares,
			Units:           units,
			StopPrice:       stop,
			StopType:        stopType,
			EntryReason:     entryReason,
			StrengthAtEntry: strengthAtEntry,
			StageAtEntry:    stageAtEntry,
		}
		pos.observe(price)
		pf.Open[ticker] = pos
	}
	pf.Cash = pf.Cash.Sub(cost)
	return nil
}

// ClosePosition closes shares (full or partial) against the weighted
// entry price. Cash increases by shares*exitPrice - commission. A
// partial close preserves the entry price (no cost-basis rebase) and
// scales units proportionally (spec §4.5, §8 invariant). Returns the
// appended trade record.
func (pf *Portfolio) ClosePosition(ticker string, date time.Time, exitPrice decimal.Decimal, shares int, commission decimal.Decimal, reason string) (TradeRecord, error) {
	pos, ok := pf.Open[ticker]
	if !ok {
		return TradeRecord{}, fmt.Errorf("portfolio: ClosePosition(%s): no open position", ticker)
	}
	if shares <= 0 || shares > pos.Shares {
		return TradeRecord{}, fmt.Errorf("portfolio: ClosePosition(%s): invalid close size %d of %d", ticker, shares, pos.Shares)
	}

	diff := exitPrice.Sub(pos.EntryPrice)
	if pos.Side == common.SideShort {
		diff = diff.Neg()
	}
	pnl := diff.Mul(decimal.NewFromInt(int64(shares))).Sub(commission)

	proceeds := exitPrice.Mul(decimal.NewFromInt(int64(shares))).Sub(commission)
	pf.Cash = pf.Cash.Add(proceeds)

	returnPct := 0.0
	if basis, _ := pos.EntryPrice.Mul(decimal.NewFromInt(int64(shares))).Float64(); basis != 0 {
		p, _ := pnl.Float64()
		returnPct = p / basis * 100
	}

	action := common.ActionSell
	if pos.Side == common.SideShort {
		action = common.ActionBuy
	}

	rec := TradeRecord{
		Date:        date,
		Ticker:      ticker,
		Action:      action,
		Shares:      shares,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   exitPrice,
		PnL:         pnl,
		ReturnPct:   returnPct,
		HoldingDays: int(date.Sub(pos.EntryDate).Hours() / 24),
		Reason:      fmt.Sprintf("%s (entry: %s)", reason, pos.EntryReason),
		Commission:  commission,
	}
	pf.Ledger = append(pf.Ledger, rec)

	if shares == pos.Shares {
		delete(pf.Open, ticker)
		pf.Closed = append(pf.Closed, pos)
	} else {
		// Partial close: units scale proportionally, entry price held fixed.
		remaining := pos.Shares - shares
		pos.Units = int(float64(pos.Units) * float64(remaining) / float64(pos.Shares))
		pos.Shares = remaining
	}
	return rec, nil
}

// Equity is cash + sum of position.CurrentValue(price) over open
// positions. A ticker absent from prices falls back to the position's
// entry price (spec §4.5).
func (pf *Portfolio) Equity(prices map[string]decimal.Decimal) decimal.Decimal {
	total := pf.Cash
	for ticker, pos := range pf.Open {
		price, ok := prices[ticker]
		if !ok {
			price = pos.EntryPrice
		}
		total = total.Add(pos.CurrentValue(price))
	}
	return total
}

// CheckStopLoss reports every open position whose stop fires at the
// given prices: long triggers at price <= stop, short at price >= stop
// (spec §4.5).
func (pf *Portfolio) CheckStopLoss(prices map[string]decimal.Decimal) []TriggeredStop {
	var triggered []TriggeredStop
	for ticker, pos := range pf.Open {
		price, ok := prices[ticker]
		if !ok {
			continue
		}
		fired := false
		if pos.Side == common.SideLong && price.LessThanOrEqual(pos.StopPrice) {
			fired = true
		}
		if pos.Side == common.SideShort && price.GreaterThanOrEqual(pos.StopPrice) {
			fired = true
		}
		if fired {
			triggered = append(triggered, TriggeredStop{Ticker: ticker, StopPrice: pos.StopPrice, StopType: pos.StopType})
		}
	}
	return triggered
}

// UpdateTrailingStops updates the running extreme for each open position
// from the day's price, recomputes the trailing-stop candidate from the
// position's ATR, and applies it only if it tightens: the stop may only
// rise for a long or fall for a short, never relax (spec §4.5, §8
// invariant: monotonicity is the canonical rule here, subsuming the risk
// module's floor-at-entry candidate).
func (pf *Portfolio) UpdateTrailingStops(prices map[string]decimal.Decimal, atrs map[string]float64, atrMult float64) error {
	for ticker, pos := range pf.Open {
		price, ok := prices[ticker]
		if !ok {
			continue
		}
		pos.observe(price)

		atr, ok := atrs[ticker]
		if !ok {
			continue
		}
		extreme := pos.HighestObserved
		if pos.Side == common.SideShort {
			extreme = pos.LowestObserved
		}
		candidate, err := risk.TrailingStopUpdate(pos.EntryPrice, extreme, atr, atrMult, pos.Side)
		if err != nil {
			return fmt.Errorf("portfolio: UpdateTrailingStops(%s): %w", ticker, err)
		}

		if pos.Side == common.SideLong && candidate.GreaterThan(pos.StopPrice) {
			pos.StopPrice = candidate
		}
		if pos.Side == common.SideShort && candidate.LessThan(pos.StopPrice) {
			pos.StopPrice = candidate
		}
	}
	return nil
}

// RecordSnapshot appends the day's {date, cash, equity, position count,
// per-position marks} to the snapshot history (spec §4.5).
func (pf *Portfolio) RecordSnapshot(date time.Time, prices map[string]decimal.Decimal) Snapshot {
	marks := make(map[string]decimal.Decimal, len(pf.Open))
	for ticker, pos := range pf.Open {
		price, ok := prices[ticker]
		if !ok {
			price = pos.EntryPrice
		}
		marks[ticker] = pos.CurrentValue(price)
	}
	snap := Snapshot{
		Date:           date,
		Cash:           pf.Cash,
		Equity:         pf.Equity(prices),
		PositionCount:  len(pf.Open),
		PerPositionMTM: marks,
	}
	pf.Snapshots = append(pf.Snapshots, snap)
	return snap
}
