// Package portfolio owns the single mutable aggregate of a backtest run:
// cash, open positions, closed trades, the trade ledger and the
// snapshot history (spec §4.5).
package portfolio

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/kosix/stagebacktest/internal/common"
)

// Position is owned exclusively by a Portfolio; it never references its
// owner back (spec §3, §4.5 "Cyclic ownership: there is none").
type Position struct {
	Ticker          string
	Side            common.Side
	EntryDate       time.Time
	EntryPrice      decimal.Decimal // weighted-average across all adds
	Shares          int
	Units           int
	StopPrice       decimal.Decimal
	StopType        common.StopType
	HighestObserved decimal.Decimal // running extreme favoring a long
	LowestObserved  decimal.Decimal // running extreme favoring a short

	// Provenance (spec §3): the signal that opened the position, fixed at
	// the initial entry and preserved across re-entry merges.
	EntryReason     string
	StrengthAtEntry int
	StageAtEntry    int
}

// CurrentValue marks the position to the given price.
func (p *Position) CurrentValue(price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(p.Shares)))
}

// UnrealizedPnL marks the position's open P&L against price.
func (p *Position) UnrealizedPnL(price decimal.Decimal) decimal.Decimal {
	diff := price.Sub(p.EntryPrice)
	if p.Side == common.SideShort {
		diff = diff.Neg()
	}
	return diff.Mul(decimal.NewFromInt(int64(p.Shares)))
}

// observe updates the running extreme used by trailing-stop recomputation.
func (p *Position) observe(price decimal.Decimal) {
	if p.Side == common.SideLong {
		if p.HighestObserved.IsZero() || price.GreaterThan(p.HighestObserved) {
			p.HighestObserved = price
		}
	} else {
		if p.LowestObserved.IsZero() || price.LessThan(p.LowestObserved) {
			p.LowestObserved = price
		}
	}
}

// TradeRecord is one fill appended to the ledger (spec §3).
type TradeRecord struct {
	Date        time.Time
	Ticker      string
	Action      common.OrderAction
	Shares      int
	EntryPrice  decimal.Decimal
	ExitPrice   decimal.Decimal
	PnL         decimal.Decimal
	ReturnPct   float64
	HoldingDays int
	Reason      string
	Commission  decimal.Decimal
}

// Snapshot is one simulated day's portfolio state (spec §4.5).
type Snapshot struct {
	Date           time.Time
	Cash           decimal.Decimal
	Equity         decimal.Decimal
	PositionCount  int
	PerPositionMTM map[string]decimal.Decimal
}

// TriggeredStop reports a position whose stop fired on a given price.
type TriggeredStop struct {
	Ticker    string
	StopPrice decimal.Decimal
	StopType  common.StopType
}
