package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/kosix/stagebacktest/internal/portfolio"
)

// Result is the backtest orchestrator's output object (spec §6
// "Outputs"): run metadata, portfolio history, closed-trade ledger, and
// convenience accessors the analyzer reads from.
type Result struct {
	RunID          string
	StartDate      time.Time
	EndDate        time.Time
	InitialEquity  decimal.Decimal
	FinalEquity    decimal.Decimal
	UniverseSize   int
	History        []portfolio.Snapshot
	Ledger         []portfolio.TradeRecord
	ClosedPositions []*portfolio.Position
}
