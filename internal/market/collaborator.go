// Package market defines the interfaces the backtest core borrows from
// its external collaborators — raw OHLCV acquisition and universe
// enumeration are deliberately out of scope for the core (spec §1) and
// specified here only at their boundary — plus a reference HTTP-backed
// provider and an in-memory fake for tests and local runs.
package market

import (
	"context"
	"time"

	"github.com/kosix/stagebacktest/internal/numerics"
)

// Tag identifies a Korean market segment (spec §4.7 universe enumeration).
type Tag string

const (
	KOSPI  Tag = "KOSPI"
	KOSDAQ Tag = "KOSDAQ"
	ALL    Tag = "ALL"
)

// BarProvider produces a normalized bar table for (ticker, start, end):
// date index ascending/unique, OHLC positive reals with High/Low/Close
// invariants, Volume non-negative integers, no NaN in core columns
// (spec §4.8 "Inputs from the market-data collaborator").
type BarProvider interface {
	FetchBars(ctx context.Context, ticker string, start, end time.Time) (*numerics.BarTable, error)
}

// UniverseProvider produces the ticker list for a market tag
// (spec §4.8 "Inputs from the universe collaborator").
type UniverseProvider interface {
	Tickers(ctx context.Context, tag Tag) ([]string, error)
}
