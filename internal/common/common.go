// Package common holds the small closed enumerations shared across the
// signal, risk, portfolio and execution packages, so that every code path
// branching on them can be exhaustive.
package common

// Side is the direction of a position or a candidate order.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// OrderAction is the action a market order executes.
type OrderAction string

const (
	ActionBuy  OrderAction = "buy"
	ActionSell OrderAction = "sell"
)

// StopType distinguishes a volatility-derived stop from a trend-derived
// stop (spec §3 Position, §4.4 Risk manager).
type StopType string

const (
	StopVolatility StopType = "volatility"
	StopTrend      StopType = "trend"
)
