// Package execution simulates market-order fills with directional
// slippage and commission (spec §4.6).
package execution

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kosix/stagebacktest/internal/common"
)

// CommissionRateDefault and SlippagePctDefault are the spec §6 defaults
// (execution.commission_rate, execution.slippage_pct).
const (
	CommissionRateDefault = 0.00015
	SlippagePctDefault    = 0.001
)

// Order is a market order to fill.
type Order struct {
	Ticker    string
	Action    common.OrderAction
	Shares    int
	Price     decimal.Decimal // quoted market price before slippage
	Timestamp time.Time
}

// Fill is the result of simulating an Order: always filled (no partial
// fills, no liquidity rejection — spec §4.6), carrying the fill price,
// commission, signed total cost, and slippage magnitude.
type Fill struct {
	Ticker      string
	Action      common.OrderAction
	Filled      bool
	FillPrice   decimal.Decimal
	Shares      int
	Commission  decimal.Decimal
	TotalCost   decimal.Decimal // positive cash outflow for buys, inflow (negative) for sells
	SlippageAbs decimal.Decimal
	Timestamp   time.Time
}

// Simulate fills a market order: buys execute at price*(1+slippage),
// sells at price*(1-slippage); commission = fill*shares*commissionRate.
// Total cost on a buy = fill*shares + commission; total proceeds on a
// sell = fill*shares - commission, reported as a negative TotalCost
// (cash inflow) (spec §4.6).
func Simulate(order Order, commissionRate, slippagePct float64) (Fill, error) {
	if order.Shares < 1 {
		return Fill{}, fmt.Errorf("execution: Simulate(%s): shares must be >= 1, got %d", order.Ticker, order.Shares)
	}
	if order.Action != common.ActionBuy && order.Action != common.ActionSell {
		return Fill{}, fmt.Errorf("execution: Simulate(%s): unknown action %q", order.Ticker, order.Action)
	}
	if order.Price.Sign() <= 0 {
		return Fill{}, fmt.Errorf("execution: Simulate(%s): market price must be positive, got %s", order.Ticker, order.Price)
	}
	if commissionRate < 0 {
		return Fill{}, fmt.Errorf("execution: Simulate(%s): commission_rate must be >= 0, got %f", order.Ticker, commissionRate)
	}
	if slippagePct < 0 {
		return Fill{}, fmt.Errorf("execution: Simulate(%s): slippage must be >= 0, got %f", order.Ticker, slippagePct)
	}

	var fillPrice decimal.Decimal
	if order.Action == common.ActionBuy {
		fillPrice = order.Price.Mul(decimal.NewFromFloat(1 + slippagePct))
	} else {
		fillPrice = order.Price.Mul(decimal.NewFromFloat(1 - slippagePct))
	}

	notional := fillPrice.Mul(decimal.NewFromInt(int64(order.Shares)))
	commission := notional.Mul(decimal.NewFromFloat(commissionRate))

	var totalCost decimal.Decimal
	if order.Action == common.ActionBuy {
		totalCost = notional.Add(commission)
	} else {
		totalCost = notional.Sub(commission).Neg()
	}

	slippage := fillPrice.Sub(order.Price)
	if slippage.Sign() < 0 {
		slippage = slippage.Neg()
	}

	return Fill{
		Ticker:      order.Ticker,
		Action:      order.Action,
		Filled:      true,
		FillPrice:   fillPrice,
		Shares:      order.Shares,
		Commission:  commission,
		TotalCost:   totalCost,
		SlippageAbs: slippage,
		Timestamp:   order.Timestamp,
	}, nil
}
