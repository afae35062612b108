package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kosix/stagebacktest/internal/config"
	"github.com/kosix/stagebacktest/internal/datamanager"
	"github.com/kosix/stagebacktest/internal/numerics"
	"github.com/kosix/stagebacktest/internal/stage"
)

func mustBarTable(t *testing.T, ticker string, bars []numerics.Bar) *numerics.BarTable {
	t.Helper()
	table, err := numerics.NewBarTable(ticker, bars)
	require.NoError(t, err)
	return table
}

// flatDataset has no defined stage on any row, so no entry signal can ever
// fire: it exercises the day loop with zero trades.
func flatDataset(t *testing.T) (datamanager.Dataset, time.Time, time.Time) {
	t.Helper()
	d0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	d1 := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	bars := []numerics.Bar{
		{Date: d0, Open: 99, High: 101, Low: 98, Close: 100, Volume: 1000},
		{Date: d1, Open: 99, High: 101, Low: 98, Close: 100, Volume: 1000},
	}
	table := mustBarTable(t, "AAA", bars)
	enriched := &numerics.EnrichedTable{
		BarTable: table,
		EMA5:     numerics.NewUndefinedSeries(2),
		EMA20:    numerics.NewUndefinedSeries(2),
		EMA40:    numerics.NewUndefinedSeries(2),
		ATR:      numerics.NewUndefinedSeries(2),
		DirUpper:  make(numerics.DirectionSeries, 2),
		DirMiddle: make(numerics.DirectionSeries, 2),
		DirLower:  make(numerics.DirectionSeries, 2),
	}
	dataset := datamanager.Dataset{
		"AAA": &datamanager.EnrichedTicker{
			Table:  enriched,
			Stages: make(stage.Series, 2), // all undefined
		},
	}
	return dataset, d0, d1
}

func TestRunNoEntriesLeavesEquityUnchanged(t *testing.T) {
	dataset, start, end := flatDataset(t)
	cfg := config.Default()

	result, err := Run(context.Background(), dataset, cfg, start, end, nil)
	require.NoError(t, err)

	assert.Empty(t, result.Ledger)
	assert.Len(t, result.History, 2)
	assert.True(t, result.FinalEquity.Equal(result.InitialEquity),
		"equity must be unchanged when no trade ever executes: got %s vs initial %s", result.FinalEquity, result.InitialEquity)
}

// stopExitDataset hand-builds a two-row enriched table that forces exactly
// one trade: a Stage-6/all-up entry on day 0, then a price drop on day 1
// that fires the tightened trailing stop.
func stopExitDataset(t *testing.T) (datamanager.Dataset, time.Time, time.Time) {
	t.Helper()
	d0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	d1 := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	bars := []numerics.Bar{
		{Date: d0, Open: 99, High: 101, Low: 98, Close: 100, Volume: 1000},
		{Date: d1, Open: 86, High: 90, Low: 84, Close: 85, Volume: 1000},
	}
	table := mustBarTable(t, "AAA", bars)

	enriched := &numerics.EnrichedTable{
		BarTable: table,
		EMA5:  numerics.Series{numerics.Some(110.0), numerics.None[float64]()},
		EMA20: numerics.Series{numerics.Some(90.0), numerics.None[float64]()},
		EMA40: numerics.Series{numerics.Some(105.0), numerics.None[float64]()},
		ATR:   numerics.Series{numerics.Some(50.0), numerics.Some(50.0)},
		DirUpper:  numerics.DirectionSeries{numerics.Some(numerics.DirectionUp), numerics.None[numerics.Direction]()},
		DirMiddle: numerics.DirectionSeries{numerics.Some(numerics.DirectionUp), numerics.None[numerics.Direction]()},
		DirLower:  numerics.DirectionSeries{numerics.Some(numerics.DirectionUp), numerics.None[numerics.Direction]()},
	}
	stages := stage.Series{numerics.Some(stage.Stage(6)), numerics.None[stage.Stage]()}

	dataset := datamanager.Dataset{
		"AAA": &datamanager.EnrichedTicker{Table: enriched, Stages: stages},
	}
	return dataset, d0, d1
}

func TestRunEntersThenStopsOutAtATightenedStop(t *testing.T) {
	dataset, start, end := stopExitDataset(t)
	cfg := config.Default()

	result, err := Run(context.Background(), dataset, cfg, start, end, nil)
	require.NoError(t, err)

	require.Len(t, result.Ledger, 1)
	trade := result.Ledger[0]
	assert.Equal(t, "AAA", trade.Ticker)
	assert.Contains(t, trade.Reason, "stop_loss")
	assert.True(t, trade.PnL.IsNegative(), "expected a losing trade given the price drop, got pnl %s", trade.PnL)
	assert.True(t, result.FinalEquity.LessThan(result.InitialEquity),
		"equity should have dropped after a losing, commission-bearing round trip")
}

func TestRunIsDeterministicAcrossIdenticalInputs(t *testing.T) {
	cfg := config.Default()

	dataset1, start, end := stopExitDataset(t)
	result1, err := Run(context.Background(), dataset1, cfg, start, end, nil)
	require.NoError(t, err)

	dataset2, _, _ := stopExitDataset(t)
	result2, err := Run(context.Background(), dataset2, cfg, start, end, nil)
	require.NoError(t, err)

	require.Len(t, result1.Ledger, 1)
	require.Len(t, result2.Ledger, 1)
	assert.True(t, result1.Ledger[0].PnL.Equal(result2.Ledger[0].PnL))
	assert.True(t, result1.FinalEquity.Equal(result2.FinalEquity))
	assert.Equal(t, len(result1.History), len(result2.History))
}

func TestRunRejectsEmptyDataset(t *testing.T) {
	cfg := config.Default()
	_, err := Run(context.Background(), datamanager.Dataset{}, cfg, time.Now(), time.Now(), nil)
	assert.Error(t, err)
}

func TestRunRejectsEndBeforeStart(t *testing.T) {
	dataset, start, end := flatDataset(t)
	cfg := config.Default()
	_, err := Run(context.Background(), dataset, cfg, end, start, nil)
	assert.Error(t, err)
}
