package portfolio

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kosix/stagebacktest/internal/common"
)

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func TestOnePositionRoundTrip(t *testing.T) {
	pf := New(dec(10_000_000))
	d1 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

	err := pf.AddPosition("005930", common.SideLong, d1, dec(50_050), 100, 1, dec(48_000), common.StopVolatility, dec(5_005_750.75), "buy_signal (Stage 1)", 75, 1)
	require.NoError(t, err)
	assert.True(t, pf.Cash.Equal(dec(4_994_249.25)), "got %s", pf.Cash)

	rec, err := pf.ClosePosition("005930", d2, dec(51_948), 100, dec(779.22), "exit_level_3 (Stage 1)")
	require.NoError(t, err)
	// fill 51,948 x100 = 5,194,800 notional, commission 0.015% = 779.22,
	// proceeds 5,194,020.78; pnl = (51,948-50,050)*100 - 779.22 = 189,020.78.
	assert.InDelta(t, 189_020.78, mustFloat(rec.PnL), 0.5)
	assert.InDelta(t, 10_188_270.03, mustFloat(pf.Cash), 0.5)
	assert.Empty(t, pf.Open)
	assert.Len(t, pf.Closed, 1)
	assert.Contains(t, rec.Reason, "exit_level_3")
	assert.Contains(t, rec.Reason, "buy_signal (Stage 1)", "close row should reflect entry provenance")
}

func mustFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func TestAddPositionRecordsEntryProvenance(t *testing.T) {
	pf := New(dec(10_000_000))
	d := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, pf.AddPosition("X", common.SideLong, d, dec(100), 100, 1, dec(90), common.StopVolatility, dec(10_000), "buy_signal (Stage 3)", 72, 3))

	pos := pf.Open["X"]
	assert.Equal(t, "buy_signal (Stage 3)", pos.EntryReason)
	assert.Equal(t, 72, pos.StrengthAtEntry)
	assert.Equal(t, 3, pos.StageAtEntry)
}

func TestAddPositionPreservesEntryProvenanceOnReentry(t *testing.T) {
	pf := New(dec(10_000_000))
	d := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, pf.AddPosition("X", common.SideLong, d, dec(100), 100, 1, dec(90), common.StopVolatility, dec(10_000), "buy_signal (Stage 1)", 75, 1))
	require.NoError(t, pf.AddPosition("X", common.SideLong, d, dec(200), 100, 1, dec(90), common.StopVolatility, dec(20_000), "buy_signal (Stage 4)", 80, 4))

	pos := pf.Open["X"]
	assert.Equal(t, "buy_signal (Stage 1)", pos.EntryReason, "a re-entry merge must not overwrite the original entry's provenance")
	assert.Equal(t, 75, pos.StrengthAtEntry)
	assert.Equal(t, 1, pos.StageAtEntry)
}

func TestAddPositionRejectsInsufficientCash(t *testing.T) {
	pf := New(dec(1000))
	err := pf.AddPosition("X", common.SideLong, time.Now(), dec(100), 100, 1, dec(90), common.StopVolatility, dec(10_001), "buy_signal (Stage 1)", 75, 1)
	assert.Error(t, err)
}

func TestAddPositionWeightedAverageOnReentry(t *testing.T) {
	pf := New(dec(10_000_000))
	d := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, pf.AddPosition("X", common.SideLong, d, dec(100), 100, 1, dec(90), common.StopVolatility, dec(10_000), "buy_signal (Stage 1)", 75, 1))
	require.NoError(t, pf.AddPosition("X", common.SideLong, d, dec(200), 100, 1, dec(90), common.StopVolatility, dec(20_000), "buy_signal (Stage 1)", 80, 1))

	pos := pf.Open["X"]
	assert.Equal(t, 200, pos.Shares)
	assert.Equal(t, 2, pos.Units)
	assert.True(t, pos.EntryPrice.Equal(dec(150)), "got %s", pos.EntryPrice)
}

func TestPartialClosePreservesEntryPrice(t *testing.T) {
	pf := New(dec(10_000_000))
	d := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, pf.AddPosition("X", common.SideLong, d, dec(100), 100, 4, dec(90), common.StopVolatility, dec(10_000), "buy_signal (Stage 1)", 75, 1))

	_, err := pf.ClosePosition("X", d.AddDate(0, 0, 1), dec(110), 50, dec(1), "exit_level_2")
	require.NoError(t, err)

	pos := pf.Open["X"]
	assert.Equal(t, 50, pos.Shares)
	assert.Equal(t, 2, pos.Units)
	assert.True(t, pos.EntryPrice.Equal(dec(100)), "partial close must not rebase entry price, got %s", pos.EntryPrice)
}

func TestEquityFallsBackToEntryPriceWhenTickerMissing(t *testing.T) {
	pf := New(dec(1000))
	d := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, pf.AddPosition("X", common.SideLong, d, dec(10), 10, 1, dec(8), common.StopVolatility, dec(100), "buy_signal (Stage 1)", 75, 1))

	equity := pf.Equity(map[string]decimal.Decimal{})
	assert.True(t, equity.Equal(dec(1000)), "got %s", equity)
}

func TestCheckStopLossTriggersLongAndShort(t *testing.T) {
	pf := New(dec(1_000_000))
	d := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, pf.AddPosition("L", common.SideLong, d, dec(100), 10, 1, dec(95), common.StopVolatility, dec(1000), "buy_signal (Stage 1)", 75, 1))
	require.NoError(t, pf.AddPosition("S", common.SideShort, d, dec(100), 10, 1, dec(105), common.StopVolatility, dec(1000), "sell_signal (Stage 5)", 75, 5))

	triggered := pf.CheckStopLoss(map[string]decimal.Decimal{"L": dec(94), "S": dec(106)})
	assert.Len(t, triggered, 2)
}

func TestTrailingStopNeverRelaxes(t *testing.T) {
	pf := New(dec(1_000_000))
	d := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, pf.AddPosition("X", common.SideLong, d, dec(100), 10, 1, dec(90), common.StopVolatility, dec(1000), "buy_signal (Stage 1)", 75, 1))

	require.NoError(t, pf.UpdateTrailingStops(map[string]decimal.Decimal{"X": dec(120)}, map[string]float64{"X": 1}, 2.0))
	tightened := pf.Open["X"].StopPrice
	assert.True(t, tightened.GreaterThan(dec(90)))

	// A subsequent lower price must never relax the stop below its prior value.
	require.NoError(t, pf.UpdateTrailingStops(map[string]decimal.Decimal{"X": dec(95)}, map[string]float64{"X": 1}, 2.0))
	assert.True(t, pf.Open["X"].StopPrice.GreaterThanOrEqual(tightened))
}
