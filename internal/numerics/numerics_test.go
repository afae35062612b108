package numerics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkBars(n int, base float64) []Bar {
	bars := make([]Bar, n)
	d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	price := base
	for i := 0; i < n; i++ {
		price += 1
		bars[i] = Bar{
			Date:  d.AddDate(0, 0, i),
			Open:  price - 0.5,
			High:  price + 1,
			Low:   price - 1,
			Close: price,
		}
	}
	return bars
}

func TestEMAWarmup(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	ema, err := EMA(closes, 3)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		assert.False(t, ema[i].Ok, "index %d should be undefined", i)
	}
	for i := 2; i < len(ema); i++ {
		assert.True(t, ema[i].Ok, "index %d should be defined", i)
	}
}

func TestATRWarmupAndPositivity(t *testing.T) {
	bars := mkBars(30, 100)
	atr, err := ATR(bars, 20)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		assert.False(t, atr[i].Ok)
	}
	for i := 20; i < len(atr); i++ {
		require.True(t, atr[i].Ok)
		assert.Greater(t, atr[i].Value, 0.0)
	}
}

func TestPeakoutMonotoneSeriesAllZero(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5, 6}
	s := make(Series, len(vals))
	for i, v := range vals {
		s[i] = Some(v)
	}
	out, err := Peakout(s, 1)
	require.NoError(t, err)
	assert.False(t, out[0].Ok)
	for i := 1; i < len(out); i++ {
		require.True(t, out[i].Ok)
		assert.Equal(t, 0.0, out[i].Value)
	}
}

func TestPeakoutTurningPoint(t *testing.T) {
	vals := []float64{1, 2, 3, 2, 1}
	s := make(Series, len(vals))
	for i, v := range vals {
		s[i] = Some(v)
	}
	out, err := Peakout(s, 1)
	require.NoError(t, err)
	// row 3 (value 2): prev=3 is window max(2..3)? window is rows 2..3 -> {3,2}; max=3=prev, cur<prev -> +1
	require.True(t, out[3].Ok)
	assert.Equal(t, 1.0, out[3].Value)
}

func TestMACDRequiresFastLessThanSlow(t *testing.T) {
	_, err := MACD([]float64{1, 2, 3}, 20, 5, 9)
	assert.Error(t, err)
}

func TestCalculateAllIndicatorsPreservesInputRows(t *testing.T) {
	bars := mkBars(60, 100)
	table, err := NewBarTable("005930", bars)
	require.NoError(t, err)
	enriched, err := CalculateAllIndicators(table)
	require.NoError(t, err)
	require.Equal(t, len(bars), enriched.Len())
	for i, b := range bars {
		assert.Equal(t, b.Close, enriched.Bars[i].Close)
		assert.Equal(t, b.Date, enriched.Bars[i].Date)
	}
}

func TestCalculateAllIndicatorsRejectsShortHistory(t *testing.T) {
	bars := mkBars(10, 100)
	table, err := NewBarTable("005930", bars)
	require.NoError(t, err)
	_, err = CalculateAllIndicators(table)
	assert.Error(t, err)
}

func TestCalculateAllIndicatorsEmptyInput(t *testing.T) {
	table, err := NewBarTable("005930", nil)
	require.NoError(t, err)
	enriched, err := CalculateAllIndicators(table)
	require.NoError(t, err)
	assert.Equal(t, 0, enriched.Len())
}

func TestBarTableRejectsInvariantViolations(t *testing.T) {
	bad := []Bar{{Date: time.Now(), Open: 1, High: 5, Low: 10, Close: 6}}
	_, err := NewBarTable("X", bad)
	assert.Error(t, err)
}

func TestSlopeUndefinedOnNaNInWindow(t *testing.T) {
	s := Series{Some(1), Some(2), None[float64](), Some(4), Some(5), Some(6)}
	out, err := Slope(s, 3)
	require.NoError(t, err)
	assert.False(t, out[2].Ok)
	assert.False(t, out[3].Ok)
	assert.False(t, out[4].Ok)
	assert.True(t, out[5].Ok)
}
