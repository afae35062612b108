package stage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kosix/stagebacktest/internal/numerics"
)

func mkTrendingBars(n int, start, step float64) []numerics.Bar {
	bars := make([]numerics.Bar, n)
	d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	price := start
	for i := 0; i < n; i++ {
		price += step
		bars[i] = numerics.Bar{
			Date:  d.AddDate(0, 0, i),
			Open:  price - 0.2,
			High:  price + 0.5,
			Low:   price - 0.5,
			Close: price,
		}
	}
	return bars
}

func TestArrangementMatchesTableForUptrend(t *testing.T) {
	bars := mkTrendingBars(80, 100, 1.0)
	bt, err := numerics.NewBarTable("005930", bars)
	require.NoError(t, err)
	enriched, err := numerics.CalculateAllIndicators(bt)
	require.NoError(t, err)

	stages, err := DetermineStage(enriched)
	require.NoError(t, err)

	// A strong, sustained uptrend should settle into Stage 1 (S>M>L) by the
	// final row, once crossings have stopped firing.
	last, ok := stages[len(stages)-1].Get()
	require.True(t, ok)
	assert.Equal(t, Stage(1), last)
}

func TestStageTransitionEncoding(t *testing.T) {
	s := Series{
		numerics.Some(Stage(1)),
		numerics.Some(Stage(1)),
		numerics.Some(Stage(6)),
		{},
		numerics.Some(Stage(3)),
	}
	tr := DetectStageTransition(s)
	assert.Equal(t, 0, mustGet(t, tr[0]))
	assert.Equal(t, 0, mustGet(t, tr[1]))
	assert.Equal(t, 16, mustGet(t, tr[2]))
	assert.False(t, tr[3].Ok)
	assert.False(t, tr[4].Ok, "transition into an undefined-preceded row is undefined")
}

func mustGet(t *testing.T, o numerics.Option[int]) int {
	t.Helper()
	v, ok := o.Get()
	require.True(t, ok)
	return v
}

func TestStageStrategyRejectsOutOfRange(t *testing.T) {
	_, err := StageStrategy(0)
	assert.Error(t, err)
	_, err = StageStrategy(7)
	assert.Error(t, err)
}

func TestStageStrategyAlignmentStrength(t *testing.T) {
	d, err := StageStrategy(Stage(6), numerics.DirectionUp, numerics.DirectionUp, numerics.DirectionUp)
	require.NoError(t, err)
	require.NotNil(t, d.Alignment)
	assert.Equal(t, AlignmentStrong, d.Alignment.Strength)

	d2, err := StageStrategy(Stage(6), numerics.DirectionUp, numerics.DirectionDown, numerics.DirectionUp)
	require.NoError(t, err)
	require.NotNil(t, d2.Alignment)
	assert.Equal(t, AlignmentWeak, d2.Alignment.Strength)
}

func TestArrangementTieYieldsUndefined(t *testing.T) {
	s, ok := arrangement(100.0, 100.0, 90.0)
	assert.False(t, ok)
	assert.Equal(t, Undefined, s)
}
