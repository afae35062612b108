package signal

import (
	"sort"

	"github.com/kosix/stagebacktest/internal/numerics"
	"github.com/kosix/stagebacktest/internal/stage"
)

// Strength is the 0-100 composite score for a row (spec §4.3).
type Strength struct {
	MACDAlignment int
	TrendStrength int
	Momentum      int
	Total         int
}

// defaultSpreadFailureScore is the conservative default assigned to the
// spread component when percentile computation fails (spec §4.3).
const defaultSpreadFailureScore = 5

// percentileRank returns, for each defined value in values, its empirical
// percentile rank (0-100) among all defined values in the same slice,
// itself included; undefined entries are skipped and receive rank -1.
func percentileRank(values []numerics.Option[float64]) []float64 {
	type idxVal struct {
		idx int
		val float64
	}
	var defined []idxVal
	for i, v := range values {
		if v.Ok {
			defined = append(defined, idxVal{i, v.Value})
		}
	}
	sorted := make([]float64, len(defined))
	for i, d := range defined {
		sorted[i] = d.val
	}
	sort.Float64s(sorted)

	out := make([]float64, len(values))
	for i := range out {
		out[i] = -1
	}
	n := len(sorted)
	if n == 0 {
		return out
	}
	for _, d := range defined {
		// count of values <= v, inclusive, as a fraction of n.
		count := sort.SearchFloat64s(sorted, d.val)
		for count < n && sorted[count] == d.val {
			count++
		}
		out[d.idx] = float64(count) / float64(n) * 100
	}
	return out
}

// ComputeStrengthSeries computes the Strength column over the whole table.
// The spread and ATR components require table-wide percentile ranking, so
// this operates over the full (look-ahead-sliced) table rather than a
// single row.
func ComputeStrengthSeries(t *numerics.EnrichedTable, stages stage.Series) []Strength {
	n := t.Len()
	out := make([]Strength, n)

	spread := make([]numerics.Option[float64], n)
	for i := 0; i < n; i++ {
		e5, ok5 := t.EMA5[i].Get()
		e20, ok20 := t.EMA20[i].Get()
		e40, ok40 := t.EMA40[i].Get()
		if ok5 && ok20 && ok40 && t.Bars[i].Close != 0 {
			v := (absf(e5-e20) + absf(e20-e40)) / t.Bars[i].Close
			spread[i] = numerics.Some(v)
		}
	}
	spreadPct := percentileRank(spread)
	atrPct := percentileRank(t.ATR)
	ema40Slope, err := numerics.Slope(t.EMA40, stage.DefaultMASlopeWindow)
	if err != nil {
		ema40Slope = numerics.NewUndefinedSeries(n)
	}

	for i := 0; i < n; i++ {
		s := Strength{}
		s.MACDAlignment = macdAlignmentScore(t, i)
		s.TrendStrength = trendStrengthScore(t, stages, i, spreadPct[i])
		s.Momentum = momentumScore(ema40Slope[i], atrPct[i])
		total := s.MACDAlignment + s.TrendStrength + s.Momentum
		if total < 0 {
			total = 0
		}
		if total > 100 {
			total = 100
		}
		s.Total = total
		out[i] = s
	}
	return out
}

func macdAlignmentScore(t *numerics.EnrichedTable, i int) int {
	du, okU := t.DirUpper[i].Get()
	dm, okM := t.DirMiddle[i].Get()
	dl, okL := t.DirLower[i].Get()
	if !okU || !okM || !okL {
		return 0
	}
	up, down := 0, 0
	for _, d := range []numerics.Direction{du, dm, dl} {
		if d == numerics.DirectionUp {
			up++
		} else if d == numerics.DirectionDown {
			down++
		}
	}
	match := up
	if down > match {
		match = down
	}
	switch match {
	case 3:
		return 30
	case 2:
		return 20
	case 1:
		return 10
	default:
		return 0
	}
}

func trendStrengthScore(t *numerics.EnrichedTable, stages stage.Series, i int, spreadPercentile float64) int {
	arrangementScore := 0
	if s, ok := stages[i].Get(); ok {
		switch s {
		case 6, 3:
			arrangementScore = 20
		case 5, 2:
			arrangementScore = 15
		case 1, 4:
			arrangementScore = 5
		}
	}
	spreadScore := defaultSpreadFailureScore
	if spreadPercentile >= 0 {
		switch {
		case spreadPercentile >= 80:
			spreadScore = 20
		case spreadPercentile >= 60:
			spreadScore = 15
		case spreadPercentile >= 40:
			spreadScore = 10
		default:
			spreadScore = 5
		}
	}
	return arrangementScore + spreadScore
}

func momentumScore(ema40Slope numerics.Option[float64], atrPercentile float64) int {
	slopeScore := 5 // "else" bucket default
	if v, ok := ema40Slope.Get(); ok {
		label := numerics.ClassifySlope(v, slope40WeakThreshold, slope40UpThreshold, slope40StrongThreshold)
		switch label {
		case numerics.SlopeStrongUp, numerics.SlopeStrongDown:
			slopeScore = 20
		case numerics.SlopeUp, numerics.SlopeDown:
			slopeScore = 15
		case numerics.SlopeWeakUp, numerics.SlopeWeakDown:
			slopeScore = 10
		case numerics.SlopeFlat:
			slopeScore = 0
		}
	}

	volScore := 3
	if atrPercentile >= 0 {
		switch {
		case atrPercentile >= 40 && atrPercentile <= 70:
			volScore = 10
		case (atrPercentile >= 20 && atrPercentile < 40) || (atrPercentile > 70 && atrPercentile <= 85):
			volScore = 7
		default:
			volScore = 3
		}
	}
	return slopeScore + volScore
}

func absf(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// Slope thresholds for the EMA40 slope label used by the momentum
// sub-score. These are absolute-value breakpoints against the default
// stage.DefaultMASlopeWindow-row slope of EMA40.
const (
	slope40WeakThreshold   = 0.01
	slope40UpThreshold     = 0.05
	slope40StrongThreshold = 0.2
)
