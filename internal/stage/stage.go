// Package stage implements the six-stage moving-average classifier: the
// EMA-arrangement pattern, its override by MACD zero-line crossings, stage
// transition detection, MA spread/slope helpers and per-stage strategy
// metadata (spec §4.2).
package stage

import (
	"fmt"

	"github.com/kosix/stagebacktest/internal/numerics"
)

// Stage is the integer 1..6 classification of the current three-EMA
// arrangement (or its zero-line-cross override). 0 means undefined.
type Stage int

const (
	Undefined Stage = 0
)

// NeglectThreshold is the absolute EMA-difference tolerance below which two
// EMAs are treated as tied, producing an undefined arrangement rather than
// an arbitrary ordering (spec §4.2 "ties under a neglect threshold").
const NeglectThreshold = 1e-6

// arrangement derives the candidate stage from the (S, M, L) =
// (EMA5, EMA20, EMA40) ordering (spec §4.2 table). Returns (0, false) when
// any pair is tied within NeglectThreshold.
func arrangement(s, m, l float64) (Stage, bool) {
	if tied(s, m) || tied(m, l) || tied(s, l) {
		return Undefined, false
	}
	switch {
	case s > m && m > l:
		return 1, true
	case m > s && s > l:
		return 2, true
	case m > l && l > s:
		return 3, true
	case l > m && m > s:
		return 4, true
	case l > s && s > m:
		return 5, true
	case s > l && l > m:
		return 6, true
	default:
		return Undefined, false
	}
}

func tied(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < NeglectThreshold
}

// Series is a time-indexed column of optional Stage values.
type Series []numerics.Option[Stage]

// DetermineStage derives the Stage column for the whole table: the
// arrangement pattern on every row, except rows where a MACD zero-line
// cross fires, where the crossing's mapping takes over with priority
// lower > middle > upper when two crosses coincide (spec §4.2).
func DetermineStage(t *numerics.EnrichedTable) (Series, error) {
	if t == nil {
		return nil, fmt.Errorf("stage: DetermineStage: nil table")
	}
	n := t.Len()
	out := make(Series, n)

	crossUpper := numerics.ZeroLineCross(t.MACDUpper.Line)
	crossMiddle := numerics.ZeroLineCross(t.MACDMiddle.Line)
	crossLower := numerics.ZeroLineCross(t.MACDLower.Line)

	for i := 0; i < n; i++ {
		ema5, ok5 := t.EMA5[i].Get()
		ema20, ok20 := t.EMA20[i].Get()
		ema40, ok40 := t.EMA40[i].Get()
		if !ok5 || !ok20 || !ok40 {
			continue
		}
		base, baseOK := arrangement(ema5, ema20, ema40)

		var s Stage
		var sOK bool
		if v, ok := crossLower[i].Get(); ok && v != 0 {
			if v > 0 {
				s, sOK = 1, true
			} else {
				s, sOK = 4, true
			}
		} else if v, ok := crossMiddle[i].Get(); ok && v != 0 {
			if v > 0 {
				s, sOK = 6, true
			} else {
				s, sOK = 3, true
			}
		} else if v, ok := crossUpper[i].Get(); ok && v != 0 {
			if v > 0 {
				s, sOK = 5, true
			} else {
				s, sOK = 2, true
			}
		} else {
			s, sOK = base, baseOK
		}
		if sOK {
			out[i] = numerics.Some(s)
		}
	}
	return out, nil
}

// TransitionSeries is a time-indexed column of optional stage-transition
// codes: prev*10 + curr when the stage changes, 0 when stable, undefined
// if either endpoint is undefined, and 0 on the very first row.
type TransitionSeries []numerics.Option[int]

// DetectStageTransition compares each row's stage to the prior row's.
func DetectStageTransition(stages Series) TransitionSeries {
	n := len(stages)
	out := make(TransitionSeries, n)
	if n == 0 {
		return out
	}
	out[0] = numerics.Some(0)
	for i := 1; i < n; i++ {
		prev, prevOK := stages[i-1].Get()
		cur, curOK := stages[i].Get()
		if !prevOK || !curOK {
			continue
		}
		if prev == cur {
			out[i] = numerics.Some(0)
		} else {
			out[i] = numerics.Some(int(prev)*10 + int(cur))
		}
	}
	return out
}

// MASpread emits the three signed EMA differences per row: EMA5-EMA20,
// EMA20-EMA40, EMA5-EMA40 (spec §4.2).
func MASpread(t *numerics.EnrichedTable) (s5v20, s20v40, s5v40 numerics.Series) {
	n := t.Len()
	s5v20 = make(numerics.Series, n)
	s20v40 = make(numerics.Series, n)
	s5v40 = make(numerics.Series, n)
	for i := 0; i < n; i++ {
		e5, ok5 := t.EMA5[i].Get()
		e20, ok20 := t.EMA20[i].Get()
		e40, ok40 := t.EMA40[i].Get()
		if ok5 && ok20 {
			s5v20[i] = numerics.Some(e5 - e20)
		}
		if ok20 && ok40 {
			s20v40[i] = numerics.Some(e20 - e40)
		}
		if ok5 && ok40 {
			s5v40[i] = numerics.Some(e5 - e40)
		}
	}
	return
}

// DefaultMASlopeWindow is the default window used by MASlope.
const DefaultMASlopeWindow = 5

// MASlope applies the generic rolling-slope computation to each of
// EMA5/EMA20/EMA40 (spec §4.2).
func MASlope(t *numerics.EnrichedTable, window int) (slope5, slope20, slope40 numerics.Series, err error) {
	if slope5, err = numerics.Slope(t.EMA5, window); err != nil {
		return
	}
	if slope20, err = numerics.Slope(t.EMA20, window); err != nil {
		return
	}
	slope40, err = numerics.Slope(t.EMA40, window)
	return
}
