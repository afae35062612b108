package numerics

import "fmt"

// MACD computes MACD line = EMA(fast) - EMA(slow), signal line =
// EMA(signal) of the MACD line, and histogram = MACD - signal
// (spec §4.1). Requires fast < slow.
func MACD(closes []float64, fast, slow, signal int) (MACDTriple, error) {
	if fast >= slow {
		return MACDTriple{}, fmt.Errorf("numerics: MACD requires fast < slow, got fast=%d slow=%d", fast, slow)
	}
	emaFast, err := EMA(closes, fast)
	if err != nil {
		return MACDTriple{}, err
	}
	emaSlow, err := EMA(closes, slow)
	if err != nil {
		return MACDTriple{}, err
	}
	line := make(Series, len(closes))
	for i := range closes {
		if emaFast[i].Ok && emaSlow[i].Ok {
			line[i] = Some(emaFast[i].Value - emaSlow[i].Value)
		}
	}
	signalLine := emaOverSeries(line, signal)
	hist := make(Series, len(closes))
	for i := range closes {
		if line[i].Ok && signalLine[i].Ok {
			hist[i] = Some(line[i].Value - signalLine[i].Value)
		}
	}
	return MACDTriple{Line: line, Signal: signalLine, Histogram: hist}, nil
}

// TripleMACD computes the three configured MACD families (upper, middle,
// lower) sharing the same closes input.
func TripleMACD(closes []float64) (upper, middle, lower MACDTriple, err error) {
	upper, err = MACD(closes, MACDUpperConfig.Fast, MACDUpperConfig.Slow, MACDUpperConfig.Signal)
	if err != nil {
		return
	}
	middle, err = MACD(closes, MACDMiddleConfig.Fast, MACDMiddleConfig.Slow, MACDMiddleConfig.Signal)
	if err != nil {
		return
	}
	lower, err = MACD(closes, MACDLowerConfig.Fast, MACDLowerConfig.Slow, MACDLowerConfig.Signal)
	return
}

// ZeroLineCross emits +1 (golden) when the line crosses from below zero to
// above, -1 (dead) when it crosses from above to below, else 0. Undefined
// on the first row and wherever either endpoint of the comparison is
// undefined (spec §4.2).
func ZeroLineCross(line Series) Series {
	out := make(Series, len(line))
	for i := 1; i < len(line); i++ {
		prev, cur := line[i-1], line[i]
		if !prev.Ok || !cur.Ok {
			continue
		}
		switch {
		case prev.Value < 0 && cur.Value > 0:
			out[i] = Some(1)
		case prev.Value > 0 && cur.Value < 0:
			out[i] = Some(-1)
		default:
			out[i] = Some(0)
		}
	}
	return out
}

// SignalCross reports, per row, whether the MACD line crosses below its
// signal line (dead cross, used by long-side exits) or above it (golden
// cross, used by short-side exits per spec §4.3 level 3).
func SignalCross(m MACDTriple) (dead, golden Series) {
	n := len(m.Line)
	dead = make(Series, n)
	golden = make(Series, n)
	for i := 1; i < n; i++ {
		pl, cl := m.Line[i-1], m.Line[i]
		ps, cs := m.Signal[i-1], m.Signal[i]
		if !pl.Ok || !cl.Ok || !ps.Ok || !cs.Ok {
			continue
		}
		wasAbove := pl.Value > ps.Value
		isAbove := cl.Value > cs.Value
		dead[i] = Some(boolToFloat(wasAbove && !isAbove))
		golden[i] = Some(boolToFloat(!wasAbove && isAbove))
	}
	return
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
