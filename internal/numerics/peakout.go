package numerics

import "fmt"

// Peakout emits a trinary turn-confirmation marker over a window of k+1
// rows ending at each row t: +1 when row t-1 was the window maximum and
// row t is strictly below it (a confirmed local high), -1 mirror-wise for
// a local low, else 0. Undefined for the first k rows, or wherever the
// window contains an undefined value (spec §4.1).
func Peakout(series Series, k int) (Series, error) {
	if k < 1 {
		return nil, fmt.Errorf("numerics: peakout lookback must be >= 1, got %d", k)
	}
	out := make(Series, len(series))
	for t := k; t < len(series); t++ {
		window := series[t-k : t+1]
		ok := true
		for _, v := range window {
			if !v.Ok {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		windowMax, windowMin := window[0].Value, window[0].Value
		for _, v := range window[1:] {
			if v.Value > windowMax {
				windowMax = v.Value
			}
			if v.Value < windowMin {
				windowMin = v.Value
			}
		}
		prev, cur := series[t-1].Value, series[t].Value
		switch {
		case prev == windowMax && cur < prev:
			out[t] = Some(1)
		case prev == windowMin && cur > prev:
			out[t] = Some(-1)
		default:
			out[t] = Some(0)
		}
	}
	return out, nil
}
