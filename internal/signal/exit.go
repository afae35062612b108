package signal

import (
	"fmt"

	"github.com/kosix/stagebacktest/internal/common"
	"github.com/kosix/stagebacktest/internal/numerics"
)

// ExitLevel is the escalating exit-signal severity (spec §4.3).
type ExitLevel int

const (
	NoExit          ExitLevel = 0
	ExitAlert       ExitLevel = 1
	ExitHalfClose   ExitLevel = 2
	ExitFullClose   ExitLevel = 3
)

// PercentageFor returns the close percentage associated with a level.
func (l ExitLevel) PercentageFor() float64 {
	switch l {
	case ExitHalfClose:
		return 50
	case ExitFullClose:
		return 100
	default:
		return 0
	}
}

// ExitResult is one row's exit-signal outcome for a position of a given
// side.
type ExitResult struct {
	Level       ExitLevel
	Percentage  float64
	ShouldExit  bool
	Reason      string
}

// ExitSeries is the per-row exit-signal column.
type ExitSeries []ExitResult

// GenerateExitSignal evaluates the three escalating exit levels for every
// row, for a position of the given side. When multiple levels fire on the
// same row, the highest-numbered level wins; Should_Exit is true iff
// level >= 2 (spec §4.3).
func GenerateExitSignal(t *numerics.EnrichedTable, side common.Side) (ExitSeries, error) {
	if t == nil {
		return nil, fmt.Errorf("signal: GenerateExitSignal: nil table")
	}
	if side != common.SideLong && side != common.SideShort {
		return nil, fmt.Errorf("signal: GenerateExitSignal: unknown side %q", side)
	}
	n := t.Len()

	deadUpper, goldenUpper := numerics.SignalCross(t.MACDUpper)
	deadMiddle, goldenMiddle := numerics.SignalCross(t.MACDMiddle)
	deadLower, goldenLower := numerics.SignalCross(t.MACDLower)

	out := make(ExitSeries, n)
	for i := 0; i < n; i++ {
		level := NoExit
		reason := ""

		if histPeakoutFires(t, i, side) {
			level = ExitAlert
			reason = "histogram peakout turn against position"
		}
		if linePeakoutFires(t, i, side) {
			level = ExitHalfClose
			reason = "MACD-line peakout turn against position"
		}
		if crossFires(deadUpper[i], goldenUpper[i], deadMiddle[i], goldenMiddle[i], deadLower[i], goldenLower[i], side) {
			level = ExitFullClose
			reason = "MACD-signal cross against position"
		}

		out[i] = ExitResult{
			Level:      level,
			Percentage: level.PercentageFor(),
			ShouldExit: level >= ExitHalfClose,
			Reason:     reason,
		}
	}
	return out, nil
}

func histPeakoutFires(t *numerics.EnrichedTable, i int, side common.Side) bool {
	want := 1.0
	if side == common.SideShort {
		want = -1.0
	}
	return peaked(t.PeakoutHistUpper[i], want) || peaked(t.PeakoutHistMiddle[i], want) || peaked(t.PeakoutHistLower[i], want)
}

func linePeakoutFires(t *numerics.EnrichedTable, i int, side common.Side) bool {
	want := 1.0
	if side == common.SideShort {
		want = -1.0
	}
	return peaked(t.PeakoutLineUpper[i], want) || peaked(t.PeakoutLineMiddle[i], want) || peaked(t.PeakoutLineLower[i], want)
}

func peaked(o numerics.Option[float64], want float64) bool {
	v, ok := o.Get()
	return ok && v == want
}

func crossFires(deadU, goldenU, deadM, goldenM, deadL, goldenL numerics.Option[float64], side common.Side) bool {
	if side == common.SideLong {
		return fired(deadU) || fired(deadM) || fired(deadL)
	}
	return fired(goldenU) || fired(goldenM) || fired(goldenL)
}

func fired(o numerics.Option[float64]) bool {
	v, ok := o.Get()
	return ok && v == 1
}
