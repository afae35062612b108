package numerics

import (
	"fmt"
	"time"
)

// Bar is a single trading-day OHLCV row (spec §3 "Bar table").
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// BarTable is an ordered, date-ascending, date-unique sequence of Bars for
// one ticker. Construction validates the invariants spec §3 names: no NaN
// in OHLC, High >= Low, High >= Close, Low <= Close, non-negative Volume,
// ascending unique dates.
type BarTable struct {
	Ticker string
	Bars   []Bar
}

// NewBarTable validates and wraps bars into a BarTable. Duplicate dates are
// rejected rather than silently resolved — the market-data collaborator
// (spec §6) is contractually responsible for de-duplication before this
// boundary; a duplicate reaching here is an input contract violation.
func NewBarTable(ticker string, bars []Bar) (*BarTable, error) {
	for i, b := range bars {
		if err := validateBar(b); err != nil {
			return nil, fmt.Errorf("numerics: bar %d (%s): %w", i, b.Date.Format("2006-01-02"), err)
		}
		if i > 0 {
			if !bars[i-1].Date.Before(b.Date) {
				return nil, fmt.Errorf("numerics: bar %d: date %s is not strictly after preceding date %s",
					i, b.Date.Format("2006-01-02"), bars[i-1].Date.Format("2006-01-02"))
			}
		}
	}
	return &BarTable{Ticker: ticker, Bars: bars}, nil
}

func validateBar(b Bar) error {
	if isNaN(b.Open) || isNaN(b.High) || isNaN(b.Low) || isNaN(b.Close) {
		return fmt.Errorf("NaN in OHLC")
	}
	if b.Open < 0 || b.High < 0 || b.Low < 0 || b.Close < 0 {
		return fmt.Errorf("negative OHLC value")
	}
	if b.High < b.Low {
		return fmt.Errorf("high %.4f < low %.4f", b.High, b.Low)
	}
	if b.High < b.Close {
		return fmt.Errorf("high %.4f < close %.4f", b.High, b.Close)
	}
	if b.Low > b.Close {
		return fmt.Errorf("low %.4f > close %.4f", b.Low, b.Close)
	}
	if b.Volume < 0 {
		return fmt.Errorf("negative volume %d", b.Volume)
	}
	return nil
}

func isNaN(f float64) bool { return f != f }

// Len returns the number of rows.
func (t *BarTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Bars)
}

// Closes returns the Close column as a plain slice, used by indicators
// that operate on a single scalar series.
func (t *BarTable) Closes() []float64 {
	out := make([]float64, t.Len())
	for i, b := range t.Bars {
		out[i] = b.Close
	}
	return out
}

// Slice restricts the table to rows whose Date is <= cutoff. This is the
// mechanical enforcement point for the no-look-ahead discipline of spec §4.8/§9:
// every function that receives a table and a cutoff must route through here
// (or an equivalent index bound) rather than indexing the full table.
func (t *BarTable) Slice(cutoff time.Time) *BarTable {
	n := 0
	for n < len(t.Bars) && !t.Bars[n].Date.After(cutoff) {
		n++
	}
	return &BarTable{Ticker: t.Ticker, Bars: append([]Bar(nil), t.Bars[:n]...)}
}
