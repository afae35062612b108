package numerics

import (
	"fmt"
	"time"
)

// MinUsableLength is the minimum bar-table length CalculateAllIndicators
// will operate on meaningfully (spec §4.1): at this length the final row
// (row 48) has every MACD(5,40,9)-derived column defined, the signal line
// and histogram being first defined at row 47 and the histogram peakout
// at row 48.
const MinUsableLength = 49

// EnrichedTable is a BarTable augmented with every computed column named
// in spec §3. Stage and Stage_Transition are intentionally absent here —
// they are the stage classifier's output (internal/stage) layered on top
// of an EnrichedTable, keeping the indicator pipeline's output independent
// of stage logic.
type EnrichedTable struct {
	*BarTable

	EMA5, EMA20, EMA40 Series
	ATR                Series

	MACDUpper, MACDMiddle, MACDLower MACDTriple

	PeakoutHistUpper, PeakoutHistMiddle, PeakoutHistLower Series
	PeakoutLineUpper, PeakoutLineMiddle, PeakoutLineLower Series

	SlopeLineUpper, SlopeLineMiddle, SlopeLineLower Series

	DirUpper, DirMiddle, DirLower DirectionSeries
	DirectionAgreement            AgreementSeries
}

// DirectionTau is the default threshold used when labeling MACD line
// direction (spec §4.1 default tau = 0).
const DirectionTau = 0.0

// PeakoutLookback is the default lookback window for peakout detection.
const PeakoutLookback = 1

// SlopeWindow is the default window for MACD-line slope.
const SlopeWindow = 5

// ATRPeriod is the default ATR period.
const ATRPeriod = 20

// CalculateAllIndicators is the composition named in spec §4.1: it returns
// a new enriched table (the input is never mutated), computing EMA -> ATR
// -> triple MACD -> peakouts on all six MACD/histogram series -> slopes on
// the three MACD lines -> directions on the three MACD lines ->
// Direction_Agreement, in that order. Requires a non-nil table; an empty
// table yields an empty enriched table, and any other table shorter than
// MinUsableLength rows is rejected.
func CalculateAllIndicators(table *BarTable) (*EnrichedTable, error) {
	if table == nil {
		return nil, fmt.Errorf("numerics: CalculateAllIndicators: nil bar table")
	}
	if table.Len() == 0 {
		return &EnrichedTable{BarTable: &BarTable{Ticker: table.Ticker}}, nil
	}
	if table.Len() < MinUsableLength {
		return nil, fmt.Errorf("numerics: CalculateAllIndicators: insufficient history for %s: have %d rows, need >= %d",
			table.Ticker, table.Len(), MinUsableLength)
	}

	closes := table.Closes()
	out := &EnrichedTable{BarTable: &BarTable{Ticker: table.Ticker, Bars: append([]Bar(nil), table.Bars...)}}

	var err error
	if out.EMA5, err = EMA(closes, 5); err != nil {
		return nil, err
	}
	if out.EMA20, err = EMA(closes, 20); err != nil {
		return nil, err
	}
	if out.EMA40, err = EMA(closes, 40); err != nil {
		return nil, err
	}
	if out.ATR, err = ATR(table.Bars, ATRPeriod); err != nil {
		return nil, err
	}

	if out.MACDUpper, out.MACDMiddle, out.MACDLower, err = TripleMACD(closes); err != nil {
		return nil, err
	}

	if out.PeakoutHistUpper, err = Peakout(out.MACDUpper.Histogram, PeakoutLookback); err != nil {
		return nil, err
	}
	if out.PeakoutHistMiddle, err = Peakout(out.MACDMiddle.Histogram, PeakoutLookback); err != nil {
		return nil, err
	}
	if out.PeakoutHistLower, err = Peakout(out.MACDLower.Histogram, PeakoutLookback); err != nil {
		return nil, err
	}
	if out.PeakoutLineUpper, err = Peakout(out.MACDUpper.Line, PeakoutLookback); err != nil {
		return nil, err
	}
	if out.PeakoutLineMiddle, err = Peakout(out.MACDMiddle.Line, PeakoutLookback); err != nil {
		return nil, err
	}
	if out.PeakoutLineLower, err = Peakout(out.MACDLower.Line, PeakoutLookback); err != nil {
		return nil, err
	}

	if out.SlopeLineUpper, err = Slope(out.MACDUpper.Line, SlopeWindow); err != nil {
		return nil, err
	}
	if out.SlopeLineMiddle, err = Slope(out.MACDMiddle.Line, SlopeWindow); err != nil {
		return nil, err
	}
	if out.SlopeLineLower, err = Slope(out.MACDLower.Line, SlopeWindow); err != nil {
		return nil, err
	}

	out.DirUpper = Label(out.MACDUpper.Line, DirectionTau)
	out.DirMiddle = Label(out.MACDMiddle.Line, DirectionTau)
	out.DirLower = Label(out.MACDLower.Line, DirectionTau)
	out.DirectionAgreement = DirectionAgreement(out.DirUpper, out.DirMiddle, out.DirLower)

	return out, nil
}

// Row returns the t-th row's values as plain, dereferenced optionals bundled
// together for convenience — used by stage/signal code that needs several
// columns from the same row at once.
type Row struct {
	Index  int
	EMA5   Option[float64]
	EMA20  Option[float64]
	EMA40  Option[float64]
	ATR    Option[float64]
	Close  float64

	MACDLineUpper, MACDLineMiddle, MACDLineLower             Option[float64]
	MACDSignalUpper, MACDSignalMiddle, MACDSignalLower       Option[float64]
	HistogramUpper, HistogramMiddle, HistogramLower          Option[float64]
	PeakoutHistUpper, PeakoutHistMiddle, PeakoutHistLower     Option[float64]
	PeakoutLineUpper, PeakoutLineMiddle, PeakoutLineLower     Option[float64]
	SlopeLineUpper, SlopeLineMiddle, SlopeLineLower           Option[float64]
	DirUpper, DirMiddle, DirLower                             Option[Direction]
	DirectionAgreement                                        Option[Agreement]
}

// RowAt extracts row t of the enriched table.
func (t *EnrichedTable) RowAt(i int) Row {
	return Row{
		Index: i,
		EMA5:  t.EMA5[i], EMA20: t.EMA20[i], EMA40: t.EMA40[i], ATR: t.ATR[i],
		Close: t.Bars[i].Close,

		MACDLineUpper: t.MACDUpper.Line[i], MACDLineMiddle: t.MACDMiddle.Line[i], MACDLineLower: t.MACDLower.Line[i],
		MACDSignalUpper: t.MACDUpper.Signal[i], MACDSignalMiddle: t.MACDMiddle.Signal[i], MACDSignalLower: t.MACDLower.Signal[i],
		HistogramUpper: t.MACDUpper.Histogram[i], HistogramMiddle: t.MACDMiddle.Histogram[i], HistogramLower: t.MACDLower.Histogram[i],
		PeakoutHistUpper: t.PeakoutHistUpper[i], PeakoutHistMiddle: t.PeakoutHistMiddle[i], PeakoutHistLower: t.PeakoutHistLower[i],
		PeakoutLineUpper: t.PeakoutLineUpper[i], PeakoutLineMiddle: t.PeakoutLineMiddle[i], PeakoutLineLower: t.PeakoutLineLower[i],
		SlopeLineUpper: t.SlopeLineUpper[i], SlopeLineMiddle: t.SlopeLineMiddle[i], SlopeLineLower: t.SlopeLineLower[i],
		DirUpper: t.DirUpper[i], DirMiddle: t.DirMiddle[i], DirLower: t.DirLower[i],
		DirectionAgreement: t.DirectionAgreement[i],
	}
}

// Len returns the number of rows in the enriched table.
func (t *EnrichedTable) Len() int {
	if t == nil || t.BarTable == nil {
		return 0
	}
	return len(t.Bars)
}

// Slice restricts every column to rows whose Date is <= cutoff, mirroring
// BarTable.Slice. This is the enriched-table enforcement point for the
// no-look-ahead discipline (spec §4.8, §9): the orchestrator must pass a
// table through here before handing it to signal/risk functions, so a
// future row is never reachable through any code path.
func (t *EnrichedTable) Slice(cutoff time.Time) *EnrichedTable {
	n := 0
	for n < len(t.Bars) && !t.Bars[n].Date.After(cutoff) {
		n++
	}
	return &EnrichedTable{
		BarTable: t.BarTable.Slice(cutoff),

		EMA5: sliceSeries(t.EMA5, n), EMA20: sliceSeries(t.EMA20, n), EMA40: sliceSeries(t.EMA40, n),
		ATR: sliceSeries(t.ATR, n),

		MACDUpper:  sliceMACD(t.MACDUpper, n),
		MACDMiddle: sliceMACD(t.MACDMiddle, n),
		MACDLower:  sliceMACD(t.MACDLower, n),

		PeakoutHistUpper: sliceSeries(t.PeakoutHistUpper, n), PeakoutHistMiddle: sliceSeries(t.PeakoutHistMiddle, n), PeakoutHistLower: sliceSeries(t.PeakoutHistLower, n),
		PeakoutLineUpper: sliceSeries(t.PeakoutLineUpper, n), PeakoutLineMiddle: sliceSeries(t.PeakoutLineMiddle, n), PeakoutLineLower: sliceSeries(t.PeakoutLineLower, n),

		SlopeLineUpper: sliceSeries(t.SlopeLineUpper, n), SlopeLineMiddle: sliceSeries(t.SlopeLineMiddle, n), SlopeLineLower: sliceSeries(t.SlopeLineLower, n),

		DirUpper: sliceDirSeries(t.DirUpper, n), DirMiddle: sliceDirSeries(t.DirMiddle, n), DirLower: sliceDirSeries(t.DirLower, n),
		DirectionAgreement: sliceAgreementSeries(t.DirectionAgreement, n),
	}
}

func sliceSeries(s Series, n int) Series {
	if n > len(s) {
		n = len(s)
	}
	return append(Series(nil), s[:n]...)
}

func sliceDirSeries(s DirectionSeries, n int) DirectionSeries {
	if n > len(s) {
		n = len(s)
	}
	return append(DirectionSeries(nil), s[:n]...)
}

func sliceAgreementSeries(s AgreementSeries, n int) AgreementSeries {
	if n > len(s) {
		n = len(s)
	}
	return append(AgreementSeries(nil), s[:n]...)
}

func sliceMACD(m MACDTriple, n int) MACDTriple {
	return MACDTriple{
		Line:      sliceSeries(m.Line, n),
		Signal:    sliceSeries(m.Signal, n),
		Histogram: sliceSeries(m.Histogram, n),
	}
}
