package analytics

import (
	"io"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/kosix/stagebacktest/internal/portfolio"
)

// WriteEquityCurvePNG renders the equity curve as a line chart (spec
// §4.9 "Plots ... equity curve (line)").
func WriteEquityCurvePNG(w io.Writer, history []portfolio.Snapshot) error {
	xs := make([]time.Time, len(history))
	ys := make([]float64, len(history))
	for i, snap := range history {
		xs[i] = snap.Date
		equity, _ := snap.Equity.Float64()
		ys[i] = equity
	}

	graph := chart.Chart{
		Title: "Equity Curve",
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("2006-01-02"),
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Equity",
				XValues: xs,
				YValues: ys,
			},
		},
	}
	return graph.Render(chart.PNG, w)
}

// WriteDrawdownPNG renders the drawdown series as a filled area below zero
// (spec §4.9 "drawdown (filled area below zero)").
func WriteDrawdownPNG(w io.Writer, history []portfolio.Snapshot, dd Drawdown) error {
	xs := make([]time.Time, len(history))
	for i, snap := range history {
		xs[i] = snap.Date
	}

	graph := chart.Chart{
		Title: "Drawdown",
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("2006-01-02"),
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Drawdown %",
				XValues: xs,
				YValues: dd.Series,
				Style: chart.Style{
					FillColor:   chart.ColorRed.WithAlpha(80),
					StrokeColor: chart.ColorRed,
				},
			},
		},
	}
	return graph.Render(chart.PNG, w)
}
