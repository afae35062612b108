package market

import (
	"context"
	"fmt"
	"time"

	"github.com/kosix/stagebacktest/internal/numerics"
)

// InMemoryProvider serves bar tables and universe lists held entirely in
// memory. It is the reference BarProvider/UniverseProvider used by tests
// and local runs that don't have a live KRX vendor wired up.
type InMemoryProvider struct {
	bars     map[string][]numerics.Bar
	universe map[Tag][]string
}

// NewInMemoryProvider builds a provider from a ticker->bars map and a
// tag->tickers universe map.
func NewInMemoryProvider(bars map[string][]numerics.Bar, universe map[Tag][]string) *InMemoryProvider {
	return &InMemoryProvider{bars: bars, universe: universe}
}

// FetchBars slices the in-memory series to [start, end] and builds a
// validated BarTable (spec §4.8).
func (p *InMemoryProvider) FetchBars(_ context.Context, ticker string, start, end time.Time) (*numerics.BarTable, error) {
	all, ok := p.bars[ticker]
	if !ok {
		return nil, fmt.Errorf("market: InMemoryProvider.FetchBars(%s): unknown ticker", ticker)
	}
	var window []numerics.Bar
	for _, b := range all {
		if (b.Date.Equal(start) || b.Date.After(start)) && (b.Date.Equal(end) || b.Date.Before(end)) {
			window = append(window, b)
		}
	}
	return numerics.NewBarTable(ticker, window)
}

// Tickers returns the configured universe for tag, expanding ALL to the
// union of KOSPI and KOSDAQ (spec §4.7).
func (p *InMemoryProvider) Tickers(_ context.Context, tag Tag) ([]string, error) {
	if tag == ALL {
		seen := make(map[string]bool)
		var out []string
		for _, t := range []Tag{KOSPI, KOSDAQ} {
			for _, tk := range p.universe[t] {
				if !seen[tk] {
					seen[tk] = true
					out = append(out, tk)
				}
			}
		}
		return out, nil
	}
	list, ok := p.universe[tag]
	if !ok {
		return nil, fmt.Errorf("market: InMemoryProvider.Tickers: unknown tag %q", tag)
	}
	return list, nil
}
