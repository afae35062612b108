// Package datamanager enumerates the trading universe and bulk-loads
// per-ticker enriched, stage-annotated tables with a bounded worker pool
// and a write-through cache (spec §4.7).
package datamanager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kosix/stagebacktest/internal/cache"
	"github.com/kosix/stagebacktest/internal/config"
	"github.com/kosix/stagebacktest/internal/korlog"
	"github.com/kosix/stagebacktest/internal/market"
	"github.com/kosix/stagebacktest/internal/numerics"
	"github.com/kosix/stagebacktest/internal/stage"
)

// LookbackPadRetries bounds how many times the pad is doubled before
// giving up on a ticker (Open Question #1 decision: widen defensively,
// don't silently under-warm MACD(5,40,9)).
const LookbackPadRetries = 3

// EnrichedTicker bundles one ticker's fully-annotated table: indicators,
// stage classification and transition markers (spec §4.7 "assemble an
// enriched table").
type EnrichedTicker struct {
	Table       *numerics.EnrichedTable
	Stages      stage.Series
	Transitions stage.TransitionSeries
}

// Dataset is the market dataset named in spec §3: mapping ticker to
// enriched, stage-annotated table, restricted to tickers that produced a
// non-empty result.
type Dataset map[string]*EnrichedTicker

// LoadUniverse enumerates tag's universe and bulk-loads every ticker in
// parallel with a bounded worker pool (default cfg.MaxWorkers). Per-ticker
// failures are logged and the ticker is silently dropped — partial
// failure never aborts the whole load (spec §4.7).
func LoadUniverse(ctx context.Context, bp market.BarProvider, up market.UniverseProvider, c *cache.Cache, tag market.Tag, start, end time.Time, cfg config.DataConfig, logger *zerolog.Logger) (Dataset, error) {
	log := korlog.Default()
	if logger != nil {
		log = *logger
	}
	started := time.Now()
	defer func() { LoadDuration.Observe(time.Since(started).Seconds()) }()

	tickers, err := up.Tickers(ctx, tag)
	if err != nil {
		return nil, fmt.Errorf("datamanager: LoadUniverse: universe enumeration: %w", err)
	}
	if len(tickers) == 0 {
		return nil, fmt.Errorf("datamanager: LoadUniverse: empty universe for tag %q", tag)
	}

	results := make(Dataset, len(tickers))
	var mu sync.Mutex
	sem := make(chan struct{}, cfg.MaxWorkers)

	g, gctx := errgroup.WithContext(ctx)
	for _, ticker := range tickers {
		ticker := ticker
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			enriched, loadErr := loadOneTicker(gctx, bp, c, ticker, start, end, cfg)
			if loadErr != nil {
				log.Warn().Str("ticker", ticker).Err(loadErr).Msg("dropping ticker: load failed")
				TickersDropped.WithLabelValues(string(tag), "load_failure").Inc()
				return nil // per-ticker faults never abort the bulk load
			}
			mu.Lock()
			results[ticker] = enriched
			mu.Unlock()
			TickersLoaded.WithLabelValues(string(tag)).Inc()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("datamanager: LoadUniverse: %w", err)
	}
	return results, nil
}

func loadOneTicker(ctx context.Context, bp market.BarProvider, c *cache.Cache, ticker string, start, end time.Time, cfg config.DataConfig) (*EnrichedTicker, error) {
	padDays := cfg.LookbackPadDays
	if padDays <= 0 {
		padDays = 60
	}

	var table *numerics.EnrichedTable
	var err error

	for attempt := 0; attempt <= LookbackPadRetries; attempt++ {
		paddedStart := start.AddDate(0, 0, -padDays)

		if cfg.UseCache && c != nil {
			if cached, hit := c.Get(ticker, paddedStart, end); hit {
				CacheHits.Inc()
				table = cached
			}
		}
		if table == nil {
			CacheMisses.Inc()
			bars, fetchErr := bp.FetchBars(ctx, ticker, paddedStart, end)
			if fetchErr != nil {
				return nil, fmt.Errorf("fetch bars: %w", fetchErr)
			}
			table, err = numerics.CalculateAllIndicators(bars)
			if err != nil {
				return nil, fmt.Errorf("calculate indicators: %w", err)
			}
			if cfg.UseCache && c != nil {
				_ = c.Put(ticker, paddedStart, end, table)
			}
		}

		tradingDaysBeforeStart := countBefore(table, start)
		if tradingDaysBeforeStart >= numerics.MinUsableLength {
			break
		}
		// Widen the pad and retry: tight 60-calendar-day padding can
		// under-warm MACD(5,40,9) across Korean holiday weeks.
		padDays *= 2
		table = nil
	}

	if table == nil {
		return nil, fmt.Errorf("insufficient warm-up history for %s after %d widenings", ticker, LookbackPadRetries)
	}

	stages, err := stage.DetermineStage(table)
	if err != nil {
		return nil, fmt.Errorf("determine stage: %w", err)
	}
	transitions := stage.DetectStageTransition(stages)

	return &EnrichedTicker{Table: table, Stages: stages, Transitions: transitions}, nil
}

func countBefore(t *numerics.EnrichedTable, cutoff time.Time) int {
	n := 0
	for _, b := range t.Bars {
		if b.Date.Before(cutoff) {
			n++
		}
	}
	return n
}
