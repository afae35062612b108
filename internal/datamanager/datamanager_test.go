package datamanager

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kosix/stagebacktest/internal/cache"
	"github.com/kosix/stagebacktest/internal/config"
	"github.com/kosix/stagebacktest/internal/market"
	"github.com/kosix/stagebacktest/internal/numerics"
)

func mkBars(n int) []numerics.Bar {
	bars := make([]numerics.Bar, n)
	base := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	price := 100.0
	for i := 0; i < n; i++ {
		price++
		bars[i] = numerics.Bar{Date: base.AddDate(0, 0, i), Open: price - 0.5, High: price + 1, Low: price - 1, Close: price, Volume: 1000}
	}
	return bars
}

func TestLoadUniverseDropsFailingTickersWithoutAborting(t *testing.T) {
	dir := t.TempDir()
	c, err := cache.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	defer c.Close()

	bars := map[string][]numerics.Bar{
		"005930": mkBars(200), // plenty of history
		"000660": mkBars(5),   // too short, will fail CalculateAllIndicators
	}
	universe := map[market.Tag][]string{market.KOSPI: {"005930", "000660"}}
	provider := market.NewInMemoryProvider(bars, universe)

	cfg := config.DataConfig{UseCache: true, MaxWorkers: 4, LookbackPadDays: 60}
	start := time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	dataset, err := LoadUniverse(context.Background(), provider, provider, c, market.KOSPI, start, end, cfg, nil)
	require.NoError(t, err)
	assert.Contains(t, dataset, "005930")
	assert.NotContains(t, dataset, "000660")
}

func TestLoadUniverseRejectsEmptyUniverse(t *testing.T) {
	provider := market.NewInMemoryProvider(nil, map[market.Tag][]string{})
	cfg := config.DataConfig{MaxWorkers: 2}
	_, err := LoadUniverse(context.Background(), provider, provider, nil, market.KOSPI, time.Now(), time.Now(), cfg, nil)
	assert.Error(t, err)
}
