// Command backtestd runs the backtest engine as a long-running HTTP
// service: it loads a universe once at startup, then exposes /healthz,
// /metrics, and /runs over internal/apiserver for polling async backtest
// submissions (SPEC_FULL.md §4 "gin-based ... for a long-running backtest
// service").
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/kosix/stagebacktest/internal/apiserver"
	"github.com/kosix/stagebacktest/internal/cache"
	"github.com/kosix/stagebacktest/internal/config"
	"github.com/kosix/stagebacktest/internal/datamanager"
	"github.com/kosix/stagebacktest/internal/engine"
	"github.com/kosix/stagebacktest/internal/korlog"
	"github.com/kosix/stagebacktest/internal/market"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	dotenvPath := flag.String("env-file", ".env", "path to a .env file (missing is not an error)")
	jsonLogs := flag.Bool("json-logs", true, "emit structured JSON logs (the service default)")
	universeStart := flag.String("universe-start", "", "earliest date to load into the service's resident universe (YYYY-MM-DD)")
	universeEnd := flag.String("universe-end", "", "latest date to load into the service's resident universe (YYYY-MM-DD)")
	vendorURL := flag.String("vendor-url", "", "base URL of the bar/universe vendor HTTP endpoint")
	flag.Parse()

	korlog.Configure(*jsonLogs, zerolog.InfoLevel)
	log := korlog.Default()

	cfg, err := config.LoadEnv(*dotenvPath)
	if err != nil {
		log.Fatal().Err(err).Msg("loading configuration")
	}

	if *vendorURL == "" || *universeStart == "" || *universeEnd == "" {
		log.Fatal().Msg("--vendor-url, --universe-start, and --universe-end are required")
	}
	start, err := time.Parse("2006-01-02", *universeStart)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid --universe-start")
	}
	end, err := time.Parse("2006-01-02", *universeEnd)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid --universe-end")
	}

	apiKey := os.Getenv("VENDOR_API_KEY")
	provider := market.NewHTTPProvider(*vendorURL, apiKey)

	var c *cache.Cache
	if cfg.Data.UseCache {
		if err := os.MkdirAll(cfg.Data.CacheDir, 0o755); err != nil {
			log.Fatal().Err(err).Msg("creating cache dir")
		}
		c, err = cache.Open(cfg.Data.CacheDir + "/indicators.db")
		if err != nil {
			log.Fatal().Err(err).Msg("opening cache")
		}
		defer c.Close()
	}

	ctx := context.Background()
	loadStart := start.AddDate(0, 0, -cfg.Data.LookbackPadDays)
	dataset, err := datamanager.LoadUniverse(ctx, provider, provider, c, cfg.Market, loadStart, end, cfg.Data, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("loading universe")
	}
	log.Info().Int("tickers", len(dataset)).Msg("universe loaded, serving")

	registry := prometheus.Gatherers{engine.Registry, datamanager.Registry}
	srv := apiserver.New(registry, dataset, cfg)

	httpServer := &http.Server{Addr: *addr, Handler: srv.Handler()}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown")
	}
}
