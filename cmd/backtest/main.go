// Command backtest runs the six-stage moving-average backtester from the
// command line: `run` executes a backtest over a date range and prints the
// text report (plus optional CSV/PNG output); `cache clear`/`cache info`
// manage the sqlite-backed indicator cache.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kosix/stagebacktest/internal/analytics"
	"github.com/kosix/stagebacktest/internal/cache"
	"github.com/kosix/stagebacktest/internal/config"
	"github.com/kosix/stagebacktest/internal/datamanager"
	"github.com/kosix/stagebacktest/internal/engine"
	"github.com/kosix/stagebacktest/internal/korlog"
	"github.com/kosix/stagebacktest/internal/market"
)

var (
	dotenvPath string
	jsonLogs   bool

	startArg, endArg string
	marketArg        string
	vendorURL        string
	vendorAPIKey     string

	csvOut string
	pngDir string
)

func requireNoError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err.Error())
		os.Exit(1)
	}
}

func main() {
	rootCmd.PersistentFlags().StringVar(&dotenvPath, "env-file", ".env", "path to a .env file (missing is not an error)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "emit structured JSON logs instead of console output")

	runCmd.Flags().StringVar(&startArg, "start", "", "backtest start date (YYYY-MM-DD)")
	runCmd.Flags().StringVar(&endArg, "end", "", "backtest end date (YYYY-MM-DD)")
	runCmd.Flags().StringVar(&marketArg, "market", "ALL", "universe tag: KOSPI, KOSDAQ, or ALL")
	runCmd.Flags().StringVar(&vendorURL, "vendor-url", "", "base URL of the bar/universe vendor HTTP endpoint")
	runCmd.Flags().StringVar(&vendorAPIKey, "vendor-key", "", "vendor API key (falls back to VENDOR_API_KEY env)")
	runCmd.Flags().StringVar(&csvOut, "csv-out", "", "write the trade ledger as a UTF-8 BOM CSV to this path")
	runCmd.Flags().StringVar(&pngDir, "plots-dir", "", "write equity_curve.png and drawdown.png to this directory")
	runCmd.MarkFlagRequired("start")
	runCmd.MarkFlagRequired("end")
	runCmd.MarkFlagRequired("vendor-url")
	rootCmd.AddCommand(runCmd)

	cacheCmd.AddCommand(cacheClearCmd, cacheInfoCmd)
	rootCmd.AddCommand(cacheCmd)

	requireNoError(rootCmd.Execute())
}

var rootCmd = &cobra.Command{
	Use:   "backtest",
	Short: "backtest runs the six-stage moving-average backtester over a KOSPI/KOSDAQ universe.",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a backtest over a date range and print the text report.",
	RunE: func(cmd *cobra.Command, args []string) error {
		level := zerolog.InfoLevel
		korlog.Configure(jsonLogs, level)
		log := korlog.Default()

		cfg, err := config.LoadEnv(dotenvPath)
		if err != nil {
			return err
		}
		cfg.Market = market.Tag(marketArg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		start, err := time.Parse("2006-01-02", startArg)
		if err != nil {
			return fmt.Errorf("invalid --start: %w", err)
		}
		end, err := time.Parse("2006-01-02", endArg)
		if err != nil {
			return fmt.Errorf("invalid --end: %w", err)
		}

		apiKey := vendorAPIKey
		if apiKey == "" {
			apiKey = os.Getenv("VENDOR_API_KEY")
		}
		provider := market.NewHTTPProvider(vendorURL, apiKey)

		var c *cache.Cache
		if cfg.Data.UseCache {
			if err := os.MkdirAll(cfg.Data.CacheDir, 0o755); err != nil {
				return fmt.Errorf("creating cache dir: %w", err)
			}
			c, err = cache.Open(cfg.Data.CacheDir + "/indicators.db")
			if err != nil {
				return err
			}
			defer c.Close()
		}

		ctx := context.Background()

		loadStart := start.AddDate(0, 0, -cfg.Data.LookbackPadDays)
		dataset, err := datamanager.LoadUniverse(ctx, provider, provider, c, cfg.Market, loadStart, end, cfg.Data, &log)
		if err != nil {
			return fmt.Errorf("loading universe: %w", err)
		}

		result, err := engine.Run(ctx, dataset, cfg, start, end, &log)
		if err != nil {
			return fmt.Errorf("running backtest: %w", err)
		}

		report := analytics.Analyze(result.RunID, result.StartDate, result.EndDate,
			result.InitialEquity, result.FinalEquity, result.History, result.Ledger, cfg.Analytics)
		fmt.Fprint(os.Stdout, report.TextReport())

		if csvOut != "" {
			f, err := os.Create(csvOut)
			if err != nil {
				return fmt.Errorf("opening --csv-out: %w", err)
			}
			defer f.Close()
			if err := analytics.WriteTradeCSV(f, report.Ledger); err != nil {
				return fmt.Errorf("writing trade CSV: %w", err)
			}
		}

		if pngDir != "" {
			if err := os.MkdirAll(pngDir, 0o755); err != nil {
				return fmt.Errorf("creating --plots-dir: %w", err)
			}
			if err := writePNG(pngDir+"/equity_curve.png", func(f *os.File) error {
				return analytics.WriteEquityCurvePNG(f, report.History)
			}); err != nil {
				return err
			}
			if err := writePNG(pngDir+"/drawdown.png", func(f *os.File) error {
				return analytics.WriteDrawdownPNG(f, report.History, report.Drawdown)
			}); err != nil {
				return err
			}
		}

		return nil
	},
}

func writePNG(path string, render func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	if err := render(f); err != nil {
		return fmt.Errorf("rendering %s: %w", path, err)
	}
	return nil
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the sqlite-backed indicator cache.",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached enriched table.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadEnv(dotenvPath)
		if err != nil {
			return err
		}
		c, err := cache.Open(cfg.Data.CacheDir + "/indicators.db")
		if err != nil {
			return err
		}
		defer c.Close()
		if err := c.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, "cache cleared")
		return nil
	},
}

var cacheInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the cache's entry and ticker counts.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadEnv(dotenvPath)
		if err != nil {
			return err
		}
		c, err := cache.Open(cfg.Data.CacheDir + "/indicators.db")
		if err != nil {
			return err
		}
		defer c.Close()
		summary, err := c.Info()
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "entries: %d   tickers: %d\n", summary.EntryCount, summary.Tickers)
		return nil
	},
}
