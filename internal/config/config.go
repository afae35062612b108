// Package config holds the typed backtest configuration enumerated in
// spec §6, loaded from environment/.env at the cmd/ entrypoints via
// github.com/joho/godotenv.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/kosix/stagebacktest/internal/market"
)

// RiskConfig mirrors spec §6's risk.* options.
type RiskConfig struct {
	RiskPercentage      float64 `env:"RISK_RISK_PERCENTAGE"`
	StrengthThreshold   int     `env:"RISK_STRENGTH_THRESHOLD"`
	ATRMultiplier       float64 `env:"RISK_ATR_MULTIPLIER"`
	StopMA              string  `env:"RISK_STOP_MA"`
	MaxCapitalRatio     float64 `env:"RISK_MAX_CAPITAL_RATIO"`
	MaxTotalRisk        float64 `env:"RISK_MAX_TOTAL_RISK"`  // advisory only
	MaxSingleRisk       float64 `env:"RISK_MAX_SINGLE_RISK"` // advisory only
	SkipPortfolioLimits bool    `env:"RISK_SKIP_PORTFOLIO_LIMITS"`
}

// SignalFilterConfig mirrors spec §6's signal.filters.* toggles.
type SignalFilterConfig struct {
	Strength   bool
	Volatility bool
	Trend      bool
	Conflict   bool
}

// SignalConfig mirrors spec §6's signal.* options.
type SignalConfig struct {
	EnableEarlySignals  bool
	MinStrengthThreshold int
	Filters             SignalFilterConfig
}

// DataConfig mirrors spec §6's data.* options.
type DataConfig struct {
	CacheDir        string
	UseCache        bool
	MaxWorkers      int
	LookbackPadDays int // Open Question #1: configurable, default 60
}

// AnalyticsConfig mirrors spec §6's analytics.* options.
type AnalyticsConfig struct {
	RiskFreeRate float64
}

// BacktestConfig is the top-level typed configuration recognized by the
// backtest engine (spec §6).
type BacktestConfig struct {
	InitialCapital float64
	CommissionRate float64
	SlippagePct    float64
	Market         market.Tag

	Risk      RiskConfig
	Signal    SignalConfig
	Data      DataConfig
	Analytics AnalyticsConfig
}

// Default returns the spec §6 default configuration.
func Default() BacktestConfig {
	return BacktestConfig{
		InitialCapital: 10_000_000,
		CommissionRate: 0.00015,
		SlippagePct:    0.001,
		Market:         market.ALL,
		Risk: RiskConfig{
			RiskPercentage:      0.01,
			StrengthThreshold:   80,
			ATRMultiplier:       2.0,
			StopMA:              "EMA_20",
			MaxCapitalRatio:     0.25,
			MaxTotalRisk:        0.02,
			MaxSingleRisk:       0.01,
			SkipPortfolioLimits: true,
		},
		Signal: SignalConfig{
			EnableEarlySignals:   false,
			MinStrengthThreshold: 80,
			Filters: SignalFilterConfig{
				Strength: true, Volatility: true, Trend: true, Conflict: true,
			},
		},
		Data: DataConfig{
			CacheDir:        "./cache",
			UseCache:        true,
			MaxWorkers:      10,
			LookbackPadDays: 60,
		},
		Analytics: AnalyticsConfig{RiskFreeRate: 0.03},
	}
}

// LoadEnv loads .env (if present; a missing file is not an error) via
// godotenv, then overlays these variables onto the §6 defaults:
// RISK_RISK_PERCENTAGE, RISK_STRENGTH_THRESHOLD, RISK_ATR_MULTIPLIER,
// RISK_STOP_MA, RISK_MAX_CAPITAL_RATIO, DATA_CACHE_DIR, DATA_USE_CACHE,
// DATA_MAX_WORKERS, DATA_LOOKBACK_PAD_DAYS and ANALYTICS_RISK_FREE_RATE.
// RISK_MAX_TOTAL_RISK, RISK_MAX_SINGLE_RISK and RISK_SKIP_PORTFOLIO_LIMITS
// appear in the `env` struct tags above but are not read. Unset
// variables leave the default untouched.
func LoadEnv(dotenvPath string) (BacktestConfig, error) {
	if dotenvPath == "" {
		dotenvPath = ".env"
	}
	if err := godotenv.Load(dotenvPath); err != nil && !os.IsNotExist(err) {
		return BacktestConfig{}, fmt.Errorf("config: LoadEnv: %w", err)
	}

	cfg := Default()

	if v, ok := os.LookupEnv("RISK_RISK_PERCENTAGE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return BacktestConfig{}, fmt.Errorf("config: RISK_RISK_PERCENTAGE: %w", err)
		}
		cfg.Risk.RiskPercentage = f
	}
	if v, ok := os.LookupEnv("RISK_STRENGTH_THRESHOLD"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return BacktestConfig{}, fmt.Errorf("config: RISK_STRENGTH_THRESHOLD: %w", err)
		}
		cfg.Risk.StrengthThreshold = n
	}
	if v, ok := os.LookupEnv("RISK_ATR_MULTIPLIER"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return BacktestConfig{}, fmt.Errorf("config: RISK_ATR_MULTIPLIER: %w", err)
		}
		cfg.Risk.ATRMultiplier = f
	}
	if v, ok := os.LookupEnv("RISK_STOP_MA"); ok {
		cfg.Risk.StopMA = v
	}
	if v, ok := os.LookupEnv("RISK_MAX_CAPITAL_RATIO"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return BacktestConfig{}, fmt.Errorf("config: RISK_MAX_CAPITAL_RATIO: %w", err)
		}
		cfg.Risk.MaxCapitalRatio = f
	}
	if v, ok := os.LookupEnv("DATA_CACHE_DIR"); ok {
		cfg.Data.CacheDir = v
	}
	if v, ok := os.LookupEnv("DATA_USE_CACHE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return BacktestConfig{}, fmt.Errorf("config: DATA_USE_CACHE: %w", err)
		}
		cfg.Data.UseCache = b
	}
	if v, ok := os.LookupEnv("DATA_MAX_WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return BacktestConfig{}, fmt.Errorf("config: DATA_MAX_WORKERS: %w", err)
		}
		cfg.Data.MaxWorkers = n
	}
	if v, ok := os.LookupEnv("DATA_LOOKBACK_PAD_DAYS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return BacktestConfig{}, fmt.Errorf("config: DATA_LOOKBACK_PAD_DAYS: %w", err)
		}
		cfg.Data.LookbackPadDays = n
	}
	if v, ok := os.LookupEnv("ANALYTICS_RISK_FREE_RATE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return BacktestConfig{}, fmt.Errorf("config: ANALYTICS_RISK_FREE_RATE: %w", err)
		}
		cfg.Analytics.RiskFreeRate = f
	}

	return cfg, cfg.Validate()
}

// Validate rejects contract violations the orchestrator refuses to run
// with (spec §7: "bad date range, empty universe, missing configuration").
func (c BacktestConfig) Validate() error {
	if c.InitialCapital <= 0 {
		return fmt.Errorf("config: initial_capital must be positive, got %f", c.InitialCapital)
	}
	if c.CommissionRate < 0 {
		return fmt.Errorf("config: commission_rate must be >= 0, got %f", c.CommissionRate)
	}
	if c.SlippagePct < 0 {
		return fmt.Errorf("config: slippage_pct must be >= 0, got %f", c.SlippagePct)
	}
	if c.Data.MaxWorkers <= 0 {
		return fmt.Errorf("config: data.max_workers must be positive, got %d", c.Data.MaxWorkers)
	}
	if c.Risk.RiskPercentage <= 0 || c.Risk.RiskPercentage > 1 {
		return fmt.Errorf("config: risk.risk_percentage must be in (0, 1], got %f", c.Risk.RiskPercentage)
	}
	return nil
}
