package config

import (
	"fmt"
	"os"

	"github.com/evdnx/qsignals/types"
	"gopkg.in/yaml.v3"
)

// Default returns the stock QSignals parameter set.
func Default() StrategyConfig {
	return StrategyConfig{
		Symbol: SymbolConfig{
			Name:           "EURUSD",
			Label:          "QSignals",
			ChartTimeframe: "h1",
			PipSize:        0.0001,
			LotSize:        100_000,
			VolumeStep:     1_000,
			MinVolume:      1_000,
		},
		Direction:       types.Both,
		CooldownMinutes: 15,
		Quantity:        0.01,
		StopLossPips:    100,
		TakeProfitPips:  100,
		MaxSpreadPips:   2.5,
		Trailing:        TrailingConfig{TriggerPips: 14, StepPips: 14},
		BreakEven:       BreakEvenConfig{TriggerPips: 14, ExtraPips: 0},
		ATR: ATRConfig{
			Filter:        true,
			Periods:       14,
			MinMultiplier: 1.0,
			MaxMultiplier: 3.0,
			DynamicSLTP:   false,
			SLMultiplier:  2.0,
			TPMultiplier:  3.0,
		},
		Bullish: defaultSignal(-0.001, 20),
		Bearish: defaultSignal(0.001, 80),
		Host: HostConfig{
			MetricsAddr: ":9102",
			StatusCron:  "0 */15 * * * *",
			Log:         LogConfig{Level: "info", MaxSizeMB: 50, MaxBackups: 5, MaxAgeDays: 14},
		},
	}
}

func defaultSignal(macdThreshold, stochLevel float64) SignalConfig {
	return SignalConfig{
		BandTimeframe:     "h1",
		BandPeriods:       20,
		BandDeviation:     2.0,
		BandMAType:        "ema",
		MACDTimeframe:     "h1",
		MACDLongCycle:     25,
		MACDShortCycle:    12,
		MACDSignalPeriods: 10,
		MACDThreshold:     macdThreshold,
		StochTimeframe:    "h1",
		StochKPeriods:     9,
		StochKSlowing:     3,
		StochDPeriods:     9,
		StochMAType:       "ema",
		StochLevel:        stochLevel,
	}
}

// Load reads the YAML file at path over Default(), applies environment
// overrides and validates the result. A missing file is not an error.
func Load(path string) (*StrategyConfig, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func applyEnv(cfg *StrategyConfig) error {
	if v := os.Getenv("QSIGNALS_SYMBOL"); v != "" {
		cfg.Symbol.Name = v
	}
	if v := os.Getenv("QSIGNALS_DIRECTION"); v != "" {
		d, err := types.ParseDirectionPolicy(v)
		if err != nil {
			return fmt.Errorf("QSIGNALS_DIRECTION: %w", err)
		}
		cfg.Direction = d
	}
	if v := os.Getenv("QSIGNALS_FEED_URL"); v != "" {
		cfg.Host.FeedURL = v
	}
	if v := os.Getenv("QSIGNALS_SQLITE_PATH"); v != "" {
		cfg.Host.SQLitePath = v
	}
	if v := os.Getenv("QSIGNALS_METRICS_ADDR"); v != "" {
		cfg.Host.MetricsAddr = v
	}
	if v := os.Getenv("QSIGNALS_LOG_FILE"); v != "" {
		cfg.Host.Log.File = v
	}
	return nil
}
