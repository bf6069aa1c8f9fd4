package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/evdnx/qsignals/types"
)

// ATRWindow is the number of ATR samples averaged by the volatility filter.
const ATRWindow = 20

// SignalConfig parameterises one side of the signal evaluator. It is
// instantiated twice (bullish and bearish) so both sides share one shape.
type SignalConfig struct {
	// Bollinger Bands
	BandTimeframe string  `yaml:"band_timeframe"` // default "h1"
	BandPeriods   int     `yaml:"band_periods"`   // default 20
	BandDeviation float64 `yaml:"band_deviation"` // default 2.0
	BandMAType    string  `yaml:"band_ma_type"`   // default "ema"

	// MACD crossover
	MACDTimeframe     string  `yaml:"macd_timeframe"`
	MACDLongCycle     int     `yaml:"macd_long_cycle"`     // default 25
	MACDShortCycle    int     `yaml:"macd_short_cycle"`    // default 12
	MACDSignalPeriods int     `yaml:"macd_signal_periods"` // default 10
	MACDThreshold     float64 `yaml:"macd_threshold"`      // bullish: lower (-0.001), bearish: upper (0.001)

	// Stochastic oscillator
	StochTimeframe string  `yaml:"stoch_timeframe"`
	StochKPeriods  int     `yaml:"stoch_k_periods"` // default 9
	StochKSlowing  int     `yaml:"stoch_k_slowing"` // default 3
	StochDPeriods  int     `yaml:"stoch_d_periods"` // default 9
	StochMAType    string  `yaml:"stoch_ma_type"`   // default "ema"
	StochLevel     float64 `yaml:"stoch_level"`     // bullish: lower (20), bearish: upper (80)
}

type SymbolConfig struct {
	Name           string  `yaml:"name"`
	Label          string  `yaml:"label"`           // strategy tag stamped on every order
	ChartTimeframe string  `yaml:"chart_timeframe"` // bar closes on this timeframe drive the engine
	PipSize        float64 `yaml:"pip_size"`        // fallback when the quote carries none
	LotSize        float64 `yaml:"lot_size"`        // units per lot
	VolumeStep     float64 `yaml:"volume_step"`     // broker volume increment (units)
	MinVolume      float64 `yaml:"min_volume"`      // smallest accepted order (units)
}

type TrailingConfig struct {
	TriggerPips int `yaml:"trigger_pips"` // default 14
	StepPips    int `yaml:"step_pips"`    // default 14
}

type BreakEvenConfig struct {
	TriggerPips float64 `yaml:"trigger_pips"` // default 14
	ExtraPips   float64 `yaml:"extra_pips"`   // default 0
}

type ATRConfig struct {
	Filter        bool    `yaml:"filter"`         // default true
	Periods       int     `yaml:"periods"`        // default 14
	MinMultiplier float64 `yaml:"min_multiplier"` // default 1.0
	MaxMultiplier float64 `yaml:"max_multiplier"` // default 3.0
	DynamicSLTP   bool    `yaml:"dynamic_sltp"`   // default false
	SLMultiplier  float64 `yaml:"sl_multiplier"`  // default 2.0
	TPMultiplier  float64 `yaml:"tp_multiplier"`  // default 3.0
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"` // empty = console only
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// HostConfig holds settings for the runnable host, not the engine itself.
type HostConfig struct {
	FeedURL     string    `yaml:"feed_url"`
	SQLitePath  string    `yaml:"sqlite_path"` // empty = cooldown not persisted
	MetricsAddr string    `yaml:"metrics_addr"`
	StatusCron  string    `yaml:"status_cron"`
	Log         LogConfig `yaml:"log"`
}

// StrategyConfig holds every tunable parameter of the engine. It is
// immutable for the lifetime of a run.
type StrategyConfig struct {
	Symbol SymbolConfig `yaml:"symbol"`

	// Trade control
	Direction       types.DirectionPolicy `yaml:"direction"`
	CooldownMinutes int                   `yaml:"cooldown_minutes"` // 0 = disabled
	Quantity        float64               `yaml:"quantity"`         // lots
	StopLossPips    int                   `yaml:"stop_loss_pips"`
	TakeProfitPips  int                   `yaml:"take_profit_pips"`
	MaxSpreadPips   float64               `yaml:"max_spread_pips"`

	Trailing  TrailingConfig  `yaml:"trailing"`
	BreakEven BreakEvenConfig `yaml:"break_even"`
	ATR       ATRConfig       `yaml:"atr"`

	Bullish SignalConfig `yaml:"bullish"`
	Bearish SignalConfig `yaml:"bearish"`

	Host HostConfig `yaml:"host"`
}

// Cooldown returns the configured cooldown as a duration.
func (c *StrategyConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownMinutes) * time.Minute
}

// Timeframes lists every timeframe the engine needs bars for, chart first.
func (c *StrategyConfig) Timeframes() []string {
	seen := map[string]bool{}
	var out []string
	add := func(tf string) {
		if tf != "" && !seen[tf] {
			seen[tf] = true
			out = append(out, tf)
		}
	}
	add(c.Symbol.ChartTimeframe)
	for _, s := range []SignalConfig{c.Bullish, c.Bearish} {
		add(s.BandTimeframe)
		add(s.MACDTimeframe)
		add(s.StochTimeframe)
	}
	return out
}

var maTypes = map[string]bool{
	"sma": true, "ema": true, "wma": true, "dema": true,
	"tema": true, "trima": true, "kama": true, "t3": true,
}

// Validate checks that all numeric fields are within sensible bounds.
// It returns the first encountered error.
func (c *StrategyConfig) Validate() error {
	if c.Symbol.Name == "" {
		return errors.New("symbol.name is required")
	}
	if c.Symbol.Label == "" {
		return errors.New("symbol.label is required")
	}
	if c.Symbol.ChartTimeframe == "" {
		return errors.New("symbol.chart_timeframe is required")
	}
	if c.Symbol.LotSize <= 0 {
		return fmt.Errorf("symbol.lot_size (%f) must be positive", c.Symbol.LotSize)
	}
	if c.Symbol.VolumeStep <= 0 {
		return errors.New("symbol.volume_step must be positive")
	}
	if c.Symbol.MinVolume < 0 {
		return errors.New("symbol.min_volume cannot be negative")
	}
	if c.Symbol.PipSize < 0 {
		return errors.New("symbol.pip_size cannot be negative")
	}
	switch c.Direction {
	case types.Both, types.LongOnly, types.ShortOnly, types.Disabled:
	default:
		return fmt.Errorf("unknown direction policy %d", int(c.Direction))
	}
	if c.CooldownMinutes < 0 {
		return errors.New("cooldown_minutes cannot be negative")
	}
	if c.Quantity <= 0 {
		return fmt.Errorf("quantity (%f) must be positive", c.Quantity)
	}
	if c.StopLossPips < 0 || c.TakeProfitPips < 0 {
		return errors.New("stop_loss_pips and take_profit_pips cannot be negative")
	}
	if c.MaxSpreadPips < 0 {
		return errors.New("max_spread_pips cannot be negative")
	}
	if c.Trailing.TriggerPips < 0 || c.Trailing.StepPips < 0 {
		return errors.New("trailing distances cannot be negative")
	}
	if c.BreakEven.TriggerPips <= 0 {
		return fmt.Errorf("break_even.trigger_pips (%f) must be positive", c.BreakEven.TriggerPips)
	}
	if c.BreakEven.ExtraPips < 0 {
		return errors.New("break_even.extra_pips cannot be negative")
	}
	if c.ATR.Periods <= 0 {
		return errors.New("atr.periods must be positive")
	}
	if c.ATR.MinMultiplier <= 0 || c.ATR.MaxMultiplier <= 0 {
		return errors.New("atr multipliers must be positive")
	}
	if c.ATR.MinMultiplier > c.ATR.MaxMultiplier {
		return fmt.Errorf("atr.min_multiplier (%f) exceeds atr.max_multiplier (%f)",
			c.ATR.MinMultiplier, c.ATR.MaxMultiplier)
	}
	if c.ATR.DynamicSLTP && (c.ATR.SLMultiplier <= 0 || c.ATR.TPMultiplier <= 0) {
		return errors.New("atr.sl_multiplier and atr.tp_multiplier must be positive when dynamic_sltp is on")
	}
	if err := c.Bullish.validate("bullish"); err != nil {
		return err
	}
	if err := c.Bearish.validate("bearish"); err != nil {
		return err
	}
	// The MACD thresholds only make sense on their own side of zero.
	if c.Bullish.MACDThreshold >= 0 {
		return fmt.Errorf("bullish.macd_threshold (%f) must be negative", c.Bullish.MACDThreshold)
	}
	if c.Bearish.MACDThreshold <= 0 {
		return fmt.Errorf("bearish.macd_threshold (%f) must be positive", c.Bearish.MACDThreshold)
	}
	return nil
}

func (s *SignalConfig) validate(side string) error {
	if s.BandTimeframe == "" || s.MACDTimeframe == "" || s.StochTimeframe == "" {
		return fmt.Errorf("%s: indicator timeframes are required", side)
	}
	if s.BandPeriods <= 1 {
		return fmt.Errorf("%s.band_periods must be > 1", side)
	}
	if s.BandDeviation <= 0 {
		return fmt.Errorf("%s.band_deviation must be positive", side)
	}
	if s.MACDShortCycle <= 0 || s.MACDLongCycle <= 0 || s.MACDSignalPeriods <= 0 {
		return fmt.Errorf("%s: MACD periods must be positive", side)
	}
	if s.MACDShortCycle >= s.MACDLongCycle {
		return fmt.Errorf("%s.macd_short_cycle must be < macd_long_cycle", side)
	}
	if s.StochKPeriods <= 0 || s.StochKSlowing <= 0 || s.StochDPeriods <= 0 {
		return fmt.Errorf("%s: stochastic periods must be positive", side)
	}
	if s.StochLevel < 0 || s.StochLevel > 100 {
		return fmt.Errorf("%s.stoch_level (%f) must be within [0,100]", side, s.StochLevel)
	}
	for _, ma := range []string{s.BandMAType, s.StochMAType} {
		if !maTypes[strings.ToLower(ma)] {
			return fmt.Errorf("%s: unknown moving average type %q", side, ma)
		}
	}
	return nil
}
