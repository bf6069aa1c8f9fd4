// Package indicators turns rolling bar series into the indicator snapshots
// the signal evaluator consumes. The maths is delegated to go-talib.
package indicators

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/markcheno/go-talib"

	"github.com/evdnx/qsignals/config"
	"github.com/evdnx/qsignals/types"
)

// ErrNotEnoughBars is returned while a series is still warming up.
var ErrNotEnoughBars = errors.New("not enough bars")

// Snapshot is the read-only view of one indicator configuration at the
// latest closed bar. "Prev" fields are one bar back.
type Snapshot struct {
	BandTop        float64
	BandTopPrev    float64
	BandBottom     float64
	BandBottomPrev float64

	MACD       float64
	MACDSignal float64

	PercentK     float64
	PercentKPrev float64
	PercentD     float64
	PercentDPrev float64

	ATR        float64
	ATRHistory []float64 // oldest first, ATR is the last element
}

// Provider owns one bar series per timeframe.
type Provider struct {
	chart      string
	atrPeriods int
	atrWindow  int
	maxBars    int
	series     map[string]*Series
}

// NewProvider creates a provider whose ATR is computed on chartTF.
func NewProvider(chartTF string, atrPeriods, maxBars int) *Provider {
	if maxBars <= 0 {
		maxBars = 500
	}
	return &Provider{
		chart:      chartTF,
		atrPeriods: atrPeriods,
		atrWindow:  config.ATRWindow,
		maxBars:    maxBars,
		series:     make(map[string]*Series),
	}
}

// AddBar appends a closed bar to the series of timeframe tf.
func (p *Provider) AddBar(tf string, b Bar) {
	s, ok := p.series[tf]
	if !ok {
		s = NewSeries(p.maxBars)
		p.series[tf] = s
	}
	s.Add(b)
}

// Bars returns the number of bars held for tf.
func (p *Provider) Bars(tf string) int {
	if s, ok := p.series[tf]; ok {
		return s.Len()
	}
	return 0
}

func (p *Provider) get(tf string, need int) (*Series, error) {
	s, ok := p.series[tf]
	if !ok || s.Len() < need {
		have := 0
		if ok {
			have = s.Len()
		}
		return nil, fmt.Errorf("%s: have %d, need %d: %w", tf, have, need, ErrNotEnoughBars)
	}
	return s, nil
}

// Snapshot computes the indicator values for one signal configuration.
func (p *Provider) Snapshot(cfg config.SignalConfig) (Snapshot, error) {
	var snap Snapshot

	bandMA := maType(cfg.BandMAType)
	bandSeries, err := p.get(cfg.BandTimeframe, maLookback(bandMA, cfg.BandPeriods)+2)
	if err != nil {
		return snap, err
	}
	upper, _, lower := talib.BBands(bandSeries.Closes(), cfg.BandPeriods,
		cfg.BandDeviation, cfg.BandDeviation, bandMA)
	snap.BandTop, snap.BandTopPrev = lastTwo(upper)
	snap.BandBottom, snap.BandBottomPrev = lastTwo(lower)

	macdSeries, err := p.get(cfg.MACDTimeframe, cfg.MACDLongCycle+cfg.MACDSignalPeriods)
	if err != nil {
		return snap, err
	}
	macd, signal, _ := talib.Macd(macdSeries.Closes(), cfg.MACDShortCycle, cfg.MACDLongCycle, cfg.MACDSignalPeriods)
	snap.MACD, _ = lastTwo(macd)
	snap.MACDSignal, _ = lastTwo(signal)

	ma := maType(cfg.StochMAType)
	stochNeed := cfg.StochKPeriods + 1 + maLookback(ma, cfg.StochKSlowing) + maLookback(ma, cfg.StochDPeriods)
	stochSeries, err := p.get(cfg.StochTimeframe, stochNeed)
	if err != nil {
		return snap, err
	}
	k, d := talib.Stoch(stochSeries.Highs(), stochSeries.Lows(), stochSeries.Closes(),
		cfg.StochKPeriods, cfg.StochKSlowing, ma, cfg.StochDPeriods, ma)
	snap.PercentK, snap.PercentKPrev = lastTwo(k)
	snap.PercentD, snap.PercentDPrev = lastTwo(d)

	snap.ATR, snap.ATRHistory, err = p.ATR()
	if err != nil {
		return snap, err
	}
	return snap, nil
}

// ATR returns the latest ATR of the chart timeframe and up to the last
// config.ATRWindow values (oldest first, current last).
func (p *Provider) ATR() (float64, []float64, error) {
	s, err := p.get(p.chart, p.atrPeriods+1)
	if err != nil {
		return 0, nil, err
	}
	atr := talib.Atr(s.Highs(), s.Lows(), s.Closes(), p.atrPeriods)
	valid := atr[p.atrPeriods:]
	if len(valid) > p.atrWindow {
		valid = valid[len(valid)-p.atrWindow:]
	}
	history := append([]float64(nil), valid...)
	return history[len(history)-1], history, nil
}

// Extremes returns the price extremes of the latest two chart bars.
func (p *Provider) Extremes() (types.BarExtremes, error) {
	s, err := p.get(p.chart, 2)
	if err != nil {
		return types.BarExtremes{}, err
	}
	return types.BarExtremes{
		High:     s.Last().High,
		HighPrev: s.Prev().High,
		Low:      s.Last().Low,
	}, nil
}

func lastTwo(xs []float64) (last, prev float64) {
	n := len(xs)
	if n == 0 {
		return math.NaN(), math.NaN()
	}
	if n == 1 {
		return xs[0], math.NaN()
	}
	return xs[n-1], xs[n-2]
}

// maTypes maps the config MA names onto talib constants.
var maTypes = map[string]talib.MaType{
	"sma":   talib.SMA,
	"ema":   talib.EMA,
	"wma":   talib.WMA,
	"dema":  talib.DEMA,
	"tema":  talib.TEMA,
	"trima": talib.TRIMA,
	"kama":  talib.KAMA,
	"t3":    talib.T3MA,
}

// maLookback is the number of leading inputs an n-period average of kind ma
// consumes before its first valid output.
func maLookback(ma talib.MaType, n int) int {
	switch ma {
	case talib.DEMA:
		return 2 * (n - 1)
	case talib.TEMA:
		return 3 * (n - 1)
	case talib.T3MA:
		return 6 * (n - 1)
	case talib.KAMA:
		return n
	}
	return n - 1
}

// maType falls back to SMA for unknown names.
func maType(name string) talib.MaType {
	if ma, ok := maTypes[strings.ToLower(name)]; ok {
		return ma
	}
	return talib.SMA
}
