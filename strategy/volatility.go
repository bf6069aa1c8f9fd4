package strategy

import (
	"github.com/evdnx/qsignals/config"
	"github.com/evdnx/qsignals/logger"
	"github.com/evdnx/qsignals/metrics"
)

// VolatilityGate vetoes signals when the current ATR is far from its recent
// average.
type VolatilityGate struct {
	Enabled       bool
	MinMultiplier float64
	MaxMultiplier float64
	Window        int
	Log           logger.Logger
}

func NewVolatilityGate(cfg config.ATRConfig, log logger.Logger) *VolatilityGate {
	return &VolatilityGate{
		Enabled:       cfg.Filter,
		MinMultiplier: cfg.MinMultiplier,
		MaxMultiplier: cfg.MaxMultiplier,
		Window:        config.ATRWindow,
		Log:           log,
	}
}

// IsVolatilityAcceptable averages the last Window values of history and
// accepts current when it lies within [min*avg, max*avg]. With fewer
// samples than Window it accepts.
func (g *VolatilityGate) IsVolatilityAcceptable(current float64, history []float64) bool {
	if g == nil || !g.Enabled {
		return true
	}
	window := g.Window
	if window <= 0 {
		window = config.ATRWindow
	}
	if len(history) < window {
		return true
	}

	sum := 0.0
	for _, v := range history[len(history)-window:] {
		sum += v
	}
	avg := sum / float64(window)
	lo, hi := avg*g.MinMultiplier, avg*g.MaxMultiplier

	if current >= lo && current <= hi {
		return true
	}
	if g.Log != nil {
		g.Log.Warn("atr_out_of_range",
			logger.Float64("atr", current),
			logger.Float64("min", lo),
			logger.Float64("max", hi),
		)
	}
	metrics.VolatilityRejections.Inc()
	return false
}
