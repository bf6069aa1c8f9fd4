package strategy

import (
	"github.com/evdnx/qsignals/config"
	"github.com/evdnx/qsignals/indicators"
	"github.com/evdnx/qsignals/types"
)

// confirmation identifies the first rule a direction failed, or
// confirmed when all three held.
type confirmation int

const (
	failedBand confirmation = iota
	failedMomentum
	failedStochastic
	confirmed
)

func (c confirmation) String() string {
	switch c {
	case failedBand:
		return "band"
	case failedMomentum:
		return "momentum"
	case failedStochastic:
		return "stochastic"
	case confirmed:
		return "confirmed"
	}
	return "unknown"
}

// EvaluateBullish reports whether every bullish confirmation holds.
// Evaluation stops at the first failing rule.
func EvaluateBullish(cfg config.SignalConfig, snap indicators.Snapshot, bar types.BarExtremes, pip float64) bool {
	return bullish(cfg, snap, bar, pip) == confirmed
}

// EvaluateBearish is the mirror of EvaluateBullish. Its band rule also
// accepts the previous bar touching the previous upper band.
func EvaluateBearish(cfg config.SignalConfig, snap indicators.Snapshot, bar types.BarExtremes, pip float64) bool {
	return bearish(cfg, snap, bar, pip) == confirmed
}

func bullish(cfg config.SignalConfig, snap indicators.Snapshot, bar types.BarExtremes, pip float64) confirmation {
	if !(bar.Low <= snap.BandBottom+2*pip) {
		return failedBand
	}
	if !(snap.MACD > snap.MACDSignal && snap.MACDSignal < cfg.MACDThreshold) {
		return failedMomentum
	}
	if !(crossedAbove(snap) && snap.PercentKPrev < cfg.StochLevel) {
		return failedStochastic
	}
	return confirmed
}

func bearish(cfg config.SignalConfig, snap indicators.Snapshot, bar types.BarExtremes, pip float64) confirmation {
	if !(bar.High >= snap.BandTop || bar.HighPrev >= snap.BandTopPrev) {
		return failedBand
	}
	if !(snap.MACD < snap.MACDSignal && snap.MACDSignal > cfg.MACDThreshold) {
		return failedMomentum
	}
	if !(crossedBelow(snap) && snap.PercentKPrev > cfg.StochLevel) {
		return failedStochastic
	}
	return confirmed
}

func crossedAbove(s indicators.Snapshot) bool {
	return s.PercentKPrev <= s.PercentDPrev && s.PercentK > s.PercentD
}

func crossedBelow(s indicators.Snapshot) bool {
	return s.PercentKPrev >= s.PercentDPrev && s.PercentK < s.PercentD
}
