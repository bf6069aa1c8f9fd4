package strategy

import (
	"strings"

	"github.com/evdnx/qsignals/config"
	"github.com/evdnx/qsignals/executor"
	"github.com/evdnx/qsignals/logger"
	"github.com/evdnx/qsignals/metrics"
	"github.com/evdnx/qsignals/types"
)

// pipEpsilon absorbs float noise when a price distance is compared with a
// whole number of pips.
const pipEpsilon = 1e-9

// RiskManager tightens the stops of the strategy's open positions on every
// tick. It only ever moves a stop in the position's favour.
type RiskManager struct {
	Exec      executor.Executor
	Log       logger.Logger
	Label     string
	Symbol    string
	Trailing  config.TrailingConfig
	BreakEven config.BreakEvenConfig
}

// OnTick runs the trailing pass and then the break-even pass. Positions
// are re-read between the passes so break-even sees trailing's result.
func (r *RiskManager) OnTick(q types.Quote) {
	if q.PipSize <= 0 {
		return
	}
	r.trail(q)
	r.breakEven(q)
}

func (r *RiskManager) trail(q types.Quote) {
	step := float64(r.Trailing.StepPips) * q.PipSize
	trigger := float64(r.Trailing.TriggerPips)

	for _, p := range r.Exec.Positions(r.Label, r.Symbol, types.Sell) {
		if !reached(p.EntryPrice-q.Ask, trigger, q.PipSize) {
			continue
		}
		cand := q.Ask + step
		if p.StopLoss == nil || cand < *p.StopLoss-q.PipSize {
			r.modify(p, cand, "trailing")
		}
	}

	for _, p := range r.Exec.Positions(r.Label, r.Symbol, types.Buy) {
		if !reached(q.Bid-p.EntryPrice, trigger, q.PipSize) {
			continue
		}
		cand := q.Bid - step
		if p.StopLoss == nil || cand > *p.StopLoss+q.PipSize {
			r.modify(p, cand, "trailing")
		}
	}
}

func (r *RiskManager) breakEven(q types.Quote) {
	extra := r.BreakEven.ExtraPips * q.PipSize

	for _, p := range r.Exec.Positions(r.Label, r.Symbol) {
		switch p.Side {
		case types.Buy:
			if !reached(q.Bid-p.EntryPrice, r.BreakEven.TriggerPips, q.PipSize) {
				continue
			}
			target := p.EntryPrice + extra
			if p.StopLoss == nil || *p.StopLoss < target-q.PipSize {
				r.modify(p, target, "break_even")
			}
		case types.Sell:
			if !reached(p.EntryPrice-q.Ask, r.BreakEven.TriggerPips, q.PipSize) {
				continue
			}
			target := p.EntryPrice - extra
			if p.StopLoss == nil || *p.StopLoss > target+q.PipSize {
				r.modify(p, target, "break_even")
			}
		}
	}
}

func (r *RiskManager) modify(p types.Position, stop float64, kind string) {
	if err := r.Exec.ModifyPosition(p, stop, p.TakeProfit); err != nil {
		r.Log.Warn("stop_modify_failed",
			logger.String("position", p.ID),
			logger.String("kind", kind),
			logger.Float64("stop", stop),
			logger.Err(err),
		)
		metrics.StopAdjustments.WithLabelValues(kind, "failed").Inc()
		return
	}
	msg := "trailing_stop_moved"
	if kind == "break_even" {
		msg = "break_even_applied"
	}
	r.Log.Info(msg,
		logger.String("position", p.ID),
		logger.String("side", sideLabel(p.Side)),
		logger.Float64("entry", p.EntryPrice),
		logger.Float64("stop", stop),
	)
	metrics.StopAdjustments.WithLabelValues(kind, "applied").Inc()
}

// reached reports whether a favourable price distance covers pips.
func reached(distance, pips, pipSize float64) bool {
	return distance/pipSize >= pips-pipEpsilon
}

func sideLabel(s types.Side) string {
	return strings.ToLower(string(s))
}
