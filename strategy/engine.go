// Package strategy turns indicator snapshots into entry orders and keeps
// the stops of open positions tight.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/evdnx/qsignals/config"
	"github.com/evdnx/qsignals/executor"
	"github.com/evdnx/qsignals/indicators"
	"github.com/evdnx/qsignals/logger"
	"github.com/evdnx/qsignals/metrics"
	"github.com/evdnx/qsignals/risk"
	"github.com/evdnx/qsignals/store"
	"github.com/evdnx/qsignals/types"
)

// SnapshotSource supplies indicator readings and bar extremes for the
// latest closed chart bar.
type SnapshotSource interface {
	Snapshot(cfg config.SignalConfig) (indicators.Snapshot, error)
	Extremes() (types.BarExtremes, error)
}

// Engine bundles the dependencies of one strategy instance.
type Engine struct {
	Exec       executor.Executor
	Log        logger.Logger
	Cfg        config.StrategyConfig
	Indicators SnapshotSource
	Store      store.CooldownStore

	gate TradeGate
	vol  *VolatilityGate
	risk *RiskManager
	now  func() time.Time
}

// NewEngine validates the config and wires the gates. st may be nil, in
// which case the cooldown lives in memory only.
func NewEngine(cfg config.StrategyConfig, exec executor.Executor, src SnapshotSource,
	st store.CooldownStore, log logger.Logger) (*Engine, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if st == nil {
		st = store.NewNoopStore()
	}
	return &Engine{
		Exec:       exec,
		Log:        log,
		Cfg:        cfg,
		Indicators: src,
		Store:      st,
		gate: TradeGate{
			Direction:     cfg.Direction,
			MaxSpreadPips: cfg.MaxSpreadPips,
			Cooldown:      cfg.Cooldown(),
		},
		vol: NewVolatilityGate(cfg.ATR, log),
		risk: &RiskManager{
			Exec:      exec,
			Log:       log,
			Label:     cfg.Symbol.Label,
			Symbol:    cfg.Symbol.Name,
			Trailing:  cfg.Trailing,
			BreakEven: cfg.BreakEven,
		},
		now: time.Now,
	}, nil
}

// Start logs the run configuration and restores the last trade time.
func (e *Engine) Start(ctx context.Context, st *State) error {
	e.Log.Info("engine_started",
		logger.String("symbol", e.Cfg.Symbol.Name),
		logger.String("label", e.Cfg.Symbol.Label),
		logger.String("direction", e.Cfg.Direction.String()),
		logger.Bool("atr_filter", e.Cfg.ATR.Filter),
		logger.Bool("dynamic_sltp", e.Cfg.ATR.DynamicSLTP),
	)
	last, err := e.Store.LastTradeTime(ctx, e.Cfg.Symbol.Label, e.Cfg.Symbol.Name)
	if err != nil {
		return fmt.Errorf("restore cooldown: %w", err)
	}
	if !last.IsZero() {
		st.LastTradeTime = last
		e.Log.Info("cooldown_restored", logger.Time("last_trade", last))
	}
	return nil
}

// OnBarClosed evaluates every allowed direction on the bar that just closed.
func (e *Engine) OnBarClosed(ctx context.Context, st *State, q types.Quote) {
	q = e.withPip(q)
	switch e.Cfg.Direction {
	case types.Disabled:
		return
	case types.Both:
		e.evaluate(ctx, st, types.Buy, q)
		e.evaluate(ctx, st, types.Sell, q)
	case types.LongOnly:
		e.evaluate(ctx, st, types.Buy, q)
	case types.ShortOnly:
		e.evaluate(ctx, st, types.Sell, q)
	}
}

// OnTick manages the stops of open positions.
func (e *Engine) OnTick(q types.Quote) {
	e.risk.OnTick(e.withPip(q))
}

func (e *Engine) evaluate(ctx context.Context, st *State, side types.Side, q types.Quote) {
	edge := st.edge(side)
	cfg := e.Cfg.Bullish
	if side == types.Sell {
		cfg = e.Cfg.Bearish
	}

	snap, err := e.Indicators.Snapshot(cfg)
	if err == nil {
		var bar types.BarExtremes
		if bar, err = e.Indicators.Extremes(); err == nil {
			err = e.confirm(side, cfg, snap, bar, q.PipSize)
		}
	}
	if err != nil {
		if !errors.Is(err, errNoSignal) {
			e.Log.Warn("snapshot_unavailable",
				logger.String("side", sideLabel(side)),
				logger.Err(err),
			)
		}
		*edge = false
		return
	}

	if !*edge {
		metrics.SignalEdges.WithLabelValues(sideLabel(side)).Inc()
		if open := e.Exec.Positions(e.Cfg.Symbol.Label, e.Cfg.Symbol.Name, side); len(open) > 0 {
			e.Log.Info("position_already_open",
				logger.String("side", sideLabel(side)),
				logger.Int("open", len(open)),
			)
		} else {
			e.openPosition(ctx, st, side, snap, q)
		}
	}
	*edge = true
}

// errNoSignal marks a bar on which a direction did not confirm.
var errNoSignal = errors.New("no signal")

func (e *Engine) confirm(side types.Side, cfg config.SignalConfig, snap indicators.Snapshot, bar types.BarExtremes, pip float64) error {
	result := bullish(cfg, snap, bar, pip)
	if side == types.Sell {
		result = bearish(cfg, snap, bar, pip)
	}
	if result != confirmed {
		return fmt.Errorf("%w: %s", errNoSignal, result)
	}
	if !e.vol.IsVolatilityAcceptable(snap.ATR, snap.ATRHistory) {
		return fmt.Errorf("%w: volatility", errNoSignal)
	}
	return nil
}

func (e *Engine) openPosition(ctx context.Context, st *State, side types.Side, snap indicators.Snapshot, q types.Quote) {
	now := e.clock(q)
	if err := e.gate.Admit(side, q, st.LastTradeTime, now); err != nil {
		e.reject(side, err)
		return
	}

	sym := e.Cfg.Symbol
	volume := risk.CalcVolume(e.Cfg.Quantity, sym.LotSize, sym.VolumeStep, sym.MinVolume)
	if volume <= 0 {
		e.reject(side, fmt.Errorf("%w: %.4f lots", ErrVolumeTooSmall, e.Cfg.Quantity))
		return
	}

	prot := risk.StaticProtection(e.Cfg.StopLossPips, e.Cfg.TakeProfitPips)
	if e.Cfg.ATR.DynamicSLTP {
		dyn := risk.DynamicProtection(snap.ATR, e.Cfg.ATR.SLMultiplier, e.Cfg.ATR.TPMultiplier, q.PipSize)
		if dyn.Dynamic {
			prot = dyn
			e.Log.Info("dynamic_sltp",
				logger.Float64("atr", snap.ATR),
				logger.Int("sl_pips", prot.StopLossPips),
				logger.Int("tp_pips", prot.TakeProfitPips),
			)
		} else {
			// keep the static distances rather than trade unprotected
			e.Log.Warn("dynamic_sltp_unavailable",
				logger.Float64("atr", snap.ATR),
				logger.Int("sl_pips", prot.StopLossPips),
				logger.Int("tp_pips", prot.TakeProfitPips),
			)
		}
	}

	o := types.Order{
		Symbol:         sym.Name,
		Side:           side,
		Volume:         volume,
		Label:          sym.Label,
		StopLossPips:   prot.StopLossPips,
		TakeProfitPips: prot.TakeProfitPips,
		Comment:        e.Cfg.Direction.String(),
	}
	if err := e.submitOrder(o); err != nil {
		return
	}

	st.LastTradeTime = now
	if err := e.Store.SaveTradeTime(ctx, sym.Label, sym.Name, now); err != nil {
		e.Log.Warn("cooldown_persist_failed", logger.Err(err))
	}
}

// submitOrder is a thin wrapper that records metrics and logs.
func (e *Engine) submitOrder(o types.Order) error {
	side := sideLabel(o.Side)
	if err := e.Exec.SubmitOrder(o); err != nil {
		e.Log.Error("order_submit_failed",
			logger.String("symbol", o.Symbol),
			logger.String("side", side),
			logger.Float64("volume", o.Volume),
			logger.Err(err),
		)
		metrics.OrdersFailed.WithLabelValues(side).Inc()
		return err
	}
	e.Log.Info("order_submitted",
		logger.String("symbol", o.Symbol),
		logger.String("side", side),
		logger.Float64("volume", o.Volume),
		logger.Int("sl_pips", o.StopLossPips),
		logger.Int("tp_pips", o.TakeProfitPips),
		logger.String("direction", o.Comment),
	)
	metrics.OrdersSubmitted.WithLabelValues(side).Inc()
	return nil
}

func (e *Engine) reject(side types.Side, err error) {
	reason := rejectionReason(err)
	e.Log.Info("order_rejected",
		logger.String("side", sideLabel(side)),
		logger.String("reason", reason),
		logger.Err(err),
	)
	metrics.AdmissionRejections.WithLabelValues(reason).Inc()
}

func (e *Engine) withPip(q types.Quote) types.Quote {
	if q.PipSize <= 0 {
		q.PipSize = e.Cfg.Symbol.PipSize
	}
	return q
}

// clock prefers the quote's timestamp so cooldowns follow market time.
func (e *Engine) clock(q types.Quote) time.Time {
	if !q.Time.IsZero() {
		return q.Time
	}
	return e.now()
}

// Status is a point-in-time summary of the engine, used by the periodic
// status probe.
type Status struct {
	Symbol            string
	Label             string
	Direction         types.DirectionPolicy
	BullishActive     bool
	BearishActive     bool
	LastTradeTime     time.Time
	CooldownRemaining time.Duration
	OpenLong          int
	OpenShort         int
}

func (e *Engine) Status(st *State, now time.Time) Status {
	sym := e.Cfg.Symbol
	return Status{
		Symbol:            sym.Name,
		Label:             sym.Label,
		Direction:         e.Cfg.Direction,
		BullishActive:     st.BullishActive,
		BearishActive:     st.BearishActive,
		LastTradeTime:     st.LastTradeTime,
		CooldownRemaining: st.CooldownRemaining(now, e.Cfg.Cooldown()),
		OpenLong:          len(e.Exec.Positions(sym.Label, sym.Name, types.Buy)),
		OpenShort:         len(e.Exec.Positions(sym.Label, sym.Name, types.Sell)),
	}
}

// LogStatus writes the current Status as one structured line.
func (e *Engine) LogStatus(st *State, now time.Time) Status {
	s := e.Status(st, now)
	e.Log.Info("engine_status",
		logger.String("symbol", s.Symbol),
		logger.String("direction", s.Direction.String()),
		logger.Bool("bullish_active", s.BullishActive),
		logger.Bool("bearish_active", s.BearishActive),
		logger.Duration("cooldown_remaining", s.CooldownRemaining),
		logger.Int("open_long", s.OpenLong),
		logger.Int("open_short", s.OpenShort),
	)
	return s
}
