// Package runner is the single event loop of the host. Feed events and
// status requests are handled one at a time, so the engine and its State
// are never touched concurrently.
package runner

import (
	"context"
	"strings"
	"time"

	"github.com/evdnx/qsignals/config"
	"github.com/evdnx/qsignals/executor"
	"github.com/evdnx/qsignals/feed"
	"github.com/evdnx/qsignals/indicators"
	"github.com/evdnx/qsignals/logger"
	"github.com/evdnx/qsignals/strategy"
	"github.com/evdnx/qsignals/types"
)

// Broker is the part of the paper executor the loop drives directly.
type Broker interface {
	UpdateQuote(q types.Quote) []executor.ClosedPosition
}

type Runner struct {
	cfg      config.StrategyConfig
	engine   *strategy.Engine
	provider *indicators.Provider
	broker   Broker
	log      logger.Logger

	state  *strategy.State
	quote  types.Quote
	status chan struct{}
	now    func() time.Time
}

func New(cfg *config.StrategyConfig, eng *strategy.Engine, p *indicators.Provider, b Broker, log logger.Logger) *Runner {
	return &Runner{
		cfg:      *cfg,
		engine:   eng,
		provider: p,
		broker:   b,
		log:      log,
		state:    &strategy.State{},
		status:   make(chan struct{}, 1),
		now:      time.Now,
	}
}

// RequestStatus asks the loop to log a status line. It never blocks; a
// request made while one is pending is merged into it.
func (r *Runner) RequestStatus() {
	select {
	case r.status <- struct{}{}:
	default:
	}
}

// Run restores persisted state and then serves events until ctx is done
// or events is closed.
func (r *Runner) Run(ctx context.Context, events <-chan feed.Event) error {
	if err := r.engine.Start(ctx, r.state); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.status:
			r.engine.LogStatus(r.state, r.clock())
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			r.Handle(ctx, ev)
		}
	}
}

// Handle dispatches one feed event.
func (r *Runner) Handle(ctx context.Context, ev feed.Event) {
	switch ev.Kind {
	case feed.KindTick:
		r.onTick(ev.Quote)
	case feed.KindBar:
		r.onBar(ctx, ev)
	}
}

func (r *Runner) onTick(q types.Quote) {
	if q.PipSize <= 0 {
		q.PipSize = r.cfg.Symbol.PipSize
	}
	r.quote = q
	for _, c := range r.broker.UpdateQuote(q) {
		r.log.Info("position_closed",
			logger.String("position", c.Position.ID),
			logger.String("side", strings.ToLower(string(c.Position.Side))),
			logger.String("reason", c.Reason),
			logger.Float64("price", c.Price),
		)
	}
	r.engine.OnTick(q)
}

func (r *Runner) onBar(ctx context.Context, ev feed.Event) {
	r.provider.AddBar(ev.Timeframe, ev.Bar)
	if ev.Timeframe != r.cfg.Symbol.ChartTimeframe {
		return
	}
	if r.quote.Bid <= 0 {
		r.log.Warn("bar_without_quote", logger.String("timeframe", ev.Timeframe))
		return
	}
	r.engine.OnBarClosed(ctx, r.state, r.quote)
}

func (r *Runner) clock() time.Time {
	if !r.quote.Time.IsZero() {
		return r.quote.Time
	}
	return r.now()
}
