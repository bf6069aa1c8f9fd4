package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/evdnx/qsignals/config"
	"github.com/evdnx/qsignals/executor"
	"github.com/evdnx/qsignals/feed"
	"github.com/evdnx/qsignals/indicators"
	"github.com/evdnx/qsignals/strategy"
	"github.com/evdnx/qsignals/testutils"
	"github.com/evdnx/qsignals/types"
)

var t0 = time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

func buildRunner(t *testing.T) (*Runner, *executor.PaperExecutor, *indicators.Provider, *testutils.MockLogger) {
	t.Helper()
	cfg := config.Default()
	log := testutils.NewMockLogger()
	paper := executor.NewPaperExecutor()
	prov := indicators.NewProvider(cfg.Symbol.ChartTimeframe, cfg.ATR.Periods, 0)
	eng, err := strategy.NewEngine(cfg, paper, prov, nil, log)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return New(&cfg, eng, prov, paper, log), paper, prov, log
}

func tickEvent(bid float64, at time.Time) feed.Event {
	return feed.Event{Kind: feed.KindTick, Symbol: "EURUSD", Quote: types.Quote{Bid: bid, Ask: bid + 0.0001, Time: at}}
}

func barEvent(tf string, at time.Time) feed.Event {
	return feed.Event{Kind: feed.KindBar, Symbol: "EURUSD", Timeframe: tf,
		Bar: indicators.Bar{Time: at, Open: 1.1, High: 1.101, Low: 1.099, Close: 1.1005}}
}

func TestRunner_BarBeforeQuote(t *testing.T) {
	r, _, prov, log := buildRunner(t)
	r.Handle(context.Background(), barEvent("h1", t0))

	if prov.Bars("h1") != 1 {
		t.Fatalf("bar not recorded")
	}
	if !log.Has("bar_without_quote") || log.Has("snapshot_unavailable") {
		t.Fatalf("expected evaluation to be skipped, got %v", log.Messages())
	}
}

func TestRunner_ChartBarTriggersEvaluation(t *testing.T) {
	r, _, prov, log := buildRunner(t)
	ctx := context.Background()
	r.Handle(ctx, tickEvent(1.1000, t0))

	r.Handle(ctx, barEvent("m15", t0))
	if prov.Bars("m15") != 1 || log.Has("snapshot_unavailable") {
		t.Fatalf("non-chart bar must only be stored, got %v", log.Messages())
	}

	r.Handle(ctx, barEvent("h1", t0))
	if n := log.Count("snapshot_unavailable"); n != 2 {
		t.Fatalf("expected both sides to be evaluated while warming up, got %d", n)
	}
}

func TestRunner_TickClosesPaperPositions(t *testing.T) {
	r, paper, _, log := buildRunner(t)
	ctx := context.Background()
	r.Handle(ctx, tickEvent(1.2000, t0))

	if err := paper.SubmitOrder(types.Order{Symbol: "EURUSD", Side: types.Buy, Volume: 1000, Label: "QSignals", StopLossPips: 10}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	r.Handle(ctx, tickEvent(1.1980, t0.Add(time.Minute)))

	if len(paper.Positions("QSignals", "EURUSD")) != 0 {
		t.Fatal("stop-loss should have closed the position")
	}
	if reason, _ := log.LastField("reason"); reason != "stop_loss" {
		t.Fatalf("expected stop_loss close log, got %v", log.Messages())
	}
}

func TestRunner_LoopServesStatusAndEvents(t *testing.T) {
	r, _, _, log := buildRunner(t)
	events := make(chan feed.Event)
	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background(), events) }()

	events <- tickEvent(1.1000, t0)
	r.RequestStatus()

	deadline := time.Now().Add(5 * time.Second)
	for !log.Has("engine_status") {
		if time.Now().After(deadline) {
			t.Fatalf("status request never served, got %v", log.Messages())
		}
		time.Sleep(5 * time.Millisecond)
	}
	close(events)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not exit after events closed")
	}
	if !log.Has("engine_started") {
		t.Fatal("expected start-up log")
	}
}

func TestRunner_RequestStatusNeverBlocks(t *testing.T) {
	r, _, _, _ := buildRunner(t)
	for i := 0; i < 3; i++ {
		r.RequestStatus()
	}
	if n := len(r.status); n != 1 {
		t.Fatalf("expected pending requests to merge into one, got %d", n)
	}
}

func TestRunner_StopsOnCancel(t *testing.T) {
	r, _, _, _ := buildRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, make(chan feed.Event)) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}
}
