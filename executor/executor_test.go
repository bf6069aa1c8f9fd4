package executor

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/evdnx/qsignals/types"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func quote(bid, ask float64) types.Quote {
	return types.Quote{Bid: bid, Ask: ask, PipSize: 0.0001, Time: time.Unix(1_700_000_000, 0)}
}

func TestPaperExecutor_SubmitAndPositions(t *testing.T) {
	ex := NewPaperExecutor()
	ex.UpdateQuote(quote(1.1000, 1.1002))

	o := types.Order{
		Symbol:         "EURUSD",
		Side:           types.Buy,
		Volume:         1000,
		Label:          "QSignals",
		StopLossPips:   100,
		TakeProfitPips: 50,
	}
	if err := ex.SubmitOrder(o); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	got := ex.Positions("QSignals", "EURUSD")
	if len(got) != 1 {
		t.Fatalf("expected one position, got %d", len(got))
	}
	p := got[0]
	if p.ID == "" || !approx(p.EntryPrice, 1.1002) {
		t.Fatalf("unexpected position: %+v", p)
	}
	if p.StopLoss == nil || !approx(*p.StopLoss, 1.0902) {
		t.Fatalf("unexpected stop loss: %v", p.StopLoss)
	}
	if p.TakeProfit == nil || !approx(*p.TakeProfit, 1.1052) {
		t.Fatalf("unexpected take profit: %v", p.TakeProfit)
	}
	if n := len(ex.Positions("QSignals", "EURUSD", types.Sell)); n != 0 {
		t.Fatalf("side filter leaked %d positions", n)
	}
	if n := len(ex.Positions("Other", "EURUSD")); n != 0 {
		t.Fatalf("label filter leaked %d positions", n)
	}
}

func TestPaperExecutor_RequiresQuote(t *testing.T) {
	ex := NewPaperExecutor()
	err := ex.SubmitOrder(types.Order{Symbol: "EURUSD", Side: types.Sell, Volume: 1000})
	if !errors.Is(err, ErrNoQuote) {
		t.Fatalf("expected ErrNoQuote, got %v", err)
	}
}

func TestPaperExecutor_ModifyAndVanishedPosition(t *testing.T) {
	ex := NewPaperExecutor()
	ex.UpdateQuote(quote(1.2000, 1.2001))
	if err := ex.SubmitOrder(types.Order{Symbol: "EURUSD", Side: types.Sell, Volume: 1000, Label: "L"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	p := ex.Positions("L", "EURUSD")[0]
	if p.StopLoss != nil {
		t.Fatalf("expected no stop, got %v", *p.StopLoss)
	}

	if err := ex.ModifyPosition(p, 1.2050, p.TakeProfit); err != nil {
		t.Fatalf("modify: %v", err)
	}
	if sl := ex.Positions("L", "EURUSD")[0].StopLoss; sl == nil || !approx(*sl, 1.2050) {
		t.Fatalf("stop not applied: %v", sl)
	}

	if !ex.Close(p.ID, "manual") {
		t.Fatal("close failed")
	}
	if err := ex.ModifyPosition(p, 1.2040, nil); !errors.Is(err, ErrPositionNotFound) {
		t.Fatalf("expected ErrPositionNotFound, got %v", err)
	}
}

func TestPaperExecutor_StopLossClosesPosition(t *testing.T) {
	ex := NewPaperExecutor()
	ex.UpdateQuote(quote(1.2000, 1.2001))
	if err := ex.SubmitOrder(types.Order{Symbol: "EURUSD", Side: types.Buy, Volume: 1000, Label: "L", StopLossPips: 10}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if closed := ex.UpdateQuote(quote(1.1995, 1.1996)); len(closed) != 0 {
		t.Fatalf("closed too early: %+v", closed)
	}
	closed := ex.UpdateQuote(quote(1.1990, 1.1991))
	if len(closed) != 1 || closed[0].Reason != "stop_loss" {
		t.Fatalf("expected stop-loss close, got %+v", closed)
	}
	if n := len(ex.Positions("L", "EURUSD")); n != 0 {
		t.Fatalf("position still open after stop: %d", n)
	}
	if len(ex.Closed()) != 1 {
		t.Fatalf("closed history not recorded")
	}
}

func TestPaperExecutor_PositionsReturnCopies(t *testing.T) {
	ex := NewPaperExecutor()
	ex.UpdateQuote(quote(1.2000, 1.2001))
	_ = ex.SubmitOrder(types.Order{Symbol: "EURUSD", Side: types.Buy, Volume: 1000, Label: "L", StopLossPips: 10})
	p := ex.Positions("L", "EURUSD")[0]
	*p.StopLoss = 0
	if sl := ex.Positions("L", "EURUSD")[0].StopLoss; *sl == 0 {
		t.Fatal("caller mutated broker state through returned position")
	}
}
