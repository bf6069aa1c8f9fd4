package strategy

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/evdnx/qsignals/config"
	"github.com/evdnx/qsignals/metrics"
	"github.com/evdnx/qsignals/testutils"
	"github.com/evdnx/qsignals/types"
)

func TestTradeGate_CheckOrder(t *testing.T) {
	g := TradeGate{Direction: types.LongOnly, MaxSpreadPips: 2.5, Cooldown: 15 * time.Minute}
	wide := types.Quote{Bid: 1.1000, Ask: 1.1005, PipSize: pip}
	tight := types.Quote{Bid: 1.1000, Ask: 1.1001, PipSize: pip}
	last := t0

	// direction is checked before spread and cooldown
	if err := g.Admit(types.Sell, wide, last, t0); !errors.Is(err, ErrDirectionNotAllowed) {
		t.Fatalf("expected ErrDirectionNotAllowed, got %v", err)
	}
	// spread before cooldown
	if err := g.Admit(types.Buy, wide, last, t0); !errors.Is(err, ErrSpreadTooWide) {
		t.Fatalf("expected ErrSpreadTooWide, got %v", err)
	}
	err := g.Admit(types.Buy, tight, last, t0.Add(5*time.Minute))
	if !errors.Is(err, ErrCooldownActive) {
		t.Fatalf("expected ErrCooldownActive, got %v", err)
	}
	if !strings.Contains(err.Error(), "10.0 minutes remaining") {
		t.Fatalf("expected remaining minutes in %q", err)
	}
	if err := g.Admit(types.Buy, tight, time.Time{}, t0); err != nil {
		t.Fatalf("no previous trade should pass the cooldown, got %v", err)
	}
}

func TestTradeGate_CooldownMonotonic(t *testing.T) {
	g := TradeGate{Direction: types.Both, MaxSpreadPips: 2.5, Cooldown: 15 * time.Minute}
	q := types.Quote{Bid: 1.1000, Ask: 1.1001, PipSize: pip}

	admitted := false
	for m := 0; m <= 30; m++ {
		err := g.Admit(types.Buy, q, t0, t0.Add(time.Duration(m)*time.Minute))
		switch {
		case err == nil:
			admitted = true
		case admitted:
			t.Fatalf("rejected at +%dm after being admitted earlier: %v", m, err)
		case m >= 15:
			t.Fatalf("still rejected at +%dm: %v", m, err)
		}
	}
	if !admitted {
		t.Fatal("cooldown never expired")
	}
}

func TestTradeGate_ZeroCooldownDisabled(t *testing.T) {
	g := TradeGate{Direction: types.Both, MaxSpreadPips: 2.5}
	q := types.Quote{Bid: 1.1000, Ask: 1.1001, PipSize: pip}
	if err := g.Admit(types.Sell, q, t0, t0); err != nil {
		t.Fatalf("zero cooldown must not block, got %v", err)
	}
}

func TestRejectionReason(t *testing.T) {
	cases := map[error]string{
		ErrDirectionNotAllowed: "direction",
		ErrSpreadTooWide:       "spread",
		ErrCooldownActive:      "cooldown",
		ErrVolumeTooSmall:      "volume",
		errors.New("boom"):     "other",
	}
	for err, want := range cases {
		if got := rejectionReason(err); got != want {
			t.Fatalf("%v: expected %s, got %s", err, want, got)
		}
	}
}

/*
ATR range scenario: twenty samples averaging 10 with multipliers 1.0/3.0
give an accepted band of [10, 30].
*/
func TestVolatilityGate_Range(t *testing.T) {
	log := testutils.NewMockLogger()
	g := NewVolatilityGate(config.ATRConfig{Filter: true, MinMultiplier: 1.0, MaxMultiplier: 3.0}, log)
	hist := flatATR(10)

	if !g.IsVolatilityAcceptable(25, hist) {
		t.Fatal("25 should be inside [10, 30]")
	}
	before := testutil.ToFloat64(metrics.VolatilityRejections)
	if g.IsVolatilityAcceptable(35, hist) {
		t.Fatal("35 should be outside [10, 30]")
	}
	if g.IsVolatilityAcceptable(5, hist) {
		t.Fatal("5 should be outside [10, 30]")
	}
	if got := testutil.ToFloat64(metrics.VolatilityRejections) - before; got != 2 {
		t.Fatalf("expected 2 rejections counted, got %v", got)
	}
	if log.Count("atr_out_of_range") != 2 {
		t.Fatalf("expected 2 diagnostics, got %v", log.Messages())
	}
	if hi, _ := log.LastField("max"); hi != 30.0 {
		t.Fatalf("expected max 30 in diagnostic, got %v", hi)
	}
}

func TestVolatilityGate_Permissive(t *testing.T) {
	g := NewVolatilityGate(config.ATRConfig{Filter: true, MinMultiplier: 1.0, MaxMultiplier: 3.0}, testutils.NewMockLogger())
	if !g.IsVolatilityAcceptable(1000, flatATR(10)[:config.ATRWindow-1]) {
		t.Fatal("fewer than 20 samples must accept")
	}

	// only the last 20 samples are averaged
	hist := append([]float64{1e6, 1e6}, flatATR(10)...)
	if !g.IsVolatilityAcceptable(25, hist) {
		t.Fatal("samples older than the window must be ignored")
	}

	off := NewVolatilityGate(config.ATRConfig{Filter: false, MinMultiplier: 1.0, MaxMultiplier: 3.0}, nil)
	if !off.IsVolatilityAcceptable(1000, flatATR(10)) {
		t.Fatal("disabled gate must accept")
	}
}
