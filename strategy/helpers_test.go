package strategy

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/evdnx/qsignals/config"
	"github.com/evdnx/qsignals/indicators"
	"github.com/evdnx/qsignals/testutils"
	"github.com/evdnx/qsignals/types"
)

const pip = 0.0001

var t0 = time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

func flatATR(v float64) []float64 {
	h := make([]float64, config.ATRWindow)
	for i := range h {
		h[i] = v
	}
	return h
}

// bullSnap satisfies every bullish rule against bar().
func bullSnap() indicators.Snapshot {
	return indicators.Snapshot{
		BandTop: 1.2000, BandTopPrev: 1.2000,
		BandBottom: 1.1000, BandBottomPrev: 1.1000,
		MACD: -0.002, MACDSignal: -0.003,
		PercentK: 25, PercentKPrev: 10,
		PercentD: 20, PercentDPrev: 15,
		ATR: 0.0010, ATRHistory: flatATR(0.0008),
	}
}

// bearSnap satisfies every bearish rule against bar().
func bearSnap() indicators.Snapshot {
	return indicators.Snapshot{
		BandTop: 1.2000, BandTopPrev: 1.2000,
		BandBottom: 1.1000, BandBottomPrev: 1.1000,
		MACD: 0.002, MACDSignal: 0.003,
		PercentK: 75, PercentKPrev: 90,
		PercentD: 80, PercentDPrev: 85,
		ATR: 0.0010, ATRHistory: flatATR(0.0008),
	}
}

// quietSnap confirms nothing on either side.
func quietSnap() indicators.Snapshot {
	return indicators.Snapshot{
		BandTop: 1.3000, BandTopPrev: 1.3000,
		BandBottom: 1.0000, BandBottomPrev: 1.0000,
		PercentK: 50, PercentKPrev: 50, PercentD: 50, PercentDPrev: 50,
		ATR: 0.0010, ATRHistory: flatATR(0.0008),
	}
}

// bar touches both bands so that the band rule of either side can pass.
func bar() types.BarExtremes {
	return types.BarExtremes{High: 1.2001, HighPrev: 1.1990, Low: 1.1001}
}

// fakeSource serves fixed snapshots, picking the side by the sign of the
// MACD threshold.
type fakeSource struct {
	bull, bear indicators.Snapshot
	bar        types.BarExtremes
	err        error
}

func (f *fakeSource) Snapshot(cfg config.SignalConfig) (indicators.Snapshot, error) {
	if f.err != nil {
		return indicators.Snapshot{}, f.err
	}
	if cfg.MACDThreshold < 0 {
		return f.bull, nil
	}
	return f.bear, nil
}

func (f *fakeSource) Extremes() (types.BarExtremes, error) {
	return f.bar, f.err
}

type memStore struct {
	mu    sync.Mutex
	times map[string]time.Time
	err   error
}

func newMemStore() *memStore { return &memStore{times: map[string]time.Time{}} }

func (m *memStore) LastTradeTime(_ context.Context, label, symbol string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.times[label+"/"+symbol], m.err
}

func (m *memStore) SaveTradeTime(_ context.Context, label, symbol string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.times[label+"/"+symbol] = t
	return nil
}

func (m *memStore) Close() error { return nil }

func quoteAt(at time.Time) types.Quote {
	return types.Quote{Bid: 1.1500, Ask: 1.1501, PipSize: pip, Time: at}
}

type harness struct {
	eng   *Engine
	exec  *testutils.MockExecutor
	log   *testutils.MockLogger
	src   *fakeSource
	store *memStore
	st    *State
}

// buildEngine returns an engine over the stock configuration after mut has
// been applied to it. Both sides start quiet.
func buildEngine(t *testing.T, mut func(*config.StrategyConfig)) *harness {
	t.Helper()
	cfg := config.Default()
	if mut != nil {
		mut(&cfg)
	}
	h := &harness{
		exec:  testutils.NewMockExecutor(1.1501),
		log:   testutils.NewMockLogger(),
		src:   &fakeSource{bull: quietSnap(), bear: quietSnap(), bar: bar()},
		store: newMemStore(),
		st:    &State{},
	}
	eng, err := NewEngine(cfg, h.exec, h.src, h.store, h.log)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	h.eng = eng
	return h
}

func (h *harness) bar(at time.Time) {
	h.eng.OnBarClosed(context.Background(), h.st, quoteAt(at))
}

func (h *harness) sides() []types.Side {
	var out []types.Side
	for _, o := range h.exec.Orders() {
		out = append(out, o.Side)
	}
	return out
}
