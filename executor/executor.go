package executor

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/evdnx/qsignals/metrics"
	"github.com/evdnx/qsignals/risk"
	"github.com/evdnx/qsignals/types"
)

var (
	// ErrPositionNotFound is returned when a modify targets a position that
	// has been closed since it was observed.
	ErrPositionNotFound = errors.New("position not found")
	// ErrNoQuote is returned when an order arrives before any price.
	ErrNoQuote = errors.New("no quote available")
)

// Executor is the order-execution interface. It is the sole owner of
// position state; callers only ever see copies.
type Executor interface {
	SubmitOrder(o types.Order) error
	ModifyPosition(p types.Position, stopLoss float64, takeProfit *float64) error
	// Positions lists open positions for label/symbol, optionally filtered by side.
	Positions(label, symbol string, sides ...types.Side) []types.Position
}

// PaperExecutor is an in-memory broker: perfect fills at the current quote,
// protective levels honoured on every quote update.
type PaperExecutor struct {
	mu        sync.RWMutex
	quote     types.Quote
	hasQuote  bool
	positions map[string]*types.Position
	order     []string // insertion order of position IDs
	closed    []ClosedPosition
}

// ClosedPosition records why and where a paper position was closed.
type ClosedPosition struct {
	Position types.Position
	Price    float64
	Reason   string
	ClosedAt time.Time
}

func NewPaperExecutor() *PaperExecutor {
	return &PaperExecutor{positions: make(map[string]*types.Position)}
}

// UpdateQuote records the latest quote and closes every position whose
// stop-loss or take-profit has been crossed.
func (p *PaperExecutor) UpdateQuote(q types.Quote) []ClosedPosition {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quote = q
	p.hasQuote = true

	var closed []ClosedPosition
	for _, id := range append([]string(nil), p.order...) {
		pos := p.positions[id]
		price, reason := exitFor(pos, q)
		if reason == "" {
			continue
		}
		c := ClosedPosition{Position: *pos, Price: price, Reason: reason, ClosedAt: q.Time}
		p.removeLocked(id)
		p.closed = append(p.closed, c)
		closed = append(closed, c)
	}
	return closed
}

func exitFor(pos *types.Position, q types.Quote) (float64, string) {
	if pos.Side == types.Buy {
		if pos.StopLoss != nil && q.Bid <= *pos.StopLoss {
			return q.Bid, "stop_loss"
		}
		if pos.TakeProfit != nil && q.Bid >= *pos.TakeProfit {
			return q.Bid, "take_profit"
		}
		return 0, ""
	}
	if pos.StopLoss != nil && q.Ask >= *pos.StopLoss {
		return q.Ask, "stop_loss"
	}
	if pos.TakeProfit != nil && q.Ask <= *pos.TakeProfit {
		return q.Ask, "take_profit"
	}
	return 0, ""
}

func (p *PaperExecutor) SubmitOrder(o types.Order) error {
	if o.Volume <= 0 {
		return fmt.Errorf("paper executor: invalid volume %v", o.Volume)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.hasQuote {
		return ErrNoQuote
	}

	entry := p.quote.Ask
	dir := 1.0
	if o.Side == types.Sell {
		entry = p.quote.Bid
		dir = -1
	}
	pos := &types.Position{
		ID:         uuid.NewString(),
		Symbol:     o.Symbol,
		Side:       o.Side,
		Label:      o.Label,
		Volume:     o.Volume,
		EntryPrice: entry,
		OpenedAt:   p.quote.Time,
	}
	if o.StopLossPips > 0 {
		pos.StopLoss = types.Float(entry - dir*risk.PipsToPrice(float64(o.StopLossPips), p.quote.PipSize))
	}
	if o.TakeProfitPips > 0 {
		pos.TakeProfit = types.Float(entry + dir*risk.PipsToPrice(float64(o.TakeProfitPips), p.quote.PipSize))
	}
	p.positions[pos.ID] = pos
	p.order = append(p.order, pos.ID)
	metrics.PositionsOpen.WithLabelValues(strings.ToLower(string(o.Side))).Inc()
	return nil
}

func (p *PaperExecutor) ModifyPosition(pos types.Position, stopLoss float64, takeProfit *float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur, ok := p.positions[pos.ID]
	if !ok {
		return fmt.Errorf("modify %s: %w", pos.ID, ErrPositionNotFound)
	}
	cur.StopLoss = types.Float(stopLoss)
	if takeProfit != nil {
		cur.TakeProfit = types.Float(*takeProfit)
	} else {
		cur.TakeProfit = nil
	}
	return nil
}

func (p *PaperExecutor) Positions(label, symbol string, sides ...types.Side) []types.Position {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []types.Position
	for _, id := range p.order {
		pos := p.positions[id]
		if pos.Label != label || pos.Symbol != symbol || !sideMatches(pos.Side, sides) {
			continue
		}
		out = append(out, copyPosition(pos))
	}
	return out
}

// Close removes a position as if it had been closed manually.
func (p *PaperExecutor) Close(id, reason string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.positions[id]
	if !ok {
		return false
	}
	price := p.quote.Bid
	if pos.Side == types.Sell {
		price = p.quote.Ask
	}
	p.closed = append(p.closed, ClosedPosition{Position: *pos, Price: price, Reason: reason, ClosedAt: p.quote.Time})
	p.removeLocked(id)
	return true
}

// Closed returns a copy of every position closed so far.
func (p *PaperExecutor) Closed() []ClosedPosition {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]ClosedPosition, len(p.closed))
	copy(out, p.closed)
	return out
}

func (p *PaperExecutor) removeLocked(id string) {
	pos := p.positions[id]
	delete(p.positions, id)
	for i, v := range p.order {
		if v == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	metrics.PositionsOpen.WithLabelValues(strings.ToLower(string(pos.Side))).Dec()
}

func sideMatches(s types.Side, sides []types.Side) bool {
	if len(sides) == 0 {
		return true
	}
	for _, want := range sides {
		if s == want {
			return true
		}
	}
	return false
}

func copyPosition(pos *types.Position) types.Position {
	out := *pos
	if pos.StopLoss != nil {
		out.StopLoss = types.Float(*pos.StopLoss)
	}
	if pos.TakeProfit != nil {
		out.TakeProfit = types.Float(*pos.TakeProfit)
	}
	return out
}
