package testutils

import (
	"fmt"
	"sync"

	"github.com/evdnx/qsignals/executor"
	"github.com/evdnx/qsignals/types"
)

// Modification records a single ModifyPosition call.
type Modification struct {
	PositionID string
	StopLoss   float64
	TakeProfit *float64
}

// MockExecutor implements executor.Executor in-memory. Orders open positions
// at the entry price given to NewMockExecutor; modifications are applied
// and recorded for assertions.
type MockExecutor struct {
	mu        sync.RWMutex
	positions []types.Position
	orders    []types.Order
	mods      []Modification
	entry     float64
	seq       int

	// SubmitErr / ModifyErr, when set, are returned instead of acting.
	SubmitErr error
	ModifyErr error
}

// NewMockExecutor creates an executor whose fills happen at entryPrice.
func NewMockExecutor(entryPrice float64) *MockExecutor {
	return &MockExecutor{entry: entryPrice}
}

// SubmitOrder records the order and opens a matching position.
func (m *MockExecutor) SubmitOrder(o types.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = append(m.orders, o)
	if m.SubmitErr != nil {
		return m.SubmitErr
	}
	m.seq++
	m.positions = append(m.positions, types.Position{
		ID:         fmt.Sprintf("pos-%d", m.seq),
		Symbol:     o.Symbol,
		Side:       o.Side,
		Label:      o.Label,
		Volume:     o.Volume,
		EntryPrice: m.entry,
	})
	return nil
}

// ModifyPosition records the call and updates the stored position.
func (m *MockExecutor) ModifyPosition(p types.Position, stopLoss float64, takeProfit *float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mods = append(m.mods, Modification{PositionID: p.ID, StopLoss: stopLoss, TakeProfit: takeProfit})
	if m.ModifyErr != nil {
		return m.ModifyErr
	}
	for i := range m.positions {
		if m.positions[i].ID == p.ID {
			m.positions[i].StopLoss = types.Float(stopLoss)
			m.positions[i].TakeProfit = takeProfit
			return nil
		}
	}
	return fmt.Errorf("modify %s: %w", p.ID, executor.ErrPositionNotFound)
}

// Positions returns copies of matching open positions.
func (m *MockExecutor) Positions(label, symbol string, sides ...types.Side) []types.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []types.Position
	for _, p := range m.positions {
		if p.Label != label || p.Symbol != symbol {
			continue
		}
		if len(sides) > 0 && !containsSide(sides, p.Side) {
			continue
		}
		cp := p
		if p.StopLoss != nil {
			cp.StopLoss = types.Float(*p.StopLoss)
		}
		out = append(out, cp)
	}
	return out
}

// AddPosition seeds an already-open position.
func (m *MockExecutor) AddPosition(p types.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions = append(m.positions, p)
}

// RemovePosition drops a position as if the broker had closed it.
func (m *MockExecutor) RemovePosition(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.positions {
		if p.ID == id {
			m.positions = append(m.positions[:i], m.positions[i+1:]...)
			return
		}
	}
}

// Orders returns a copy of all submitted orders (useful for assertions).
func (m *MockExecutor) Orders() []types.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Order, len(m.orders))
	copy(out, m.orders)
	return out
}

// Modifications returns a copy of all ModifyPosition calls.
func (m *MockExecutor) Modifications() []Modification {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Modification, len(m.mods))
	copy(out, m.mods)
	return out
}

func containsSide(sides []types.Side, s types.Side) bool {
	for _, v := range sides {
		if v == s {
			return true
		}
	}
	return false
}
