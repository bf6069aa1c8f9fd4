package strategy

import (
	"time"

	"github.com/evdnx/qsignals/types"
)

// State is the mutable per-run memory of the engine. Edge flags remember
// whether a direction's signal was already true on the previous bar; a
// zero LastTradeTime means no trade has been submitted yet.
type State struct {
	BullishActive bool
	BearishActive bool
	LastTradeTime time.Time
}

func (s *State) edge(side types.Side) *bool {
	if side == types.Buy {
		return &s.BullishActive
	}
	return &s.BearishActive
}

// CooldownRemaining is how long until a new trade may be submitted at now.
func (s *State) CooldownRemaining(now time.Time, cooldown time.Duration) time.Duration {
	if cooldown <= 0 || s.LastTradeTime.IsZero() {
		return 0
	}
	if left := cooldown - now.Sub(s.LastTradeTime); left > 0 {
		return left
	}
	return 0
}
