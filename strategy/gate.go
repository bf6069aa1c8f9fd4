package strategy

import (
	"errors"
	"fmt"
	"time"

	"github.com/evdnx/qsignals/types"
)

var (
	ErrDirectionNotAllowed = errors.New("direction not allowed")
	ErrSpreadTooWide       = errors.New("spread too wide")
	ErrCooldownActive      = errors.New("cooldown active")
	ErrVolumeTooSmall      = errors.New("volume below broker minimum")
)

// TradeGate decides whether an order may be sent right now. Checks run in
// order: direction, spread, cooldown.
type TradeGate struct {
	Direction     types.DirectionPolicy
	MaxSpreadPips float64
	Cooldown      time.Duration
}

// Admit returns nil when an order on side may go out, or a wrapped sentinel
// describing the first failed check.
func (g TradeGate) Admit(side types.Side, q types.Quote, lastTrade, now time.Time) error {
	if !g.Direction.Allows(side) {
		return fmt.Errorf("%w: %s under %s", ErrDirectionNotAllowed, side, g.Direction)
	}
	if spread := q.SpreadPips(); spread > g.MaxSpreadPips {
		return fmt.Errorf("%w: %.1f pips > %.1f", ErrSpreadTooWide, spread, g.MaxSpreadPips)
	}
	if g.Cooldown > 0 && !lastTrade.IsZero() {
		if elapsed := now.Sub(lastTrade); elapsed < g.Cooldown {
			return fmt.Errorf("%w: %.1f minutes remaining", ErrCooldownActive, (g.Cooldown - elapsed).Minutes())
		}
	}
	return nil
}

// rejectionReason maps a gate error onto a metric label.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrDirectionNotAllowed):
		return "direction"
	case errors.Is(err, ErrSpreadTooWide):
		return "spread"
	case errors.Is(err, ErrCooldownActive):
		return "cooldown"
	case errors.Is(err, ErrVolumeTooSmall):
		return "volume"
	}
	return "other"
}
