// Package store persists the little state the engine needs across restarts:
// the time of the last submitted trade, which drives the cooldown.
package store

import (
	"context"
	"time"
)

// CooldownStore remembers the last trade time per strategy label and symbol.
// A zero time means no trade has been recorded.
type CooldownStore interface {
	LastTradeTime(ctx context.Context, label, symbol string) (time.Time, error)
	SaveTradeTime(ctx context.Context, label, symbol string, t time.Time) error
	Close() error
}
