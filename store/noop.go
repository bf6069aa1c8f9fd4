package store

import (
	"context"
	"time"
)

// NoopStore is used when no database path is configured.
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (n *NoopStore) LastTradeTime(_ context.Context, _, _ string) (time.Time, error) {
	return time.Time{}, nil
}
func (n *NoopStore) SaveTradeTime(_ context.Context, _, _ string, _ time.Time) error { return nil }
func (n *NoopStore) Close() error                                                  { return nil }
