package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// TradeStore persists the rolling trade window.
type TradeStore interface {
	InsertBatch(ctx context.Context, trades []Trade) error
	ListWindow(ctx context.Context, since time.Time) ([]Trade, error)
	ListBefore(ctx context.Context, before time.Time) ([]Trade, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
	GetLastTimestamp(ctx context.Context) (time.Time, error)
}

// LeaderboardStore persists leaderboard snapshots per period.
type LeaderboardStore interface {
	UpsertSnapshot(ctx context.Context, snap LeaderboardSnapshot) error
	GetLatest(ctx context.Context, period LeaderboardPeriod) (LeaderboardSnapshot, error)
}

// SignalStore persists computed signal batches for history queries.
type SignalStore interface {
	InsertBatch(ctx context.Context, batch SignalBatch) error
	ListRecent(ctx context.Context, opts ListOpts) ([]SignalResult, error)
}
