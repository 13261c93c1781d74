package domain

import (
	"context"
	"time"
)

// SignalCache stores the most recent computed batch for fast reads.
type SignalCache interface {
	SetLatest(ctx context.Context, batch SignalBatch) error
	GetLatest(ctx context.Context) (SignalBatch, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SignalChannel is the pub/sub channel carrying freshly computed batches.
const SignalChannel = "ch:signals"

// SignalBus provides pub/sub fan-out of freshly computed batches.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
