package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/whalewatch/engine/internal/domain"
)

// latestBatchKey holds the most recent computed batch as a JSON blob.
const latestBatchKey = "signals:latest"

// SignalCache implements domain.SignalCache using a single Redis key holding
// the latest batch JSON. The TTL guards against serving a stale batch when
// the recompute loop has been down for longer than the configured window.
type SignalCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSignalCache creates a SignalCache backed by the given Client. A zero ttl
// stores batches without expiry.
func NewSignalCache(c *Client, ttl time.Duration) *SignalCache {
	return &SignalCache{rdb: c.rdb, ttl: ttl}
}

// SetLatest stores the batch as the current pass result.
func (sc *SignalCache) SetLatest(ctx context.Context, batch domain.SignalBatch) error {
	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("redis: marshal signal batch: %w", err)
	}
	if err := sc.rdb.Set(ctx, latestBatchKey, payload, sc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set latest batch: %w", err)
	}
	return nil
}

// GetLatest returns the most recently stored batch. It returns
// domain.ErrNoBatch when no batch has been cached yet (or the TTL elapsed).
func (sc *SignalCache) GetLatest(ctx context.Context) (domain.SignalBatch, error) {
	payload, err := sc.rdb.Get(ctx, latestBatchKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SignalBatch{}, domain.ErrNoBatch
	}
	if err != nil {
		return domain.SignalBatch{}, fmt.Errorf("redis: get latest batch: %w", err)
	}

	var batch domain.SignalBatch
	if err := json.Unmarshal(payload, &batch); err != nil {
		return domain.SignalBatch{}, fmt.Errorf("redis: unmarshal latest batch: %w", err)
	}
	return batch, nil
}

// Compile-time interface check.
var _ domain.SignalCache = (*SignalCache)(nil)
