package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver writes long-term copies of pass output and pruned trades to blob
// storage. Archival never deletes from the primary store; pruning is a
// separate, explicit step.
type Archiver interface {
	ArchiveBatch(ctx context.Context, batch SignalBatch) (string, error)
	ArchiveTrades(ctx context.Context, trades []Trade, cutoff time.Time) (int64, error)
}
