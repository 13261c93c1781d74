package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/whalewatch/engine/internal/domain"
)

// ArchiveImpl implements domain.Archiver by serializing pass output and
// pruned trades and uploading them to blob storage.
//
// Deletion of archived trades from the primary store is intentionally NOT
// performed here; pruning happens after the archive upload succeeds.
type ArchiveImpl struct {
	writer domain.BlobWriter
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(writer domain.BlobWriter) *ArchiveImpl {
	return &ArchiveImpl{writer: writer}
}

// ArchiveBatch uploads a full computation pass as a single JSON document at
// archive/signals/YYYY/MM/DD/<passID>.json and returns the object path.
func (a *ArchiveImpl) ArchiveBatch(ctx context.Context, batch domain.SignalBatch) (string, error) {
	buf, err := json.Marshal(batch)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive batch marshal: %w", err)
	}

	path := fmt.Sprintf("archive/signals/%s/%s.json",
		batch.ComputedAt.UTC().Format("2006/01/02"), batch.PassID)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/json"); err != nil {
		return "", fmt.Errorf("s3blob: archive batch upload: %w", err)
	}
	return path, nil
}

// ArchiveTrades serializes trades that are about to be pruned from the
// rolling window to JSONL and uploads the file at
// archive/trades/<cutoff>.jsonl. It returns the number of archived records.
func (a *ArchiveImpl) ArchiveTrades(ctx context.Context, trades []domain.Trade, cutoff time.Time) (int64, error) {
	if len(trades) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(trades)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades marshal: %w", err)
	}

	path := fmt.Sprintf("archive/trades/%s.jsonl", cutoff.UTC().Format("2006-01-02T150405Z"))
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive trades upload: %w", err)
	}
	return int64(len(trades)), nil
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
