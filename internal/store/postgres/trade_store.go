package postgres

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/blake2b"

	"github.com/whalewatch/engine/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id, ts, condition_id, event_title, outcome, question,
	side, price, usd_value, wallet, close_time, resolution_time`

// dedupHash derives a stable content hash for a trade. The data API exposes
// no durable trade ID across pages, so identity is the hash of the fields
// that distinguish one fill from another.
func dedupHash(t domain.Trade) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(strconv.FormatInt(t.Timestamp.UnixNano(), 10)))
	h.Write([]byte{0})
	h.Write([]byte(t.MarketKey()))
	h.Write([]byte{0})
	h.Write([]byte(t.OutcomeLabel()))
	h.Write([]byte{0})
	h.Write([]byte(t.Wallet))
	h.Write([]byte{0})
	h.Write([]byte(string(t.Side)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatFloat(t.Price, 'g', -1, 64)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatFloat(t.USDValue, 'g', -1, 64)))
	return hex.EncodeToString(h.Sum(nil))
}

func scanTradeRows(rows pgx.Rows) ([]domain.Trade, error) {
	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		if err := rows.Scan(
			&t.ID, &t.Timestamp, &t.ConditionID, &t.EventTitle,
			&t.Outcome, &t.Question, &t.Side, &t.Price,
			&t.USDValue, &t.Wallet, &t.CloseTime, &t.ResolutionTime,
		); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// InsertBatch inserts multiple trades efficiently using pgx Batch.
// Duplicates (same content hash) are silently skipped via ON CONFLICT DO
// NOTHING, so overlapping fetch pages are safe to replay.
func (s *TradeStore) InsertBatch(ctx context.Context, trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO trades (
			dedup_hash, ts, condition_id, event_title,
			outcome, question, side, price,
			usd_value, wallet, close_time, resolution_time
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12
		) ON CONFLICT (dedup_hash) DO NOTHING`

	for _, t := range trades {
		batch.Queue(query,
			dedupHash(t), t.Timestamp, t.ConditionID, t.EventTitle,
			t.Outcome, t.Question, string(t.Side), t.Price,
			t.USDValue, t.Wallet, t.CloseTime, t.ResolutionTime,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range trades {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert trade batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListWindow returns all trades at or after the given time, oldest first.
func (s *TradeStore) ListWindow(ctx context.Context, since time.Time) ([]domain.Trade, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades WHERE ts >= $1 ORDER BY ts ASC`
	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trade window: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trade window: %w", err)
	}
	return trades, nil
}

// ListBefore returns all trades strictly older than the given time, oldest
// first, for archiving ahead of a prune.
func (s *TradeStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Trade, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades WHERE ts < $1 ORDER BY ts ASC`
	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades before: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades before: %w", err)
	}
	return trades, nil
}

// DeleteBefore deletes all trades older than the given time. Returns the number deleted.
func (s *TradeStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM trades WHERE ts < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete trades before: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetLastTimestamp returns the most recent trade timestamp, or the zero time
// if no trades exist.
func (s *TradeStore) GetLastTimestamp(ctx context.Context) (time.Time, error) {
	var ts *time.Time
	err := s.pool.QueryRow(ctx,
		"SELECT MAX(ts) FROM trades").Scan(&ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("postgres: get last trade timestamp: %w", err)
	}
	if ts == nil {
		return time.Time{}, nil
	}
	return *ts, nil
}
