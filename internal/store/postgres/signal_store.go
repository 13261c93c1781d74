package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/whalewatch/engine/internal/domain"
)

// SignalStore implements domain.SignalStore using PostgreSQL.
type SignalStore struct {
	pool *pgxpool.Pool
}

// NewSignalStore creates a new SignalStore backed by the given connection pool.
func NewSignalStore(pool *pgxpool.Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

// InsertBatch persists every result of a computation pass.
func (s *SignalStore) InsertBatch(ctx context.Context, batch domain.SignalBatch) error {
	if len(batch.Signals) == 0 {
		return nil
	}

	pgBatch := &pgx.Batch{}
	const query = `
		INSERT INTO signal_results (
			pass_id, computed_at, condition_id, event_title, outcome, question,
			total_volume, trade_count, buy_volume, sell_volume,
			ranked_volume, top_wallet_count, best_rank, stance,
			composite_score, legacy_confidence, percentile,
			is_unusual, is_concentrated, factors, top_wallets
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13, $14,
			$15, $16, $17,
			$18, $19, $20, $21
		)`

	for _, r := range batch.Signals {
		factors, err := json.Marshal(r.Factors)
		if err != nil {
			return fmt.Errorf("postgres: marshal signal factors: %w", err)
		}
		wallets, err := json.Marshal(r.TopWallets)
		if err != nil {
			return fmt.Errorf("postgres: marshal signal wallets: %w", err)
		}
		pgBatch.Queue(query,
			batch.PassID, batch.ComputedAt, r.ConditionID, r.EventTitle, r.Outcome, r.MarketQuestion,
			r.TotalVolume, r.TradeCount, r.BuyVolume, r.SellVolume,
			r.RankedVolume, r.TopWalletCount, r.BestRank, string(r.Stance),
			r.CompositeScore, r.LegacyConfidence, r.Percentile,
			r.IsUnusualActivity, r.IsConcentrated, factors, wallets,
		)
	}

	br := s.pool.SendBatch(ctx, pgBatch)
	defer br.Close()

	for i := range batch.Signals {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert signal batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListRecent returns stored signal results newest pass first, best percentile
// first within a pass.
func (s *SignalStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.SignalResult, error) {
	query := `
		SELECT condition_id, event_title, outcome, question,
			total_volume, trade_count, buy_volume, sell_volume,
			ranked_volume, top_wallet_count, best_rank, stance,
			composite_score, legacy_confidence, percentile,
			is_unusual, is_concentrated, factors, top_wallets
		FROM signal_results
		ORDER BY computed_at DESC, percentile DESC`
	args := []any{}
	argIdx := 1

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent signals: %w", err)
	}
	defer rows.Close()

	var results []domain.SignalResult
	for rows.Next() {
		var (
			r       domain.SignalResult
			stance  string
			factors []byte
			wallets []byte
		)
		if err := rows.Scan(
			&r.ConditionID, &r.EventTitle, &r.Outcome, &r.MarketQuestion,
			&r.TotalVolume, &r.TradeCount, &r.BuyVolume, &r.SellVolume,
			&r.RankedVolume, &r.TopWalletCount, &r.BestRank, &stance,
			&r.CompositeScore, &r.LegacyConfidence, &r.Percentile,
			&r.IsUnusualActivity, &r.IsConcentrated, &factors, &wallets,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan signal result: %w", err)
		}
		r.Stance = domain.Stance(stance)
		if err := json.Unmarshal(factors, &r.Factors); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal signal factors: %w", err)
		}
		if err := json.Unmarshal(wallets, &r.TopWallets); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal signal wallets: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate signal results: %w", err)
	}
	return results, nil
}
