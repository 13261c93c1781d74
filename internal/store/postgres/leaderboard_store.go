package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/whalewatch/engine/internal/domain"
)

// LeaderboardStore implements domain.LeaderboardStore using PostgreSQL.
// Only the latest snapshot per period is retained; each upsert replaces the
// period's previous entries wholesale.
type LeaderboardStore struct {
	pool *pgxpool.Pool
}

// NewLeaderboardStore creates a new LeaderboardStore backed by the given pool.
func NewLeaderboardStore(pool *pgxpool.Pool) *LeaderboardStore {
	return &LeaderboardStore{pool: pool}
}

// UpsertSnapshot replaces the stored snapshot for the snapshot's period.
func (s *LeaderboardStore) UpsertSnapshot(ctx context.Context, snap domain.LeaderboardSnapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin leaderboard upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM leaderboard_snapshots WHERE period = $1`, string(snap.Period)); err != nil {
		return fmt.Errorf("postgres: clear leaderboard period: %w", err)
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO leaderboard_snapshots (period, fetched_at, wallet, rank, account, total_pnl)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (period, wallet) DO UPDATE SET
			fetched_at = EXCLUDED.fetched_at,
			rank = EXCLUDED.rank,
			account = EXCLUDED.account,
			total_pnl = EXCLUDED.total_pnl`

	for _, e := range snap.Entries {
		batch.Queue(query,
			string(snap.Period), snap.FetchedAt, e.Wallet, e.Rank, e.AccountName, e.TotalPnL)
	}

	br := tx.SendBatch(ctx, batch)
	for i := range snap.Entries {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("postgres: insert leaderboard entry %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("postgres: close leaderboard batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit leaderboard upsert: %w", err)
	}
	return nil
}

// GetLatest returns the stored snapshot for a period. A period with no stored
// entries returns domain.ErrNotFound.
func (s *LeaderboardStore) GetLatest(ctx context.Context, period domain.LeaderboardPeriod) (domain.LeaderboardSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT fetched_at, wallet, rank, account, total_pnl
		 FROM leaderboard_snapshots WHERE period = $1 ORDER BY rank ASC`,
		string(period))
	if err != nil {
		return domain.LeaderboardSnapshot{}, fmt.Errorf("postgres: get leaderboard snapshot: %w", err)
	}
	defer rows.Close()

	snap := domain.LeaderboardSnapshot{Period: period}
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&snap.FetchedAt, &e.Wallet, &e.Rank, &e.AccountName, &e.TotalPnL); err != nil {
			return domain.LeaderboardSnapshot{}, fmt.Errorf("postgres: scan leaderboard entry: %w", err)
		}
		snap.Entries = append(snap.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return domain.LeaderboardSnapshot{}, fmt.Errorf("postgres: scan leaderboard snapshot: %w", err)
	}
	if len(snap.Entries) == 0 {
		return domain.LeaderboardSnapshot{}, domain.ErrNotFound
	}
	return snap, nil
}
