package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/whalewatch/engine/internal/domain"
)

func testEngine(t *testing.T, mutate func(*Config)) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	eng, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return eng
}

func rankedSnapshot(entries ...domain.LeaderboardEntry) []domain.LeaderboardSnapshot {
	return []domain.LeaderboardSnapshot{
		{Period: domain.PeriodAll, FetchedAt: passTime, Entries: entries},
	}
}

func TestNew_RejectsBrokenWeights(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights.VolumeZScore = 0.9

	_, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.ErrorIs(t, err, domain.ErrBadWeights)
}

func TestRun_EmptyInputYieldsEmptyBatch(t *testing.T) {
	eng := testEngine(t, nil)

	batch, err := eng.Run(context.Background(), nil, nil, passTime)
	require.NoError(t, err)
	require.Empty(t, batch.Signals)
	require.Zero(t, batch.TradeCount)
	require.NotEmpty(t, batch.PassID)
}

func TestRun_ExpiredOutcomeExcludedFromOutputAndBaseline(t *testing.T) {
	eng := testEngine(t, func(c *Config) { c.GraceWindow = 5 * time.Minute })

	snaps := rankedSnapshot(
		domain.LeaderboardEntry{Wallet: "w1", Rank: 1},
		domain.LeaderboardEntry{Wallet: "w2", Rank: 2},
	)

	resolvedAt := passTime.Add(-10 * time.Minute)
	expired := makeTrade(1, passTime.Add(-time.Hour), "cond-expired", "Yes", domain.TradeSideBuy, 1_000_000, 0.7, "w1")
	expired.ResolutionTime = &resolvedAt

	liveA := makeTrade(2, passTime.Add(-time.Hour), "cond-a", "Yes", domain.TradeSideBuy, 500, 0.5, "w1")
	liveB := makeTrade(3, passTime.Add(-time.Hour), "cond-b", "Yes", domain.TradeSideBuy, 500, 0.5, "w2")

	batch, err := eng.Run(context.Background(), []domain.Trade{expired, liveA, liveB}, snaps, passTime)
	require.NoError(t, err)

	require.Len(t, batch.Signals, 2)
	for _, s := range batch.Signals {
		require.NotEqual(t, "cond-expired", s.ConditionID)
		// Were the $1M expired outcome part of the baseline, both live
		// outcomes would sit far below the mean and carry negative raw
		// z-scores; with it excluded the two identical volumes normalize to
		// a zero z-score factor.
		require.Zero(t, s.Factors.VolumeZScore)
	}
}

func TestRun_OutcomeWithoutRankedWalletsNeverAppears(t *testing.T) {
	eng := testEngine(t, nil)

	snaps := rankedSnapshot(domain.LeaderboardEntry{Wallet: "w1", Rank: 1})

	withWhale := makeTrade(1, passTime.Add(-time.Hour), "cond-a", "Yes", domain.TradeSideBuy, 100, 0.5, "w1")
	// Huge raw volume, but no ranked participation.
	retailOnly := makeTrade(2, passTime.Add(-time.Hour), "cond-b", "Yes", domain.TradeSideBuy, 5_000_000, 0.5, "retail")

	batch, err := eng.Run(context.Background(), []domain.Trade{withWhale, retailOnly}, snaps, passTime)
	require.NoError(t, err)

	require.Len(t, batch.Signals, 1)
	require.Equal(t, "cond-a", batch.Signals[0].ConditionID)
}

func TestRun_OrderedBestPercentileFirst(t *testing.T) {
	eng := testEngine(t, nil)

	snaps := rankedSnapshot(
		domain.LeaderboardEntry{Wallet: "w1", Rank: 1},
		domain.LeaderboardEntry{Wallet: "w2", Rank: 200},
	)

	trades := []domain.Trade{
		makeTrade(1, passTime.Add(-30*time.Minute), "cond-strong", "Yes", domain.TradeSideBuy, 90_000, 0.6, "w1"),
		makeTrade(2, passTime.Add(-20*time.Hour), "cond-weak", "No", domain.TradeSideSell, 1_000, 0.3, "w2"),
		makeTrade(3, passTime.Add(-20*time.Hour), "cond-weak", "No", domain.TradeSideBuy, 1_000, 0.4, "w2"),
	}

	batch, err := eng.Run(context.Background(), trades, snaps, passTime)
	require.NoError(t, err)
	require.Len(t, batch.Signals, 2)

	require.Equal(t, "cond-strong", batch.Signals[0].ConditionID)
	require.Equal(t, 100.0, batch.Signals[0].Percentile)
	require.Equal(t, 0.0, batch.Signals[1].Percentile)
	require.Equal(t, domain.StanceBullish, batch.Signals[0].Stance)
}

func TestRun_SinglePercentileIsHundred(t *testing.T) {
	eng := testEngine(t, nil)
	snaps := rankedSnapshot(domain.LeaderboardEntry{Wallet: "w1", Rank: 1})

	batch, err := eng.Run(context.Background(), []domain.Trade{
		makeTrade(1, passTime.Add(-time.Hour), "cond-a", "Yes", domain.TradeSideBuy, 100, 0.5, "w1"),
	}, snaps, passTime)
	require.NoError(t, err)
	require.Len(t, batch.Signals, 1)
	require.Equal(t, 100.0, batch.Signals[0].Percentile)
}

func TestRun_DeterministicAcrossInputOrder(t *testing.T) {
	eng := testEngine(t, nil)

	snaps := rankedSnapshot(
		domain.LeaderboardEntry{Wallet: "w1", Rank: 3},
		domain.LeaderboardEntry{Wallet: "w2", Rank: 7},
	)

	trades := []domain.Trade{
		makeTrade(1, passTime.Add(-time.Hour), "cond-a", "Yes", domain.TradeSideBuy, 400, 0.55, "w1"),
		makeTrade(2, passTime.Add(-2*time.Hour), "cond-a", "Yes", domain.TradeSideSell, 150, 0.52, "w2"),
		makeTrade(3, passTime.Add(-3*time.Hour), "cond-b", "No", domain.TradeSideBuy, 800, 0.31, "w2"),
		makeTrade(4, passTime.Add(-30*time.Minute), "cond-c", "Yes", domain.TradeSideSell, 60, 0.8, "w1"),
	}
	reversed := []domain.Trade{trades[3], trades[2], trades[1], trades[0]}

	a, err := eng.Run(context.Background(), trades, snaps, passTime)
	require.NoError(t, err)
	b, err := eng.Run(context.Background(), reversed, snaps, passTime)
	require.NoError(t, err)

	// PassID is random per pass; everything else must match exactly.
	a.PassID, b.PassID = "", ""
	require.Equal(t, a, b)
}

func TestRun_TiedFactorSumsGetStablePercentiles(t *testing.T) {
	eng := testEngine(t, nil)

	snaps := rankedSnapshot(domain.LeaderboardEntry{Wallet: "w1", Rank: 1})

	// Two outcomes with identical activity tie on every factor; the
	// positional percentile assignment must not drift between runs.
	trades := []domain.Trade{
		makeTrade(1, passTime.Add(-time.Hour), "cond-a", "Yes", domain.TradeSideBuy, 500, 0.5, "w1"),
		makeTrade(2, passTime.Add(-time.Hour), "cond-b", "Yes", domain.TradeSideBuy, 500, 0.5, "w1"),
	}

	first, err := eng.Run(context.Background(), trades, snaps, passTime)
	require.NoError(t, err)
	require.Len(t, first.Signals, 2)

	byCondition := func(b domain.SignalBatch) map[string]float64 {
		out := make(map[string]float64, len(b.Signals))
		for _, s := range b.Signals {
			out[s.ConditionID] = s.Percentile
		}
		return out
	}
	want := byCondition(first)

	for i := 0; i < 50; i++ {
		batch, err := eng.Run(context.Background(), trades, snaps, passTime)
		require.NoError(t, err)
		require.Equal(t, want, byCondition(batch))
	}
}

func TestRun_CancelledContext(t *testing.T) {
	eng := testEngine(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := eng.Run(ctx, nil, nil, passTime)
	require.ErrorIs(t, err, context.Canceled)
}
