package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/whalewatch/engine/internal/domain"
	"github.com/whalewatch/engine/internal/engine"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubTradeLoader struct {
	trades []domain.Trade
	err    error
	since  time.Time
}

func (s *stubTradeLoader) GetTradesSince(_ context.Context, since time.Time, _ int) ([]domain.Trade, error) {
	s.since = since
	return s.trades, s.err
}

type stubBoardLoader struct {
	snapshots []domain.LeaderboardSnapshot
	err       error
}

func (s *stubBoardLoader) GetAllSnapshots(context.Context) ([]domain.LeaderboardSnapshot, error) {
	return s.snapshots, s.err
}

type memTradeStore struct {
	mu     sync.Mutex
	trades []domain.Trade
}

func (m *memTradeStore) InsertBatch(_ context.Context, trades []domain.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, trades...)
	return nil
}

func (m *memTradeStore) ListWindow(_ context.Context, since time.Time) ([]domain.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Trade
	for _, t := range m.trades {
		if !t.Timestamp.Before(since) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTradeStore) ListBefore(_ context.Context, before time.Time) ([]domain.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Trade
	for _, t := range m.trades {
		if t.Timestamp.Before(before) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTradeStore) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []domain.Trade
	var deleted int64
	for _, t := range m.trades {
		if t.Timestamp.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, t)
	}
	m.trades = kept
	return deleted, nil
}

func (m *memTradeStore) GetLastTimestamp(context.Context) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var last time.Time
	for _, t := range m.trades {
		if t.Timestamp.After(last) {
			last = t.Timestamp
		}
	}
	return last, nil
}

type memBoardStore struct {
	mu    sync.Mutex
	snaps map[domain.LeaderboardPeriod]domain.LeaderboardSnapshot
}

func (m *memBoardStore) UpsertSnapshot(_ context.Context, snap domain.LeaderboardSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snaps == nil {
		m.snaps = make(map[domain.LeaderboardPeriod]domain.LeaderboardSnapshot)
	}
	m.snaps[snap.Period] = snap
	return nil
}

func (m *memBoardStore) GetLatest(_ context.Context, period domain.LeaderboardPeriod) (domain.LeaderboardSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[period]
	if !ok {
		return domain.LeaderboardSnapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

type memSignalStore struct {
	mu      sync.Mutex
	batches []domain.SignalBatch
}

func (m *memSignalStore) InsertBatch(_ context.Context, batch domain.SignalBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, batch)
	return nil
}

func (m *memSignalStore) ListRecent(_ context.Context, opts domain.ListOpts) ([]domain.SignalResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SignalResult
	for i := len(m.batches) - 1; i >= 0; i-- {
		out = append(out, m.batches[i].Signals...)
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

type memCache struct {
	mu    sync.Mutex
	batch *domain.SignalBatch
}

func (m *memCache) SetLatest(_ context.Context, batch domain.SignalBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batch = &batch
	return nil
}

func (m *memCache) GetLatest(context.Context) (domain.SignalBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.batch == nil {
		return domain.SignalBatch{}, domain.ErrNoBatch
	}
	return *m.batch, nil
}

type memBus struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (m *memBus) Publish(_ context.Context, _ string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads = append(m.payloads, payload)
	return nil
}

func (m *memBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func newTestService(t *testing.T, trades *stubTradeLoader, boards *stubBoardLoader) (*SignalService, *memTradeStore, *memSignalStore, *memCache, *memBus) {
	t.Helper()

	eng, err := engine.New(engine.DefaultConfig(), discardLogger())
	require.NoError(t, err)

	tradeDB := &memTradeStore{}
	signalDB := &memSignalStore{}
	cache := &memCache{}
	bus := &memBus{}

	svc := NewSignalService(
		eng, trades, boards,
		tradeDB, &memBoardStore{}, signalDB,
		cache, bus, nil, nil,
		Config{MaxTrades: 1000, MinAlertPercentile: 95},
		discardLogger(),
	)
	return svc, tradeDB, signalDB, cache, bus
}

func TestRunPass_ComputesAndDistributes(t *testing.T) {
	now := time.Now().UTC()
	trades := &stubTradeLoader{trades: []domain.Trade{
		{Timestamp: now.Add(-time.Hour), ConditionID: "c1", Outcome: "Yes",
			Side: domain.TradeSideBuy, Price: 0.6, USDValue: 5000, Wallet: "0xaaa"},
		{Timestamp: now.Add(-30 * time.Minute), ConditionID: "c2", Outcome: "No",
			Side: domain.TradeSideSell, Price: 0.3, USDValue: 800, Wallet: "0xbbb"},
	}}
	boards := &stubBoardLoader{snapshots: []domain.LeaderboardSnapshot{
		{Period: domain.PeriodDay, FetchedAt: now, Entries: []domain.LeaderboardEntry{
			{Wallet: "0xaaa", Rank: 1},
			{Wallet: "0xbbb", Rank: 7},
		}},
	}}

	svc, tradeDB, signalDB, cache, bus := newTestService(t, trades, boards)

	batch, err := svc.RunPass(context.Background())
	require.NoError(t, err)
	require.Len(t, batch.Signals, 2)
	require.NotEmpty(t, batch.PassID)

	// Trades persisted into the window store.
	require.Len(t, tradeDB.trades, 2)

	// Batch stored, cached, and published.
	require.Len(t, signalDB.batches, 1)
	cached, err := cache.GetLatest(context.Background())
	require.NoError(t, err)
	require.Equal(t, batch.PassID, cached.PassID)
	require.Len(t, bus.payloads, 1)
}

func TestRunPass_LeaderboardFailureAbortsPass(t *testing.T) {
	boom := errors.New("upstream down")
	trades := &stubTradeLoader{}
	boards := &stubBoardLoader{err: boom}

	svc, _, signalDB, cache, _ := newTestService(t, trades, boards)

	_, err := svc.RunPass(context.Background())
	require.ErrorIs(t, err, boom)

	// Nothing was computed or distributed.
	require.Empty(t, signalDB.batches)
	_, err = cache.GetLatest(context.Background())
	require.ErrorIs(t, err, domain.ErrNoBatch)
}

func TestRunPass_TradeFetchFailureAbortsPass(t *testing.T) {
	trades := &stubTradeLoader{err: domain.ErrRateLimited}
	boards := &stubBoardLoader{}

	svc, _, signalDB, _, _ := newTestService(t, trades, boards)

	_, err := svc.RunPass(context.Background())
	require.ErrorIs(t, err, domain.ErrRateLimited)
	require.Empty(t, signalDB.batches)
}

func TestRunPass_ResumesFromLastStoredTrade(t *testing.T) {
	now := time.Now().UTC()
	last := now.Add(-10 * time.Minute)

	trades := &stubTradeLoader{}
	boards := &stubBoardLoader{}
	svc, tradeDB, _, _, _ := newTestService(t, trades, boards)

	require.NoError(t, tradeDB.InsertBatch(context.Background(), []domain.Trade{
		{Timestamp: last, ConditionID: "c1", Outcome: "Yes",
			Side: domain.TradeSideBuy, Price: 0.5, USDValue: 100, Wallet: "0xaaa"},
	}))

	_, err := svc.RunPass(context.Background())
	require.NoError(t, err)
	require.True(t, trades.since.Equal(last), "fetch should resume from the last stored trade")
}

func TestRunPass_PrunesTradesOutsideWindow(t *testing.T) {
	now := time.Now().UTC()
	trades := &stubTradeLoader{trades: []domain.Trade{
		{Timestamp: now.Add(-time.Hour), ConditionID: "c1", Outcome: "Yes",
			Side: domain.TradeSideBuy, Price: 0.5, USDValue: 100, Wallet: "0xaaa"},
	}}
	boards := &stubBoardLoader{}
	svc, tradeDB, _, _, _ := newTestService(t, trades, boards)

	// Seed a trade well outside the 24h window.
	require.NoError(t, tradeDB.InsertBatch(context.Background(), []domain.Trade{
		{Timestamp: now.Add(-48 * time.Hour), ConditionID: "old", Outcome: "Yes",
			Side: domain.TradeSideBuy, Price: 0.5, USDValue: 100, Wallet: "0xold"},
	}))

	_, err := svc.RunPass(context.Background())
	require.NoError(t, err)

	for _, tr := range tradeDB.trades {
		require.NotEqual(t, "old", tr.ConditionID, "stale trade should have been pruned")
	}
}

func TestGetLatest_NoBatchYet(t *testing.T) {
	svc, _, _, _, _ := newTestService(t, &stubTradeLoader{}, &stubBoardLoader{})

	_, err := svc.GetLatest(context.Background())
	require.ErrorIs(t, err, domain.ErrNoBatch)
}

func TestHistory_ReturnsStoredResults(t *testing.T) {
	now := time.Now().UTC()
	trades := &stubTradeLoader{trades: []domain.Trade{
		{Timestamp: now.Add(-time.Hour), ConditionID: "c1", Outcome: "Yes",
			Side: domain.TradeSideBuy, Price: 0.6, USDValue: 5000, Wallet: "0xaaa"},
	}}
	boards := &stubBoardLoader{snapshots: []domain.LeaderboardSnapshot{
		{Period: domain.PeriodDay, FetchedAt: now, Entries: []domain.LeaderboardEntry{
			{Wallet: "0xaaa", Rank: 1},
		}},
	}}
	svc, _, _, _, _ := newTestService(t, trades, boards)

	_, err := svc.RunPass(context.Background())
	require.NoError(t, err)

	results, err := svc.History(context.Background(), domain.ListOpts{Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "c1", results[0].ConditionID)
}
