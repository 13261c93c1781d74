package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/whalewatch/engine/internal/domain"
)

var passTime = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func makeTrade(id int64, ts time.Time, condition, outcome string, side domain.TradeSide, value, price float64, wallet string) domain.Trade {
	return domain.Trade{
		ID:          id,
		Timestamp:   ts,
		ConditionID: condition,
		Outcome:     outcome,
		Side:        side,
		USDValue:    value,
		Price:       price,
		Wallet:      wallet,
	}
}

func snapshotOf(period domain.LeaderboardPeriod, entries ...domain.LeaderboardEntry) domain.LeaderboardSnapshot {
	return domain.LeaderboardSnapshot{Period: period, FetchedAt: passTime, Entries: entries}
}

func TestMergeBestRanks_MinimumRankWinsAcrossSnapshots(t *testing.T) {
	ranks := MergeBestRanks([]domain.LeaderboardSnapshot{
		snapshotOf(domain.PeriodDay,
			domain.LeaderboardEntry{Wallet: "0xAAA1", Rank: 12, AccountName: "daily-name"},
			domain.LeaderboardEntry{Wallet: "0xBBB2", Rank: 3},
		),
		snapshotOf(domain.PeriodMonth,
			domain.LeaderboardEntry{Wallet: "0xaaa1", Rank: 4, AccountName: "monthly-name", TotalPnL: 9000},
			domain.LeaderboardEntry{Wallet: "0xBBB2", Rank: 40},
		),
	})

	require.Len(t, ranks, 2)

	rank, ok := ranks.BestRank("0xAAA1")
	require.True(t, ok)
	require.Equal(t, 4, rank)
	// Metadata comes from the snapshot that supplied the winning rank.
	require.Equal(t, "monthly-name", ranks[NormalizeWallet("0xaaa1")].AccountName)

	rank, ok = ranks.BestRank("0xbbb2")
	require.True(t, ok)
	require.Equal(t, 3, rank)
}

func TestMergeBestRanks_EmptyWhenAllEntriesInvalid(t *testing.T) {
	ranks := MergeBestRanks([]domain.LeaderboardSnapshot{
		snapshotOf(domain.PeriodDay,
			domain.LeaderboardEntry{Wallet: "", Rank: 1},
			domain.LeaderboardEntry{Wallet: "0xCCC", Rank: 0},
		),
	})
	require.Empty(t, ranks)
}

func TestNormalizeWallet_HexAddressesMergeAcrossCasing(t *testing.T) {
	a := NormalizeWallet("0x52908400098527886E0F7030069857D2E4169EE7")
	b := NormalizeWallet("0x52908400098527886e0f7030069857d2e4169ee7")
	require.Equal(t, a, b)
}

func TestAggregator_Conservation(t *testing.T) {
	trades := []domain.Trade{
		makeTrade(1, passTime.Add(-time.Hour), "cond-1", "Yes", domain.TradeSideBuy, 100, 0.6, "w1"),
		makeTrade(2, passTime.Add(-time.Hour), "cond-1", "Yes", domain.TradeSideSell, 40, 0.61, "w2"),
		makeTrade(3, passTime.Add(-time.Hour), "cond-1", "Yes", "", 25, 0.62, "w3"), // unrecognized side
	}

	agg := NewAggregator(nil, DefaultConfig(), passTime)
	for _, tr := range trades {
		agg.Fold(tr)
	}
	res := agg.Finalize()

	a := res["cond-1::Yes"]
	require.Equal(t, 165.0, a.TotalVolume)
	require.Equal(t, 3, a.TradeCount)
	// Unrecognized side is excluded from the side tally but stays in total.
	require.Equal(t, 140.0, a.BuyVolume+a.SellVolume)
	require.LessOrEqual(t, a.BuyVolume+a.SellVolume, a.TotalVolume)
}

func TestAggregator_ConservationEqualityWhenAllSidesKnown(t *testing.T) {
	agg := NewAggregator(nil, DefaultConfig(), passTime)
	agg.Fold(makeTrade(1, passTime.Add(-time.Hour), "c", "Yes", domain.TradeSideBuy, 70, 0.5, "w1"))
	agg.Fold(makeTrade(2, passTime.Add(-time.Hour), "c", "Yes", domain.TradeSideSell, 30, 0.5, "w2"))
	a := agg.Finalize()["c::Yes"]
	require.Equal(t, a.TotalVolume, a.BuyVolume+a.SellVolume)
	require.InDelta(t, 0.7, a.BuySellSkew, 1e-9)
	require.Equal(t, domain.StanceBullish, a.Stance)
}

func TestAggregator_OrderIndependence(t *testing.T) {
	ranks := MergeBestRanks([]domain.LeaderboardSnapshot{
		snapshotOf(domain.PeriodAll,
			domain.LeaderboardEntry{Wallet: "w-ranked-1", Rank: 1, AccountName: "alpha"},
			domain.LeaderboardEntry{Wallet: "w-ranked-9", Rank: 9, AccountName: "niner"},
		),
	})

	trades := []domain.Trade{
		makeTrade(1, passTime.Add(-3*time.Hour), "cond-1", "Yes", domain.TradeSideBuy, 500, 0.55, "w-ranked-1"),
		makeTrade(2, passTime.Add(-1*time.Hour), "cond-1", "Yes", domain.TradeSideSell, 200, 0.58, "w-ranked-9"),
		makeTrade(3, passTime.Add(-2*time.Hour), "cond-1", "Yes", domain.TradeSideBuy, 120, 0.57, "unranked"),
		makeTrade(4, passTime.Add(-30*time.Minute), "cond-2", "No", domain.TradeSideSell, 900, 0.2, "w-ranked-1"),
	}

	fold := func(order []int) map[string]OutcomeAggregate {
		agg := NewAggregator(ranks, DefaultConfig(), passTime)
		for _, i := range order {
			agg.Fold(trades[i])
		}
		return agg.Finalize()
	}

	forward := fold([]int{0, 1, 2, 3})
	shuffled := fold([]int{3, 1, 0, 2})

	require.Equal(t, forward, shuffled)
}

func TestAggregator_LatestPriceByTimestampNotFoldOrder(t *testing.T) {
	agg := NewAggregator(nil, DefaultConfig(), passTime)
	// Newest trade folded first; an older trade must not overwrite its price.
	agg.Fold(makeTrade(1, passTime.Add(-time.Minute), "c", "Yes", domain.TradeSideBuy, 10, 0.90, "w"))
	agg.Fold(makeTrade(2, passTime.Add(-2*time.Hour), "c", "Yes", domain.TradeSideBuy, 10, 0.40, "w"))

	a := agg.Finalize()["c::Yes"]
	require.Equal(t, 0.90, a.LatestPrice)
	require.Equal(t, passTime.Add(-time.Minute), a.LatestTradeAt)
}

func TestAggregator_UnknownBucket(t *testing.T) {
	agg := NewAggregator(nil, DefaultConfig(), passTime)
	tr := makeTrade(1, passTime, "", "", domain.TradeSideBuy, 10, 0.5, "w")
	agg.Fold(tr)

	res := agg.Finalize()
	require.Contains(t, res, "unknown::unknown")
}

func TestAggregator_EventTitleFallback(t *testing.T) {
	agg := NewAggregator(nil, DefaultConfig(), passTime)
	tr := makeTrade(1, passTime, "", "Yes", domain.TradeSideBuy, 10, 0.5, "w")
	tr.EventTitle = "Will it rain"
	agg.Fold(tr)

	require.Contains(t, agg.Finalize(), "Will it rain::Yes")
}

func TestAggregator_ZeroValueTradesAreValid(t *testing.T) {
	agg := NewAggregator(nil, DefaultConfig(), passTime)
	agg.Fold(makeTrade(1, passTime, "c", "Yes", domain.TradeSideBuy, 0, 0.5, "w"))
	a := agg.Finalize()["c::Yes"]
	require.Equal(t, 1, a.TradeCount)
	require.Zero(t, a.TotalVolume)
	require.Equal(t, 0.5, a.BuySellSkew) // both sides zero -> neutral default
}

func TestAggregator_RosterFirstOccurrenceWinsVolumeKeepsAccumulating(t *testing.T) {
	ranks := MergeBestRanks([]domain.LeaderboardSnapshot{
		snapshotOf(domain.PeriodAll, domain.LeaderboardEntry{Wallet: "w1", Rank: 5, AccountName: "whale"}),
	})

	agg := NewAggregator(ranks, DefaultConfig(), passTime)
	agg.Fold(makeTrade(1, passTime.Add(-time.Hour), "c", "Yes", domain.TradeSideBuy, 100, 0.5, "w1"))
	agg.Fold(makeTrade(2, passTime.Add(-time.Hour), "c", "Yes", domain.TradeSideBuy, 250, 0.5, "w1"))

	a := agg.Finalize()["c::Yes"]
	require.Len(t, a.TopWallets, 1)
	require.Equal(t, 350.0, a.WalletVolumes["w1"])
	require.Equal(t, 350.0, a.RankedVolume)
	require.NotNil(t, a.BestRank)
	require.Equal(t, 5, *a.BestRank)
	require.Equal(t, 1, a.TopWalletCount)
}

func TestAggregator_WalletVolumesOnlyContainRankedWallets(t *testing.T) {
	ranks := MergeBestRanks([]domain.LeaderboardSnapshot{
		snapshotOf(domain.PeriodAll, domain.LeaderboardEntry{Wallet: "w1", Rank: 5}),
	})

	agg := NewAggregator(ranks, DefaultConfig(), passTime)
	agg.Fold(makeTrade(1, passTime, "c", "Yes", domain.TradeSideBuy, 100, 0.5, "w1"))
	agg.Fold(makeTrade(2, passTime, "c", "Yes", domain.TradeSideBuy, 9000, 0.5, "nobody"))

	a := agg.Finalize()["c::Yes"]
	require.Len(t, a.WalletVolumes, 1)
	require.Contains(t, a.WalletVolumes, "w1")
	require.Equal(t, 9100.0, a.TotalVolume)
}

func TestAggregator_ResolvedIsSticky(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GraceWindow = 5 * time.Minute

	resolved := passTime.Add(-10 * time.Minute)

	agg := NewAggregator(nil, cfg, passTime)

	expiredTrade := makeTrade(1, passTime.Add(-time.Hour), "c", "Yes", domain.TradeSideBuy, 10, 0.5, "w")
	expiredTrade.ResolutionTime = &resolved
	agg.Fold(expiredTrade)

	// A later-folded trade without lifecycle timestamps must not clear it.
	agg.Fold(makeTrade(2, passTime.Add(-time.Minute), "c", "Yes", domain.TradeSideBuy, 10, 0.5, "w"))

	a := agg.Finalize()["c::Yes"]
	require.True(t, a.Resolved)
}

func TestAggregator_CloseTimeUsedWhenNoResolutionTime(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GraceWindow = 5 * time.Minute

	closed := passTime.Add(-20 * time.Minute)
	tr := makeTrade(1, passTime.Add(-time.Hour), "c", "Yes", domain.TradeSideBuy, 10, 0.5, "w")
	tr.CloseTime = &closed

	agg := NewAggregator(nil, cfg, passTime)
	agg.Fold(tr)
	require.True(t, agg.Finalize()["c::Yes"].Resolved)
}

func TestAggregator_WithinGraceWindowStaysActive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GraceWindow = 5 * time.Minute

	resolved := passTime.Add(-2 * time.Minute) // resolved, but inside grace
	tr := makeTrade(1, passTime.Add(-time.Hour), "c", "Yes", domain.TradeSideBuy, 10, 0.5, "w")
	tr.ResolutionTime = &resolved

	agg := NewAggregator(nil, cfg, passTime)
	agg.Fold(tr)
	require.False(t, agg.Finalize()["c::Yes"].Resolved)
}

func TestAggregator_DecayedVolumeWeighting(t *testing.T) {
	ranks := MergeBestRanks([]domain.LeaderboardSnapshot{
		snapshotOf(domain.PeriodAll, domain.LeaderboardEntry{Wallet: "w1", Rank: 1}),
	})

	cfg := DefaultConfig()
	cfg.DecayHalfLife = 6 * time.Hour

	agg := NewAggregator(ranks, cfg, passTime)
	agg.Fold(makeTrade(1, passTime, "c", "Yes", domain.TradeSideBuy, 1000, 0.5, "w1"))
	agg.Fold(makeTrade(2, passTime.Add(-6*time.Hour), "c", "Yes", domain.TradeSideBuy, 1000, 0.5, "w1"))

	a := agg.Finalize()["c::Yes"]
	// Fresh trade weighs 1.0; six-hour-old trade weighs e^-1.
	require.InDelta(t, 1000*(1+0.36787944117144233), a.DecayedRankedVolume, 1e-6)
	require.Equal(t, 2000.0, a.RankedVolume)
}

func TestAggregator_StanceBearishWhenSellsDominate(t *testing.T) {
	agg := NewAggregator(nil, DefaultConfig(), passTime)
	agg.Fold(makeTrade(1, passTime, "c", "Yes", domain.TradeSideSell, 100, 0.5, "w"))
	agg.Fold(makeTrade(2, passTime, "c", "Yes", domain.TradeSideBuy, 40, 0.5, "w"))
	require.Equal(t, domain.StanceBearish, agg.Finalize()["c::Yes"].Stance)
}
