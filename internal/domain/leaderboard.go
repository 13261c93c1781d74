package domain

import "time"

// LeaderboardPeriod identifies the window of a leaderboard snapshot.
type LeaderboardPeriod string

const (
	PeriodDay   LeaderboardPeriod = "day"
	PeriodWeek  LeaderboardPeriod = "week"
	PeriodMonth LeaderboardPeriod = "month"
	PeriodAll   LeaderboardPeriod = "all"
)

// AllPeriods lists every leaderboard period that is fetched per pass, in
// deterministic order.
var AllPeriods = []LeaderboardPeriod{PeriodDay, PeriodWeek, PeriodMonth, PeriodAll}

// LeaderboardEntry is one wallet's position in a single leaderboard snapshot.
type LeaderboardEntry struct {
	Wallet      string
	Rank        int // 1 is best
	AccountName string
	TotalPnL    float64
}

// LeaderboardSnapshot is one externally-sourced leaderboard for a period.
// The same wallet may appear in multiple snapshots with different ranks; the
// aggregator keeps the best (lowest) rank seen across all snapshots.
type LeaderboardSnapshot struct {
	Period    LeaderboardPeriod
	FetchedAt time.Time
	Entries   []LeaderboardEntry
}

// RankedWallet is the merged view of a wallet across all snapshots of a pass:
// the best rank seen, plus display metadata from its first occurrence.
type RankedWallet struct {
	Wallet      string
	Rank        int
	AccountName string
	TotalPnL    float64
}
