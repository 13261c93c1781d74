package engine

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/whalewatch/engine/internal/domain"
)

// NormalizeWallet canonicalizes a wallet address so that the same wallet
// reported with different hex casing by different snapshots merges into one
// entry. Valid hex addresses are lowercased through go-ethereum's parser;
// anything else is lowercased as-is (some sources report ENS-style handles).
func NormalizeWallet(addr string) string {
	addr = strings.TrimSpace(addr)
	if common.IsHexAddress(addr) {
		return strings.ToLower(common.HexToAddress(addr).Hex())
	}
	return strings.ToLower(addr)
}

// WalletRanks is the merged best-rank view across every leaderboard snapshot
// supplied to a pass, keyed by normalized wallet address.
type WalletRanks map[string]domain.RankedWallet

// BestRank returns the rank for the wallet, or false when the wallet is not
// ranked.
func (w WalletRanks) BestRank(wallet string) (int, bool) {
	rw, ok := w[NormalizeWallet(wallet)]
	if !ok {
		return 0, false
	}
	return rw.Rank, true
}

// MergeBestRanks folds all snapshots into one rank-per-wallet map, keeping
// the minimum (best) rank seen for each wallet. Display metadata comes from
// the entry that supplied the winning rank. Entries with a rank below 1 or an
// empty wallet are skipped. The merge is deterministic regardless of snapshot
// order because only a strictly better rank replaces an existing entry.
func MergeBestRanks(snapshots []domain.LeaderboardSnapshot) WalletRanks {
	ranks := make(WalletRanks)
	for _, snap := range snapshots {
		for _, e := range snap.Entries {
			if e.Wallet == "" || e.Rank < 1 {
				continue
			}
			key := NormalizeWallet(e.Wallet)
			cur, ok := ranks[key]
			if ok && cur.Rank <= e.Rank {
				continue
			}
			ranks[key] = domain.RankedWallet{
				Wallet:      key,
				Rank:        e.Rank,
				AccountName: e.AccountName,
				TotalPnL:    e.TotalPnL,
			}
		}
	}
	return ranks
}
