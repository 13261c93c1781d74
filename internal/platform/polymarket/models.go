package polymarket

import (
	"time"

	"github.com/whalewatch/engine/internal/domain"
)

// APITrade is the Data API wire shape of one trade.
type APITrade struct {
	ProxyWallet     string  `json:"proxyWallet"`
	Side            string  `json:"side"` // BUY, SELL
	ConditionID     string  `json:"conditionId"`
	Size            float64 `json:"size"`
	Price           float64 `json:"price"`
	Timestamp       int64   `json:"timestamp"` // unix seconds
	Outcome         string  `json:"outcome"`
	Title           string  `json:"title"`
	EventSlug       string  `json:"eventSlug"`
	TransactionHash string  `json:"transactionHash"`
	USDCSize        float64 `json:"usdcSize"`
	EndDate         string  `json:"endDate"`    // RFC3339, market close, may be empty
	ResolvedAt      string  `json:"resolvedAt"` // RFC3339, may be empty
}

// ToDomainTrade converts the wire trade to the domain model. Missing or
// malformed optional fields degrade to zero values rather than errors.
func (t APITrade) ToDomainTrade() domain.Trade {
	usd := t.USDCSize
	if usd == 0 {
		usd = t.Size * t.Price
	}

	return domain.Trade{
		Timestamp:      time.Unix(t.Timestamp, 0).UTC(),
		ConditionID:    t.ConditionID,
		EventTitle:     t.EventSlug,
		Outcome:        t.Outcome,
		Question:       t.Title,
		Side:           domain.TradeSide(t.Side),
		Price:          t.Price,
		USDValue:       usd,
		Wallet:         t.ProxyWallet,
		CloseTime:      parseOptionalTime(t.EndDate),
		ResolutionTime: parseOptionalTime(t.ResolvedAt),
	}
}

func parseOptionalTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &ts
}

// APILeaderboardEntry is the leaderboard API wire shape of one ranked wallet.
type APILeaderboardEntry struct {
	ProxyWallet string  `json:"proxyWallet"`
	Name        string  `json:"name"`
	Amount      float64 `json:"amount"` // PnL for the window
	Rank        int     `json:"rank"`
}

// ToDomainEntry converts the wire entry to the domain model. When the API
// omits the rank field, position is the 1-based index in the response and is
// used as the rank.
func (e APILeaderboardEntry) ToDomainEntry(position int) domain.LeaderboardEntry {
	rank := e.Rank
	if rank < 1 {
		rank = position
	}
	return domain.LeaderboardEntry{
		Wallet:      e.ProxyWallet,
		Rank:        rank,
		AccountName: e.Name,
		TotalPnL:    e.Amount,
	}
}
