package domain

import "time"

// Stance is the directional read of an outcome's aggregate flow.
type Stance string

const (
	StanceBullish Stance = "bullish"
	StanceBearish Stance = "bearish"
)

// SignalFactors holds the raw, unweighted per-factor contributions of the
// composite formula. They are retained for transparency and because the
// percentile rank is computed over their plain sum, not over the weighted
// composite (the two can diverge in ordering; see Sum).
type SignalFactors struct {
	VolumeZScore        float64 `json:"volumeZScore"`
	Concentration       float64 `json:"concentration"`
	RankWeighted        float64 `json:"rankWeighted"`
	DecayedVolume       float64 `json:"decayedVolume"`
	DirectionConviction float64 `json:"directionConviction"`
	Alignment           float64 `json:"alignment"`
}

// Sum returns the unweighted factor sum used as the percentile basis.
func (f SignalFactors) Sum() float64 {
	return f.VolumeZScore + f.Concentration + f.RankWeighted +
		f.DecayedVolume + f.DirectionConviction + f.Alignment
}

// SignalResult is the ranked output for one outcome that showed ranked-wallet
// participation in the current pass.
type SignalResult struct {
	ConditionID    string `json:"conditionId,omitempty"`
	EventTitle     string `json:"eventTitle,omitempty"`
	Outcome        string `json:"outcome"`
	MarketQuestion string `json:"marketQuestion,omitempty"`

	TotalVolume    float64        `json:"totalVolume"`
	TradeCount     int            `json:"tradeCount"`
	BuyVolume      float64        `json:"buyVolume"`
	SellVolume     float64        `json:"sellVolume"`
	BuySellSkew    float64        `json:"buySellSkew"`
	RankedVolume   float64        `json:"rankedVolume"`
	TopWalletCount int            `json:"topWalletCount"`
	BestRank       *int           `json:"bestRank,omitempty"`
	TopWallets     []RankedWallet `json:"topWallets"`
	LatestPrice    float64        `json:"latestPrice"`
	LatestTradeAt  time.Time      `json:"latestTradeAt"`

	Stance            Stance        `json:"stance"`
	Factors           SignalFactors `json:"signalFactors"`
	CompositeScore    float64       `json:"compositeScore"`
	LegacyConfidence  float64       `json:"legacyConfidence"`
	Percentile        float64       `json:"percentile"`
	IsUnusualActivity bool          `json:"isUnusualActivity"`
	IsConcentrated    bool          `json:"isConcentrated"`
}

// SignalBatch is one full computation pass over the trade window: the ranked
// results plus enough metadata for consumers to reason about freshness.
type SignalBatch struct {
	PassID      string         `json:"passId"`
	ComputedAt  time.Time      `json:"computedAt"`
	Window      time.Duration  `json:"window"`
	TradeCount  int            `json:"tradeCount"`
	WalletCount int            `json:"walletCount"`
	Signals     []SignalResult `json:"signals"`
}
