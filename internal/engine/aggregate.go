package engine

import (
	"sort"
	"time"

	"github.com/whalewatch/engine/internal/domain"
)

// keySeparator joins the market identity and the outcome label into the
// aggregation key.
const keySeparator = "::"

// OutcomeKey computes the aggregation key for a trade. Trades referencing
// neither a condition ID nor an event title land in the "unknown" bucket on
// purpose: it is a catch-all, not an error.
func OutcomeKey(t domain.Trade) string {
	return t.MarketKey() + keySeparator + t.OutcomeLabel()
}

// aggregationState is the mutable per-outcome accumulator owned exclusively
// by the Aggregator during the fold phase. It is never exposed outside this
// package; callers only ever see the immutable OutcomeAggregate produced by
// finalize.
type aggregationState struct {
	conditionID string
	eventTitle  string
	outcome     string
	question    string

	totalVolume float64
	tradeCount  int
	buyVolume   float64
	sellVolume  float64

	latestPrice   float64
	latestTradeAt time.Time

	closeTime      *time.Time
	resolutionTime *time.Time
	resolved       bool // sticky once set

	walletVolumes       map[string]float64
	decayedRankedVolume float64
	rankedBuyVolume     float64
	rankedSellVolume    float64
	buyWallets          map[string]struct{}
	sellWallets         map[string]struct{}
	roster              []domain.RankedWallet
	rosterSeen          map[string]struct{}
}

// OutcomeAggregate is the immutable, finalized view of one (market, outcome)
// pair after all trades of a pass have been folded in.
type OutcomeAggregate struct {
	Key            string
	ConditionID    string
	EventTitle     string
	Outcome        string
	MarketQuestion string

	TotalVolume float64
	TradeCount  int
	BuyVolume   float64
	SellVolume  float64
	BuySellSkew float64

	LatestPrice   float64
	LatestTradeAt time.Time

	WalletVolumes       map[string]float64
	RankedVolume        float64
	DecayedRankedVolume float64
	RankedBuyVolume     float64
	RankedSellVolume    float64

	BuyWalletCount          int
	SellWalletCount         int
	TopWalletCount          int
	DominantSideWalletCount int

	TopWallets []domain.RankedWallet
	BestRank   *int
	Stance     domain.Stance
	Resolved   bool
}

// HasRankedActivity reports whether at least one ranked wallet traded this
// outcome. Only such outcomes produce a SignalResult.
func (a OutcomeAggregate) HasRankedActivity() bool {
	return len(a.WalletVolumes) > 0
}

// Aggregator folds a trade window into per-outcome aggregates. All state is
// local to one computation pass; an Aggregator must not be shared between
// passes or goroutines.
type Aggregator struct {
	ranks    WalletRanks
	halfLife time.Duration
	grace    time.Duration
	now      time.Time
	states   map[string]*aggregationState
}

// NewAggregator creates an Aggregator for a single pass evaluated at now.
func NewAggregator(ranks WalletRanks, cfg Config, now time.Time) *Aggregator {
	return &Aggregator{
		ranks:    ranks,
		halfLife: cfg.DecayHalfLife,
		grace:    cfg.GraceWindow,
		now:      now,
		states:   make(map[string]*aggregationState),
	}
}

// Fold accumulates a single trade into its outcome aggregate, creating the
// aggregate on first sight. Trades may arrive in any order; every derived
// value is either order-independent (sums, sets) or resolved by explicit
// timestamp comparison (latest price).
func (a *Aggregator) Fold(t domain.Trade) {
	key := OutcomeKey(t)
	st, ok := a.states[key]
	if !ok {
		st = &aggregationState{
			conditionID:    t.ConditionID,
			eventTitle:     t.EventTitle,
			outcome:        t.OutcomeLabel(),
			question:       t.Question,
			latestPrice:    t.Price,
			latestTradeAt:  t.Timestamp,
			closeTime:      t.CloseTime,
			resolutionTime: t.ResolutionTime,
			walletVolumes:  make(map[string]float64),
			buyWallets:     make(map[string]struct{}),
			sellWallets:    make(map[string]struct{}),
			rosterSeen:     make(map[string]struct{}),
		}
		a.states[key] = st
	}

	st.totalVolume += t.USDValue
	st.tradeCount++

	switch t.Side {
	case domain.TradeSideBuy:
		st.buyVolume += t.USDValue
	case domain.TradeSideSell:
		st.sellVolume += t.USDValue
	}
	// Unrecognized sides count toward totalVolume only.

	if t.Timestamp.After(st.latestTradeAt) {
		st.latestTradeAt = t.Timestamp
		st.latestPrice = t.Price
	}

	// Resolution is sticky: once any trade marks the outcome as past its
	// grace window, the aggregate stays resolved for the rest of the pass.
	if !st.resolved && a.isExpired(t) {
		st.resolved = true
	}

	wallet := NormalizeWallet(t.Wallet)
	rw, ranked := a.ranks[wallet]
	if !ranked {
		return
	}

	st.walletVolumes[wallet] += t.USDValue
	st.decayedRankedVolume += t.USDValue * DecayWeight(t.Timestamp, a.now, a.halfLife)

	switch t.Side {
	case domain.TradeSideBuy:
		st.buyWallets[wallet] = struct{}{}
		st.rankedBuyVolume += t.USDValue
	case domain.TradeSideSell:
		st.sellWallets[wallet] = struct{}{}
		st.rankedSellVolume += t.USDValue
	}

	// First occurrence wins for the roster; volume keeps accumulating above.
	if _, seen := st.rosterSeen[wallet]; !seen {
		st.rosterSeen[wallet] = struct{}{}
		st.roster = append(st.roster, rw)
	}
}

// isExpired reports whether the trade's market lifecycle timestamps put it
// beyond the grace window at pass time. Resolution time is preferred over
// close time.
func (a *Aggregator) isExpired(t domain.Trade) bool {
	deadline := a.now.Add(-a.grace)
	if t.ResolutionTime != nil {
		return t.ResolutionTime.Before(deadline)
	}
	if t.CloseTime != nil {
		return t.CloseTime.Before(deadline)
	}
	return false
}

// Finalize computes the derived fields of every aggregate and returns the
// immutable results keyed by outcome key. The Aggregator must not be used
// after Finalize.
func (a *Aggregator) Finalize() map[string]OutcomeAggregate {
	out := make(map[string]OutcomeAggregate, len(a.states))
	for key, st := range a.states {
		out[key] = finalize(key, st)
	}
	a.states = nil
	return out
}

func finalize(key string, st *aggregationState) OutcomeAggregate {
	skew := 0.5
	if st.buyVolume+st.sellVolume > 0 {
		skew = st.buyVolume / (st.buyVolume + st.sellVolume)
	}

	union := make(map[string]struct{}, len(st.buyWallets)+len(st.sellWallets))
	for w := range st.buyWallets {
		union[w] = struct{}{}
	}
	for w := range st.sellWallets {
		union[w] = struct{}{}
	}

	// Roster order must not depend on fold order: best rank first, wallet
	// address as tie-break.
	roster := make([]domain.RankedWallet, len(st.roster))
	copy(roster, st.roster)
	sort.Slice(roster, func(i, j int) bool {
		if roster[i].Rank != roster[j].Rank {
			return roster[i].Rank < roster[j].Rank
		}
		return roster[i].Wallet < roster[j].Wallet
	})

	var bestRank *int
	if len(roster) > 0 {
		r := roster[0].Rank
		bestRank = &r
	}

	stance := domain.StanceBullish
	if st.buyVolume < st.sellVolume {
		stance = domain.StanceBearish
	}

	// Dominant side among ranked wallets, by ranked volume; buy wins ties.
	dominantCount := len(st.buyWallets)
	if st.rankedSellVolume > st.rankedBuyVolume {
		dominantCount = len(st.sellWallets)
	}

	var rankedVolume float64
	volumes := make(map[string]float64, len(st.walletVolumes))
	for w, v := range st.walletVolumes {
		volumes[w] = v
		rankedVolume += v
	}

	return OutcomeAggregate{
		Key:            key,
		ConditionID:    st.conditionID,
		EventTitle:     st.eventTitle,
		Outcome:        st.outcome,
		MarketQuestion: st.question,

		TotalVolume: st.totalVolume,
		TradeCount:  st.tradeCount,
		BuyVolume:   st.buyVolume,
		SellVolume:  st.sellVolume,
		BuySellSkew: skew,

		LatestPrice:   st.latestPrice,
		LatestTradeAt: st.latestTradeAt,

		WalletVolumes:       volumes,
		RankedVolume:        rankedVolume,
		DecayedRankedVolume: st.decayedRankedVolume,
		RankedBuyVolume:     st.rankedBuyVolume,
		RankedSellVolume:    st.rankedSellVolume,

		BuyWalletCount:          len(st.buyWallets),
		SellWalletCount:         len(st.sellWallets),
		TopWalletCount:          len(union),
		DominantSideWalletCount: dominantCount,

		TopWallets: roster,
		BestRank:   bestRank,
		Stance:     stance,
		Resolved:   st.resolved,
	}
}
