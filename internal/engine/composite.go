package engine

import (
	"github.com/whalewatch/engine/internal/domain"
)

// zScoreSaturation is the z-score at which the volume factor saturates at 1.0
// when folded into the composite. Three standard deviations above baseline is
// already an extreme outlier for a 24h window.
const zScoreSaturation = 3.0

// legacyVolumeNorm is the dollar volume at which the legacy raw-volume factor
// saturates.
const legacyVolumeNorm = 100_000.0

// Calculator turns finalized aggregates into scored signals. It is a pure
// function of its inputs: the same aggregate and baseline always produce the
// same SignalResult.
type Calculator struct {
	cfg Config
}

// NewCalculator creates a Calculator. The configuration must already be
// validated; see Config.Validate.
func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// Score produces the SignalResult for one outcome aggregate against the pass
// baseline. The Percentile field is left zero; it is attached by the engine
// after ranking the whole batch (see PercentileRanks).
func (c *Calculator) Score(agg OutcomeAggregate, base Baseline) domain.SignalResult {
	zScore := ZScore(agg.TotalVolume, base.VolumeMean, base.VolumeStdDev)
	hhi := Concentration(agg)
	rankWeighted := RankWeightedScore(agg)
	decayed := decayedVolumeFactor(agg)
	conviction := DirectionConviction(agg)
	alignment := Alignment(agg)

	factors := domain.SignalFactors{
		VolumeZScore:        clamp01(zScore / zScoreSaturation),
		Concentration:       hhi,
		RankWeighted:        rankWeighted,
		DecayedVolume:       decayed,
		DirectionConviction: conviction,
		Alignment:           alignment,
	}

	w := c.cfg.Weights
	composite := clamp01(
		w.VolumeZScore*factors.VolumeZScore +
			w.Concentration*factors.Concentration +
			w.RankWeighted*factors.RankWeighted +
			w.DecayedVolume*factors.DecayedVolume +
			w.DirectionConviction*factors.DirectionConviction +
			w.Alignment*factors.Alignment,
	)

	return domain.SignalResult{
		ConditionID:    agg.ConditionID,
		EventTitle:     agg.EventTitle,
		Outcome:        agg.Outcome,
		MarketQuestion: agg.MarketQuestion,

		TotalVolume:    agg.TotalVolume,
		TradeCount:     agg.TradeCount,
		BuyVolume:      agg.BuyVolume,
		SellVolume:     agg.SellVolume,
		BuySellSkew:    agg.BuySellSkew,
		RankedVolume:   agg.RankedVolume,
		TopWalletCount: agg.TopWalletCount,
		BestRank:       agg.BestRank,
		TopWallets:     agg.TopWallets,
		LatestPrice:    agg.LatestPrice,
		LatestTradeAt:  agg.LatestTradeAt,

		Stance:            agg.Stance,
		Factors:           factors,
		CompositeScore:    composite,
		LegacyConfidence:  c.legacyConfidence(agg),
		IsUnusualActivity: zScore > c.cfg.ZScoreThreshold,
		IsConcentrated:    hhi > c.cfg.HHIThreshold,
	}
}

// Concentration returns the Herfindahl-Hirschman Index over the ranked-wallet
// volume shares of the outcome: sum of squared shares, in [1/N, 1] for N
// contributing wallets, 0 when no ranked volume exists.
func Concentration(agg OutcomeAggregate) float64 {
	if agg.RankedVolume <= 0 {
		return 0
	}
	var hhi float64
	for _, v := range agg.WalletVolumes {
		share := v / agg.RankedVolume
		hhi += share * share
	}
	return hhi
}

// RankWeightedScore sums each contributing wallet's volume weighted by the
// inverse of its leaderboard rank, normalized by total ranked volume so the
// result is comparable across outcomes. A single rank-1 wallet yields 1.0.
func RankWeightedScore(agg OutcomeAggregate) float64 {
	if agg.RankedVolume <= 0 {
		return 0
	}
	rankOf := make(map[string]int, len(agg.TopWallets))
	for _, rw := range agg.TopWallets {
		rankOf[rw.Wallet] = rw.Rank
	}
	var weighted float64
	for wallet, vol := range agg.WalletVolumes {
		rank, ok := rankOf[wallet]
		if !ok || rank < 1 {
			continue
		}
		weighted += vol / float64(rank)
	}
	return weighted / agg.RankedVolume
}

// decayedVolumeFactor normalizes the running time-decayed ranked volume by
// the outcome's undecayed ranked volume, yielding a freshness ratio in (0,1]:
// 1.0 when every ranked trade just happened, approaching 0 as the activity
// ages out.
func decayedVolumeFactor(agg OutcomeAggregate) float64 {
	if agg.RankedVolume <= 0 {
		return 0
	}
	return clamp01(agg.DecayedRankedVolume / agg.RankedVolume)
}

// DirectionConviction measures how one-sided the ranked-wallet buy/sell split
// is: max(buy, sell) / (buy + sell) over ranked volume only, 0.5 (no
// conviction either way) when there is no ranked side volume.
func DirectionConviction(agg OutcomeAggregate) float64 {
	total := agg.RankedBuyVolume + agg.RankedSellVolume
	if total <= 0 {
		return 0.5
	}
	dominant := agg.RankedBuyVolume
	if agg.RankedSellVolume > dominant {
		dominant = agg.RankedSellVolume
	}
	return dominant / total
}

// Alignment rewards multiple independent ranked wallets converging on one
// side: the distinct wallet count on the dominant side over all distinct
// ranked wallets touching the outcome.
func Alignment(agg OutcomeAggregate) float64 {
	if agg.TopWalletCount == 0 {
		return 0
	}
	return float64(agg.DominantSideWalletCount) / float64(agg.TopWalletCount)
}

// legacyConfidence is the original confidence formula on a 0-100 scale:
// alignment 0.32, whale volume share 0.25, raw volume 0.18, best-rank bonus
// 0.15, buy/sell skew 0.10. Retained because existing consumers display it;
// it deliberately ranks differently from both the composite score and the
// percentile basis.
func (c *Calculator) legacyConfidence(agg OutcomeAggregate) float64 {
	alignment := Alignment(agg)

	var whaleShare float64
	if agg.TotalVolume > 0 {
		whaleShare = clamp01(agg.RankedVolume / agg.TotalVolume)
	}

	rawVolume := clamp01(agg.TotalVolume / legacyVolumeNorm)

	var rankBonus float64
	if agg.BestRank != nil && *agg.BestRank >= 1 {
		rankBonus = 1 / float64(*agg.BestRank)
	}

	// One-sidedness of the full (not just ranked) volume, in [0.5, 1].
	skew := agg.BuySellSkew
	if skew < 0.5 {
		skew = 1 - skew
	}

	score := legacyWeightAlignment*alignment +
		legacyWeightWhaleShare*whaleShare +
		legacyWeightRawVolume*rawVolume +
		legacyWeightBestRank*rankBonus +
		legacyWeightSkew*skew

	return 100 * clamp01(score)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
