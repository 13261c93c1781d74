// Package engine implements the signal pipeline: it folds a trailing window
// of prediction-market trades into per-outcome aggregates, normalizes them
// against a cross-market baseline, and combines the normalized sub-metrics
// into percentile-ranked confidence signals for outcomes where top-ranked
// wallets are concentrating directional activity.
//
// A pass is a single synchronous computation over locally-owned state;
// concurrent passes never share mutable aggregates.
package engine

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/whalewatch/engine/internal/domain"
)

// Engine runs computation passes. It holds only immutable configuration and
// is safe for concurrent use.
type Engine struct {
	cfg    Config
	logger *slog.Logger
}

// New creates an Engine after validating the configuration. An invalid weight
// set is a configuration bug and fails construction outright.
func New(cfg Config, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "engine")),
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Run executes one full pass over the given trade window and leaderboard
// snapshots, evaluated at now. Empty input is not an error: it yields an
// empty batch.
//
// Pipeline: merge best ranks -> fold trades -> finalize aggregates ->
// baseline over active aggregates -> score eligible outcomes -> percentile
// over raw factor sums -> order best percentile first.
func (e *Engine) Run(ctx context.Context, trades []domain.Trade, snapshots []domain.LeaderboardSnapshot, now time.Time) (domain.SignalBatch, error) {
	if err := ctx.Err(); err != nil {
		return domain.SignalBatch{}, err
	}

	ranks := MergeBestRanks(snapshots)

	agg := NewAggregator(ranks, e.cfg, now)
	for _, t := range trades {
		agg.Fold(t)
	}
	aggregates := agg.Finalize()

	// Expired outcomes are excluded from the baseline and the output, but
	// their trades were still folded above.
	active := make([]OutcomeAggregate, 0, len(aggregates))
	expired := 0
	for _, a := range aggregates {
		if a.Resolved {
			expired++
			continue
		}
		active = append(active, a)
	}
	// Map order would leak into the positional percentile of tied factor
	// sums; score in key order so identical inputs give identical output.
	sort.Slice(active, func(i, j int) bool { return active[i].Key < active[j].Key })

	base := ComputeBaseline(active)

	calc := NewCalculator(e.cfg)
	results := make([]domain.SignalResult, 0, len(active))
	for _, a := range active {
		if !a.HasRankedActivity() {
			continue
		}
		results = append(results, calc.Score(a, base))
	}

	// Percentile is ranked over the unweighted factor sums, not the weighted
	// composite; the two orderings can diverge and consumers expect the
	// factor-sum ranking.
	basis := make([]float64, len(results))
	for i, r := range results {
		basis[i] = r.Factors.Sum()
	}
	for i, p := range PercentileRanks(basis) {
		results[i].Percentile = p
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Percentile != results[j].Percentile {
			return results[i].Percentile > results[j].Percentile
		}
		return outcomeIdentity(results[i]) < outcomeIdentity(results[j])
	})

	e.logger.InfoContext(ctx, "pass complete",
		slog.Int("trades", len(trades)),
		slog.Int("outcomes", len(aggregates)),
		slog.Int("expired", expired),
		slog.Int("ranked_wallets", len(ranks)),
		slog.Int("signals", len(results)),
	)

	return domain.SignalBatch{
		PassID:      uuid.NewString(),
		ComputedAt:  now,
		Window:      e.cfg.Window,
		TradeCount:  len(trades),
		WalletCount: len(ranks),
		Signals:     results,
	}, nil
}

// outcomeIdentity gives a deterministic tie-break key so identical percentile
// ranks always order the same way across passes.
func outcomeIdentity(r domain.SignalResult) string {
	market := r.ConditionID
	if market == "" {
		market = r.EventTitle
	}
	if market == "" {
		market = "unknown"
	}
	return market + keySeparator + r.Outcome
}
