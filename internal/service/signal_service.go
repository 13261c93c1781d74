// Package service orchestrates a full computation pass: fetch, persist,
// compute, publish.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/whalewatch/engine/internal/domain"
	"github.com/whalewatch/engine/internal/engine"
	"github.com/whalewatch/engine/internal/notify"
)

// TradeLoader fetches trades from the upstream data API.
type TradeLoader interface {
	GetTradesSince(ctx context.Context, since time.Time, maxTrades int) ([]domain.Trade, error)
}

// LeaderboardLoader fetches every leaderboard period from the upstream API.
type LeaderboardLoader interface {
	GetAllSnapshots(ctx context.Context) ([]domain.LeaderboardSnapshot, error)
}

// Config holds the tunable parameters of the signal service.
type Config struct {
	// MaxTrades caps how many trades one pass pulls from the data API.
	MaxTrades int
	// MinAlertPercentile is the percentile at or above which a signal
	// triggers a notification.
	MinAlertPercentile float64
}

// SignalService drives the whale-signal pipeline. Each pass fetches fresh
// trades and leaderboards, persists them, runs the engine over the full
// rolling window, and fans the resulting batch out to the cache, the bus,
// long-term storage, and operator alerts.
type SignalService struct {
	eng      *engine.Engine
	trades   TradeLoader
	boards   LeaderboardLoader
	tradeDB  domain.TradeStore
	boardDB  domain.LeaderboardStore
	signalDB domain.SignalStore
	cache    domain.SignalCache
	bus      domain.SignalBus
	archiver domain.Archiver  // optional
	notifier *notify.Notifier // optional
	cfg      Config
	logger   *slog.Logger
}

// NewSignalService creates a SignalService. The archiver and notifier are
// optional; pass nil to disable blob archiving or alerting.
func NewSignalService(
	eng *engine.Engine,
	trades TradeLoader,
	boards LeaderboardLoader,
	tradeDB domain.TradeStore,
	boardDB domain.LeaderboardStore,
	signalDB domain.SignalStore,
	cache domain.SignalCache,
	bus domain.SignalBus,
	archiver domain.Archiver,
	notifier *notify.Notifier,
	cfg Config,
	logger *slog.Logger,
) *SignalService {
	return &SignalService{
		eng:      eng,
		trades:   trades,
		boards:   boards,
		tradeDB:  tradeDB,
		boardDB:  boardDB,
		signalDB: signalDB,
		cache:    cache,
		bus:      bus,
		archiver: archiver,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "signal_service")),
	}
}

// RunPass executes one full computation pass and returns the batch. A pass
// only computes when both the trade fetch and every leaderboard fetch
// succeeded; a partial upstream view would skew the baseline.
func (s *SignalService) RunPass(ctx context.Context) (domain.SignalBatch, error) {
	now := time.Now().UTC()
	windowStart := now.Add(-s.eng.Config().Window)

	fetched, snapshots, err := s.fetchUpstream(ctx, windowStart)
	if err != nil {
		return domain.SignalBatch{}, err
	}

	if err := s.persistInputs(ctx, fetched, snapshots); err != nil {
		return domain.SignalBatch{}, err
	}

	// Compute over the full persisted window, not just this pass's fetch,
	// so restarts and short fetch gaps do not shrink the baseline.
	windowTrades, err := s.tradeDB.ListWindow(ctx, windowStart)
	if err != nil {
		return domain.SignalBatch{}, fmt.Errorf("signal_service: load window: %w", err)
	}

	batch, err := s.eng.Run(ctx, windowTrades, snapshots, now)
	if err != nil {
		return domain.SignalBatch{}, fmt.Errorf("signal_service: compute: %w", err)
	}

	s.publish(ctx, batch)
	s.prune(ctx, windowStart)

	return batch, nil
}

// fetchUpstream pulls trades and all leaderboard snapshots concurrently.
// Either failure aborts the pass.
func (s *SignalService) fetchUpstream(ctx context.Context, windowStart time.Time) ([]domain.Trade, []domain.LeaderboardSnapshot, error) {
	// Resume from the last stored trade when it falls inside the window.
	since := windowStart
	if last, err := s.tradeDB.GetLastTimestamp(ctx); err == nil && last.After(windowStart) {
		since = last
	}

	var (
		fetched   []domain.Trade
		snapshots []domain.LeaderboardSnapshot
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fetched, err = s.trades.GetTradesSince(gctx, since, s.cfg.MaxTrades)
		if err != nil {
			return fmt.Errorf("signal_service: fetch trades: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		snapshots, err = s.boards.GetAllSnapshots(gctx)
		if err != nil {
			return fmt.Errorf("signal_service: fetch leaderboards: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return fetched, snapshots, nil
}

// persistInputs stores the fetched trades and replaces each leaderboard
// period's snapshot.
func (s *SignalService) persistInputs(ctx context.Context, trades []domain.Trade, snapshots []domain.LeaderboardSnapshot) error {
	if err := s.tradeDB.InsertBatch(ctx, trades); err != nil {
		return fmt.Errorf("signal_service: persist trades: %w", err)
	}
	for _, snap := range snapshots {
		if err := s.boardDB.UpsertSnapshot(ctx, snap); err != nil {
			return fmt.Errorf("signal_service: persist leaderboard %s: %w", snap.Period, err)
		}
	}
	return nil
}

// publish distributes a freshly computed batch. Distribution failures are
// logged but do not fail the pass; the batch itself is already computed and
// returned to the caller.
func (s *SignalService) publish(ctx context.Context, batch domain.SignalBatch) {
	if err := s.signalDB.InsertBatch(ctx, batch); err != nil {
		s.logger.ErrorContext(ctx, "persist batch", slog.String("error", err.Error()))
	}

	if err := s.cache.SetLatest(ctx, batch); err != nil {
		s.logger.ErrorContext(ctx, "cache batch", slog.String("error", err.Error()))
	}

	if payload, err := json.Marshal(batch); err != nil {
		s.logger.ErrorContext(ctx, "encode batch", slog.String("error", err.Error()))
	} else if err := s.bus.Publish(ctx, domain.SignalChannel, payload); err != nil {
		s.logger.ErrorContext(ctx, "publish batch", slog.String("error", err.Error()))
	}

	if s.archiver != nil {
		if path, err := s.archiver.ArchiveBatch(ctx, batch); err != nil {
			s.logger.ErrorContext(ctx, "archive batch", slog.String("error", err.Error()))
		} else {
			s.logger.DebugContext(ctx, "batch archived", slog.String("path", path))
		}
	}

	s.alert(ctx, batch)
}

// alert notifies operators about signals at or above the alert percentile.
func (s *SignalService) alert(ctx context.Context, batch domain.SignalBatch) {
	if s.notifier == nil {
		return
	}
	for _, sig := range batch.Signals {
		if sig.Percentile < s.cfg.MinAlertPercentile {
			// Signals are sorted best percentile first.
			break
		}
		title, message := notify.FormatSignalAlert(sig)
		if err := s.notifier.Notify(ctx, notify.EventSignalHigh, title, message); err != nil {
			s.logger.WarnContext(ctx, "signal alert failed", slog.String("error", err.Error()))
		}
	}
}

// prune archives and deletes trades that have aged out of the window. Prune
// failures never fail the pass.
func (s *SignalService) prune(ctx context.Context, cutoff time.Time) {
	if s.archiver != nil {
		stale, err := s.tradeDB.ListBefore(ctx, cutoff)
		if err != nil {
			s.logger.WarnContext(ctx, "list stale trades", slog.String("error", err.Error()))
			return
		}
		if n, err := s.archiver.ArchiveTrades(ctx, stale, cutoff); err != nil {
			s.logger.WarnContext(ctx, "archive stale trades", slog.String("error", err.Error()))
			return
		} else if n > 0 {
			s.logger.InfoContext(ctx, "stale trades archived", slog.Int64("count", n))
		}
	}

	deleted, err := s.tradeDB.DeleteBefore(ctx, cutoff)
	if err != nil {
		s.logger.WarnContext(ctx, "prune stale trades", slog.String("error", err.Error()))
		return
	}
	if deleted > 0 {
		s.logger.InfoContext(ctx, "stale trades pruned", slog.Int64("count", deleted))
	}
}

// GetLatest returns the most recently cached batch.
func (s *SignalService) GetLatest(ctx context.Context) (domain.SignalBatch, error) {
	return s.cache.GetLatest(ctx)
}

// History returns stored signal results, newest first.
func (s *SignalService) History(ctx context.Context, opts domain.ListOpts) ([]domain.SignalResult, error) {
	return s.signalDB.ListRecent(ctx, opts)
}

// RunLoop recomputes on the given interval until the context is cancelled.
// An immediate pass runs before the first tick. Pass errors are logged and
// the loop continues; a stale cached batch remains served in the meantime.
func (s *SignalService) RunLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunPass(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.ErrorContext(ctx, "pass failed", slog.String("error", err.Error()))
			if s.notifier != nil {
				_ = s.notifier.Notify(ctx, notify.EventPassFailed,
					"Signal pass failed", err.Error())
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
