package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/whalewatch/engine/internal/server"
	"github.com/whalewatch/engine/internal/server/handler"
	"github.com/whalewatch/engine/internal/server/ws"
)

// shutdownTimeout bounds graceful HTTP shutdown on context cancellation.
const shutdownTimeout = 10 * time.Second

// ServeMode runs the long-lived pipeline: the scheduled recompute loop, the
// WebSocket hub, and the HTTP API. It blocks until the context is cancelled.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode",
		slog.Int("port", a.cfg.Server.Port),
		slog.Duration("recompute_interval", a.cfg.Engine.RecomputeInterval.Duration),
	)

	g, ctx := errgroup.WithContext(ctx)

	// WebSocket hub bridging the signal bus to connected clients.
	hub := ws.NewHub(deps.SignalBus, a.logger)
	g.Go(func() error {
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("app: ws hub: %w", err)
		}
		return nil
	})

	// Scheduled recompute loop.
	g.Go(func() error {
		if err := deps.Service.RunLoop(ctx, a.cfg.Engine.RecomputeInterval.Duration); err != nil &&
			!errors.Is(err, context.Canceled) {
			return fmt.Errorf("app: recompute loop: %w", err)
		}
		return nil
	})

	// HTTP API.
	srv := server.NewServer(
		server.Config{
			Port:            a.cfg.Server.Port,
			CORSOrigins:     a.cfg.Server.CORSOrigins,
			APIKey:          a.cfg.Server.APIKey,
			RateLimit:       a.cfg.Server.RateLimit,
			RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
		},
		server.Handlers{
			Health:  handler.NewHealthHandler(deps.Pingers, a.logger),
			Signals: handler.NewSignalsHandler(deps.Service, a.logger),
		},
		hub,
		deps.RateLimiter,
		a.logger,
	)
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// ScanMode executes a single computation pass, writes the resulting batch as
// JSON to stdout, and exits. The pass still persists, caches, publishes, and
// archives like any scheduled pass.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")

	batch, err := deps.Service.RunPass(ctx)
	if err != nil {
		return fmt.Errorf("app: scan pass: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(batch); err != nil {
		return fmt.Errorf("app: encode batch: %w", err)
	}

	a.logger.InfoContext(ctx, "scan complete",
		slog.String("pass_id", batch.PassID),
		slog.Int("signals", len(batch.Signals)),
	)
	return nil
}

// FullMode runs an immediate printed pass and then continues with the
// long-lived serve pipeline.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	if err := a.ScanMode(ctx, deps); err != nil {
		return err
	}
	return a.ServeMode(ctx, deps)
}
