package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/whalewatch/engine/internal/blob/s3"
	"github.com/whalewatch/engine/internal/cache/redis"
	"github.com/whalewatch/engine/internal/config"
	"github.com/whalewatch/engine/internal/domain"
	"github.com/whalewatch/engine/internal/engine"
	"github.com/whalewatch/engine/internal/notify"
	"github.com/whalewatch/engine/internal/platform/polymarket"
	"github.com/whalewatch/engine/internal/server/handler"
	"github.com/whalewatch/engine/internal/service"
	"github.com/whalewatch/engine/internal/store/postgres"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	TradeStore       domain.TradeStore
	LeaderboardStore domain.LeaderboardStore
	SignalStore      domain.SignalStore

	// Caches
	SignalCache domain.SignalCache
	RateLimiter domain.RateLimiter
	SignalBus   domain.SignalBus

	// Blob storage (nil unless S3 is enabled)
	Archiver domain.Archiver

	// Upstream clients
	DataClient        *polymarket.DataClient
	LeaderboardClient *polymarket.LeaderboardClient

	// Core
	Engine   *engine.Engine
	Service  *service.SignalService
	Notifier *notify.Notifier

	// Health probes by dependency name
	Pingers map[string]handler.Pinger
}

// engineConfig converts the TOML-facing engine section into the engine's own
// config type.
func engineConfig(cfg config.EngineConfig) engine.Config {
	return engine.Config{
		Window:          cfg.Window.Duration,
		GraceWindow:     cfg.GraceWindow.Duration,
		DecayHalfLife:   cfg.DecayHalfLife.Duration,
		ZScoreThreshold: cfg.ZScoreThreshold,
		HHIThreshold:    cfg.HHIThreshold,
		Weights: engine.CompositeWeights{
			VolumeZScore:        cfg.Weights.VolumeZScore,
			Concentration:       cfg.Weights.Concentration,
			RankWeighted:        cfg.Weights.RankWeighted,
			DecayedVolume:       cfg.Weights.DecayedVolume,
			DirectionConviction: cfg.Weights.DirectionConviction,
			Alignment:           cfg.Weights.Alignment,
		},
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{Pingers: make(map[string]handler.Pinger)}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)
	deps.Pingers["postgres"] = pgClient

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.TradeStore = postgres.NewTradeStore(pool)
	deps.LeaderboardStore = postgres.NewLeaderboardStore(pool)
	deps.SignalStore = postgres.NewSignalStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })
	deps.Pingers["redis"] = redisClient

	// Cache the latest batch for two recompute intervals so a single missed
	// pass does not blank the API.
	cacheTTL := 2 * cfg.Engine.RecomputeInterval.Duration
	deps.SignalCache = redis.NewSignalCache(redisClient, cacheTTL)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- S3 blob storage (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client))
	}

	// --- Upstream clients ---
	deps.DataClient = polymarket.NewDataClient(cfg.Polymarket.DataHost)
	deps.LeaderboardClient = polymarket.NewLeaderboardClient(
		cfg.Polymarket.LeaderboardHost, cfg.Engine.LeaderboardLimit)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Engine and service ---
	eng, err := engine.New(engineConfig(cfg.Engine), logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: engine: %w", err)
	}
	deps.Engine = eng

	deps.Service = service.NewSignalService(
		eng,
		deps.DataClient,
		deps.LeaderboardClient,
		deps.TradeStore,
		deps.LeaderboardStore,
		deps.SignalStore,
		deps.SignalCache,
		deps.SignalBus,
		deps.Archiver,
		deps.Notifier,
		service.Config{
			MaxTrades:          cfg.Engine.MaxTrades,
			MinAlertPercentile: cfg.Notify.MinPercentile,
		},
		logger,
	)

	return deps, cleanup, nil
}
