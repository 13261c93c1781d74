package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies WHALEWATCH_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load. A missing file is not an
// error: defaults plus environment overrides apply.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return nil, err
			}
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known WHALEWATCH_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Mode, "WHALEWATCH_MODE")
	setStr(&cfg.LogLevel, "WHALEWATCH_LOG_LEVEL")

	// ── Polymarket ──
	setStr(&cfg.Polymarket.DataHost, "WHALEWATCH_POLYMARKET_DATA_HOST")
	setStr(&cfg.Polymarket.LeaderboardHost, "WHALEWATCH_POLYMARKET_LEADERBOARD_HOST")

	// ── Engine ──
	setDur(&cfg.Engine.Window, "WHALEWATCH_ENGINE_WINDOW")
	setDur(&cfg.Engine.GraceWindow, "WHALEWATCH_ENGINE_GRACE_WINDOW")
	setDur(&cfg.Engine.DecayHalfLife, "WHALEWATCH_ENGINE_DECAY_HALF_LIFE")
	setDur(&cfg.Engine.RecomputeInterval, "WHALEWATCH_ENGINE_RECOMPUTE_INTERVAL")
	setFloat(&cfg.Engine.ZScoreThreshold, "WHALEWATCH_ENGINE_Z_SCORE_THRESHOLD")
	setFloat(&cfg.Engine.HHIThreshold, "WHALEWATCH_ENGINE_HHI_THRESHOLD")
	setInt(&cfg.Engine.MaxTrades, "WHALEWATCH_ENGINE_MAX_TRADES")
	setInt(&cfg.Engine.LeaderboardLimit, "WHALEWATCH_ENGINE_LEADERBOARD_LIMIT")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "WHALEWATCH_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "WHALEWATCH_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "WHALEWATCH_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "WHALEWATCH_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "WHALEWATCH_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "WHALEWATCH_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "WHALEWATCH_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "WHALEWATCH_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "WHALEWATCH_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "WHALEWATCH_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "WHALEWATCH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "WHALEWATCH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "WHALEWATCH_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "WHALEWATCH_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "WHALEWATCH_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "WHALEWATCH_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "WHALEWATCH_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "WHALEWATCH_S3_REGION")
	setStr(&cfg.S3.Bucket, "WHALEWATCH_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "WHALEWATCH_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "WHALEWATCH_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "WHALEWATCH_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "WHALEWATCH_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setInt(&cfg.Server.Port, "WHALEWATCH_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "WHALEWATCH_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "WHALEWATCH_SERVER_RATE_LIMIT")

	// ── Notify ──
	setStr(&cfg.Notify.DiscordWebhookURL, "WHALEWATCH_NOTIFY_DISCORD_WEBHOOK_URL")
	setStr(&cfg.Notify.TelegramToken, "WHALEWATCH_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "WHALEWATCH_NOTIFY_TELEGRAM_CHAT_ID")
	setFloat(&cfg.Notify.MinPercentile, "WHALEWATCH_NOTIFY_MIN_PERCENTILE")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDur(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
