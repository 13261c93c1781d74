// Package config defines the top-level configuration for the whalewatch
// signal engine and provides validation helpers.
package config

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by WHALEWATCH_* environment
// variables.
type Config struct {
	Engine      EngineConfig      `toml:"engine"`
	Polymarket  PolymarketConfig  `toml:"polymarket"`
	Postgres    PostgresConfig    `toml:"postgres"`
	Redis       RedisConfig       `toml:"redis"`
	S3          S3Config          `toml:"s3"`
	Server      ServerConfig      `toml:"server"`
	Notify      NotifyConfig      `toml:"notify"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// EngineConfig holds the signal pipeline tunables.
type EngineConfig struct {
	// Window is the trailing trade window length, e.g. "24h".
	Window duration `toml:"window"`
	// GraceWindow is how long past resolution/close an outcome stays in the
	// ranked output.
	GraceWindow duration `toml:"grace_window"`
	// DecayHalfLife tunes the exponential time-decay of ranked volume.
	DecayHalfLife duration `toml:"decay_half_life"`
	// ZScoreThreshold flags unusual volume.
	ZScoreThreshold float64 `toml:"z_score_threshold"`
	// HHIThreshold flags concentrated ranked activity.
	HHIThreshold float64 `toml:"hhi_threshold"`
	// Weights are the composite sub-metric weights; they must sum to 1.0.
	Weights WeightsConfig `toml:"weights"`
	// RecomputeInterval is how often serve mode recomputes the batch.
	RecomputeInterval duration `toml:"recompute_interval"`
	// MaxTrades caps how many trades one pass will pull from the Data API.
	MaxTrades int `toml:"max_trades"`
	// LeaderboardLimit caps how many entries each leaderboard snapshot carries.
	LeaderboardLimit int `toml:"leaderboard_limit"`
}

// WeightsConfig mirrors engine.CompositeWeights in TOML form.
type WeightsConfig struct {
	VolumeZScore        float64 `toml:"volume_z_score"`
	Concentration       float64 `toml:"concentration"`
	RankWeighted        float64 `toml:"rank_weighted"`
	DecayedVolume       float64 `toml:"decayed_volume"`
	DirectionConviction float64 `toml:"direction_conviction"`
	Alignment           float64 `toml:"alignment"`
}

// Sum returns the total of all weights.
func (w WeightsConfig) Sum() float64 {
	return w.VolumeZScore + w.Concentration + w.RankWeighted +
		w.DecayedVolume + w.DirectionConviction + w.Alignment
}

// PolymarketConfig holds the Data API and leaderboard API endpoints.
type PolymarketConfig struct {
	DataHost        string `toml:"data_host"`
	LeaderboardHost string `toml:"leaderboard_host"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for batch archival.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port            int      `toml:"port"`
	CORSOrigins     []string `toml:"cors_origins"`
	APIKey          string   `toml:"api_key"`
	RateLimit       int      `toml:"rate_limit"`
	RateLimitWindow duration `toml:"rate_limit_window"`
}

// NotifyConfig holds notification channel parameters.
type NotifyConfig struct {
	DiscordWebhookURL string `toml:"discord_webhook_url"`
	TelegramToken     string `toml:"telegram_token"`
	TelegramChatID    string `toml:"telegram_chat_id"`
	// MinPercentile is the percentile above which a signal triggers an alert.
	MinPercentile float64 `toml:"min_percentile"`
	Events        []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			Window:          duration{24 * time.Hour},
			GraceWindow:     duration{5 * time.Minute},
			DecayHalfLife:   duration{6 * time.Hour},
			ZScoreThreshold: 2.0,
			HHIThreshold:    0.35,
			Weights: WeightsConfig{
				VolumeZScore:        0.15,
				Concentration:       0.15,
				RankWeighted:        0.20,
				DecayedVolume:       0.10,
				DirectionConviction: 0.15,
				Alignment:           0.25,
			},
			RecomputeInterval: duration{5 * time.Minute},
			MaxTrades:         20_000,
			LeaderboardLimit:  100,
		},
		Polymarket: PolymarketConfig{
			DataHost:        "https://data-api.polymarket.com",
			LeaderboardHost: "https://lb-api.polymarket.com",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "whalewatch",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "whalewatch-archive",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Port:            8080,
			CORSOrigins:     []string{"*"},
			RateLimit:       60,
			RateLimitWindow: duration{time.Minute},
		},
		Notify: NotifyConfig{
			MinPercentile: 95,
			Events:        []string{"signal.high"},
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

// Validate performs sanity checks on the configuration. Weight-sum violations
// are configuration bugs and are reported as errors rather than silently
// renormalized.
func (c *Config) Validate() error {
	var problems []string

	switch strings.ToLower(c.Mode) {
	case "serve", "scan", "full":
	default:
		problems = append(problems, fmt.Sprintf("unsupported mode %q", c.Mode))
	}

	if math.Abs(c.Engine.Weights.Sum()-1.0) > 1e-9 {
		problems = append(problems, fmt.Sprintf("engine.weights must sum to 1.0, got %.6f", c.Engine.Weights.Sum()))
	}
	if c.Engine.Window.Duration <= 0 {
		problems = append(problems, "engine.window must be positive")
	}
	if c.Engine.DecayHalfLife.Duration <= 0 {
		problems = append(problems, "engine.decay_half_life must be positive")
	}
	if c.Engine.GraceWindow.Duration < 0 {
		problems = append(problems, "engine.grace_window must not be negative")
	}
	if c.Engine.RecomputeInterval.Duration <= 0 {
		problems = append(problems, "engine.recompute_interval must be positive")
	}
	if c.Engine.ZScoreThreshold <= 0 {
		problems = append(problems, "engine.z_score_threshold must be positive")
	}
	if c.Engine.HHIThreshold <= 0 || c.Engine.HHIThreshold > 1 {
		problems = append(problems, "engine.hhi_threshold must be in (0,1]")
	}

	if c.Polymarket.DataHost == "" {
		problems = append(problems, "polymarket.data_host is required")
	}
	if c.Polymarket.LeaderboardHost == "" {
		problems = append(problems, "polymarket.leaderboard_host is required")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}

	if c.Notify.MinPercentile < 0 || c.Notify.MinPercentile > 100 {
		problems = append(problems, "notify.min_percentile must be in [0,100]")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
