package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/whalewatch/engine/internal/domain"
)

// CompositeWeights is the fixed weighting applied to the normalized
// sub-metrics when combining them into the composite score. The weights are a
// policy decision and must sum to 1.0.
type CompositeWeights struct {
	VolumeZScore        float64
	Concentration       float64
	RankWeighted        float64
	DecayedVolume       float64
	DirectionConviction float64
	Alignment           float64
}

// Sum returns the total of all weights.
func (w CompositeWeights) Sum() float64 {
	return w.VolumeZScore + w.Concentration + w.RankWeighted +
		w.DecayedVolume + w.DirectionConviction + w.Alignment
}

// DefaultWeights is the rebalanced composite weighting.
var DefaultWeights = CompositeWeights{
	VolumeZScore:        0.15,
	Concentration:       0.15,
	RankWeighted:        0.20,
	DecayedVolume:       0.10,
	DirectionConviction: 0.15,
	Alignment:           0.25,
}

// Legacy confidence weighting, kept for compatibility with existing
// consumers. Applied to alignment, whale volume share, raw volume, best-rank
// bonus, and buy/sell skew on a 0-100 scale.
const (
	legacyWeightAlignment  = 0.32
	legacyWeightWhaleShare = 0.25
	legacyWeightRawVolume  = 0.18
	legacyWeightBestRank   = 0.15
	legacyWeightSkew       = 0.10
)

// Config holds every tunable of a computation pass. All values have working
// defaults; a zero Config is not usable, construct with DefaultConfig.
type Config struct {
	// Window is the trailing trade window length.
	Window time.Duration
	// GraceWindow is how far past resolution/close an outcome is still
	// considered active.
	GraceWindow time.Duration
	// DecayHalfLife tunes the exponential time-decay weighting.
	DecayHalfLife time.Duration
	// ZScoreThreshold flags unusual activity.
	ZScoreThreshold float64
	// HHIThreshold flags concentrated ranked-wallet activity.
	HHIThreshold float64
	// Weights is the composite weighting; must sum to 1.0.
	Weights CompositeWeights
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Window:          24 * time.Hour,
		GraceWindow:     5 * time.Minute,
		DecayHalfLife:   6 * time.Hour,
		ZScoreThreshold: 2.0,
		HHIThreshold:    0.35,
		Weights:         DefaultWeights,
	}
}

// Validate checks the configuration for programmer errors. A weight set that
// does not sum to 1.0 is a configuration bug and is surfaced loudly rather
// than silently renormalized.
func (c Config) Validate() error {
	if math.Abs(c.Weights.Sum()-1.0) > 1e-9 {
		return fmt.Errorf("engine: %w: got %.6f", domain.ErrBadWeights, c.Weights.Sum())
	}
	if c.Window <= 0 {
		return fmt.Errorf("engine: window must be positive, got %s", c.Window)
	}
	if c.GraceWindow < 0 {
		return fmt.Errorf("engine: grace window must not be negative, got %s", c.GraceWindow)
	}
	if c.DecayHalfLife <= 0 {
		return fmt.Errorf("engine: decay half-life must be positive, got %s", c.DecayHalfLife)
	}
	if c.ZScoreThreshold <= 0 {
		return fmt.Errorf("engine: z-score threshold must be positive, got %f", c.ZScoreThreshold)
	}
	if c.HHIThreshold <= 0 || c.HHIThreshold > 1 {
		return fmt.Errorf("engine: hhi threshold must be in (0,1], got %f", c.HHIThreshold)
	}
	return nil
}
