package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPercentileRanks_Empty(t *testing.T) {
	require.Empty(t, PercentileRanks(nil))
	require.Empty(t, PercentileRanks([]float64{}))
}

func TestPercentileRanks_SingleScoreIsHundred(t *testing.T) {
	require.Equal(t, []float64{100}, PercentileRanks([]float64{0.42}))
}

func TestPercentileRanks_Bounds(t *testing.T) {
	ranks := PercentileRanks([]float64{3.1, -2.0, 0.5, 9.9, 0.5, 7})
	for i, p := range ranks {
		require.GreaterOrEqual(t, p, 0.0, "rank %d", i)
		require.LessOrEqual(t, p, 100.0, "rank %d", i)
	}
}

func TestPercentileRanks_Positional(t *testing.T) {
	// scores: 1.0 -> pos 0, 2.0 -> pos 1, 3.0 -> pos 2
	ranks := PercentileRanks([]float64{2.0, 3.0, 1.0})
	require.Equal(t, []float64{50, 100, 0}, ranks)
}

func TestPercentileRanks_TiesArePositional(t *testing.T) {
	// Duplicate raw scores occupy adjacent sorted positions and receive
	// different percentiles. This positional behavior is deliberate and must
	// not be "fixed" to equal ranks.
	ranks := PercentileRanks([]float64{5.0, 5.0})
	require.Equal(t, []float64{0, 100}, ranks)

	ranks = PercentileRanks([]float64{1.0, 4.0, 4.0, 9.0})
	require.Equal(t, []float64{0, 100.0 / 3, 200.0 / 3, 100}, ranks)
}
