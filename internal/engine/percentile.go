package engine

import "sort"

// PercentileRanks converts a batch of raw scores into positional percentile
// ranks in [0, 100], parallel to the input slice.
//
// Scores are sorted ascending and each input's percentile is
// 100 * position / (N-1) at its sorted position. Duplicate scores occupy
// adjacent sorted positions and therefore may receive different percentiles;
// this positional behavior is intentional and relied upon downstream. A
// single score ranks at exactly 100; an empty input returns an empty slice.
func PercentileRanks(scores []float64) []float64 {
	n := len(scores)
	if n == 0 {
		return nil
	}
	out := make([]float64, n)
	if n == 1 {
		out[0] = 100
		return out
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] < scores[idx[b]]
	})

	for pos, original := range idx {
		out[original] = 100 * float64(pos) / float64(n-1)
	}
	return out
}
