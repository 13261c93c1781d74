package engine

import "math"

// Baseline is the cross-outcome volume reference for one pass, computed over
// non-expired aggregates only and discarded afterwards.
type Baseline struct {
	VolumeMean         float64
	VolumeStdDev       float64
	RankedVolumeMean   float64
	RankedVolumeStdDev float64
}

// ComputeBaseline returns the population mean and standard deviation of total
// volume and ranked-wallet volume across the given aggregates. An empty input
// yields a zero Baseline; callers treat a zero stddev as "z-score 0", never
// NaN or Inf.
func ComputeBaseline(aggs []OutcomeAggregate) Baseline {
	if len(aggs) == 0 {
		return Baseline{}
	}

	totals := make([]float64, len(aggs))
	ranked := make([]float64, len(aggs))
	for i, a := range aggs {
		totals[i] = a.TotalVolume
		ranked[i] = a.RankedVolume
	}

	var b Baseline
	b.VolumeMean, b.VolumeStdDev = meanStdDev(totals)
	b.RankedVolumeMean, b.RankedVolumeStdDev = meanStdDev(ranked)
	return b
}

// meanStdDev computes the population mean and standard deviation
// (stdDev = sqrt(mean((x-mean)^2))).
func meanStdDev(xs []float64) (mean, stdDev float64) {
	n := float64(len(xs))
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean = sum / n

	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / n)
}

// ZScore returns (x - mean) / stdDev, or 0 when stdDev is zero.
func ZScore(x, mean, stdDev float64) float64 {
	if stdDev == 0 {
		return 0
	}
	return (x - mean) / stdDev
}
