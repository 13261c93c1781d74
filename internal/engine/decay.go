package engine

import (
	"math"
	"time"
)

// DecayWeight returns the exponential time-decay weight for a trade that
// happened at tradeTime, evaluated at now: exp(-elapsed/halfLife).
//
// The weight is exactly 1.0 for zero (or negative) elapsed time, approaches 0
// as elapsed time grows, and is clamped to (0, 1] so a clock skew upstream
// can never produce a weight above 1.
func DecayWeight(tradeTime, now time.Time, halfLife time.Duration) float64 {
	if halfLife <= 0 {
		return 1.0
	}
	elapsed := now.Sub(tradeTime)
	if elapsed <= 0 {
		return 1.0
	}
	return math.Exp(-float64(elapsed) / float64(halfLife))
}
