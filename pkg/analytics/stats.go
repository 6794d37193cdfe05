package analytics

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// safeDiv returns 0 whenever the denominator is 0
func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// pct is safeDiv scaled to percent
func pct(num, den float64) float64 {
	return safeDiv(num, den) * 100
}

// changePct is the relative change from prev to cur, in percent of |prev|
func changePct(cur, prev float64) float64 {
	return safeDiv(cur-prev, math.Abs(prev)) * 100
}

// finite maps NaN and ±Inf to 0
func finite(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

// stdDev is the population standard deviation
func stdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	_, variance := stat.PopMeanVariance(xs, nil)
	return finite(math.Sqrt(variance))
}

// rootMeanSquare of xs, 0 for an empty slice
func rootMeanSquare(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return floats.Norm(xs, 2) / math.Sqrt(float64(len(xs)))
}

// pearson returns the correlation coefficient of two equal-length series,
// 0 when either series is constant
func pearson(xs, ys []float64) float64 {
	if len(xs) < 2 || len(xs) != len(ys) {
		return 0
	}
	return finite(stat.Correlation(xs, ys, nil))
}

// daysBetween counts whole calendar days from a to b
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
