package analytics

import "math"

// AnnualizedVolatility is the sample standard deviation of the last window
// returns scaled by sqrt(periodsPerYear). A window of zero or one uses the
// whole series. NaN when fewer than two returns are available.
func AnnualizedVolatility(returns []float64, window int, periodsPerYear float64) float64 {
	if window <= 1 || window > len(returns) {
		window = len(returns)
	}
	if window < 2 {
		return math.NaN()
	}
	sum, sum2 := 0.0, 0.0
	for _, r := range returns[len(returns)-window:] {
		sum += r
		sum2 += r * r
	}
	n := float64(window)
	mean := sum / n
	variance := (sum2 - n*mean*mean) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance * periodsPerYear)
}
