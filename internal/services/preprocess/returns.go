package preprocess

import "math"

// PctChange computes simple returns r_t = p_t/p_{t-1} - 1.
// Pairs involving a non-positive or missing price are skipped, so the result
// may be shorter than len(prices)-1. Returns nil if there are fewer than two prices.
func PctChange(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev, cur := prices[i-1], prices[i]
		if math.IsNaN(prev) || math.IsNaN(cur) || prev <= 0 {
			continue
		}
		out = append(out, cur/prev-1)
	}
	return out
}

// LogReturns computes r_t = ln(p_t / p_{t-1}) with the same skipping rules as PctChange.
func LogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev, cur := prices[i-1], prices[i]
		if math.IsNaN(prev) || math.IsNaN(cur) || prev <= 0 || cur <= 0 {
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}
