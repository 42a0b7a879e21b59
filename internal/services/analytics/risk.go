package analytics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"FinForecast/internal/domain/models"
)

const (
	TradingDaysPerYear  = 252
	DefaultRiskFreeRate = 0.02
)

// SharpeRatio annualises mean excess return over the sample standard
// deviation of the raw returns: mean(r - rf/252) / std(r) * sqrt(252).
// Degenerate input yields NaN or ±Inf.
func SharpeRatio(returns []float64, annualRiskFree float64) float64 {
	dailyRf := annualRiskFree / TradingDaysPerYear
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - dailyRf
	}
	return stat.Mean(excess, nil) / stat.StdDev(returns, nil) * math.Sqrt(TradingDaysPerYear)
}

// ValueAtRisk95 is the 5th percentile of the raw return distribution.
func ValueAtRisk95(returns []float64) float64 {
	return Percentile(returns, 5)
}

// Percentile returns the p-th percentile (0..100) with linear interpolation
// between closest ranks at position p/100*(n-1). NaN for empty input or when
// any value is NaN.
func Percentile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	for _, v := range xs {
		if math.IsNaN(v) {
			return math.NaN()
		}
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)

	pos := p / 100 * float64(len(s)-1)
	lo := int(math.Floor(pos))
	if lo < 0 {
		return s[0]
	}
	if lo >= len(s)-1 {
		return s[len(s)-1]
	}
	frac := pos - float64(lo)
	return s[lo] + (s[lo+1]-s[lo])*frac
}

// RiskMetrics computes the Sharpe ratio and 95% VaR of a daily return series,
// plus the annualised volatility over the full sample.
func RiskMetrics(symbol string, returns []float64, annualRiskFree float64) models.RiskMetrics {
	return models.RiskMetrics{
		Symbol:       symbol,
		Sharpe:       models.Float(SharpeRatio(returns, annualRiskFree)),
		VaR95:        models.Float(ValueAtRisk95(returns)),
		Volatility:   models.Float(AnnualizedVolatility(returns, 0, TradingDaysPerYear)),
		RiskFreeRate: models.Float(annualRiskFree),
		Observations: len(returns),
	}
}
