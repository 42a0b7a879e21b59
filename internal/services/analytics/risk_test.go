package analytics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValueAtRisk95UniformGrid(t *testing.T) {
	returns := make([]float64, 11)
	for i := range returns {
		returns[i] = -0.05 + 0.01*float64(i)
	}
	assert.InDelta(t, -0.045, ValueAtRisk95(returns), 1e-12)
}

func TestValueAtRisk95IgnoresOrder(t *testing.T) {
	returns := []float64{0.05, -0.05, 0.0, 0.04, -0.04, 0.03, -0.03, 0.02, -0.02, 0.01, -0.01}
	assert.InDelta(t, -0.045, ValueAtRisk95(returns), 1e-12)
	// input untouched
	assert.Equal(t, 0.05, returns[0])
}

func TestPercentile(t *testing.T) {
	tests := []struct {
		name string
		xs   []float64
		p    float64
		want float64
	}{
		{"median even", []float64{1, 2, 3, 4}, 50, 2.5},
		{"min", []float64{3, 1, 2}, 0, 1},
		{"max", []float64{3, 1, 2}, 100, 3},
		{"single", []float64{7}, 5, 7},
		{"quarter", []float64{10, 20, 30, 40, 50}, 25, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Percentile(tt.xs, tt.p), 1e-12)
		})
	}
	assert.True(t, math.IsNaN(Percentile(nil, 5)))
	assert.True(t, math.IsNaN(Percentile([]float64{0.01, math.NaN(), -0.02}, 5)))
	assert.True(t, math.IsNaN(Percentile([]float64{0.01, -0.02, math.NaN()}, 95)))
}

func TestSharpeRatio(t *testing.T) {
	returns := []float64{0.01, 0.02, 0.03}

	assert.InDelta(t, 2*math.Sqrt(252), SharpeRatio(returns, 0), 1e-9)

	// annual 0.0252 -> daily 0.0001; the denominator stays the raw-return std
	assert.InDelta(t, 1.99*math.Sqrt(252), SharpeRatio(returns, 0.0252), 1e-9)
}

func TestSharpeRatioDegenerate(t *testing.T) {
	assert.True(t, math.IsNaN(SharpeRatio(nil, DefaultRiskFreeRate)))
	assert.True(t, math.IsNaN(SharpeRatio([]float64{0.01}, DefaultRiskFreeRate)))
}

func TestRiskMetrics(t *testing.T) {
	rm := RiskMetrics("AAPL", []float64{0.01, -0.02, 0.03, 0.0}, DefaultRiskFreeRate)
	assert.Equal(t, "AAPL", rm.Symbol)
	assert.Equal(t, 4, rm.Observations)
	assert.InDelta(t, 0.02, float64(rm.RiskFreeRate), 1e-12)
	assert.Less(t, float64(rm.VaR95), 0.0)
	assert.False(t, math.IsNaN(float64(rm.Sharpe)))
}

func TestAnnualizedVolatility(t *testing.T) {
	assert.InDelta(t, 0.01*math.Sqrt(252), AnnualizedVolatility([]float64{0.01, 0.02, 0.03}, 0, 252), 1e-12)
	assert.InDelta(t, math.Sqrt(0.0002), AnnualizedVolatility([]float64{0.01, 0.02, 0.03, 0.05}, 2, 1), 1e-12)
	assert.InDelta(t, 0.0, AnnualizedVolatility([]float64{0.02, 0.02}, 0, 252), 1e-12)
	assert.True(t, math.IsNaN(AnnualizedVolatility([]float64{0.01}, 0, 252)))
}
