package analytics

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/mat"

	"FinForecast/internal/domain/models"
)

// ErrInsufficientData is returned when a series is too short for a test.
var ErrInsufficientData = errors.New("insufficient data")

// DefaultSignificance is the p-value threshold for calling a series stationary.
const DefaultSignificance = 0.05

// ADFResult is the unrounded outcome of an Augmented Dickey-Fuller test.
type ADFResult struct {
	Statistic float64
	PValue    float64
	UsedLag   int
	NObs      int
	ICBest    float64
}

// ADF runs the Augmented Dickey-Fuller test with a constant term. The number
// of lagged differences is chosen by minimum AIC over 0..maxlag with
// maxlag = ceil(12*(n/100)^(1/4)) capped at n/2-2, every candidate being
// estimated on the same sample.
func ADF(x []float64) (*ADFResult, error) {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.New("adf: series contains non-finite values")
		}
	}

	n := len(x)
	maxlag := int(math.Ceil(12 * math.Pow(float64(n)/100, 0.25)))
	if c := n/2 - 2; c < maxlag {
		maxlag = c
	}
	if maxlag < 0 {
		return nil, fmt.Errorf("adf: %d observations: %w", n, ErrInsufficientData)
	}

	dx := diff(x)

	// lag search on the sample trimmed by maxlag, columns [const, level, dlags...]
	y, full := adfDesign(x, dx, maxlag, maxlag, true)
	const startlag = 2
	bestLag, bestAIC := -1, math.Inf(1)
	for cols := startlag; cols <= startlag+maxlag; cols++ {
		fit, err := fitOLS(y, sliceCols(full, cols))
		if err != nil {
			return nil, fmt.Errorf("adf lag search: %w", err)
		}
		// strict comparison keeps the smaller lag on ties
		if aic := fit.aic(); aic < bestAIC {
			bestAIC, bestLag = aic, cols-startlag
		}
	}
	if bestLag < 0 {
		return nil, fmt.Errorf("adf: no admissible lag: %w", ErrInsufficientData)
	}

	// final regression on the longer sample, columns [level, dlags..., const]
	y, design := adfDesign(x, dx, bestLag, bestLag, false)
	fit, err := fitOLS(y, design)
	if err != nil {
		return nil, fmt.Errorf("adf regression: %w", err)
	}

	stat := fit.tvalue(0)
	return &ADFResult{
		Statistic: stat,
		PValue:    MacKinnonPValue(stat),
		UsedLag:   bestLag,
		NObs:      len(y),
		ICBest:    bestAIC,
	}, nil
}

// StationarityTest runs ADF on series and classifies it at the given
// significance level (DefaultSignificance when zero). Statistic and p-value
// are rounded half away from zero to 4 decimals for the record only; the
// classification compares the unrounded p-value.
func StationarityTest(series []float64, label string, significance float64) (models.StationarityResult, error) {
	if significance <= 0 {
		significance = DefaultSignificance
	}
	res, err := ADF(series)
	if err != nil {
		return models.StationarityResult{}, fmt.Errorf("stationarity %s: %w", label, err)
	}

	return models.StationarityResult{
		Label:          label,
		Statistic:      round4(res.Statistic),
		PValue:         round4(res.PValue),
		Interpretation: interpret(res.PValue, significance),
		UsedLag:        res.UsedLag,
		NObs:           res.NObs,
	}, nil
}

func interpret(pvalue, significance float64) string {
	if pvalue <= significance {
		return models.Stationary
	}
	return models.NonStationary
}

// adfDesign builds the ADF regression for `lags` lagged differences on the
// sample that starts `trim` differences in. Row r is time t = trim + r:
// y = dx[t], level = x[t], lag k = dx[t-k].
func adfDesign(x, dx []float64, trim, lags int, constFirst bool) ([]float64, *mat.Dense) {
	rows := len(dx) - trim
	if rows <= 0 {
		return nil, nil
	}
	cols := lags + 2
	y := make([]float64, rows)
	data := make([]float64, 0, rows*cols)
	for r := 0; r < rows; r++ {
		t := trim + r
		y[r] = dx[t]
		if constFirst {
			data = append(data, 1)
		}
		data = append(data, x[t])
		for k := 1; k <= lags; k++ {
			data = append(data, dx[t-k])
		}
		if !constFirst {
			data = append(data, 1)
		}
	}
	return y, mat.NewDense(rows, cols, data)
}

func sliceCols(m *mat.Dense, cols int) *mat.Dense {
	if m == nil {
		return nil
	}
	r, _ := m.Dims()
	return m.Slice(0, r, 0, cols).(*mat.Dense)
}

func diff(x []float64) []float64 {
	if len(x) < 2 {
		return nil
	}
	out := make([]float64, len(x)-1)
	for i := range out {
		out[i] = x[i+1] - x[i]
	}
	return out
}

func round4(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(4).InexactFloat64()
}
