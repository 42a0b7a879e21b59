package analytics

import (
	"math"

	"FinForecast/internal/domain/models"
)

// Flatten concatenates rows, e.g. an (n,1) prediction matrix, into one series.
func Flatten(rows [][]float64) []float64 {
	n := 0
	for _, r := range rows {
		n += len(r)
	}
	out := make([]float64, 0, n)
	for _, r := range rows {
		out = append(out, r...)
	}
	return out
}

// Evaluate scores predicted against actual over the positions where both are
// valid numbers. Series of different length are paired up to the shorter one.
// With no valid pair the record carries NaN metrics and Valid=false.
// MAPE is expressed in percent; a zero actual is guarded by machine epsilon.
func Evaluate(actual, predicted []float64, model string) models.MetricsRecord {
	n := len(actual)
	if len(predicted) < n {
		n = len(predicted)
	}

	var absSum, sqSum, pctSum float64
	count := 0
	for i := 0; i < n; i++ {
		a, p := actual[i], predicted[i]
		if math.IsNaN(a) || math.IsNaN(p) {
			continue
		}
		e := a - p
		absSum += math.Abs(e)
		sqSum += e * e
		pctSum += math.Abs(e) / math.Max(math.Abs(a), epsilon)
		count++
	}

	if count == 0 {
		nan := models.Float(math.NaN())
		return models.MetricsRecord{Model: model, MAE: nan, RMSE: nan, MAPE: nan}
	}

	c := float64(count)
	return models.MetricsRecord{
		Model: model,
		MAE:   models.Float(absSum / c),
		RMSE:  models.Float(math.Sqrt(sqSum / c)),
		MAPE:  models.Float(pctSum / c * 100),
		N:     count,
		Valid: true,
	}
}

// epsilon matches float64 machine epsilon.
const epsilon = 2.220446049250313e-16
