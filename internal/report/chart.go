package report

import (
	"errors"
	"fmt"
	"math"

	"github.com/vicanso/go-charts/v2"

	"FinForecast/internal/domain/models"
	"FinForecast/pkg/util"
)

// RenderForecastChart draws actual against predicted closes over the test
// period as a PNG.
func RenderForecastChart(fc *models.ForecastResult) ([]byte, error) {
	if fc == nil || len(fc.Actual) == 0 {
		return nil, errors.New("no forecast data")
	}
	if len(fc.Actual) != len(fc.Predicted) || len(fc.Dates) != len(fc.Actual) {
		return nil, fmt.Errorf("forecast series lengths differ: dates %d, actual %d, predicted %d",
			len(fc.Dates), len(fc.Actual), len(fc.Predicted))
	}

	labels := make([]string, len(fc.Dates))
	for i, d := range fc.Dates {
		labels[i] = util.FormatDate(d)
	}
	yMin, yMax := math.Inf(1), math.Inf(-1)
	for _, xs := range [][]float64{fc.Actual, fc.Predicted} {
		for _, v := range xs {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.New("forecast contains non-finite values")
			}
			yMin = math.Min(yMin, v)
			yMax = math.Max(yMax, v)
		}
	}
	pad := (yMax - yMin) * 0.05
	if pad < yMax*0.002 {
		pad = yMax * 0.002
	}
	yMin -= pad
	if yMin < 0 {
		yMin = 0
	}
	yMax += pad

	split := 8
	if len(labels) < split {
		split = len(labels)
	}

	painter, err := charts.LineRender([][]float64{fc.Actual, fc.Predicted},
		charts.TitleTextOptionFunc(fc.Symbol+" • "+fc.Model+" forecast", fmt.Sprintf("window %d • test %d days", fc.Window, fc.TestSize)),
		charts.XAxisOptionFunc(charts.XAxisOption{Data: labels, BoundaryGap: charts.FalseFlag(), SplitNumber: split}),
		charts.YAxisOptionFunc(charts.YAxisOption{Min: &yMin, Max: &yMax, DivideCount: 5}),
		charts.LegendOptionFunc(charts.LegendOption{Data: []string{"Actual", "Predicted"}}),
		charts.ThemeOptionFunc(charts.ThemeLight),
	)
	if err != nil {
		return nil, fmt.Errorf("render forecast chart: %w", err)
	}
	img, err := painter.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encode forecast chart: %w", err)
	}
	return img, nil
}
