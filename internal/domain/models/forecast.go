package models

import "time"

// MetricsRecord holds forecast error metrics for one model.
// When Valid is false every metric is NaN.
type MetricsRecord struct {
	Model string `json:"model"`
	MAE   Float  `json:"mae"`
	RMSE  Float  `json:"rmse"`
	MAPE  Float  `json:"mape"`
	N     int    `json:"n"`
	Valid bool   `json:"valid"`
}

// ForecastResult is the out-of-sample evaluation of a forecaster on one symbol.
type ForecastResult struct {
	ID          string          `json:"id"`
	Symbol      string          `json:"symbol"`
	Model       string          `json:"model"`
	Window      int             `json:"window"`
	TrainSize   int             `json:"train_size"`
	TestSize    int             `json:"test_size"`
	Dates       []time.Time     `json:"dates"`
	Actual      []float64       `json:"actual"`
	Predicted   []float64       `json:"predicted"`
	Metrics     []MetricsRecord `json:"metrics"`
	GeneratedAt time.Time       `json:"generated_at"`
}
