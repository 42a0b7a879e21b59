package service

import "context"

// Forecaster predicts the next scaled value for each input window.
// Windows and predictions live in the scaler's [0,1] space.
type Forecaster interface {
	Name() string
	Predict(ctx context.Context, windows [][]float64) ([]float64, error)
}
