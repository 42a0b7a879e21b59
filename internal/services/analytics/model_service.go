package analytics

import (
	"context"
	"fmt"
	"time"

	domsvc "FinForecast/internal/domain/service"
)

// HTTPModelForecaster delegates inference to an external model-serving
// endpoint that hosts the trained recurrent network.
type HTTPModelForecaster struct {
	base *HTTPServiceBase
	name string
}

func NewHTTPModelForecaster(baseURL string, timeout time.Duration) *HTTPModelForecaster {
	return &HTTPModelForecaster{base: NewHTTPServiceBase(baseURL, timeout), name: "lstm-remote"}
}

type predictReq struct {
	// shape (batch, window, 1)
	Instances [][][1]float64 `json:"instances"`
}

type predictResp struct {
	Predictions [][]float64 `json:"predictions"`
}

func (f *HTTPModelForecaster) Name() string { return f.name }

func (f *HTTPModelForecaster) Predict(ctx context.Context, windows [][]float64) ([]float64, error) {
	if len(windows) == 0 {
		return []float64{}, nil
	}
	req := predictReq{Instances: make([][][1]float64, len(windows))}
	for i, w := range windows {
		steps := make([][1]float64, len(w))
		for j, v := range w {
			steps[j] = [1]float64{v}
		}
		req.Instances[i] = steps
	}

	var resp predictResp
	if err := f.base.PostJSON(ctx, "/v1/models/lstm:predict", req, &resp); err != nil {
		return nil, fmt.Errorf("remote predict: %w", err)
	}
	out := Flatten(resp.Predictions)
	if len(out) != len(windows) {
		return nil, fmt.Errorf("remote predict: got %d predictions for %d windows", len(out), len(windows))
	}
	return out, nil
}

var _ domsvc.Forecaster = (*HTTPModelForecaster)(nil)
