package preprocess

import (
	"errors"
	"math"
)

var ErrNotFitted = errors.New("scaler is not fitted")

// MinMaxScaler maps values linearly onto [0,1] using the observed min and max.
// A constant series scales to 0 and inverts back to the constant.
type MinMaxScaler struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	fitted bool
}

// NewMinMaxScaler returns a scaler with explicit bounds, e.g. restored from JSON.
func NewMinMaxScaler(min, max float64) *MinMaxScaler {
	return &MinMaxScaler{Min: min, Max: max, fitted: true}
}

// Fit records the min and max of xs, ignoring NaN.
func (s *MinMaxScaler) Fit(xs []float64) error {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range xs {
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if math.IsInf(lo, 1) {
		return errors.New("scaler fit: no finite values")
	}
	s.Min, s.Max, s.fitted = lo, hi, true
	return nil
}

func (s *MinMaxScaler) Fitted() bool { return s.fitted }

func (s *MinMaxScaler) scale() float64 {
	if r := s.Max - s.Min; r != 0 {
		return r
	}
	return 1
}

// Transform returns a scaled copy of xs.
func (s *MinMaxScaler) Transform(xs []float64) ([]float64, error) {
	if !s.fitted {
		return nil, ErrNotFitted
	}
	r := s.scale()
	out := make([]float64, len(xs))
	for i, v := range xs {
		out[i] = (v - s.Min) / r
	}
	return out, nil
}

// FitTransform fits on xs and returns the scaled copy.
func (s *MinMaxScaler) FitTransform(xs []float64) ([]float64, error) {
	if err := s.Fit(xs); err != nil {
		return nil, err
	}
	return s.Transform(xs)
}

// InverseTransform maps scaled values back to the original range.
func (s *MinMaxScaler) InverseTransform(xs []float64) ([]float64, error) {
	if !s.fitted {
		return nil, ErrNotFitted
	}
	r := s.scale()
	out := make([]float64, len(xs))
	for i, v := range xs {
		out[i] = v*r + s.Min
	}
	return out, nil
}
