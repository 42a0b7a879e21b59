package preprocess

import "fmt"

const DefaultWindowSize = 60

// WindowSet pairs fixed-length input windows with their next-step targets.
// Keep Scaler to map predictions back to price scale.
type WindowSet struct {
	Windows [][]float64
	Targets []float64
	Scaler  *MinMaxScaler
}

func (w *WindowSet) Len() int { return len(w.Targets) }

// BuildWindows scales series to [0,1] with a scaler fitted on the series itself
// and slices it into windows series[i-size:i] with target series[i] for every
// i in [size, len). A series no longer than size yields an empty set.
func BuildWindows(series []float64, size int) (*WindowSet, error) {
	if size <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", size)
	}
	scaler := &MinMaxScaler{}
	if len(series) <= size {
		// still fit when possible so callers can invert later predictions
		_ = scaler.Fit(series)
		return &WindowSet{Windows: [][]float64{}, Targets: []float64{}, Scaler: scaler}, nil
	}
	scaled, err := scaler.FitTransform(series)
	if err != nil {
		return nil, fmt.Errorf("build windows: %w", err)
	}

	n := len(scaled) - size
	set := &WindowSet{
		Windows: make([][]float64, 0, n),
		Targets: make([]float64, 0, n),
		Scaler:  scaler,
	}
	for i := size; i < len(scaled); i++ {
		set.Windows = append(set.Windows, scaled[i-size:i:i])
		set.Targets = append(set.Targets, scaled[i])
	}
	return set, nil
}

// Split divides the set chronologically, the first ratio share going to train.
// Both halves share the scaler.
func (w *WindowSet) Split(ratio float64) (train, test *WindowSet) {
	cut := int(float64(w.Len()) * ratio)
	if cut < 0 {
		cut = 0
	}
	if cut > w.Len() {
		cut = w.Len()
	}
	train = &WindowSet{Windows: w.Windows[:cut], Targets: w.Targets[:cut], Scaler: w.Scaler}
	test = &WindowSet{Windows: w.Windows[cut:], Targets: w.Targets[cut:], Scaler: w.Scaler}
	return train, test
}
