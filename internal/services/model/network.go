package model

import (
	"fmt"
	"strings"
)

// Layer kinds.
const (
	KindLSTM    = "lstm"
	KindDropout = "dropout"
	KindDense   = "dense"
)

const (
	DefaultUnits   = 50
	DefaultDropout = 0.2
)

// LayerSpec declares one layer of a sequential network.
type LayerSpec struct {
	Name            string  `json:"name"`
	Kind            string  `json:"kind"`
	Units           int     `json:"units,omitempty"`
	Rate            float64 `json:"rate,omitempty"`
	ReturnSequences bool    `json:"return_sequences,omitempty"`
}

// CompileConfig is the optimizer/loss pair a trainer would compile with.
type CompileConfig struct {
	Optimizer    string  `json:"optimizer"`
	Loss         string  `json:"loss"`
	LearningRate float64 `json:"learning_rate"`
}

// Network is a declarative sequential model over inputs of shape (Window, Features).
// It is never trained here; see LocalForecaster for inference.
type Network struct {
	Window   int           `json:"window"`
	Features int           `json:"features"`
	Layers   []LayerSpec   `json:"layers"`
	Compile  CompileConfig `json:"compile"`
}

// NewForecastNetwork returns the two-layer stacked LSTM used for next-step
// price forecasting:
// LSTM(50, seq) -> Dropout(0.2) -> LSTM(50) -> Dropout(0.2) -> Dense(1).
func NewForecastNetwork(window int) (*Network, error) {
	return NewStackedLSTM(window, DefaultUnits, DefaultDropout)
}

// NewStackedLSTM builds the same topology with custom width and dropout rate.
func NewStackedLSTM(window, units int, dropout float64) (*Network, error) {
	if window <= 0 {
		return nil, fmt.Errorf("window must be positive, got %d", window)
	}
	if units <= 0 {
		return nil, fmt.Errorf("units must be positive, got %d", units)
	}
	if dropout < 0 || dropout >= 1 {
		return nil, fmt.Errorf("dropout rate must be in [0,1), got %v", dropout)
	}
	return &Network{
		Window:   window,
		Features: 1,
		Layers: []LayerSpec{
			{Name: "lstm", Kind: KindLSTM, Units: units, ReturnSequences: true},
			{Name: "dropout", Kind: KindDropout, Rate: dropout},
			{Name: "lstm_1", Kind: KindLSTM, Units: units},
			{Name: "dropout_1", Kind: KindDropout, Rate: dropout},
			{Name: "dense", Kind: KindDense, Units: 1},
		},
		Compile: CompileConfig{Optimizer: "adam", Loss: "mean_squared_error", LearningRate: 0.001},
	}, nil
}

// LayerSummary is one row of Summary.
type LayerSummary struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	OutputShape []int  `json:"output_shape"`
	Params      int    `json:"params"`
}

// Summary describes output shapes and parameter counts per layer.
// The leading batch dimension is omitted from shapes.
type Summary struct {
	Window      int            `json:"window"`
	Layers      []LayerSummary `json:"layers"`
	TotalParams int            `json:"total_params"`
	Compile     CompileConfig  `json:"compile"`
}

// Summary walks the layers tracking the feature width that flows between them.
func (n *Network) Summary() Summary {
	s := Summary{Window: n.Window, Compile: n.Compile}
	steps, width := n.Window, n.Features
	seq := true
	for _, l := range n.Layers {
		row := LayerSummary{Name: l.Name, Kind: l.Kind}
		switch l.Kind {
		case KindLSTM:
			row.Params = lstmParams(width, l.Units)
			width = l.Units
			seq = l.ReturnSequences
		case KindDense:
			row.Params = width*l.Units + l.Units
			width = l.Units
		}
		if seq {
			row.OutputShape = []int{steps, width}
		} else {
			row.OutputShape = []int{width}
		}
		s.TotalParams += row.Params
		s.Layers = append(s.Layers, row)
	}
	return s
}

// String renders the summary as a fixed-width table.
func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %-10s %-12s %10s\n", "Layer", "Kind", "Output", "Params")
	for _, l := range s.Layers {
		fmt.Fprintf(&b, "%-12s %-10s %-12s %10d\n", l.Name, l.Kind, shapeString(l.OutputShape), l.Params)
	}
	fmt.Fprintf(&b, "Total params: %d\n", s.TotalParams)
	fmt.Fprintf(&b, "Optimizer: %s, loss: %s\n", s.Compile.Optimizer, s.Compile.Loss)
	return b.String()
}

// 4 gates, each with input kernel, recurrent kernel and bias.
func lstmParams(in, units int) int {
	return 4 * units * (in + units + 1)
}

func shapeString(shape []int) string {
	parts := make([]string, 0, len(shape)+1)
	parts = append(parts, "None")
	for _, d := range shape {
		parts = append(parts, fmt.Sprint(d))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
