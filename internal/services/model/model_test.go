package model

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForecastNetworkSummary(t *testing.T) {
	net, err := NewForecastNetwork(60)
	require.NoError(t, err)

	s := net.Summary()
	require.Len(t, s.Layers, 5)

	want := []struct {
		kind   string
		shape  []int
		params int
	}{
		{KindLSTM, []int{60, 50}, 10400},
		{KindDropout, []int{60, 50}, 0},
		{KindLSTM, []int{50}, 20200},
		{KindDropout, []int{50}, 0},
		{KindDense, []int{1}, 51},
	}
	for i, w := range want {
		assert.Equal(t, w.kind, s.Layers[i].Kind, "layer %d", i)
		assert.Equal(t, w.shape, s.Layers[i].OutputShape, "layer %d", i)
		assert.Equal(t, w.params, s.Layers[i].Params, "layer %d", i)
	}
	assert.Equal(t, 30651, s.TotalParams)
	assert.Equal(t, "adam", s.Compile.Optimizer)
	assert.Equal(t, "mean_squared_error", s.Compile.Loss)
	assert.Contains(t, s.String(), "Total params: 30651")
	assert.Contains(t, s.String(), "(None, 60, 50)")
}

func TestParamsDoNotDependOnWindow(t *testing.T) {
	a, err := NewForecastNetwork(10)
	require.NoError(t, err)
	b, err := NewForecastNetwork(120)
	require.NoError(t, err)
	assert.Equal(t, a.Summary().TotalParams, b.Summary().TotalParams)
}

func TestNewStackedLSTMValidation(t *testing.T) {
	_, err := NewStackedLSTM(0, 50, 0.2)
	assert.Error(t, err)
	_, err = NewStackedLSTM(60, 0, 0.2)
	assert.Error(t, err)
	_, err = NewStackedLSTM(60, 50, 1)
	assert.Error(t, err)
}

func fill(rows, cols int, v float64) [][]float64 {
	out := make([][]float64, rows)
	for i := range out {
		out[i] = make([]float64, cols)
		for j := range out[i] {
			out[i][j] = v
		}
	}
	return out
}

// weightsFor builds a document where every kernel entry is k and every LSTM
// bias is zero; the dense bias is db.
func weightsFor(net *Network, k, db float64) *WeightsFile {
	wf := &WeightsFile{Window: net.Window}
	in := net.Features
	for _, l := range net.Layers {
		switch l.Kind {
		case KindLSTM:
			wf.Layers = append(wf.Layers, LayerWeights{
				Name:            l.Name,
				Kernel:          fill(in, 4*l.Units, k),
				RecurrentKernel: fill(l.Units, 4*l.Units, k),
				Bias:            make([]float64, 4*l.Units),
			})
			in = l.Units
		case KindDense:
			bias := make([]float64, l.Units)
			for i := range bias {
				bias[i] = db
			}
			wf.Layers = append(wf.Layers, LayerWeights{Name: l.Name, Kernel: fill(in, l.Units, k), Bias: bias})
			in = l.Units
		}
	}
	return wf
}

func TestLocalForecasterZeroWeightsYieldDenseBias(t *testing.T) {
	net, err := NewForecastNetwork(60)
	require.NoError(t, err)
	f, err := NewLocalForecaster(net, weightsFor(net, 0, 0.5))
	require.NoError(t, err)

	windows := fill(3, 60, 0.7)
	out, err := f.Predict(context.Background(), windows)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.5, 0.5}, out)
	assert.Equal(t, "lstm", f.Name())
}

// scalarLSTM runs a one-unit cell whose kernel and recurrent weights are all 1.
func scalarLSTM(xs []float64) []float64 {
	sig := func(v float64) float64 { return 1 / (1 + math.Exp(-v)) }
	h, c := 0.0, 0.0
	out := make([]float64, len(xs))
	for t, x := range xs {
		z := x + h
		c = sig(z)*c + sig(z)*math.Tanh(z)
		h = sig(z) * math.Tanh(c)
		out[t] = h
	}
	return out
}

func TestLocalForecasterMatchesScalarRecurrence(t *testing.T) {
	net, err := NewStackedLSTM(3, 1, 0)
	require.NoError(t, err)
	f, err := NewLocalForecaster(net, weightsFor(net, 1, 0))
	require.NoError(t, err)

	windows := [][]float64{{0.1, 0.5, 0.9}, {1, 0, -1}}
	out, err := f.Predict(context.Background(), windows)
	require.NoError(t, err)

	for i, w := range windows {
		first := scalarLSTM(w)
		second := scalarLSTM(first)
		assert.InDelta(t, second[len(second)-1], out[i], 1e-12, "window %d", i)
	}
}

func TestLocalForecasterShapeErrors(t *testing.T) {
	net, err := NewForecastNetwork(5)
	require.NoError(t, err)

	wf := weightsFor(net, 0, 0)
	wf.Layers[0].Bias = wf.Layers[0].Bias[:10]
	_, err = NewLocalForecaster(net, wf)
	assert.Error(t, err)

	wf = weightsFor(net, 0, 0)
	wf.Layers = wf.Layers[:2]
	_, err = NewLocalForecaster(net, wf)
	assert.Error(t, err)

	wf = weightsFor(net, 0, 0)
	wf.Window = 7
	_, err = NewLocalForecaster(net, wf)
	assert.Error(t, err)

	f, err := NewLocalForecaster(net, weightsFor(net, 0, 0))
	require.NoError(t, err)
	_, err = f.Predict(context.Background(), [][]float64{{1, 2}})
	assert.Error(t, err)
}

func TestLocalForecasterFromFile(t *testing.T) {
	net, err := NewForecastNetwork(4)
	require.NoError(t, err)
	b, err := json.Marshal(weightsFor(net, 0, 0.25))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "weights.json")
	require.NoError(t, os.WriteFile(path, b, 0o644))

	f, err := NewLocalForecasterFromFile(4, path)
	require.NoError(t, err)
	out, err := f.Predict(context.Background(), fill(2, 4, 0.1))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 0.25}, out)

	_, err = ReadWeights(strings.NewReader("{"))
	assert.Error(t, err)
	_, err = LoadWeightsFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestNaiveForecaster(t *testing.T) {
	out, err := NaiveForecaster{}.Predict(context.Background(), [][]float64{{1, 2, 3}, {4}, {}})
	require.NoError(t, err)
	assert.Equal(t, 3.0, out[0])
	assert.Equal(t, 4.0, out[1])
	assert.True(t, math.IsNaN(out[2]))
}

// singleLSTM is LSTM(units) -> Dense(1) over a window of 3.
func singleLSTM(units int) *Network {
	return &Network{
		Window:   3,
		Features: 1,
		Layers: []LayerSpec{
			{Name: "lstm", Kind: KindLSTM, Units: units},
			{Name: "dense", Kind: KindDense, Units: 1},
		},
	}
}

// Expected outputs were computed by hand from the cell equations with gates
// laid out input, forget, cell, output along the 4*units axis.
func TestLocalForecasterGateLayout(t *testing.T) {
	tests := []struct {
		name    string
		units   int
		weights []LayerWeights
		want    []float64
	}{
		{
			name:  "one unit",
			units: 1,
			weights: []LayerWeights{
				{
					Name:            "lstm",
					Kernel:          [][]float64{{0.5, -0.3, 0.8, 0.2}},
					RecurrentKernel: [][]float64{{0.1, 0.4, -0.6, 0.7}},
					Bias:            []float64{0.05, 1.0, -0.1, 0.2},
				},
				{Name: "dense", Kernel: [][]float64{{1.5}}, Bias: []float64{-0.25}},
			},
			want: []float64{0.12043730032492106, -0.37118763126443044},
		},
		{
			name:  "two units",
			units: 2,
			weights: []LayerWeights{
				{
					Name:   "lstm",
					Kernel: [][]float64{{0.5, -0.2, -0.3, 0.6, 0.8, -0.4, 0.2, 0.9}},
					RecurrentKernel: [][]float64{
						{0.1, 0.3, 0.4, -0.2, -0.6, 0.5, 0.7, -0.1},
						{-0.3, 0.2, 0.1, 0.6, 0.4, -0.5, -0.2, 0.3},
					},
					Bias: []float64{0.05, -0.05, 1.0, 0.5, -0.1, 0.1, 0.2, -0.3},
				},
				{Name: "dense", Kernel: [][]float64{{1.2}, {-0.7}}, Bias: []float64{0.1}},
			},
			want: []float64{0.4451236087926891, -0.04833142694531495},
		},
	}
	windows := [][]float64{{0.1, 0.5, 0.9}, {1, 0, -1}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewLocalForecaster(singleLSTM(tt.units), &WeightsFile{Window: 3, Layers: tt.weights})
			require.NoError(t, err)

			out, err := f.Predict(context.Background(), windows)
			require.NoError(t, err)
			require.Len(t, out, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], out[i], 1e-12, "window %d", i)
			}
		})
	}
}

func TestLocalForecasterGateOrderMatters(t *testing.T) {
	lw := LayerWeights{
		Name:            "lstm",
		Kernel:          [][]float64{{0.5, -0.3, 0.8, 0.2}},
		RecurrentKernel: [][]float64{{0.1, 0.4, -0.6, 0.7}},
		Bias:            []float64{0.05, 1.0, -0.1, 0.2},
	}
	dense := LayerWeights{Name: "dense", Kernel: [][]float64{{1}}, Bias: []float64{0}}
	swapped := lw
	// forget and output gates exchanged
	swapped.Kernel = [][]float64{{0.5, 0.2, 0.8, -0.3}}
	swapped.RecurrentKernel = [][]float64{{0.1, 0.7, -0.6, 0.4}}
	swapped.Bias = []float64{0.05, 0.2, -0.1, 1.0}

	a, err := NewLocalForecaster(singleLSTM(1), &WeightsFile{Layers: []LayerWeights{lw, dense}})
	require.NoError(t, err)
	b, err := NewLocalForecaster(singleLSTM(1), &WeightsFile{Layers: []LayerWeights{swapped, dense}})
	require.NoError(t, err)

	w := [][]float64{{0.1, 0.5, 0.9}}
	outA, err := a.Predict(context.Background(), w)
	require.NoError(t, err)
	outB, err := b.Predict(context.Background(), w)
	require.NoError(t, err)
	assert.Greater(t, math.Abs(outA[0]-outB[0]), 1e-3)
}
