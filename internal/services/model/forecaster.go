package model

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	domsvc "FinForecast/internal/domain/service"
)

type step interface {
	forward(seq []*mat.Dense) []*mat.Dense
}

// LocalForecaster runs the network's inference pass in-process with weights
// exported from a trained model. Dropout is the identity at inference time.
type LocalForecaster struct {
	net   *Network
	steps []step
}

// NewLocalForecaster binds exported weights to net, checking every shape.
func NewLocalForecaster(net *Network, wf *WeightsFile) (*LocalForecaster, error) {
	if net == nil || wf == nil {
		return nil, fmt.Errorf("network and weights are required")
	}
	if wf.Window != 0 && wf.Window != net.Window {
		return nil, fmt.Errorf("weights exported for window %d, network expects %d", wf.Window, net.Window)
	}

	f := &LocalForecaster{net: net}
	width, next := net.Features, 0
	for _, l := range net.Layers {
		switch l.Kind {
		case KindDropout:
			continue
		case KindLSTM, KindDense:
		default:
			return nil, fmt.Errorf("unsupported layer kind %q", l.Kind)
		}
		if next >= len(wf.Layers) {
			return nil, fmt.Errorf("missing weights for layer %s", l.Name)
		}
		lw := wf.Layers[next]
		next++

		var (
			s   step
			err error
		)
		if l.Kind == KindLSTM {
			s, err = newLSTMStep(l, lw, width)
		} else {
			s, err = newDenseStep(l, lw, width)
		}
		if err != nil {
			return nil, err
		}
		f.steps = append(f.steps, s)
		width = l.Units
	}
	if next != len(wf.Layers) {
		return nil, fmt.Errorf("weights carry %d layers, network uses %d", len(wf.Layers), next)
	}
	return f, nil
}

// NewLocalForecasterFromFile loads weights from path for the default topology.
func NewLocalForecasterFromFile(window int, path string) (*LocalForecaster, error) {
	net, err := NewForecastNetwork(window)
	if err != nil {
		return nil, err
	}
	wf, err := LoadWeightsFile(path)
	if err != nil {
		return nil, err
	}
	return NewLocalForecaster(net, wf)
}

func (f *LocalForecaster) Name() string { return "lstm" }

// Network exposes the bound topology.
func (f *LocalForecaster) Network() *Network { return f.net }

// Window is the only input length Predict accepts.
func (f *LocalForecaster) Window() int { return f.net.Window }

// Predict returns one scaled next-step value per window. Every window must be
// exactly net.Window long.
func (f *LocalForecaster) Predict(ctx context.Context, windows [][]float64) ([]float64, error) {
	if len(windows) == 0 {
		return []float64{}, nil
	}
	for i, w := range windows {
		if len(w) != f.net.Window {
			return nil, fmt.Errorf("window %d has length %d, expected %d", i, len(w), f.net.Window)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// one (batch, 1) matrix per time step
	seq := make([]*mat.Dense, f.net.Window)
	for t := range seq {
		col := make([]float64, len(windows))
		for i, w := range windows {
			col[i] = w[t]
		}
		seq[t] = mat.NewDense(len(windows), 1, col)
	}

	for _, s := range f.steps {
		seq = s.forward(seq)
	}

	last := seq[len(seq)-1]
	out := make([]float64, len(windows))
	for i := range out {
		out[i] = last.At(i, 0)
	}
	return out, nil
}

type lstmStep struct {
	units     int
	returnSeq bool
	kernel    *mat.Dense
	recur     *mat.Dense
	bias      []float64
}

func newLSTMStep(l LayerSpec, lw LayerWeights, in int) (*lstmStep, error) {
	u := l.Units
	kernel, err := toDense(l.Name+".kernel", lw.Kernel, in, 4*u)
	if err != nil {
		return nil, err
	}
	recur, err := toDense(l.Name+".recurrent_kernel", lw.RecurrentKernel, u, 4*u)
	if err != nil {
		return nil, err
	}
	if len(lw.Bias) != 4*u {
		return nil, fmt.Errorf("%s.bias: expected %d values, got %d", l.Name, 4*u, len(lw.Bias))
	}
	return &lstmStep{units: u, returnSeq: l.ReturnSequences, kernel: kernel, recur: recur, bias: lw.Bias}, nil
}

func (s *lstmStep) forward(seq []*mat.Dense) []*mat.Dense {
	batch, _ := seq[0].Dims()
	u := s.units
	h := mat.NewDense(batch, u, nil)
	c := make([]float64, batch*u)

	var out []*mat.Dense
	var z, zr mat.Dense
	for _, x := range seq {
		z.Mul(x, s.kernel)
		zr.Mul(h, s.recur)
		z.Add(&z, &zr)

		next := mat.NewDense(batch, u, nil)
		for i := 0; i < batch; i++ {
			row := z.RawRowView(i)
			for j := 0; j < u; j++ {
				ig := sigmoid(row[j] + s.bias[j])
				fg := sigmoid(row[u+j] + s.bias[u+j])
				g := math.Tanh(row[2*u+j] + s.bias[2*u+j])
				og := sigmoid(row[3*u+j] + s.bias[3*u+j])
				k := i*u + j
				c[k] = fg*c[k] + ig*g
				next.Set(i, j, og*math.Tanh(c[k]))
			}
		}
		h = next
		if s.returnSeq {
			out = append(out, h)
		}
	}
	if !s.returnSeq {
		out = []*mat.Dense{h}
	}
	return out
}

type denseStep struct {
	kernel *mat.Dense
	bias   []float64
}

func newDenseStep(l LayerSpec, lw LayerWeights, in int) (*denseStep, error) {
	kernel, err := toDense(l.Name+".kernel", lw.Kernel, in, l.Units)
	if err != nil {
		return nil, err
	}
	if len(lw.Bias) != l.Units {
		return nil, fmt.Errorf("%s.bias: expected %d values, got %d", l.Name, l.Units, len(lw.Bias))
	}
	return &denseStep{kernel: kernel, bias: lw.Bias}, nil
}

// forward applies the projection to every step it is given.
func (s *denseStep) forward(seq []*mat.Dense) []*mat.Dense {
	out := make([]*mat.Dense, len(seq))
	for t, x := range seq {
		var y mat.Dense
		y.Mul(x, s.kernel)
		r, c := y.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				y.Set(i, j, y.At(i, j)+s.bias[j])
			}
		}
		out[t] = &y
	}
	return out
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// NaiveForecaster predicts the last observed value of each window.
// It is the persistence baseline forecasts are compared against.
type NaiveForecaster struct{}

func (NaiveForecaster) Name() string { return "naive" }

func (NaiveForecaster) Predict(_ context.Context, windows [][]float64) ([]float64, error) {
	out := make([]float64, len(windows))
	for i, w := range windows {
		if len(w) == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = w[len(w)-1]
	}
	return out, nil
}

var (
	_ domsvc.Forecaster = (*LocalForecaster)(nil)
	_ domsvc.Forecaster = NaiveForecaster{}
)
