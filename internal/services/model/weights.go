package model

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gonum.org/v1/gonum/mat"
)

// LayerWeights mirrors the exported arrays of one parametric layer.
// LSTM kernels are (in, 4*units) and (units, 4*units) with gates ordered
// input, forget, cell, output. Dense kernels are (in, units).
type LayerWeights struct {
	Name            string      `json:"name"`
	Kernel          [][]float64 `json:"kernel"`
	RecurrentKernel [][]float64 `json:"recurrent_kernel,omitempty"`
	Bias            []float64   `json:"bias"`
}

// WeightsFile is the JSON document exported after training.
type WeightsFile struct {
	Window int            `json:"window"`
	Layers []LayerWeights `json:"layers"`
}

// ReadWeights decodes a weights document.
func ReadWeights(r io.Reader) (*WeightsFile, error) {
	var wf WeightsFile
	if err := json.NewDecoder(r).Decode(&wf); err != nil {
		return nil, fmt.Errorf("decode weights: %w", err)
	}
	return &wf, nil
}

// LoadWeightsFile reads a weights document from disk.
func LoadWeightsFile(path string) (*WeightsFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open weights: %w", err)
	}
	defer f.Close()
	return ReadWeights(f)
}

// toDense checks rows x cols and copies the nested slice into a matrix.
func toDense(name string, rows [][]float64, r, c int) (*mat.Dense, error) {
	if len(rows) != r {
		return nil, fmt.Errorf("%s: expected %d rows, got %d", name, r, len(rows))
	}
	data := make([]float64, 0, r*c)
	for i, row := range rows {
		if len(row) != c {
			return nil, fmt.Errorf("%s: row %d has %d columns, expected %d", name, i, len(row), c)
		}
		data = append(data, row...)
	}
	return mat.NewDense(r, c, data), nil
}
