package models

import (
	"math"
	"time"
)

// PriceTable holds one price column per symbol over a shared, ascending date index.
// Missing observations are NaN. Values is column-major: Values[col][row].
type PriceTable struct {
	Dates   []time.Time
	Symbols []string
	Values  [][]float64
}

// NewPriceTable allocates a table with every cell set to NaN.
func NewPriceTable(dates []time.Time, symbols []string) *PriceTable {
	values := make([][]float64, len(symbols))
	for c := range values {
		col := make([]float64, len(dates))
		for r := range col {
			col[r] = math.NaN()
		}
		values[c] = col
	}
	return &PriceTable{Dates: dates, Symbols: symbols, Values: values}
}

func (t *PriceTable) Rows() int { return len(t.Dates) }

func (t *PriceTable) Cols() int { return len(t.Symbols) }

// Column returns the series for symbol, or false if the table has no such column.
func (t *PriceTable) Column(symbol string) ([]float64, bool) {
	for i, s := range t.Symbols {
		if s == symbol {
			return t.Values[i], true
		}
	}
	return nil, false
}

// HasMissing reports whether any cell is NaN.
func (t *PriceTable) HasMissing() bool {
	for _, col := range t.Values {
		for _, v := range col {
			if math.IsNaN(v) {
				return true
			}
		}
	}
	return false
}

// Clone returns a deep copy.
func (t *PriceTable) Clone() *PriceTable {
	out := &PriceTable{
		Dates:   append([]time.Time(nil), t.Dates...),
		Symbols: append([]string(nil), t.Symbols...),
		Values:  make([][]float64, len(t.Values)),
	}
	for i, col := range t.Values {
		out.Values[i] = append([]float64(nil), col...)
	}
	return out
}

// Bar is a single daily observation as returned by a provider.
type Bar struct {
	Date     time.Time
	Close    float64
	AdjClose float64 // NaN when the provider has no adjusted series
}
