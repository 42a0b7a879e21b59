package preprocess

import (
	"math"
	"time"

	"FinForecast/internal/domain/models"
)

// Clean fills interior gaps in every column by linear interpolation over row
// position, then drops any row that still has a missing value. Leading and
// trailing gaps are never filled. The input table is not modified.
func Clean(t *models.PriceTable) *models.PriceTable {
	filled := t.Clone()
	for _, col := range filled.Values {
		Interpolate(col)
	}

	keep := make([]int, 0, filled.Rows())
	for r := 0; r < filled.Rows(); r++ {
		complete := true
		for _, col := range filled.Values {
			if math.IsNaN(col[r]) {
				complete = false
				break
			}
		}
		if complete {
			keep = append(keep, r)
		}
	}
	return selectRows(filled, keep)
}

// Interpolate fills NaN runs that have a known value on both sides, in place.
func Interpolate(col []float64) {
	prev := -1
	for i, v := range col {
		if math.IsNaN(v) {
			continue
		}
		if prev >= 0 && i-prev > 1 {
			lo, hi := col[prev], v
			span := float64(i - prev)
			for j := prev + 1; j < i; j++ {
				col[j] = lo + (hi-lo)*float64(j-prev)/span
			}
		}
		prev = i
	}
}

func selectRows(t *models.PriceTable, rows []int) *models.PriceTable {
	out := &models.PriceTable{
		Dates:   make([]time.Time, len(rows)),
		Symbols: t.Symbols,
		Values:  make([][]float64, t.Cols()),
	}
	for i, r := range rows {
		out.Dates[i] = t.Dates[r]
	}
	for c, col := range t.Values {
		dst := make([]float64, len(rows))
		for i, r := range rows {
			dst[i] = col[r]
		}
		out.Values[c] = dst
	}
	return out
}
