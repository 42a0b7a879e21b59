package repository

import (
	"math"
	"sort"
	"time"

	"FinForecast/internal/domain/models"
	domrepo "FinForecast/internal/domain/repository"
	"FinForecast/pkg/util"
)

// buildTable aligns per-symbol bars on the union of their dates.
// A symbol's column uses adjusted closes when the provider returned any,
// otherwise raw closes. Symbols without bars stay all-NaN.
// Returns domrepo.ErrNoData when no symbol has a single bar.
func buildTable(symbols []string, bars map[string][]models.Bar) (*models.PriceTable, error) {
	index := make(map[time.Time]struct{})
	for _, sym := range symbols {
		for _, b := range bars[sym] {
			index[util.Day(b.Date)] = struct{}{}
		}
	}
	if len(index) == 0 {
		return nil, domrepo.ErrNoData
	}

	dates := make([]time.Time, 0, len(index))
	for d := range index {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	row := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		row[d] = i
	}

	table := models.NewPriceTable(dates, append([]string(nil), symbols...))
	for c, sym := range symbols {
		series := bars[sym]
		useAdj := hasAdjusted(series)
		for _, b := range series {
			v := b.Close
			if useAdj {
				v = b.AdjClose
			}
			table.Values[c][row[util.Day(b.Date)]] = v
		}
	}
	return table, nil
}

func hasAdjusted(bars []models.Bar) bool {
	for _, b := range bars {
		if !math.IsNaN(b.AdjClose) {
			return true
		}
	}
	return false
}
