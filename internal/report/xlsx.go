package report

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/xuri/excelize/v2"

	"FinForecast/internal/domain/models"
	"FinForecast/pkg/util"
)

const (
	SheetPrices       = "Prices"
	SheetStationarity = "Stationarity"
	SheetRisk         = "Risk"
	SheetForecast     = "Forecast"
)

// Workbook holds what one export shows. Nil sections are left out.
type Workbook struct {
	Prices   *models.PriceTable
	Analysis *models.AnalysisReport
	Forecast *models.ForecastResult
}

// WriteWorkbook renders wb as xlsx into w.
func WriteWorkbook(w io.Writer, wb Workbook) error {
	f, err := buildWorkbook(wb)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// SaveWorkbook renders wb as xlsx at path.
func SaveWorkbook(path string, wb Workbook) error {
	f, err := buildWorkbook(wb)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

func buildWorkbook(wb Workbook) (*excelize.File, error) {
	if wb.Prices == nil && wb.Analysis == nil && wb.Forecast == nil {
		return nil, fmt.Errorf("workbook has no content")
	}
	f := excelize.NewFile()
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("header style: %w", err)
	}
	b := &sheetBuilder{f: f, header: bold}

	if wb.Prices != nil {
		b.prices(wb.Prices)
	}
	if wb.Analysis != nil {
		b.stationarity(wb.Analysis)
		b.risk(wb.Analysis)
	}
	if wb.Forecast != nil {
		b.forecast(wb.Forecast)
	}
	if b.err != nil {
		f.Close()
		return nil, b.err
	}

	// drop the default sheet once at least one of ours exists
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}
	f.SetActiveSheet(0)
	return f, nil
}

// sheetBuilder keeps the first error so section writers stay linear.
type sheetBuilder struct {
	f      *excelize.File
	header int
	err    error
}

func (b *sheetBuilder) sheet(name string, header []interface{}) {
	if b.err != nil {
		return
	}
	if _, err := b.f.NewSheet(name); err != nil {
		b.err = fmt.Errorf("new sheet %s: %w", name, err)
		return
	}
	b.row(name, 1, header)
	if b.err == nil {
		if err := b.f.SetRowStyle(name, 1, 1, b.header); err != nil {
			b.err = fmt.Errorf("style %s: %w", name, err)
		}
	}
}

func (b *sheetBuilder) row(sheet string, n int, values []interface{}) {
	if b.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		b.err = err
		return
	}
	if err := b.f.SetSheetRow(sheet, cell, &values); err != nil {
		b.err = fmt.Errorf("%s row %d: %w", sheet, n, err)
	}
}

func (b *sheetBuilder) prices(t *models.PriceTable) {
	header := []interface{}{"Date"}
	for _, s := range t.Symbols {
		header = append(header, s)
	}
	b.sheet(SheetPrices, header)
	for r, d := range t.Dates {
		row := []interface{}{util.FormatDate(d)}
		for c := range t.Symbols {
			row = append(row, cellValue(t.Values[c][r]))
		}
		b.row(SheetPrices, r+2, row)
	}
}

func (b *sheetBuilder) stationarity(a *models.AnalysisReport) {
	b.sheet(SheetStationarity, []interface{}{"Ticker", "Series", "ADF Statistic", "p-value", "Interpretation", "Used Lag", "Observations"})
	n := 2
	for _, res := range a.Results {
		for _, s := range []struct {
			name string
			r    *models.StationarityResult
		}{{"prices", res.Prices}, {"returns", res.Returns}} {
			if s.r == nil {
				b.row(SheetStationarity, n, []interface{}{res.Symbol, s.name, nil, nil, "insufficient data"})
			} else {
				b.row(SheetStationarity, n, []interface{}{res.Symbol, s.name, s.r.Statistic, s.r.PValue, s.r.Interpretation, s.r.UsedLag, s.r.NObs})
			}
			n++
		}
	}
}

func (b *sheetBuilder) risk(a *models.AnalysisReport) {
	b.sheet(SheetRisk, []interface{}{"Symbol", "Sharpe Ratio", "VaR 95%", "Annualized Volatility", "Risk-free Rate", "Observations", "Warnings"})
	for i, res := range a.Results {
		r := res.Risk
		b.row(SheetRisk, i+2, []interface{}{
			res.Symbol,
			cellValue(float64(r.Sharpe)),
			cellValue(float64(r.VaR95)),
			cellValue(float64(r.Volatility)),
			cellValue(float64(r.RiskFreeRate)),
			r.Observations,
			strings.Join(res.Warnings, "; "),
		})
	}
}

func (b *sheetBuilder) forecast(fc *models.ForecastResult) {
	b.sheet(SheetForecast, []interface{}{"Date", "Actual", "Predicted", "", "Model", "MAE", "RMSE", "MAPE %", "N"})
	for i, d := range fc.Dates {
		row := []interface{}{util.FormatDate(d), nil, nil}
		if i < len(fc.Actual) {
			row[1] = cellValue(fc.Actual[i])
		}
		if i < len(fc.Predicted) {
			row[2] = cellValue(fc.Predicted[i])
		}
		b.row(SheetForecast, i+2, row)
	}
	// metrics table to the right of the series
	for i, m := range fc.Metrics {
		if b.err != nil {
			return
		}
		cell, _ := excelize.CoordinatesToCellName(5, i+2)
		vals := []interface{}{m.Model, cellValue(float64(m.MAE)), cellValue(float64(m.RMSE)), cellValue(float64(m.MAPE)), m.N}
		if err := b.f.SetSheetRow(SheetForecast, cell, &vals); err != nil {
			b.err = fmt.Errorf("forecast metrics: %w", err)
		}
	}
}

// cellValue leaves non-finite numbers as empty cells.
func cellValue(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
