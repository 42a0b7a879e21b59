package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"FinForecast/internal/domain/models"
	"FinForecast/pkg/util"
)

// ReportBundle collects everything an exported report shows. A section that
// failed is nil and its error is listed under Errors.
type ReportBundle struct {
	Analysis *AnalysisRun
	Forecast *models.ForecastResult
	Errors   map[string]string
}

// ReportUseCase runs the analysis of a watchlist and the forecast of its first
// symbol side by side.
type ReportUseCase struct {
	analysis *AnalysisUseCase
	forecast *ForecastUseCase
	timeout  time.Duration
}

func NewReportUseCase(analysis *AnalysisUseCase, forecast *ForecastUseCase) *ReportUseCase {
	return &ReportUseCase{analysis: analysis, forecast: forecast, timeout: 2 * time.Minute}
}

type ReportParams struct {
	Analysis AnalysisParams
	Window   int
}

// Build fails only when the analysis fails; a failed forecast is reported in
// Errors so the workbook still carries prices and statistics.
func (uc *ReportUseCase) Build(ctx context.Context, p ReportParams) (*ReportBundle, error) {
	p.Analysis.Symbols = util.NormalizeSymbols(p.Analysis.Symbols)
	if len(p.Analysis.Symbols) == 0 {
		return nil, fmt.Errorf("%w: at least one symbol is required", ErrInvalidRequest)
	}

	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	res := &ReportBundle{Errors: map[string]string{}}

	type item struct {
		name string
		val  interface{}
		err  error
	}
	ch := make(chan item, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := uc.analysis.Run(ctx, p.Analysis)
		ch <- item{"analysis", v, err}
	}()
	if uc.forecast != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := uc.forecast.Forecast(ctx, ForecastParams{
				Symbol: p.Analysis.Symbols[0],
				Start:  p.Analysis.Start,
				End:    p.Analysis.End,
				Window: p.Window,
			})
			ch <- item{"forecast", v, err}
		}()
	}

	go func() { wg.Wait(); close(ch) }()

	var analysisErr error
	for it := range ch {
		if it.err != nil {
			res.Errors[it.name] = it.err.Error()
			if it.name == "analysis" {
				analysisErr = it.err
			}
			continue
		}
		switch it.name {
		case "analysis":
			res.Analysis = it.val.(*AnalysisRun)
		case "forecast":
			res.Forecast = it.val.(*models.ForecastResult)
		}
	}
	if analysisErr != nil {
		return nil, analysisErr
	}
	if len(res.Errors) == 0 {
		res.Errors = nil
	}
	return res, nil
}
