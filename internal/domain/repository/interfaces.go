package repository

import (
	"context"
	"errors"
	"time"

	"FinForecast/internal/domain/models"
)

// ErrNoData is returned when a provider has no observations for any requested symbol.
var ErrNoData = errors.New("no price data returned for any symbol")

// PriceProvider retrieves daily closing prices, adjusted where available.
type PriceProvider interface {
	Fetch(ctx context.Context, symbols []string, start, end time.Time) (*models.PriceTable, error)
}

// ReportPublisher ships finished results downstream.
type ReportPublisher interface {
	PublishAnalysis(ctx context.Context, r *models.AnalysisReport) error
	PublishForecast(ctx context.Context, r *models.ForecastResult) error
	Close() error
}

type Metrics interface {
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordRowsFetched(provider string, rows int)
	RecordRisk(symbol string, sharpe, var95 float64)
	RecordStationarity(symbol, series string, pvalue float64)
	RecordForecast(model string, rmse float64)
}
