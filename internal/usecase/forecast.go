package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"FinForecast/internal/domain/models"
	domrepo "FinForecast/internal/domain/repository"
	domsvc "FinForecast/internal/domain/service"
	"FinForecast/internal/services/analytics"
	"FinForecast/internal/services/preprocess"
	"FinForecast/pkg/logger"
)

// ErrWindowMismatch is returned when the request window differs from the one
// the forecaster was built for.
var ErrWindowMismatch = errors.New("window does not match the forecaster")

type ForecastParams struct {
	Symbol string
	Start  time.Time
	End    time.Time
	Window int // 0 uses the configured window
}

type ForecastConfig struct {
	Window     int
	TrainRatio float64
}

// ForecastUseCase evaluates a forecaster out of sample on one symbol, next to
// a persistence baseline.
type ForecastUseCase struct {
	provider   domrepo.PriceProvider
	forecaster domsvc.Forecaster
	baseline   domsvc.Forecaster
	publisher  domrepo.ReportPublisher
	metrics    domrepo.Metrics
	log        *logger.Logger
	cfg        ForecastConfig
	now        func() time.Time
}

func NewForecastUseCase(provider domrepo.PriceProvider, forecaster, baseline domsvc.Forecaster, publisher domrepo.ReportPublisher, metrics domrepo.Metrics, log *logger.Logger, cfg ForecastConfig) *ForecastUseCase {
	if cfg.Window <= 0 {
		cfg.Window = preprocess.DefaultWindowSize
	}
	if cfg.TrainRatio <= 0 || cfg.TrainRatio >= 1 {
		cfg.TrainRatio = 0.8
	}
	// a baseline identical to the forecaster would only repeat its metrics
	if baseline != nil && forecaster != nil && baseline.Name() == forecaster.Name() {
		baseline = nil
	}
	return &ForecastUseCase{
		provider:   provider,
		forecaster: forecaster,
		baseline:   baseline,
		publisher:  publisher,
		metrics:    metrics,
		log:        log,
		cfg:        cfg,
		now:        time.Now,
	}
}

func (u *ForecastUseCase) Forecast(ctx context.Context, p ForecastParams) (*models.ForecastResult, error) {
	p.Symbol = strings.ToUpper(strings.TrimSpace(p.Symbol))
	if p.Symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", ErrInvalidRequest)
	}
	if err := validateRange([]string{p.Symbol}, p.Start, p.End); err != nil {
		return nil, err
	}
	window := p.Window
	if window <= 0 {
		window = u.cfg.Window
	}
	if fw, ok := u.forecaster.(interface{ Window() int }); ok && fw.Window() != window {
		return nil, fmt.Errorf("%w: requested %d, %s expects %d", ErrWindowMismatch, window, u.forecaster.Name(), fw.Window())
	}

	began := u.now()
	raw, err := u.provider.Fetch(ctx, []string{p.Symbol}, p.Start, p.End)
	if err != nil {
		u.metrics.RecordError("fetch")
		return nil, fmt.Errorf("%w %s: %w", ErrFetch, p.Symbol, err)
	}
	clean := preprocess.Clean(raw)
	series, _ := clean.Column(p.Symbol)

	set, err := preprocess.BuildWindows(series, window)
	if err != nil {
		return nil, fmt.Errorf("windows %s: %w", p.Symbol, err)
	}
	train, test := set.Split(u.cfg.TrainRatio)
	if test.Len() == 0 {
		return nil, fmt.Errorf("forecast %s: %d clean rows for window %d: %w",
			p.Symbol, len(series), window, analytics.ErrInsufficientData)
	}

	actual, err := set.Scaler.InverseTransform(test.Targets)
	if err != nil {
		return nil, fmt.Errorf("inverse targets: %w", err)
	}

	predicted, record, err := u.evaluate(ctx, u.forecaster, test, actual)
	if err != nil {
		u.metrics.RecordError("predict")
		return nil, err
	}
	records := []models.MetricsRecord{record}
	if u.baseline != nil {
		if _, base, err := u.evaluate(ctx, u.baseline, test, actual); err != nil {
			u.log.Warn("baseline forecast failed", logger.String("model", u.baseline.Name()), logger.Error(err))
		} else {
			records = append(records, base)
		}
	}

	// target i of the test half is series[window+train.Len()+i]
	offset := window + train.Len()
	dates := append([]time.Time(nil), clean.Dates[offset:offset+test.Len()]...)

	res := &models.ForecastResult{
		ID:          uuid.NewString(),
		Symbol:      p.Symbol,
		Model:       u.forecaster.Name(),
		Window:      window,
		TrainSize:   train.Len(),
		TestSize:    test.Len(),
		Dates:       dates,
		Actual:      actual,
		Predicted:   predicted,
		Metrics:     records,
		GeneratedAt: u.now().UTC(),
	}
	u.metrics.RecordLatency("forecast", u.now().Sub(began).Seconds())

	if u.publisher != nil {
		if err := u.publisher.PublishForecast(ctx, res); err != nil {
			u.metrics.RecordError("publish")
			u.log.Error("publish forecast failed", logger.String("id", res.ID), logger.Error(err))
		}
	}
	u.log.Info("forecast complete",
		logger.String("id", res.ID),
		logger.String("symbol", p.Symbol),
		logger.String("model", res.Model),
		logger.Int("test_size", res.TestSize),
		logger.Float64("rmse", float64(record.RMSE)),
	)
	return res, nil
}

func (u *ForecastUseCase) evaluate(ctx context.Context, f domsvc.Forecaster, test *preprocess.WindowSet, actual []float64) ([]float64, models.MetricsRecord, error) {
	scaled, err := f.Predict(ctx, test.Windows)
	if err != nil {
		return nil, models.MetricsRecord{}, fmt.Errorf("predict %s: %w", f.Name(), err)
	}
	if len(scaled) != test.Len() {
		return nil, models.MetricsRecord{}, fmt.Errorf("predict %s: %d predictions for %d windows", f.Name(), len(scaled), test.Len())
	}
	predicted, err := test.Scaler.InverseTransform(scaled)
	if err != nil {
		return nil, models.MetricsRecord{}, fmt.Errorf("inverse predictions: %w", err)
	}
	record := analytics.Evaluate(actual, predicted, f.Name())
	u.metrics.RecordForecast(f.Name(), float64(record.RMSE))
	return predicted, record, nil
}
