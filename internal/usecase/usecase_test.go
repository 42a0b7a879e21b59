package usecase

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinForecast/internal/domain/models"
	domrepo "FinForecast/internal/domain/repository"
	"FinForecast/internal/services/analytics"
	"FinForecast/internal/services/model"
	"FinForecast/pkg/cache"
	pkgkafka "FinForecast/pkg/kafka"
	"FinForecast/pkg/logger"
)

type fakeProvider struct {
	mu    sync.Mutex
	table *models.PriceTable
	err   error
	calls int
}

func (f *fakeProvider) Fetch(_ context.Context, symbols []string, _, _ time.Time) (*models.PriceTable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.table.Clone(), nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePublisher struct {
	mu        sync.Mutex
	analyses  []*models.AnalysisReport
	forecasts []*models.ForecastResult
	err       error
}

func (p *fakePublisher) PublishAnalysis(_ context.Context, r *models.AnalysisReport) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.analyses = append(p.analyses, r)
	return p.err
}

func (p *fakePublisher) PublishForecast(_ context.Context, r *models.ForecastResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.forecasts = append(p.forecasts, r)
	return p.err
}

func (p *fakePublisher) Close() error { return nil }

type fakeMetrics struct {
	mu     sync.Mutex
	errors map[string]int
	rows   int
	rmse   map[string]float64
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{errors: map[string]int{}, rmse: map[string]float64{}}
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}
func (m *fakeMetrics) RecordLatency(string, float64) {}
func (m *fakeMetrics) RecordRowsFetched(_ string, rows int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows += rows
}
func (m *fakeMetrics) RecordRisk(string, float64, float64) {}
func (m *fakeMetrics) RecordStationarity(string, string, float64) {}
func (m *fakeMetrics) RecordForecast(name string, rmse float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rmse[name] = rmse
}

var day0 = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

// randomWalkTable builds n daily rows of seeded random walks, one per symbol.
func randomWalkTable(n int, symbols ...string) *models.PriceTable {
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = day0.AddDate(0, 0, i)
	}
	t := models.NewPriceTable(dates, symbols)
	rng := rand.New(rand.NewSource(42))
	for c := range symbols {
		p := 100.0 + 10*float64(c)
		for r := 0; r < n; r++ {
			p *= 1 + rng.NormFloat64()*0.01
			t.Values[c][r] = p
		}
	}
	return t
}

func newAnalysis(p domrepo.PriceProvider, pub domrepo.ReportPublisher, m domrepo.Metrics) *AnalysisUseCase {
	return NewAnalysisUseCase(p, cache.NewMemoryCache(), pub, m, logger.Nop(), AnalysisConfig{
		RiskFreeRate: 0.02,
		CacheTTL:     time.Minute,
	})
}

func TestAnalyzeRunsPipelineAndCaches(t *testing.T) {
	table := randomWalkTable(150, "AAPL", "MSFT")
	table.Values[1][0] = math.NaN()  // leading gap is dropped
	table.Values[0][10] = math.NaN() // interior gap is filled
	prov := &fakeProvider{table: table}
	pub := &fakePublisher{}
	m := newFakeMetrics()
	uc := newAnalysis(prov, pub, m)

	params := AnalysisParams{Symbols: []string{"aapl", "MSFT"}, Start: day0, End: day0.AddDate(1, 0, 0)}
	report, err := uc.Analyze(context.Background(), params)
	require.NoError(t, err)

	assert.NotEmpty(t, report.ID)
	assert.Equal(t, []string{"AAPL", "MSFT"}, report.Symbols)
	assert.Equal(t, 150, report.RawRows)
	assert.Equal(t, 149, report.CleanRows)
	require.Len(t, report.Results, 2)
	for _, r := range report.Results {
		require.NotNil(t, r.Prices, r.Symbol)
		require.NotNil(t, r.Returns, r.Symbol)
		assert.Contains(t, []string{models.Stationary, models.NonStationary}, r.Prices.Interpretation)
		assert.Equal(t, 148, r.Risk.Observations)
		assert.False(t, math.IsNaN(float64(r.Risk.Sharpe)))
		assert.Empty(t, r.Warnings)
	}
	assert.Equal(t, "AAPL returns", report.Results[0].Returns.Label)
	assert.Equal(t, 150, m.rows)
	require.Len(t, pub.analyses, 1)

	again, err := uc.Analyze(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, report.ID, again.ID)
	assert.Equal(t, 1, prov.callCount())
	assert.Len(t, pub.analyses, 1, "cache hits are not republished")

	other := 0.05
	params.RiskFreeRate = &other
	_, err = uc.Analyze(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, 2, prov.callCount(), "risk-free rate is part of the cache key")
}

func TestAnalyzeShortSeriesWarns(t *testing.T) {
	uc := newAnalysis(&fakeProvider{table: randomWalkTable(3, "AAPL")}, nil, newFakeMetrics())

	report, err := uc.Analyze(context.Background(), AnalysisParams{Symbols: []string{"AAPL"}, Start: day0, End: day0.AddDate(0, 0, 5)})
	require.NoError(t, err)
	r := report.Results[0]
	assert.Nil(t, r.Prices)
	assert.Nil(t, r.Returns)
	require.Len(t, r.Warnings, 2)
	assert.Contains(t, r.Warnings[0], "insufficient data")
	assert.Equal(t, 2, r.Risk.Observations)
}

func TestAnalyzeErrors(t *testing.T) {
	m := newFakeMetrics()
	uc := newAnalysis(&fakeProvider{err: domrepo.ErrNoData}, nil, m)
	ctx := context.Background()

	_, err := uc.Analyze(ctx, AnalysisParams{Symbols: []string{"NOPE"}, Start: day0, End: day0.AddDate(0, 1, 0)})
	assert.ErrorIs(t, err, domrepo.ErrNoData)
	assert.Equal(t, 1, m.errors["fetch"])

	_, err = uc.Analyze(ctx, AnalysisParams{Symbols: []string{" , "}, Start: day0, End: day0.AddDate(0, 1, 0)})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = uc.Analyze(ctx, AnalysisParams{Symbols: []string{"AAPL"}, Start: day0, End: day0})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestAnalyzePublishFailureIsNotFatal(t *testing.T) {
	m := newFakeMetrics()
	pub := &fakePublisher{err: errors.New("broker down")}
	uc := newAnalysis(&fakeProvider{table: randomWalkTable(60, "AAPL")}, pub, m)

	_, err := uc.Analyze(context.Background(), AnalysisParams{Symbols: []string{"AAPL"}, Start: day0, End: day0.AddDate(0, 3, 0)})
	require.NoError(t, err)
	assert.Equal(t, 1, m.errors["publish"])
}

type fixedWindowForecaster struct {
	model.NaiveForecaster
	window int
}

func (f fixedWindowForecaster) Window() int { return f.window }

func newForecast(p domrepo.PriceProvider, f, baseline model.NaiveForecaster, pub domrepo.ReportPublisher, m domrepo.Metrics) *ForecastUseCase {
	return NewForecastUseCase(p, f, baseline, pub, m, logger.Nop(), ForecastConfig{Window: 10, TrainRatio: 0.8})
}

func TestForecastEvaluatesTestSplit(t *testing.T) {
	table := randomWalkTable(100, "AAPL")
	m := newFakeMetrics()
	pub := &fakePublisher{}
	uc := newForecast(&fakeProvider{table: table}, model.NaiveForecaster{}, model.NaiveForecaster{}, pub, m)

	res, err := uc.Forecast(context.Background(), ForecastParams{Symbol: "aapl", Start: day0, End: day0.AddDate(0, 6, 0)})
	require.NoError(t, err)

	// 90 windows, 72 train, 18 test starting at row 10+72
	assert.Equal(t, "AAPL", res.Symbol)
	assert.Equal(t, 10, res.Window)
	assert.Equal(t, 72, res.TrainSize)
	assert.Equal(t, 18, res.TestSize)
	require.Len(t, res.Dates, 18)
	assert.Equal(t, table.Dates[82], res.Dates[0])
	assert.Equal(t, table.Dates[99], res.Dates[17])

	series := table.Values[0]
	assert.InDelta(t, series[82], res.Actual[0], 1e-9)
	assert.InDelta(t, series[81], res.Predicted[0], 1e-9, "naive predicts the previous close")

	// the naive baseline is skipped when the forecaster is naive itself
	require.Len(t, res.Metrics, 1)
	assert.Equal(t, "naive", res.Metrics[0].Model)
	assert.True(t, res.Metrics[0].Valid)
	assert.Equal(t, 18, res.Metrics[0].N)
	assert.Greater(t, float64(res.Metrics[0].RMSE), 0.0)
	assert.Contains(t, m.rmse, "naive")
	assert.Len(t, pub.forecasts, 1)
}

type renamedForecaster struct {
	model.NaiveForecaster
	name string
}

func (f renamedForecaster) Name() string { return f.name }

func TestForecastBaselineRecordedOnlyForDistinctModel(t *testing.T) {
	table := randomWalkTable(100, "AAPL")
	params := ForecastParams{Symbol: "AAPL", Start: day0, End: day0.AddDate(0, 6, 0)}

	distinct := NewForecastUseCase(&fakeProvider{table: table}, renamedForecaster{name: "lstm"}, model.NaiveForecaster{}, nil, newFakeMetrics(), logger.Nop(), ForecastConfig{Window: 10})
	res, err := distinct.Forecast(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, res.Metrics, 2)
	assert.Equal(t, "lstm", res.Metrics[0].Model)
	assert.Equal(t, "naive", res.Metrics[1].Model)
	assert.Equal(t, float64(res.Metrics[0].RMSE), float64(res.Metrics[1].RMSE))

	m := newFakeMetrics()
	same := NewForecastUseCase(&fakeProvider{table: table}, model.NaiveForecaster{}, model.NaiveForecaster{}, nil, m, logger.Nop(), ForecastConfig{Window: 10})
	res, err = same.Forecast(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, res.Metrics, 1)
	assert.Equal(t, "naive", res.Metrics[0].Model)
}

func TestForecastErrors(t *testing.T) {
	ctx := context.Background()
	end := day0.AddDate(0, 1, 0)

	short := newForecast(&fakeProvider{table: randomWalkTable(10, "AAPL")}, model.NaiveForecaster{}, model.NaiveForecaster{}, nil, newFakeMetrics())
	_, err := short.Forecast(ctx, ForecastParams{Symbol: "AAPL", Start: day0, End: end})
	assert.ErrorIs(t, err, analytics.ErrInsufficientData)

	_, err = short.Forecast(ctx, ForecastParams{Start: day0, End: end})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	fixed := NewForecastUseCase(&fakeProvider{table: randomWalkTable(100, "AAPL")}, fixedWindowForecaster{window: 60}, nil, nil, newFakeMetrics(), logger.Nop(), ForecastConfig{Window: 60})
	_, err = fixed.Forecast(ctx, ForecastParams{Symbol: "AAPL", Start: day0, End: end, Window: 30})
	assert.ErrorIs(t, err, ErrWindowMismatch)

	failing := newForecast(&fakeProvider{err: errors.New("dial tcp: refused")}, model.NaiveForecaster{}, model.NaiveForecaster{}, nil, newFakeMetrics())
	_, err = failing.Forecast(ctx, ForecastParams{Symbol: "AAPL", Start: day0, End: end})
	assert.ErrorContains(t, err, "refused")
}

func TestAnalysisRequestHandler(t *testing.T) {
	pub := &fakePublisher{}
	m := newFakeMetrics()
	h := NewAnalysisRequestHandler("requests", newAnalysis(&fakeProvider{table: randomWalkTable(60, "AAPL")}, pub, m), m, logger.Nop())
	ctx := context.Background()

	assert.Equal(t, "requests", h.Topic())
	require.NoError(t, h.Handle(ctx, []byte(`{"request_id":"r1","symbols":["AAPL"],"start":"2023-01-02","end":"2023-04-01","risk_free_rate":0.03}`)))
	require.Len(t, pub.analyses, 1)
	assert.Equal(t, "r1", pub.analyses[0].RequestID)
	assert.InDelta(t, 0.03, float64(pub.analyses[0].Results[0].Risk.RiskFreeRate), 1e-12)

	err := h.Handle(ctx, []byte(`{not json`))
	assert.Error(t, err)
	assert.True(t, pkgkafka.IsPermanent(err))
	assert.Equal(t, 1, m.errors["consumer_unmarshal"])

	err = h.Handle(ctx, []byte(`{"request_id":"r2","symbols":["AAPL"],"start":"yesterday","end":"2023-04-01"}`))
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.True(t, pkgkafka.IsPermanent(err))
	assert.Equal(t, 1, m.errors["consumer_invalid"])
}

func TestAnalysisRequestHandlerRepliesToEveryRequest(t *testing.T) {
	prov := &fakeProvider{table: randomWalkTable(60, "AAPL")}
	pub := &fakePublisher{}
	m := newFakeMetrics()
	uc := newAnalysis(prov, pub, m)
	h := NewAnalysisRequestHandler("requests", uc, m, logger.Nop())
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, []byte(`{"request_id":"r1","symbols":["AAPL"],"start":"2023-01-02","end":"2023-04-01"}`)))
	require.NoError(t, h.Handle(ctx, []byte(`{"request_id":"r2","symbols":["AAPL"],"start":"2023-01-02","end":"2023-04-01"}`)))

	assert.Equal(t, 1, prov.callCount(), "second request is served from cache")
	require.Len(t, pub.analyses, 2, "one reply per request, no extra publish for the fresh run")
	assert.Equal(t, "r1", pub.analyses[0].RequestID)
	assert.Equal(t, "r2", pub.analyses[1].RequestID)
	assert.Equal(t, pub.analyses[0].ID, pub.analyses[1].ID)

	// the cached report itself stays untagged
	end := time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
	report, err := uc.Analyze(ctx, AnalysisParams{Symbols: []string{"AAPL"}, Start: day0, End: end})
	require.NoError(t, err)
	assert.Empty(t, report.RequestID)
	assert.Equal(t, 1, prov.callCount())
	assert.Len(t, pub.analyses, 2)
}

func TestAnalysisRequestHandlerErrorClasses(t *testing.T) {
	ctx := context.Background()
	m := newFakeMetrics()

	noData := NewAnalysisRequestHandler("requests", newAnalysis(&fakeProvider{err: domrepo.ErrNoData}, &fakePublisher{}, m), m, logger.Nop())
	err := noData.Handle(ctx, []byte(`{"request_id":"r3","symbols":["ZZZZ"],"start":"2023-01-02","end":"2023-04-01"}`))
	assert.ErrorIs(t, err, domrepo.ErrNoData)
	assert.True(t, pkgkafka.IsPermanent(err))

	empty := NewAnalysisRequestHandler("requests", newAnalysis(&fakeProvider{}, &fakePublisher{}, m), m, logger.Nop())
	err = empty.Handle(ctx, []byte(`{"request_id":"r4","symbols":[],"start":"2023-01-02","end":"2023-04-01"}`))
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.True(t, pkgkafka.IsPermanent(err))

	down := NewAnalysisRequestHandler("requests", newAnalysis(&fakeProvider{err: errors.New("dial tcp: refused")}, &fakePublisher{}, m), m, logger.Nop())
	err = down.Handle(ctx, []byte(`{"request_id":"r5","symbols":["AAPL"],"start":"2023-01-02","end":"2023-04-01"}`))
	assert.ErrorIs(t, err, ErrFetch)
	assert.False(t, pkgkafka.IsPermanent(err), "provider outages are retried")

	broker := &fakePublisher{err: errors.New("broker down")}
	failing := NewAnalysisRequestHandler("requests", newAnalysis(&fakeProvider{table: randomWalkTable(60, "AAPL")}, broker, m), m, logger.Nop())
	err = failing.Handle(ctx, []byte(`{"request_id":"r6","symbols":["AAPL"],"start":"2023-01-02","end":"2023-04-01"}`))
	assert.ErrorContains(t, err, "broker down")
	assert.False(t, pkgkafka.IsPermanent(err), "reply delivery is retried")
}

func TestWatchlistSchedulerRunOnce(t *testing.T) {
	prov := &fakeProvider{table: randomWalkTable(60, "AAPL", "MSFT")}
	lock := cache.NewMemoryCache()
	s := NewWatchlistScheduler(newAnalysis(prov, nil, newFakeMetrics()), lock, []string{"aapl", "msft"}, 90, logger.Nop())
	s.now = func() time.Time { return day0.AddDate(0, 3, 0) }

	ok, err := lock.TryLock(context.Background(), watchlistLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, 0, prov.callCount(), "held lock skips the run")

	require.NoError(t, lock.Unlock(context.Background(), watchlistLockKey))
	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, 1, prov.callCount())

	ok, err = lock.TryLock(context.Background(), watchlistLockKey, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "lock is released after the run")
}

func TestWatchlistSchedulerStart(t *testing.T) {
	uc := newAnalysis(&fakeProvider{}, nil, newFakeMetrics())

	assert.Error(t, NewWatchlistScheduler(uc, nil, nil, 30, logger.Nop()).Start("0 0 * * * *"))
	assert.Error(t, NewWatchlistScheduler(uc, nil, []string{"AAPL"}, 30, logger.Nop()).Start("not a cron"))

	s := NewWatchlistScheduler(uc, nil, []string{"AAPL"}, 30, logger.Nop())
	require.NoError(t, s.Start("0 0 0 1 1 *"))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestReportBuildKeepsAnalysisWhenForecastFails(t *testing.T) {
	prov := &fakeProvider{table: randomWalkTable(40, "AAPL", "MSFT")}
	m := newFakeMetrics()
	uc := NewReportUseCase(
		newAnalysis(prov, nil, m),
		NewForecastUseCase(prov, model.NaiveForecaster{}, nil, nil, m, logger.Nop(), ForecastConfig{Window: 60}),
	)

	bundle, err := uc.Build(context.Background(), ReportParams{Analysis: AnalysisParams{
		Symbols: []string{"AAPL", "MSFT"}, Start: day0, End: day0.AddDate(0, 2, 0),
	}})
	require.NoError(t, err)
	require.NotNil(t, bundle.Analysis)
	assert.Equal(t, 40, bundle.Analysis.Prices.Rows())
	assert.Nil(t, bundle.Forecast)
	assert.Contains(t, bundle.Errors["forecast"], "insufficient data")

	withForecast := NewReportUseCase(
		newAnalysis(prov, nil, m),
		NewForecastUseCase(prov, model.NaiveForecaster{}, nil, nil, m, logger.Nop(), ForecastConfig{Window: 5}),
	)
	bundle, err = withForecast.Build(context.Background(), ReportParams{Analysis: AnalysisParams{
		Symbols: []string{"AAPL"}, Start: day0, End: day0.AddDate(0, 2, 0),
	}})
	require.NoError(t, err)
	require.NotNil(t, bundle.Forecast)
	assert.Nil(t, bundle.Errors)

	failing := NewReportUseCase(newAnalysis(&fakeProvider{err: domrepo.ErrNoData}, nil, m), nil)
	_, err = failing.Build(context.Background(), ReportParams{Analysis: AnalysisParams{
		Symbols: []string{"AAPL"}, Start: day0, End: day0.AddDate(0, 2, 0),
	}})
	assert.ErrorIs(t, err, domrepo.ErrNoData)
}
