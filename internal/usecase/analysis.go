package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"FinForecast/internal/domain/models"
	domrepo "FinForecast/internal/domain/repository"
	"FinForecast/internal/services/analytics"
	"FinForecast/internal/services/preprocess"
	"FinForecast/pkg/cache"
	"FinForecast/pkg/logger"
	"FinForecast/pkg/util"
)

// AnalysisParams selects the symbols and calendar range of one run.
// A nil RiskFreeRate falls back to the configured default.
type AnalysisParams struct {
	Symbols      []string
	Start        time.Time
	End          time.Time
	RiskFreeRate *float64
}

// AnalysisRun is a finished analysis together with the cleaned prices it was
// computed from.
type AnalysisRun struct {
	Report *models.AnalysisReport `json:"report"`
	Prices *models.PriceTable     `json:"prices"`
}

type AnalysisConfig struct {
	RiskFreeRate float64
	Significance float64
	CacheTTL     time.Duration
	ProviderName string
}

// AnalysisUseCase runs fetch → clean → stationarity and risk per symbol.
type AnalysisUseCase struct {
	provider  domrepo.PriceProvider
	cache     cache.Service
	publisher domrepo.ReportPublisher
	metrics   domrepo.Metrics
	log       *logger.Logger
	cfg       AnalysisConfig
	now       func() time.Time
}

func NewAnalysisUseCase(provider domrepo.PriceProvider, c cache.Service, publisher domrepo.ReportPublisher, metrics domrepo.Metrics, log *logger.Logger, cfg AnalysisConfig) *AnalysisUseCase {
	if cfg.Significance <= 0 {
		cfg.Significance = analytics.DefaultSignificance
	}
	if cfg.ProviderName == "" {
		cfg.ProviderName = "yahoo"
	}
	return &AnalysisUseCase{
		provider:  provider,
		cache:     c,
		publisher: publisher,
		metrics:   metrics,
		log:       log,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Analyze returns the report for p, from cache when an identical request ran
// within the cache TTL.
func (u *AnalysisUseCase) Analyze(ctx context.Context, p AnalysisParams) (*models.AnalysisReport, error) {
	run, err := u.Run(ctx, p)
	if err != nil {
		return nil, err
	}
	return run.Report, nil
}

// Run is Analyze keeping the cleaned price table, used by report exports.
// Fresh reports are published; cache hits are not.
func (u *AnalysisUseCase) Run(ctx context.Context, p AnalysisParams) (*AnalysisRun, error) {
	return u.run(ctx, p, true)
}

// Reply answers a queued request: the report, cached or fresh, is published
// tagged with requestID. A publish failure is returned so the caller can
// retry delivery.
func (u *AnalysisUseCase) Reply(ctx context.Context, requestID string, p AnalysisParams) (*models.AnalysisReport, error) {
	run, err := u.run(ctx, p, false)
	if err != nil {
		return nil, err
	}
	reply := *run.Report
	reply.RequestID = requestID
	if u.publisher == nil {
		return &reply, nil
	}
	if err := u.publisher.PublishAnalysis(ctx, &reply); err != nil {
		u.metrics.RecordError("publish")
		return nil, fmt.Errorf("publish reply %s: %w", requestID, err)
	}
	return &reply, nil
}

func (u *AnalysisUseCase) run(ctx context.Context, p AnalysisParams, publish bool) (*AnalysisRun, error) {
	p.Symbols = util.NormalizeSymbols(p.Symbols)
	if err := validateRange(p.Symbols, p.Start, p.End); err != nil {
		return nil, err
	}
	rf := u.cfg.RiskFreeRate
	if p.RiskFreeRate != nil {
		rf = *p.RiskFreeRate
	}

	key := u.cacheKey(p.Symbols, p.Start, p.End, rf)
	if u.cache != nil {
		var cached AnalysisRun
		if err := u.cache.Get(ctx, key, &cached); err == nil && cached.Report != nil {
			u.log.Debug("analysis cache hit", logger.String("key", key))
			return &cached, nil
		} else if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			u.log.Warn("analysis cache read failed", logger.String("key", key), logger.Error(err))
		}
	}

	began := u.now()
	raw, err := u.provider.Fetch(ctx, p.Symbols, p.Start, p.End)
	u.metrics.RecordLatency("fetch", u.now().Sub(began).Seconds())
	if err != nil {
		u.metrics.RecordError("fetch")
		return nil, fmt.Errorf("%w %v: %w", ErrFetch, p.Symbols, err)
	}
	u.metrics.RecordRowsFetched(u.cfg.ProviderName, raw.Rows())

	clean := preprocess.Clean(raw)
	if dropped := raw.Rows() - clean.Rows(); dropped > 0 {
		u.log.Info("dropped incomplete rows",
			logger.Int("raw_rows", raw.Rows()),
			logger.Int("clean_rows", clean.Rows()),
		)
	}

	report := &models.AnalysisReport{
		ID:          uuid.NewString(),
		Symbols:     p.Symbols,
		Start:       p.Start,
		End:         p.End,
		GeneratedAt: u.now().UTC(),
		RawRows:     raw.Rows(),
		CleanRows:   clean.Rows(),
		Results:     make([]models.SymbolAnalysis, 0, clean.Cols()),
	}
	for _, sym := range clean.Symbols {
		col, _ := clean.Column(sym)
		report.Results = append(report.Results, u.analyzeSymbol(sym, col, rf))
	}
	u.metrics.RecordLatency("analysis", u.now().Sub(began).Seconds())

	run := &AnalysisRun{Report: report, Prices: clean}
	if u.cache != nil {
		if err := u.cache.Set(ctx, key, run, u.cfg.CacheTTL); err != nil {
			u.log.Warn("analysis cache write failed", logger.String("key", key), logger.Error(err))
		}
	}
	if publish && u.publisher != nil {
		if err := u.publisher.PublishAnalysis(ctx, report); err != nil {
			u.metrics.RecordError("publish")
			u.log.Error("publish analysis report failed", logger.String("id", report.ID), logger.Error(err))
		}
	}

	u.log.Info("analysis complete",
		logger.String("id", report.ID),
		logger.Strings("symbols", p.Symbols),
		logger.Int("rows", clean.Rows()),
		logger.Duration("duration_ms", u.now().Sub(began)),
	)
	return run, nil
}

func (u *AnalysisUseCase) analyzeSymbol(sym string, prices []float64, rf float64) models.SymbolAnalysis {
	out := models.SymbolAnalysis{Symbol: sym, Observations: len(prices)}

	if res, err := analytics.StationarityTest(prices, sym, u.cfg.Significance); err != nil {
		out.Warnings = append(out.Warnings, fmt.Sprintf("prices: %v", err))
	} else {
		out.Prices = &res
		u.metrics.RecordStationarity(sym, "prices", res.PValue)
	}

	returns := preprocess.PctChange(prices)
	if res, err := analytics.StationarityTest(returns, sym+" returns", u.cfg.Significance); err != nil {
		out.Warnings = append(out.Warnings, fmt.Sprintf("returns: %v", err))
	} else {
		out.Returns = &res
		u.metrics.RecordStationarity(sym, "returns", res.PValue)
	}

	out.Risk = analytics.RiskMetrics(sym, returns, rf)
	if len(returns) < 2 {
		out.Warnings = append(out.Warnings, fmt.Sprintf("risk: %d returns, need at least 2", len(returns)))
	}
	u.metrics.RecordRisk(sym, float64(out.Risk.Sharpe), float64(out.Risk.VaR95))
	return out
}

func (u *AnalysisUseCase) cacheKey(symbols []string, start, end time.Time, rf float64) string {
	raw := strings.Join(symbols, ",") + "|" + util.FormatDate(start) + "|" + util.FormatDate(end) + "|" +
		strconv.FormatFloat(rf, 'g', -1, 64) + "|" + strconv.FormatFloat(u.cfg.Significance, 'g', -1, 64)
	return cache.GenerateKeyWithParams("analysis", cache.HashKey(raw))
}

var (
	// ErrInvalidRequest marks caller mistakes, as opposed to data or provider failures.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrFetch wraps every price provider failure.
	ErrFetch = errors.New("fetch")
)

func validateRange(symbols []string, start, end time.Time) error {
	if len(symbols) == 0 {
		return fmt.Errorf("%w: at least one symbol is required", ErrInvalidRequest)
	}
	if !end.After(start) {
		return fmt.Errorf("%w: end %s must be after start %s", ErrInvalidRequest, util.FormatDate(end), util.FormatDate(start))
	}
	return nil
}
