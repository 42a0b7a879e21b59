package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"FinForecast/internal/domain/models"
	domrepo "FinForecast/internal/domain/repository"
	"FinForecast/internal/report"
	"FinForecast/internal/service/ratelimit"
	"FinForecast/internal/services/analytics"
	"FinForecast/internal/services/model"
	"FinForecast/internal/usecase"
	xhttp "FinForecast/pkg/http"
	xlogger "FinForecast/pkg/logger"
	"FinForecast/pkg/util"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// AnalysisEchoHandler serves the analysis, forecast and export endpoints.
type AnalysisEchoHandler struct {
	logger   *xlogger.Logger
	analysis *usecase.AnalysisUseCase
	forecast *usecase.ForecastUseCase
	reports  *usecase.ReportUseCase
	rl       *ratelimit.Limiter
	checks   map[string]HealthCheck
}

func NewAnalysisEchoHandler(logger *xlogger.Logger, analysis *usecase.AnalysisUseCase, forecast *usecase.ForecastUseCase, reports *usecase.ReportUseCase, rl *ratelimit.Limiter) *AnalysisEchoHandler {
	return &AnalysisEchoHandler{
		logger:   logger,
		analysis: analysis,
		forecast: forecast,
		reports:  reports,
		rl:       rl,
		checks:   map[string]HealthCheck{},
	}
}

// AddHealthCheck registers a dependency probed by /healthz.
func (h *AnalysisEchoHandler) AddHealthCheck(name string, check HealthCheck) {
	h.checks[name] = check
}

func (h *AnalysisEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	if h.rl != nil {
		g.Use(h.rateLimit)
	}
	g.GET("/analysis", h.Analysis)
	g.GET("/forecast", h.Forecast)
	g.GET("/forecast/chart.png", h.ForecastChart)
	g.GET("/model/summary", h.ModelSummary)
	g.GET("/report.xlsx", h.Report)
}

func (h *AnalysisEchoHandler) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !h.rl.Allow(c.RealIP()) {
			h.logger.Warn("rate limited", xlogger.String("remote", c.RealIP()), xlogger.String("path", c.Path()))
			return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError())
		}
		return next(c)
	}
}

func (h *AnalysisEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{}
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}
	if !healthy {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, status)
	}
	return xhttp.SuccessResponse(c, status)
}

func (h *AnalysisEchoHandler) Analysis(c echo.Context) error {
	req := &models.AnalysisRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	params, err := analysisParams(req.Symbols, req.Start, req.End, req.RiskFree)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	res, err := h.analysis.Analyze(c.Request().Context(), params)
	if err != nil {
		return h.fail(c, "analysis", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalysisEchoHandler) Forecast(c echo.Context) error {
	res, err := h.runForecast(c)
	if err != nil {
		return h.fail(c, "forecast", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalysisEchoHandler) ForecastChart(c echo.Context) error {
	res, err := h.runForecast(c)
	if err != nil {
		return h.fail(c, "forecast chart", err)
	}
	img, err := report.RenderForecastChart(res)
	if err != nil {
		return h.fail(c, "forecast chart", err)
	}
	return xhttp.BlobResponse(c, "image/png", "", img)
}

func (h *AnalysisEchoHandler) runForecast(c echo.Context) (*models.ForecastResult, error) {
	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return nil, &validationFailure{errs: verr}
	}
	start, end, err := dateRange(req.Start, req.End)
	if err != nil {
		return nil, err
	}
	return h.forecast.Forecast(c.Request().Context(), usecase.ForecastParams{
		Symbol: req.Symbol,
		Start:  start,
		End:    end,
		Window: req.Window,
	})
}

func (h *AnalysisEchoHandler) ModelSummary(c echo.Context) error {
	req := &models.ModelSummaryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	net, err := model.NewForecastNetwork(req.Window)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("%v", err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "public, max-age=3600")
	return xhttp.SuccessResponse(c, net.Summary())
}

func (h *AnalysisEchoHandler) Report(c echo.Context) error {
	req := &models.ReportRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	params, err := analysisParams(req.Symbols, req.Start, req.End, req.RiskFree)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	bundle, err := h.reports.Build(c.Request().Context(), usecase.ReportParams{Analysis: params, Window: req.Window})
	if err != nil {
		return h.fail(c, "report", err)
	}
	for section, msg := range bundle.Errors {
		h.logger.Warn("report section skipped", xlogger.String("section", section), xlogger.String("error", msg))
	}

	var buf bytes.Buffer
	if err := report.WriteWorkbook(&buf, report.Workbook{
		Prices:   bundle.Analysis.Prices,
		Analysis: bundle.Analysis.Report,
		Forecast: bundle.Forecast,
	}); err != nil {
		return h.fail(c, "report", err)
	}
	filename := fmt.Sprintf("analysis_%s_%s.xlsx", strings.Join(params.Symbols, "-"), util.FormatDate(params.End))
	return xhttp.BlobResponse(c, xlsxContentType, filename, buf.Bytes())
}

// fail maps use case errors onto API errors and logs server-side failures.
func (h *AnalysisEchoHandler) fail(c echo.Context, op string, err error) error {
	var vf *validationFailure
	if errors.As(err, &vf) {
		return xhttp.BadRequestResponse(c, vf.errs)
	}
	appErr := toAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(op+" usecase error", xlogger.Error(err))
	} else {
		h.logger.Debug(op+" rejected", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, usecase.ErrInvalidRequest), errors.Is(err, usecase.ErrWindowMismatch):
		return xhttp.BadRequestErrorf("%v", err).WithError(err)
	case errors.Is(err, domrepo.ErrNoData):
		return xhttp.NotFoundErrorf("%v", err).WithError(err)
	case errors.Is(err, analytics.ErrInsufficientData):
		return xhttp.UnprocessableErrorf("%v", err).WithError(err)
	case errors.Is(err, usecase.ErrFetch):
		return xhttp.UpstreamErrorf("price provider failed").WithError(err)
	default:
		return xhttp.NewAppError("ERR_INTERNAL", "", "internal error", http.StatusInternalServerError).WithError(err)
	}
}

type validationFailure struct {
	errs []xhttp.ValidationError
}

func (v *validationFailure) Error() string { return "request validation failed" }

func analysisParams(symbols, start, end, riskFree string) (usecase.AnalysisParams, error) {
	from, to, err := dateRange(start, end)
	if err != nil {
		return usecase.AnalysisParams{}, err
	}
	p := usecase.AnalysisParams{Symbols: util.ParseSymbols(symbols), Start: from, End: to}
	if len(p.Symbols) == 0 {
		return p, xhttp.BadRequestErrorf("no valid symbols in %q", symbols)
	}
	if riskFree != "" {
		rf, err := strconv.ParseFloat(riskFree, 64)
		if err != nil {
			return p, xhttp.BadRequestErrorf("invalid risk_free %q", riskFree)
		}
		p.RiskFreeRate = &rf
	}
	return p, nil
}

func dateRange(start, end string) (time.Time, time.Time, error) {
	from, ok := util.ParseDate(start)
	if !ok {
		return time.Time{}, time.Time{}, xhttp.BadRequestErrorf("invalid start %q", start)
	}
	to, ok := util.ParseDate(end)
	if !ok {
		return time.Time{}, time.Time{}, xhttp.BadRequestErrorf("invalid end %q", end)
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, xhttp.BadRequestErrorf("end %s must be after start %s", end, start)
	}
	return from, to, nil
}
