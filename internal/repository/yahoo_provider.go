package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"FinForecast/internal/domain/models"
	domrepo "FinForecast/internal/domain/repository"
	xhttp "FinForecast/pkg/http"
	"FinForecast/pkg/logger"
)

// YahooProvider fetches daily history from the Yahoo Finance chart API.
// Requests are sequential and never retried.
type YahooProvider struct {
	baseURL string
	client  *xhttp.Client
	log     *logger.Logger
	notice  io.Writer
}

// YahooOption configures YahooProvider.
type YahooOption func(*YahooProvider)

// WithNoticeWriter sets where the human-readable fetch notice is printed.
func WithNoticeWriter(w io.Writer) YahooOption {
	return func(p *YahooProvider) { p.notice = w }
}

// WithYahooLogger injects a structured logger.
func WithYahooLogger(l *logger.Logger) YahooOption {
	return func(p *YahooProvider) { p.log = l }
}

func NewYahooProvider(baseURL string, timeout time.Duration, userAgent string, opts ...YahooOption) *YahooProvider {
	p := &YahooProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout), xhttp.WithUserAgent(userAgent)),
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol    string `json:"symbol"`
		GMTOffset int    `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// Fetch returns closes for [start, end). A symbol the provider has no data
// for becomes an all-NaN column and a warning; ErrNoData when none has data.
func (p *YahooProvider) Fetch(ctx context.Context, symbols []string, start, end time.Time) (*models.PriceTable, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols requested")
	}
	if !end.After(start) {
		return nil, fmt.Errorf("end %s must be after start %s", end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	p.log.Info("fetching price history",
		logger.Strings("symbols", symbols),
		logger.String("start", start.Format("2006-01-02")),
		logger.String("end", end.Format("2006-01-02")),
	)
	if p.notice != nil {
		fmt.Fprintf(p.notice, "Fetching data for %v...\n", symbols)
	}

	bars := make(map[string][]models.Bar, len(symbols))
	for _, sym := range symbols {
		series, err := p.fetchSymbol(ctx, sym, start, end)
		if err != nil {
			return nil, err
		}
		if len(series) == 0 {
			p.log.Warn("no price data for symbol", logger.String("symbol", sym))
		}
		bars[sym] = series
	}

	table, err := buildTable(symbols, bars)
	if err != nil {
		return nil, fmt.Errorf("yahoo %v: %w", symbols, err)
	}
	return table, nil
}

func (p *YahooProvider) fetchSymbol(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	query := map[string][]string{
		"period1":  {strconv.FormatInt(start.Unix(), 10)},
		"period2":  {strconv.FormatInt(end.Unix(), 10)},
		"interval": {"1d"},
		"events":   {"div,splits"},
	}
	endpoint := p.baseURL + "/v8/finance/chart/" + url.PathEscape(symbol)

	var resp chartResponse
	err := p.client.GetJSON(ctx, endpoint, query, &resp)
	if err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("yahoo %s: %w", symbol, err)
	}
	if resp.Chart.Error != nil {
		if resp.Chart.Error.Code == "Not Found" {
			return nil, nil
		}
		return nil, fmt.Errorf("yahoo %s: %s: %s", symbol, resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, nil
	}
	return parseChart(resp.Chart.Result[0]), nil
}

// parseChart converts exchange timestamps to calendar days using the
// exchange's UTC offset. Null closes become NaN.
func parseChart(r chartResult) []models.Bar {
	var closes, adj []*float64
	if len(r.Indicators.Quote) > 0 {
		closes = r.Indicators.Quote[0].Close
	}
	if len(r.Indicators.AdjClose) > 0 {
		adj = r.Indicators.AdjClose[0].AdjClose
	}

	offset := time.Duration(r.Meta.GMTOffset) * time.Second
	out := make([]models.Bar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		out = append(out, models.Bar{
			Date:     time.Unix(ts, 0).UTC().Add(offset),
			Close:    valueAt(closes, i),
			AdjClose: valueAt(adj, i),
		})
	}
	return out
}

func valueAt(xs []*float64, i int) float64 {
	if i >= len(xs) || xs[i] == nil {
		return math.NaN()
	}
	return *xs[i]
}

var _ domrepo.PriceProvider = (*YahooProvider)(nil)
