package metrics

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	rowsFetched  *prometheus.CounterVec
	sharpe       *prometheus.GaugeVec
	var95        *prometheus.GaugeVec
	adfPValue    *prometheus.GaugeVec
	forecastRMSE *prometheus.GaugeVec
}

// New registers the recorder's collectors with the default registry.
// Call it once per process.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the collectors with reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finforecast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finforecast_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"operation"},
		),
		rowsFetched: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finforecast_rows_fetched_total",
				Help: "Price rows returned by data providers",
			},
			[]string{"provider"},
		),
		sharpe: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "finforecast_sharpe_ratio",
				Help: "Last annualised Sharpe ratio per symbol",
			},
			[]string{"symbol"},
		),
		var95: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "finforecast_var95",
				Help: "Last 95% historical value at risk per symbol",
			},
			[]string{"symbol"},
		),
		adfPValue: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "finforecast_adf_pvalue",
				Help: "Last ADF p-value per symbol and series (prices, returns)",
			},
			[]string{"symbol", "series"},
		),
		forecastRMSE: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "finforecast_forecast_rmse",
				Help: "Last out-of-sample forecast RMSE per model",
			},
			[]string{"model"},
		),
	}
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordRowsFetched(provider string, rows int) {
	r.rowsFetched.WithLabelValues(provider).Add(float64(rows))
}

// RecordRisk skips non-finite values so gauges keep their last real reading.
func (r *Recorder) RecordRisk(symbol string, sharpe, var95 float64) {
	setFinite(r.sharpe.WithLabelValues(symbol), sharpe)
	setFinite(r.var95.WithLabelValues(symbol), var95)
}

func (r *Recorder) RecordStationarity(symbol, series string, pvalue float64) {
	setFinite(r.adfPValue.WithLabelValues(symbol, series), pvalue)
}

func (r *Recorder) RecordForecast(model string, rmse float64) {
	setFinite(r.forecastRMSE.WithLabelValues(model), rmse)
}

func setFinite(g prometheus.Gauge, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	g.Set(v)
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordError(string) {}
func (Nop) RecordLatency(string, float64) {}
func (Nop) RecordRowsFetched(string, int) {}
func (Nop) RecordRisk(string, float64, float64) {}
func (Nop) RecordStationarity(string, string, float64) {}
func (Nop) RecordForecast(string, float64) {}
