package models

import (
	"encoding/json"
	"math"
	"time"
)

// Float marshals NaN and ±Inf as JSON null.
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

func (f *Float) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = Float(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

const (
	Stationary    = "Stationary"
	NonStationary = "Non-Stationary"
)

// StationarityResult is the outcome of a unit-root test on one series.
type StationarityResult struct {
	Label          string  `json:"ticker"`
	Statistic      float64 `json:"adf_statistic"`
	PValue         float64 `json:"p_value"`
	Interpretation string  `json:"interpretation"`
	UsedLag        int     `json:"used_lag"`
	NObs           int     `json:"nobs"`
}

// RiskMetrics summarises a daily return series.
type RiskMetrics struct {
	Symbol       string `json:"symbol"`
	Sharpe       Float  `json:"sharpe_ratio"`
	VaR95        Float  `json:"var_95"`
	Volatility   Float  `json:"annualized_volatility"`
	RiskFreeRate Float  `json:"risk_free_rate"`
	Observations int    `json:"observations"`
}

// SymbolAnalysis bundles every statistic computed for one symbol.
// Test fields are nil when the series was too short for the test.
type SymbolAnalysis struct {
	Symbol       string              `json:"symbol"`
	Prices       *StationarityResult `json:"prices_adf,omitempty"`
	Returns      *StationarityResult `json:"returns_adf,omitempty"`
	Risk         RiskMetrics         `json:"risk"`
	Observations int                 `json:"observations"`
	Warnings     []string            `json:"warnings,omitempty"`
}

// AnalysisReport is the output of one analysis run.
type AnalysisReport struct {
	ID          string           `json:"id"`
	RequestID   string           `json:"request_id,omitempty"`
	Symbols     []string         `json:"symbols"`
	Start       time.Time        `json:"start"`
	End         time.Time        `json:"end"`
	GeneratedAt time.Time        `json:"generated_at"`
	RawRows     int              `json:"raw_rows"`
	CleanRows   int              `json:"clean_rows"`
	Results     []SymbolAnalysis `json:"results"`
}
