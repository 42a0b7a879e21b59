package models

// Requests for the HTTP API and the Kafka request topic.

type AnalysisRequest struct {
	Symbols  string `query:"symbols" json:"symbols" validate:"required"`
	Start    string `query:"start" json:"start" validate:"required,datetime=2006-01-02"`
	End      string `query:"end" json:"end" validate:"required,datetime=2006-01-02"`
	RiskFree string `query:"risk_free" json:"risk_free" default:"0.02" validate:"numeric"`
}

type ForecastRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	Start  string `query:"start" json:"start" validate:"required,datetime=2006-01-02"`
	End    string `query:"end" json:"end" validate:"required,datetime=2006-01-02"`
	Window int    `query:"window" json:"window" default:"60" validate:"gte=2,lte=500"`
}

type ModelSummaryRequest struct {
	Window int `query:"window" json:"window" default:"60" validate:"gte=1,lte=5000"`
}

// AnalysisMessage is the payload consumed from the requests topic.
type AnalysisMessage struct {
	RequestID    string   `json:"request_id"`
	Symbols      []string `json:"symbols"`
	Start        string   `json:"start"`
	End          string   `json:"end"`
	RiskFreeRate *float64 `json:"risk_free_rate,omitempty"`
}

// ReportRequest selects the workbook export: analysis of every symbol plus a
// forecast of the first one.
type ReportRequest struct {
	Symbols  string `query:"symbols" json:"symbols" validate:"required"`
	Start    string `query:"start" json:"start" validate:"required,datetime=2006-01-02"`
	End      string `query:"end" json:"end" validate:"required,datetime=2006-01-02"`
	RiskFree string `query:"risk_free" json:"risk_free" default:"0.02" validate:"numeric"`
	Window   int    `query:"window" json:"window" default:"60" validate:"gte=2,lte=500"`
}
