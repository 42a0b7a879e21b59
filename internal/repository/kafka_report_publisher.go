package repository

import (
	"context"
	"strings"

	"FinForecast/internal/domain/models"
	domrepo "FinForecast/internal/domain/repository"
)

type producer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaReportPublisher writes finished reports as JSON to the reports topic,
// keyed by symbol list so one watchlist lands on one partition.
type KafkaReportPublisher struct {
	p     producer
	topic string
}

func NewKafkaReportPublisher(p producer, topic string) *KafkaReportPublisher {
	return &KafkaReportPublisher{p: p, topic: topic}
}

// envelope carries the request id of queued analysis requests so callers can
// match replies without decoding the payload.
type envelope struct {
	Kind      string      `json:"kind"`
	RequestID string      `json:"request_id,omitempty"`
	Payload   interface{} `json:"payload"`
}

func (k *KafkaReportPublisher) PublishAnalysis(ctx context.Context, r *models.AnalysisReport) error {
	return k.p.Publish(ctx, k.topic, []byte(strings.Join(r.Symbols, ",")),
		envelope{Kind: "analysis", RequestID: r.RequestID, Payload: r})
}

func (k *KafkaReportPublisher) PublishForecast(ctx context.Context, r *models.ForecastResult) error {
	return k.p.Publish(ctx, k.topic, []byte(r.Symbol), envelope{Kind: "forecast", Payload: r})
}

func (k *KafkaReportPublisher) Close() error { return k.p.Close() }

// NopPublisher drops reports; used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishAnalysis(context.Context, *models.AnalysisReport) error { return nil }
func (NopPublisher) PublishForecast(context.Context, *models.ForecastResult) error { return nil }
func (NopPublisher) Close() error { return nil }

var (
	_ domrepo.ReportPublisher = (*KafkaReportPublisher)(nil)
	_ domrepo.ReportPublisher = NopPublisher{}
)
