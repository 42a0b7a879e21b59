package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"FinForecast/internal/domain/models"
	domrepo "FinForecast/internal/domain/repository"
	"FinForecast/internal/services/analytics"
	pkgkafka "FinForecast/pkg/kafka"
	"FinForecast/pkg/logger"
	"FinForecast/pkg/util"
)

// AnalysisRequestHandler consumes analysis requests from Kafka and answers
// each one on the reports topic with the request id attached, even when the
// report comes from cache. Failures that a retry cannot fix are marked
// permanent so the consumer sends them straight to the DLQ.
type AnalysisRequestHandler struct {
	topic    string
	analysis *AnalysisUseCase
	metrics  domrepo.Metrics
	log      *logger.Logger
}

func NewAnalysisRequestHandler(topic string, analysis *AnalysisUseCase, metrics domrepo.Metrics, log *logger.Logger) *AnalysisRequestHandler {
	return &AnalysisRequestHandler{topic: topic, analysis: analysis, metrics: metrics, log: log}
}

func (h *AnalysisRequestHandler) Topic() string { return h.topic }

// incoming message schema: {request_id, symbols, start, end, risk_free_rate?}
func (h *AnalysisRequestHandler) Handle(ctx context.Context, b []byte) error {
	var m models.AnalysisMessage
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return pkgkafka.Permanent(fmt.Errorf("decode analysis request: %w", err))
	}
	start, ok := util.ParseDate(m.Start)
	if !ok {
		h.metrics.RecordError("consumer_invalid")
		return pkgkafka.Permanent(fmt.Errorf("request %s: %w: invalid start %q", m.RequestID, ErrInvalidRequest, m.Start))
	}
	end, ok := util.ParseDate(m.End)
	if !ok {
		h.metrics.RecordError("consumer_invalid")
		return pkgkafka.Permanent(fmt.Errorf("request %s: %w: invalid end %q", m.RequestID, ErrInvalidRequest, m.End))
	}

	began := time.Now()
	report, err := h.analysis.Reply(ctx, m.RequestID, AnalysisParams{
		Symbols:      m.Symbols,
		Start:        start,
		End:          end,
		RiskFreeRate: m.RiskFreeRate,
	})
	h.metrics.RecordLatency("consumer_analysis", time.Since(began).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_analysis")
		err = fmt.Errorf("request %s: %w", m.RequestID, err)
		if permanentFailure(err) {
			return pkgkafka.Permanent(err)
		}
		return err
	}
	h.log.Info("analysis request served",
		logger.String("request_id", m.RequestID),
		logger.String("report_id", report.ID),
		logger.Strings("symbols", report.Symbols),
	)
	return nil
}

// permanentFailure reports errors that depend only on the request itself.
func permanentFailure(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, domrepo.ErrNoData) ||
		errors.Is(err, analytics.ErrInsufficientData)
}

var _ pkgkafka.MessageHandler = (*AnalysisRequestHandler)(nil)
