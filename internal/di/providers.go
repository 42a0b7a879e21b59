package di

import (
	"context"
	"fmt"
	"os"
	"time"

	domrepo "FinForecast/internal/domain/repository"
	domsvc "FinForecast/internal/domain/service"
	"FinForecast/internal/handler/api"
	internalrepo "FinForecast/internal/repository"
	"FinForecast/internal/service/ratelimit"
	"FinForecast/internal/services/analytics"
	"FinForecast/internal/services/model"
	"FinForecast/internal/usecase"
	"FinForecast/pkg/cache"
	pkgch "FinForecast/pkg/clickhouse"
	"FinForecast/pkg/config"
	xhttp "FinForecast/pkg/http"
	pkgkafka "FinForecast/pkg/kafka"
	applogger "FinForecast/pkg/logger"
	"FinForecast/pkg/metrics"
	"FinForecast/pkg/server"
)

// Services is what the one-shot CLI modes need.
type Services struct {
	Log      *applogger.Logger
	Analysis *usecase.AnalysisUseCase
	Forecast *usecase.ForecastUseCase
	Reports  *usecase.ReportUseCase
}

// ProvideKafkaProducer creates the shared producer, or nil when Kafka is off.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.Producer.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithWriteTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.BatchTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideLogger builds the application logger. With Kafka and the digest
// enabled, error lines are also batched to the log digest topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, func(), error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	if producer == nil || !cfg.Log.Digest.Enabled {
		return l, func() {}, nil
	}
	l.AttachDigest(applogger.NewDigest(applogger.DigestConfig{
		Interval:  cfg.Log.Digest.Interval,
		MaxUnique: cfg.Log.Digest.MaxUnique,
		Topic:     cfg.Kafka.Topics.LogDigest,
		Publisher: producer,
	}))
	return l, l.DetachDigest, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient connects only when ClickHouse is the price provider.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if cfg.Provider.Type != "clickhouse" {
		return nil, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvidePriceProvider selects Yahoo or the ClickHouse mirror. The fetch
// notice goes to stderr so stdout stays clean for CLI output.
func ProvidePriceProvider(cfg *config.Config, ch *pkgch.Client, log *applogger.Logger) (domrepo.PriceProvider, error) {
	switch cfg.Provider.Type {
	case "clickhouse":
		store, err := internalrepo.NewCHPriceStore(ch, cfg.ClickHouse.Database, cfg.ClickHouse.Table)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := ch.InitSchema(ctx, store.SchemaStatements()); err != nil {
			return nil, fmt.Errorf("clickhouse schema: %w", err)
		}
		store.SetLogger(log)
		store.SetNoticeWriter(os.Stderr)
		return store, nil
	default:
		return internalrepo.NewYahooProvider(
			cfg.Provider.Yahoo.BaseURL,
			cfg.Provider.Yahoo.Timeout,
			cfg.Provider.Yahoo.UserAgent,
			internalrepo.WithYahooLogger(log),
			internalrepo.WithNoticeWriter(os.Stderr),
		), nil
	}
}

// ProvideRedisCache connects to Redis when enabled. An unreachable Redis is
// logged and the service runs on the in-process cache alone.
func ProvideRedisCache(cfg *config.Config, log *applogger.Logger) (*cache.RedisCache, func()) {
	if !cfg.Cache.Redis.Enabled {
		return nil, func() {}
	}
	rc, err := cache.NewRedisCache(context.Background(),
		cache.WithRedisAddr(cfg.Cache.Redis.Host, cfg.Cache.Redis.Port),
		cache.WithRedisAuth(cfg.Cache.Redis.Password, cfg.Cache.Redis.DB),
		cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
	)
	if err != nil {
		log.Warn("redis unavailable, using memory cache only", applogger.Error(err))
		return nil, func() {}
	}
	return rc, func() { _ = rc.Close() }
}

func ProvideCache(cfg *config.Config, rc *cache.RedisCache) cache.Service {
	return cache.NewLayeredCache(cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MemorySize)), rc)
}

// ProvideReportPublisher publishes to Kafka, or drops results when it is off.
func ProvideReportPublisher(cfg *config.Config, producer *pkgkafka.Producer) domrepo.ReportPublisher {
	if producer == nil {
		return internalrepo.NopPublisher{}
	}
	return internalrepo.NewKafkaReportPublisher(producer, cfg.Kafka.Topics.Reports)
}

// ProvideForecaster picks the forecasting backend. The local backend without
// weights falls back to the persistence model.
func ProvideForecaster(cfg *config.Config, log *applogger.Logger) (domsvc.Forecaster, error) {
	switch cfg.Forecast.Backend {
	case "http":
		return analytics.NewHTTPModelForecaster(cfg.Forecast.ModelServiceURL, cfg.Forecast.Timeout), nil
	default:
		if cfg.Forecast.WeightsPath == "" {
			log.Warn("no forecast weights configured, using naive forecaster")
			return model.NaiveForecaster{}, nil
		}
		f, err := model.NewLocalForecasterFromFile(cfg.Analysis.WindowSize, cfg.Forecast.WeightsPath)
		if err != nil {
			return nil, fmt.Errorf("load forecaster: %w", err)
		}
		return f, nil
	}
}

func ProvideAnalysisUseCase(
	cfg *config.Config,
	provider domrepo.PriceProvider,
	c cache.Service,
	publisher domrepo.ReportPublisher,
	m domrepo.Metrics,
	log *applogger.Logger,
) *usecase.AnalysisUseCase {
	return usecase.NewAnalysisUseCase(provider, c, publisher, m, log, usecase.AnalysisConfig{
		RiskFreeRate: cfg.Analysis.RiskFreeRate,
		Significance: cfg.Analysis.Significance,
		CacheTTL:     cfg.Cache.TTL,
		ProviderName: cfg.Provider.Type,
	})
}

// ProvideForecastUseCase pairs the configured forecaster with the naive baseline.
func ProvideForecastUseCase(
	cfg *config.Config,
	provider domrepo.PriceProvider,
	forecaster domsvc.Forecaster,
	publisher domrepo.ReportPublisher,
	m domrepo.Metrics,
	log *applogger.Logger,
) *usecase.ForecastUseCase {
	return usecase.NewForecastUseCase(provider, forecaster, model.NaiveForecaster{}, publisher, m, log, usecase.ForecastConfig{
		Window:     cfg.Analysis.WindowSize,
		TrainRatio: cfg.Analysis.TrainRatio,
	})
}

// ProvideRateLimiter returns nil when rate limiting is disabled.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if cfg.Server.RateLimit.Capacity <= 0 {
		return nil
	}
	return ratelimit.New(cfg.Server.RateLimit.Capacity, cfg.Server.RateLimit.RefillPerSec)
}

// ProvideHTTPHandler registers the API routes and the dependency health checks.
func ProvideHTTPHandler(
	log *applogger.Logger,
	analysis *usecase.AnalysisUseCase,
	forecast *usecase.ForecastUseCase,
	reports *usecase.ReportUseCase,
	rl *ratelimit.Limiter,
	ch *pkgch.Client,
	rc *cache.RedisCache,
) xhttp.Handler {
	h := api.NewAnalysisEchoHandler(log, analysis, forecast, reports, rl)
	if ch != nil {
		h.AddHealthCheck("clickhouse", ch.Health)
	}
	if rc != nil {
		h.AddHealthCheck("redis", rc.Ping)
	}
	return h
}

// ProvideKafkaConsumer returns nil when Kafka is off.
func ProvideKafkaConsumer(cfg *config.Config, log *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(log,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers, cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Topics.DLQ),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

func ProvideAnalysisRequestHandler(cfg *config.Config, analysis *usecase.AnalysisUseCase, m domrepo.Metrics, log *applogger.Logger) *usecase.AnalysisRequestHandler {
	return usecase.NewAnalysisRequestHandler(cfg.Kafka.Topics.Requests, analysis, m, log)
}

// ProvideWatchlistScheduler returns nil when the schedule is disabled. The
// shared cache doubles as the cross-replica run lock.
func ProvideWatchlistScheduler(cfg *config.Config, analysis *usecase.AnalysisUseCase, c cache.Service, log *applogger.Logger) *usecase.WatchlistScheduler {
	if !cfg.Schedule.Enabled {
		return nil
	}
	return usecase.NewWatchlistScheduler(analysis, c, cfg.Schedule.Watchlist, cfg.Schedule.Lookback, log)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	handler xhttp.Handler,
	consumer *pkgkafka.Consumer,
	kh *usecase.AnalysisRequestHandler,
	scheduler *usecase.WatchlistScheduler,
) *server.App {
	var mh pkgkafka.MessageHandler
	if consumer != nil {
		mh = kh
	}
	return server.New(cfg, log, handler, consumer, mh, scheduler)
}
