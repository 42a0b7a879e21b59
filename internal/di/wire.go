//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"FinForecast/internal/usecase"
	"FinForecast/pkg/config"
	"FinForecast/pkg/server"
)

var coreSet = wire.NewSet(
	// Infrastructure clients
	ProvideKafkaProducer,
	ProvideLogger,
	ProvideMetrics,
	ProvideClickHouseClient,
	ProvideRedisCache,
	ProvideCache,

	// Repositories and services
	ProvidePriceProvider,
	ProvideReportPublisher,
	ProvideForecaster,

	// Use cases
	ProvideAnalysisUseCase,
	ProvideForecastUseCase,
	usecase.NewReportUseCase,
)

// InitializeApp wires the serve mode. Wire generates the implementation.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		coreSet,
		ProvideRateLimiter,
		ProvideHTTPHandler,
		ProvideKafkaConsumer,
		ProvideAnalysisRequestHandler,
		ProvideWatchlistScheduler,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeServices wires the use cases for one-shot CLI runs.
func InitializeServices(cfg *config.Config) (*Services, func(), error) {
	wire.Build(
		coreSet,
		wire.Struct(new(Services), "*"),
	)
	return nil, nil, nil
}
