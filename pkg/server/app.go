package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"FinForecast/internal/usecase"
	"FinForecast/pkg/config"
	xhttp "FinForecast/pkg/http"
	pkgkafka "FinForecast/pkg/kafka"
	applogger "FinForecast/pkg/logger"
)

// App encapsulates the serve-mode lifecycle: HTTP API, the optional Kafka
// request consumer and the optional watchlist scheduler. Infrastructure
// clients are closed by the DI cleanup, not here.
type App struct {
	cfg         *config.Config
	log         *applogger.Logger
	httpHandler xhttp.Handler
	httpServer  *xhttp.Server
	consumer    *pkgkafka.Consumer
	kh          pkgkafka.MessageHandler
	scheduler   *usecase.WatchlistScheduler
}

// New creates a new App. consumer, kh and scheduler may be nil.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	httpHandler xhttp.Handler,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	scheduler *usecase.WatchlistScheduler,
) *App {
	if log == nil {
		log = applogger.Nop()
	}
	return &App{
		cfg:         cfg,
		log:         log,
		httpHandler: httpHandler,
		consumer:    consumer,
		kh:          kh,
		scheduler:   scheduler,
	}
}

// Run starts every component and blocks until SIGINT/SIGTERM or ctx is done.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(); err != nil {
		_ = a.Shutdown(context.Background())
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.Shutdown(context.Background())
}

// Start launches the components without blocking.
func (a *App) Start() error {
	a.httpServer = xhttp.NewServer(a.log, a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if a.scheduler != nil {
		if err := a.scheduler.Start(a.cfg.Schedule.Cron); err != nil {
			a.log.Error("scheduler start error", applogger.Error(err))
			return err
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("finforecast started",
		applogger.String("env", a.cfg.Environment),
		applogger.String("provider", a.cfg.Provider.Type),
		applogger.String("forecast_backend", a.cfg.Forecast.Backend),
		applogger.Int("port", a.cfg.Server.Port),
	)
	return nil
}

// Shutdown stops the HTTP server first so no new work arrives, then drains
// the consumer and the scheduler.
func (a *App) Shutdown(ctx context.Context) error {
	a.log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var firstErr error
	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
			firstErr = err
		}
	}

	if a.consumer != nil && a.kh != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if a.scheduler != nil {
		a.scheduler.Stop(shutdownCtx)
	}

	a.log.Info("shutdown complete")
	return firstErr
}
