package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"FinForecast/pkg/cache"
	"FinForecast/pkg/logger"
	"FinForecast/pkg/util"
)

const (
	watchlistLockKey = "lock:watchlist"
	watchlistRunMax  = 10 * time.Minute
)

// WatchlistScheduler analyses a fixed watchlist over a trailing window on a
// cron schedule. With a shared cache only one replica runs each tick.
type WatchlistScheduler struct {
	analysis  *AnalysisUseCase
	lock      cache.Service
	watchlist []string
	lookback  int
	cron      *cron.Cron
	log       *logger.Logger
	now       func() time.Time
}

func NewWatchlistScheduler(analysis *AnalysisUseCase, lock cache.Service, watchlist []string, lookbackDays int, log *logger.Logger) *WatchlistScheduler {
	return &WatchlistScheduler{
		analysis:  analysis,
		lock:      lock,
		watchlist: util.NormalizeSymbols(watchlist),
		lookback:  lookbackDays,
		cron:      cron.New(cron.WithSeconds()),
		log:       log,
		now:       time.Now,
	}
}

// Start registers the run on schedule (six-field cron, seconds first).
func (s *WatchlistScheduler) Start(schedule string) error {
	if len(s.watchlist) == 0 {
		return fmt.Errorf("watchlist is empty")
	}
	if _, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), watchlistRunMax)
		defer cancel()
		if err := s.RunOnce(ctx); err != nil {
			s.log.Error("scheduled watchlist analysis failed", logger.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule %q: %w", schedule, err)
	}
	s.cron.Start()
	s.log.Info("watchlist scheduler started",
		logger.String("schedule", schedule),
		logger.Strings("watchlist", s.watchlist),
	)
	return nil
}

// Stop waits for a running job to finish or ctx to expire.
func (s *WatchlistScheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	s.log.Info("watchlist scheduler stopped")
}

// RunOnce analyses the watchlist now unless another run holds the lock.
func (s *WatchlistScheduler) RunOnce(ctx context.Context) error {
	if s.lock != nil {
		ok, err := s.lock.TryLock(ctx, watchlistLockKey, watchlistRunMax)
		if err != nil {
			return fmt.Errorf("acquire watchlist lock: %w", err)
		}
		if !ok {
			s.log.Debug("watchlist run skipped, lock held")
			return nil
		}
		defer func() {
			if err := s.lock.Unlock(context.Background(), watchlistLockKey); err != nil {
				s.log.Warn("release watchlist lock failed", logger.Error(err))
			}
		}()
	}

	start, end := util.TrailingRange(s.now(), s.lookback)
	report, err := s.analysis.Analyze(ctx, AnalysisParams{Symbols: s.watchlist, Start: start, End: end})
	if err != nil {
		return err
	}
	s.log.Info("watchlist analysis done",
		logger.String("id", report.ID),
		logger.Int("rows", report.CleanRows),
	)
	return nil
}
