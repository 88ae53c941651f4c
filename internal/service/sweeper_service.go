package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SweeperService drives the background reconciliation cadence. The passes
// themselves live on ReservationService so callers can also run them
// synchronously; this type only owns the ticker loop.
type SweeperService struct {
	ledger   *ReservationService
	interval time.Duration
	logger   *zap.Logger
	metrics  *MetricsService
	now      func() time.Time
}

// NewSweeperService builds the sweep loop.
func NewSweeperService(ledger *ReservationService, interval time.Duration, logger *zap.Logger, metrics *MetricsService) *SweeperService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &SweeperService{
		ledger:   ledger,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run blocks, sweeping on every tick until the context is cancelled. An
// initial sweep fires immediately so a restart does not wait a full interval
// to clean up.
func (s *SweeperService) Run(ctx context.Context) {
	s.logger.Info("sweeper started", zap.Duration("interval", s.interval))
	s.SweepOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs both passes and records the outcome.
func (s *SweeperService) SweepOnce(ctx context.Context) (released, reconciled int) {
	start := time.Now()
	released, reconciled = s.ledger.Sweep(ctx, s.now())
	elapsed := time.Since(start)

	s.metrics.ObserveSweep(released, reconciled, elapsed)
	if released > 0 || reconciled > 0 {
		s.logger.Info("sweep completed",
			zap.Int("holds_released", released),
			zap.Int("overdue_reconciled", reconciled),
			zap.Duration("elapsed", elapsed))
	}
	return released, reconciled
}
