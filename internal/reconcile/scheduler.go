package reconcile

import (
	"context"
	"log/slog"
	"time"
)

const DefaultInterval = 20 * time.Second

// Ticker runs one reconciliation pass.
type Ticker interface {
	Tick(ctx context.Context, trigger Trigger) (*RunResult, error)
}

// Scheduler triggers ticks on a fixed wall-clock interval, independently of
// request handling. Ticks it starts never overlap each other.
type Scheduler struct {
	engine   Ticker
	interval time.Duration
	logger   *slog.Logger
}

func NewScheduler(engine Ticker, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		engine:   engine,
		interval: interval,
		logger:   logger.With("component", "scheduler"),
	}
}

// Run blocks until ctx is cancelled. A failed tick is logged and the next
// one runs on schedule.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("payment check scheduler started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("payment check scheduler stopping")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.engine.Tick(ctx, TriggerScheduled); err != nil {
				s.logger.Error("scheduled tick failed", "error", err)
			}
		}
	}
}
