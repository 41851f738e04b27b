package queue

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"trackpeer-core/pkg/config"
)

// Scheduler drives the expiry sweep on a fixed interval. Reads of the
// reviewer queue also trigger a sweep, so the interval is a safety net for
// quiet periods rather than the primary mechanism.
type Scheduler struct {
	svc      *Service
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func NewScheduler(svc *Service, cfg *config.Config) *Scheduler {
	return &Scheduler{
		svc:      svc,
		interval: cfg.Queue.SweepInterval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *Scheduler) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if _, err := s.svc.SweepNow(context.Background()); err != nil {
				zap.L().Error("scheduled expiry sweep failed", zap.Error(err))
			}
		}
	}
}

func RegisterScheduler(lc fx.Lifecycle, s *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			zap.L().Info("starting assignment expiry scheduler", zap.Duration("interval", s.interval))
			go s.run()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(s.stop)
			select {
			case <-s.done:
			case <-ctx.Done():
			}
			return nil
		},
	})
}
