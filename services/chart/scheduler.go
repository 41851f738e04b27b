package chart

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"trackpeer-core/pkg/clock"
)

// Scheduler finalizes each chart day at midnight UTC.
type Scheduler struct {
	svc   *Service
	clock clock.Clock
	stop  chan struct{}
	done  chan struct{}
}

func NewScheduler(svc *Service, c clock.Clock) *Scheduler {
	return &Scheduler{
		svc:   svc,
		clock: c,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

func (s *Scheduler) run() {
	defer close(s.done)

	for {
		now := s.clock.Now().UTC()
		next := dateOf(now).AddDate(0, 0, 1)

		timer := s.clock.Timer(next.Sub(now))
		select {
		case <-s.stop:
			timer.Stop()
			return
		case <-timer.C:
		}

		ended := s.clock.Now().UTC().AddDate(0, 0, -1)
		if _, err := s.svc.Finalize(context.Background(), ended); err != nil {
			zap.L().Error("chart finalization failed",
				zap.Time("chart_date", dateOf(ended)),
				zap.Error(err),
			)
		}
	}
}

func RegisterScheduler(lc fx.Lifecycle, s *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			zap.L().Info("starting chart finalization scheduler")
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
