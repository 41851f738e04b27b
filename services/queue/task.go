package queue

import (
	"context"

	"github.com/hibiken/asynq"
)

const ExpireSweepTask = "queue:expire_sweep"

// HandleExpireSweep lets the worker trigger a sweep out of band, e.g. right
// after a deploy or from an operator-enqueued task.
func (s *Service) HandleExpireSweep(ctx context.Context, t *asynq.Task) error {
	_, err := s.SweepNow(ctx)
	return err
}
