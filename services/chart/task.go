package chart

import (
	"context"

	"github.com/hibiken/asynq"
)

const FinalizeTask = "chart:finalize"

// HandleFinalize finalizes the most recently ended chart day. The worker
// enqueues it as a catch-up after downtime; the scheduler covers the normal
// midnight run.
func (s *Service) HandleFinalize(ctx context.Context, t *asynq.Task) error {
	yesterday := s.clock.Now().UTC().AddDate(0, 0, -1)
	_, err := s.Finalize(ctx, yesterday)
	return err
}
