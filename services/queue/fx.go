package queue

import (
	"go.uber.org/fx"
)

var Module = fx.Module("queue.service",
	fx.Provide(NewService),
)

// SchedulerModule belongs in the worker binary only.
var SchedulerModule = fx.Module("queue.scheduler",
	fx.Provide(NewScheduler),
	fx.Invoke(RegisterScheduler),
)
