package chart

import (
	"go.uber.org/fx"
)

var Module = fx.Module("chart.service",
	fx.Provide(NewService),
)

// SchedulerModule belongs in the worker binary only.
var SchedulerModule = fx.Module("chart.scheduler",
	fx.Provide(NewScheduler),
	fx.Invoke(RegisterScheduler),
)
