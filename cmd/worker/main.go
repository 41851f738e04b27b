package main

import (
	"log"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"trackpeer-core/pkg/clock"
	"trackpeer-core/pkg/config"
	"trackpeer-core/pkg/db"
	"trackpeer-core/pkg/gen"
	"trackpeer-core/pkg/logger"
	"trackpeer-core/pkg/redis"
	"trackpeer-core/pkg/task"
	"trackpeer-core/services/bootstrap"
	"trackpeer-core/services/chart"
	"trackpeer-core/services/notify"
	"trackpeer-core/services/queue"
	"trackpeer-core/services/reviewer"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		task.Client,
		task.Server,
		clock.Module,
		gen.Module,
		bootstrap.Module,
		notify.Module,
		reviewer.Module,
		queue.Module,
		queue.SchedulerModule,
		chart.Module,
		chart.SchedulerModule,
		fx.Invoke(registerHandlers),
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func registerHandlers(mux *asynq.ServeMux, queueSvc *queue.Service, chartSvc *chart.Service) {
	mux.HandleFunc(queue.ExpireSweepTask, queueSvc.HandleExpireSweep)
	mux.HandleFunc(chart.FinalizeTask, chartSvc.HandleFinalize)
	mux.HandleFunc(notify.TrackEventTask, notify.HandleTrackEvent)
}
