package main

import (
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"trackpeer-core/internal/httpapi"
	"trackpeer-core/pkg/clock"
	"trackpeer-core/pkg/config"
	"trackpeer-core/pkg/db"
	"trackpeer-core/pkg/gen"
	"trackpeer-core/pkg/health"
	"trackpeer-core/pkg/logger"
	"trackpeer-core/pkg/redis"
	"trackpeer-core/pkg/server"
	"trackpeer-core/pkg/task"
	"trackpeer-core/services/bootstrap"
	"trackpeer-core/services/chart"
	"trackpeer-core/services/notify"
	"trackpeer-core/services/queue"
	"trackpeer-core/services/reviewer"
	"trackpeer-core/services/track"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		task.Client,
		clock.Module,
		gen.Module,
		health.Module,
		fx.Provide(provideTracerProvider),
		fx.Invoke(db.Otel, db.Metric),
		bootstrap.Module,
		notify.Module,
		reviewer.Module,
		track.Module,
		queue.Module,
		chart.Module,
		httpapi.Module,
		server.ProvideHTTPServer,
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

func provideTracerProvider() trace.TracerProvider {
	return otel.GetTracerProvider()
}
