package cmd

import (
	"log/slog"

	"github.com/webitel/im-notice-service/config"
	"github.com/webitel/im-notice-service/infra/client/support"
	grpcsrv "github.com/webitel/im-notice-service/infra/server/grpc"
	httpsrv "github.com/webitel/im-notice-service/infra/server/http"
	pubsubadapter "github.com/webitel/im-notice-service/internal/adapter/pubsub"
	"github.com/webitel/im-notice-service/internal/domain/bus"
	"github.com/webitel/im-notice-service/internal/domain/registry"
	amqpdi "github.com/webitel/im-notice-service/internal/handler/amqp"
	httphandler "github.com/webitel/im-notice-service/internal/handler/http"
	"github.com/webitel/im-notice-service/internal/metrics"
	"github.com/webitel/im-notice-service/internal/service"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			ProvideWatermillLogger,
			ProvideTracer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With("component", "fx")}
		}),
		// [EAGER_TRACING] install the global provider before any span is started
		fx.Invoke(func(trace.TracerProvider) {}),
		fx.Invoke(func(cfg *config.Config, logger *slog.Logger) { cfg.Watch(logger) }),
		metrics.Module,
		bus.Module,
		support.Module,
		service.Module,
		service.Decorators,
		registry.Module,
		pubsubadapter.Module,
		amqpdi.Module,
		httphandler.Module,
		httpsrv.Module,
		grpcsrv.Module,
	)
}
