package service

import (
	"log/slog"

	"github.com/webitel/im-notice-service/internal/domain/dialog"
	"github.com/webitel/im-notice-service/internal/metrics"
	"go.uber.org/fx"
)

var Module = fx.Module(
	"service",

	fx.Provide(
		// Domain services
		fx.Annotate(
			NewNotifierService,
			fx.As(new(Notifier)),
		),
		fx.Annotate(
			NewSurfaceService,
			fx.As(new(Surfacer)),
		),
	),
)

// [DECORATION_LAYER] Intercept TicketService to add cross-cutting concerns.
// Install at the app root: fx scopes a decoration to the declaring module,
// and the registry consumes tickets from a sibling module.
var Decorators = fx.Decorate(
	func(orig dialog.TicketService, logger *slog.Logger, m *metrics.Metrics) dialog.TicketService {
		return NewTicketMiddleware(orig, logger, m)
	},
)
