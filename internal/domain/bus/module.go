package bus

import (
	"log/slog"

	"github.com/webitel/im-notice-service/config"
	"go.uber.org/fx"
)

var Module = fx.Module("bus",
	fx.Provide(
		func(cfg *config.Config, logger *slog.Logger) *Bus {
			return New(
				WithLogger(logger.With("component", "bus")),
				WithEventLog(cfg.Bus.LogEvents),
			)
		},
		func(b *Bus) Publisher { return b },
		func(b *Bus) Subscriber { return b },
	),
)
