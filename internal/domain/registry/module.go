package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/webitel/im-notice-service/config"
	"github.com/webitel/im-notice-service/internal/domain/bus"
	"github.com/webitel/im-notice-service/internal/domain/dialog"
	"github.com/webitel/im-notice-service/internal/metrics"
	"go.uber.org/fx"
)

var Module = fx.Module("registry",
	fx.Provide(
		// [CLEAN_INJECTION] Configure Registry using Functional Options
		func(cfg *config.Config, sub bus.Subscriber, tickets dialog.TicketService, m *metrics.Metrics, logger *slog.Logger) *Registry {
			return NewRegistry(sub,
				WithEvictionInterval(cfg.Surfaces.EvictionInterval),
				WithIdleTimeout(cfg.Surfaces.IdleTimeout),
				WithMailboxSize(cfg.Surfaces.MailboxSize),
				WithSendTimeout(cfg.Surfaces.SendTimeout),
				WithTicketService(tickets),
				WithLogger(logger),
				WithDropHook(m.FrameDropped),
			)
		},
		func(r *Registry) Registrar { return r },
	),
	fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, r Registrar, m *metrics.Metrics) error {
		// [PINNED_SURFACES] configured names exist before the first producer publishes
		for _, name := range cfg.Surfaces.Names {
			if _, err := r.Open(name, true); err != nil {
				return fmt.Errorf("register surface %q: %w", name, err)
			}
		}
		m.ObserveSurfaces(func() float64 { return float64(r.Count()) })

		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				r.Shutdown() // [GRACEFUL_SHUTDOWN] detach every surface from the bus
				return nil
			},
		})
		return nil
	}),
)
