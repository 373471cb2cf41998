package amqp

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/webitel/im-notice-service/internal/adapter/pubsub"
	"go.uber.org/fx"
)

var Module = fx.Module("amqp-handler",
	fx.Provide(
		NewMessageHandler,
		NewWatermillRouter,
	),

	fx.Invoke(func(h *MessageHandler, router *message.Router, sp *pubsub.SubscriberProvider) error {
		return h.RegisterHandlers(router, sp)
	}),
	fx.Invoke(runRouter),
)

func runRouter(lc fx.Lifecycle, router *message.Router, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := router.Run(context.Background()); err != nil {
					logger.Error("AMQP_ROUTER_STOPPED", "err", err)
				}
			}()
			select {
			case <-router.Running():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
		OnStop: func(context.Context) error {
			return router.Close()
		},
	})
}
