package pubsub

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/webitel/im-notice-service/config"
	"github.com/webitel/im-notice-service/internal/domain/bus"
	"go.uber.org/fx"
)

var Module = fx.Module("pubsub",
	fx.Provide(
		func(lc fx.Lifecycle, cfg *config.Config, logger watermill.LoggerAdapter) Factory {
			f := NewFactory(cfg.Broker.URL, logger)
			lc.Append(fx.StopHook(f.Close))
			return f
		},
		NewPublisherProvider,
		NewSubscriberProvider,
		func(pp *PublisherProvider, cfg *config.Config) (EventDispatcher, error) {
			pub, err := pp.Build(cfg.Broker.Exchange)
			if err != nil {
				return nil, err
			}
			return NewEventDispatcher(pub), nil
		},
		func(cfg *config.Config) (*Deduplicator, error) {
			return NewDeduplicator(cfg.Broker.DedupSize)
		},
	),
	fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, d EventDispatcher, dedup *Deduplicator, sub bus.Subscriber, logger *slog.Logger) {
		if !cfg.Broker.Export {
			return
		}
		exp := NewExporter(d, dedup, logger, 1024)
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				exp.Start(sub)
				return nil
			},
			OnStop: func(context.Context) error {
				exp.Stop()
				return nil
			},
		})
	}),
)
