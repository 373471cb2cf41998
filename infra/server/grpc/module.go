package grpcsrv

import (
	"context"
	"log/slog"

	"github.com/webitel/im-notice-service/config"
	"go.uber.org/fx"
)

var Module = fx.Module("grpc-server",
	fx.Provide(func(cfg *config.Config, logger *slog.Logger) *Server {
		return New(cfg.GRPC.Address, logger.With("component", "grpc"))
	}),
	fx.Invoke(func(lc fx.Lifecycle, s *Server) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error { return s.Start() },
			OnStop:  s.Stop,
		})
	}),
)
