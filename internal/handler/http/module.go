package httphandler

import (
	"log/slog"

	"github.com/webitel/im-notice-service/config"
	"github.com/webitel/im-notice-service/internal/handler/lp"
	"github.com/webitel/im-notice-service/internal/handler/ws"
	"github.com/webitel/im-notice-service/internal/service"
	"go.uber.org/fx"
)

var Module = fx.Module("http-handler",
	fx.Provide(
		func(logger *slog.Logger, s service.Surfacer, cfg *config.Config) *ws.WSHandler {
			return ws.NewWSHandler(logger, s, cfg.HTTP.AllowedOrigins)
		},
		func(s service.Surfacer, cfg *config.Config) *lp.LPHandler {
			return lp.NewLPHandler(s, cfg.HTTP.PollTimeout)
		},
		NewHandler,
	),
)
