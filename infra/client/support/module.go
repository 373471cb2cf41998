package support

import (
	"log/slog"

	"github.com/webitel/im-notice-service/config"
	"github.com/webitel/im-notice-service/internal/domain/dialog"
	"go.uber.org/fx"
)

var Module = fx.Module("support_client",
	// [OPTIONAL_COLLABORATOR] without a URL dialogs report tickets as unsupported
	fx.Provide(func(cfg *config.Config, logger *slog.Logger) dialog.TicketService {
		if cfg.Ticket.URL == "" {
			logger.Info("SUPPORT_TICKETS_DISABLED")
			return nil
		}
		return New(cfg.Ticket, logger.With("component", "support"))
	}),
)
