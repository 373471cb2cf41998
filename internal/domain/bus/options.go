package bus

import (
	"log/slog"

	"github.com/webitel/im-notice-service/internal/domain/cause"
	"github.com/webitel/im-notice-service/internal/domain/model"
)

// Option defines a functional configuration type for the Bus.
type Option func(*Bus)

// WithLogger routes the bus diagnostics to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithEventLog raises the per-event trace from debug to info.
func WithEventLog(enabled bool) Option {
	return func(b *Bus) {
		if enabled {
			b.eventLevel = slog.LevelInfo
		}
	}
}

type addOptions struct {
	err    cause.Payload
	target model.Target
}

// AddOption configures a single AddMessage call.
type AddOption func(*addOptions)

// WithError attaches a diagnostic payload; it becomes the event's only cause.
func WithError(p cause.Payload) AddOption {
	return func(o *addOptions) { o.err = p }
}

// WithTarget addresses the event to one surface instead of broadcasting.
func WithTarget(t model.Target) AddOption {
	return func(o *addOptions) { o.target = t }
}
