package registry

import (
	"log/slog"
	"time"

	"github.com/webitel/im-notice-service/internal/domain/dialog"
)

// Option defines a functional configuration type for the Registry.
type Option func(*Registry)

// WithEvictionInterval configures how often the [JANITOR] process runs
// to reclaim surfaces nobody renders anymore.
func WithEvictionInterval(d time.Duration) Option {
	return func(r *Registry) {
		r.config.evictionInterval = d
	}
}

// WithIdleTimeout defines the [QUIET_PERIOD] after which an ephemeral
// surface without renderers is considered eligible for eviction.
func WithIdleTimeout(d time.Duration) Option {
	return func(r *Registry) {
		r.config.idleTimeout = d
	}
}

// WithMailboxSize sets the [BACKPRESSURE] threshold.
// It defines the frame buffer capacity of each renderer connector.
func WithMailboxSize(size int) Option {
	return func(r *Registry) {
		r.config.mailboxSize = size
	}
}

// WithSendTimeout bounds how long a surface waits for a full connector.
func WithSendTimeout(d time.Duration) Option {
	return func(r *Registry) {
		r.config.sendTimeout = d
	}
}

// WithTicketService enables support-ticket submission from cause dialogs.
func WithTicketService(t dialog.TicketService) Option {
	return func(r *Registry) {
		r.tickets = t
	}
}

// WithLogger sets the registry logger; surfaces derive theirs from it.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithDropHook is invoked for every refused frame with whether the surface
// is pinned.
func WithDropHook(fn func(pinned bool)) Option {
	return func(r *Registry) {
		r.onDrop = fn
	}
}
