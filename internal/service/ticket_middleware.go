package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/webitel/im-notice-service/internal/domain/dialog"
	"github.com/webitel/im-notice-service/internal/metrics"
)

// TicketMiddleware implements [DECORATOR_PATTERN] to add observability
// to ticket submission without touching the client.
type TicketMiddleware struct {
	Next    dialog.TicketService
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// NewTicketMiddleware wraps next; a nil next stays nil so dialogs keep
// reporting that tickets are unsupported.
func NewTicketMiddleware(next dialog.TicketService, logger *slog.Logger, m *metrics.Metrics) dialog.TicketService {
	if next == nil {
		return nil
	}
	return &TicketMiddleware{Next: next, Logger: logger, Metrics: m}
}

func (m *TicketMiddleware) Submit(ctx context.Context, req dialog.TicketRequest) error {
	start := time.Now()

	err := m.Next.Submit(ctx, req)

	// [OBSERVABILITY] Scoped logging for performance auditing
	duration := time.Since(start)
	status := "ok"

	var ticketErr *dialog.TicketError
	switch {
	case err == nil:
		m.Logger.Info("TICKET_SUBMITTED",
			"use_case_id", req.UseCaseID,
			"duration_ms", duration.Milliseconds(),
		)
	case errors.As(err, &ticketErr):
		status = "rejected"
		m.Logger.Warn("TICKET_REJECTED",
			"use_case_id", req.UseCaseID,
			"cause", ticketErr.CauseLocalized,
			"duration_ms", duration.Milliseconds(),
		)
	default:
		status = "failed"
		m.Logger.Error("TICKET_SUBMISSION_FAILED",
			"use_case_id", req.UseCaseID,
			"err", err,
			"duration_ms", duration.Milliseconds(),
		)
	}

	m.Metrics.TicketSubmitted(status, duration.Seconds())
	return err
}
