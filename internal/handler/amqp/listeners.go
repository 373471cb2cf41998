package amqp

import (
	"context"
	"errors"
	"fmt"

	"github.com/webitel/im-notice-service/internal/domain/event"
	"github.com/webitel/im-notice-service/internal/service/dto"
)

// [ON_ADD_COMMAND]
func (h *MessageHandler) OnAddCommand(ctx context.Context, cmd *dto.AddMessageCommand) error {
	args, err := cmd.ToDomain()
	if err != nil {
		return h.settle("add", err)
	}
	return h.settle("add", h.notifier.Add(ctx, args))
}

// [ON_REMOVE_COMMAND]
func (h *MessageHandler) OnRemoveCommand(ctx context.Context, cmd *dto.RemoveMessageCommand) error {
	if err := cmd.Validate(); err != nil {
		return h.settle("remove", err)
	}
	return h.settle("remove", h.notifier.Remove(ctx, cmd.UseCaseID))
}

// [ON_REMOVE_ALL_COMMAND]
func (h *MessageHandler) OnRemoveAllCommand(ctx context.Context, _ *dto.RemoveAllCommand) error {
	return h.settle("remove_all", h.notifier.RemoveAll(ctx))
}

// [ON_PEER_EVENT]
// Folds an event another node exported. Our own exports come back too and
// are recognised by id.
func (h *MessageHandler) OnPeerEvent(ctx context.Context, ev *event.MessageEvent) error {
	if ev.ID == "" || !h.dedup.FirstSeen(ev.ID) {
		h.metrics.EventImported("duplicate")
		return nil
	}
	if err := h.notifier.Mirror(ctx, ev); err != nil {
		h.metrics.EventImported("rejected")
		return h.settle("peer_event", err)
	}
	h.metrics.EventImported("ok")
	return nil
}

// settle ACKs invalid commands (redelivery cannot fix them) and NACKs the rest.
func (h *MessageHandler) settle(command string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, dto.ErrInvalidCommand) {
		h.logger.Warn("COMMAND_REJECTED", "command", command, "err", err)
		return nil
	}
	return fmt.Errorf("%s: %w", command, err)
}
