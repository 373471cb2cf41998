package amqp

import (
	"context"
	"encoding/json"
	"runtime/debug"

	"github.com/ThreeDotsLabs/watermill/message"
)

// DomainHandler defines the functional signature for business logic.
type DomainHandler[T any] func(ctx context.Context, payload *T) error

// [INFRASTRUCTURE_BRIDGE]
// Bind connects Watermill to Domain logic, handling Panic Recovery and decoding.
func Bind[T any](h *MessageHandler, fn DomainHandler[T]) message.NoPublishHandlerFunc {
	return func(msg *message.Message) (err error) {
		// [PANIC_RECOVERY]
		// Safely handle runtime panics to keep the consumer alive.
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("PANIC_RECOVERED",
					"err", r,
					"stack", string(debug.Stack()),
					"msg_id", msg.UUID)
				err = nil // ACK: a payload that panics once panics on every retry.
			}
		}()

		// [DECODING]
		payload := new(T)
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, payload); err != nil {
				h.logger.Error("DECODE_FAILED", "err", err, "msg_id", msg.UUID)
				return nil // ACK: Poison Pill protection.
			}
		}

		// [EXECUTION]
		// Domain logic execution with enriched context (TraceID).
		return fn(msg.Context(), payload)
	}
}
