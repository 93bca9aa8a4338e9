package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/quantfabric/alert-delivery-service/internal/domain/event"
)

// DomainHandler defines the functional signature for business logic.
type DomainHandler[T any] func(ctx context.Context, payload *T) (event.Eventer, error)

// [INFRASTRUCTURE_BRIDGE]
// Bind connects Watermill to domain logic, handling panic recovery,
// decoding and the export fan-out.
func Bind[T any](h *AlertHandler, fn DomainHandler[T]) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		// [PANIC_RECOVERY]
		// Safely handle runtime panics to keep the consumer alive.
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("PANIC_RECOVERED",
					"err", r,
					"stack", string(debug.Stack()),
					"msg_id", msg.UUID)
			}
		}()

		// [DECODING]
		payload := new(T)
		if err := json.Unmarshal(msg.Payload, payload); err != nil {
			h.logger.Error("DECODE_FAILED", "err", err, "msg_id", msg.UUID)
			return nil // ACK: Poison Pill protection.
		}

		// [EXECUTION]
		// Domain logic execution with enriched context (TraceID).
		ev, err := fn(msg.Context(), payload)
		if err != nil {
			return err // NACK: Business failure triggers Retry policy.
		}

		if ev == nil {
			return nil
		}

		// [EXPORT_DISPATCH]
		// Processed events go back to the broker for downstream consumers
		// (audit trail, multi-node synchronization).
		if _, ok := ev.(event.Exportable); ok {
			if err := h.exporter.Publish(msg.Context(), ev); err != nil {
				return fmt.Errorf("GLOBAL_DISPATCH_FAILED: %w", err)
			}
		}

		return nil
	}
}
