// Package pubsub carries transition events (failover, circuit, health)
// between the resilience layer and the notification pipeline over a
// watermill bus. The in-process GoChannel transport replaces the direct
// callback back-references the two subsystems would otherwise hold on
// each other.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/quantfabric/alert-delivery-service/internal/domain/event"
)

const (
	TopicFailover = "transitions.failover"
	TopicCircuit  = "transitions.circuit"
	TopicHealth   = "transitions.health"
)

// NewGoChannelBus builds the in-process transport. The buffer absorbs
// transition bursts without blocking the resilience layer's hot path.
func NewGoChannelBus(wmLogger watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
	}, wmLogger)
}

// Bus is the transition-event publisher handed to the failover
// controller, the circuit breaker and the prober. Publishing is
// best-effort: a full bus loses the event to a log line, never blocks an
// election or a probe sweep.
type Bus struct {
	publisher message.Publisher
	logger    *slog.Logger
}

func NewBus(publisher message.Publisher, logger *slog.Logger) *Bus {
	return &Bus{publisher: publisher, logger: logger}
}

func (b *Bus) PublishFailover(ev *event.FailoverEvent) { b.publish(TopicFailover, ev) }
func (b *Bus) PublishCircuit(ev *event.CircuitEvent)   { b.publish(TopicCircuit, ev) }
func (b *Bus) PublishHealth(ev *event.HealthEvent)     { b.publish(TopicHealth, ev) }

func (b *Bus) publish(topic string, ev event.Eventer) {
	payload, err := json.Marshal(ev)
	if err != nil {
		b.logger.Error("BUS_MARSHAL_FAILED", "topic", topic, "err", err)
		return
	}
	msg := message.NewMessage(ev.GetID(), payload)
	if err := b.publisher.Publish(topic, msg); err != nil {
		b.logger.Error("BUS_PUBLISH_FAILED", "topic", topic, "err", err)
	}
}

// EventDispatcher defines the high-level contract for outgoing events
// bound for the external broker. Handlers stay agnostic of the transport.
type EventDispatcher interface {
	Publish(ctx context.Context, ev event.Eventer) error
	Publisher() message.Publisher
}

// eventDispatcher is the concrete implementation (private).
type eventDispatcher struct {
	publisher message.Publisher
}

// NewEventDispatcher returns the interface instead of the struct pointer.
func NewEventDispatcher(pub message.Publisher) EventDispatcher {
	return &eventDispatcher{publisher: pub}
}

func (d *eventDispatcher) Publish(ctx context.Context, ev event.Eventer) error {
	if ev == nil {
		return fmt.Errorf("event dispatcher: cannot publish nil event")
	}
	exportable, ok := ev.(event.Exportable)
	if !ok || exportable.GetRoutingKey() == "" {
		return nil // not bound for the broker
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("event dispatcher: marshal failure: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if err := d.publisher.Publish(exportable.GetRoutingKey(), msg); err != nil {
		return fmt.Errorf("event dispatcher: failed to publish to topic %s: %w", exportable.GetRoutingKey(), err)
	}
	return nil
}

func (d *eventDispatcher) Publisher() message.Publisher {
	return d.publisher
}
