package pubsub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/quantfabric/alert-delivery-service/internal/domain/event"
	"github.com/quantfabric/alert-delivery-service/internal/domain/model"
)

// AlertSink is the slice of the dispatcher the consumer needs: fan a
// finished alert out to every user whose rules accept it.
type AlertSink interface {
	Process(ctx context.Context, msg *model.NotificationMessage, category string)
}

// Transition alerts are infrastructure news, so they ride the system
// category through everyone's rule set.
const transitionCategory = "system"

// TransitionConsumer turns failover and circuit transitions arriving on
// the bus into synthetic alerts and hands them to the notification
// pipeline. Health samples are observed for logging only; individual
// probe results are too chatty to alert on.
type TransitionConsumer struct {
	subscriber message.Subscriber
	sink       AlertSink
	exporter   EventDispatcher
	logger     *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTransitionConsumer(subscriber message.Subscriber, sink AlertSink, exporter EventDispatcher, logger *slog.Logger) *TransitionConsumer {
	return &TransitionConsumer{
		subscriber: subscriber,
		sink:       sink,
		exporter:   exporter,
		logger:     logger,
	}
}

// Run subscribes to the transition topics and consumes until Stop.
func (c *TransitionConsumer) Run(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	failovers, err := c.subscriber.Subscribe(ctx, TopicFailover)
	if err != nil {
		return err
	}
	circuits, err := c.subscriber.Subscribe(ctx, TopicCircuit)
	if err != nil {
		return err
	}
	health, err := c.subscriber.Subscribe(ctx, TopicHealth)
	if err != nil {
		return err
	}

	c.wg.Add(3)
	go c.consume(ctx, failovers, c.onFailover)
	go c.consume(ctx, circuits, c.onCircuit)
	go c.consume(ctx, health, c.onHealth)
	return nil
}

func (c *TransitionConsumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

func (c *TransitionConsumer) consume(ctx context.Context, msgs <-chan *message.Message, handle func(context.Context, *message.Message)) {
	defer c.wg.Done()
	for msg := range msgs {
		handle(ctx, msg)
		msg.Ack()
	}
}

func (c *TransitionConsumer) onFailover(ctx context.Context, msg *message.Message) {
	var ev event.FailoverEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		c.logger.Error("TRANSITION_DECODE_FAILED", "topic", TopicFailover, "err", err)
		return
	}
	c.logger.Warn("EXCHANGE_FAILOVER",
		"from", ev.From, "to", ev.To, "reason", ev.Reason)

	c.deliver(ctx, ev.Notification())
	c.export(ctx, &ev)
}

func (c *TransitionConsumer) onCircuit(ctx context.Context, msg *message.Message) {
	var ev event.CircuitEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		c.logger.Error("TRANSITION_DECODE_FAILED", "topic", TopicCircuit, "err", err)
		return
	}
	c.logger.Warn("CIRCUIT_TRANSITION", "circuit", ev.Name, "from", ev.From, "to", ev.To)

	// Closing back up is good news at Info level; the alert still goes
	// out so operators see recovery without tailing logs.
	c.deliver(ctx, ev.Notification())
	c.export(ctx, &ev)
}

func (c *TransitionConsumer) onHealth(ctx context.Context, msg *message.Message) {
	var ev event.HealthEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		c.logger.Error("TRANSITION_DECODE_FAILED", "topic", TopicHealth, "err", err)
		return
	}
	if ev.Health.Status != model.StatusHealthy {
		c.logger.Warn("EXCHANGE_UNHEALTHY",
			"exchange_id", ev.ExchangeID,
			"status", ev.Health.Status,
			"consecutive_failures", ev.Health.ConsecutiveFailures,
			"last_error", ev.Health.LastError)
	}
	c.export(ctx, &ev)
}

func (c *TransitionConsumer) deliver(ctx context.Context, alert *model.NotificationMessage) {
	if alert == nil {
		return
	}
	c.sink.Process(ctx, alert, transitionCategory)
}

func (c *TransitionConsumer) export(ctx context.Context, ev event.Eventer) {
	if c.exporter == nil {
		return
	}
	if err := c.exporter.Publish(ctx, ev); err != nil {
		c.logger.Error("TRANSITION_EXPORT_FAILED", "event_id", ev.GetID(), "err", err)
	}
}
