package pubsub

import (
	"github.com/ThreeDotsLabs/watermill"
	amqp "github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
)

// AMQPConfig carries the broker coordinates for publisher and subscriber
// factories.
type AMQPConfig struct {
	URI string
}

// PublisherProvider builds topic-exchange publishers. The watermill topic
// is used verbatim as the routing key; the exchange is fixed per
// publisher.
type PublisherProvider struct {
	cfg    AMQPConfig
	logger watermill.LoggerAdapter
}

func NewPublisherProvider(cfg AMQPConfig, logger watermill.LoggerAdapter) *PublisherProvider {
	return &PublisherProvider{cfg: cfg, logger: logger}
}

func (pp *PublisherProvider) Build(exchange string) (message.Publisher, error) {
	cfg := amqp.NewDurablePubSubConfig(pp.cfg.URI, amqp.GenerateQueueNameTopicName)
	cfg.Exchange = amqp.ExchangeConfig{
		GenerateName: func(string) string { return exchange },
		Type:         "topic",
		Durable:      true,
	}
	cfg.Publish.GenerateRoutingKey = func(topic string) string { return topic }
	return amqp.NewPublisher(cfg, pp.logger)
}

// SubscriberProvider builds one subscriber per (queue, exchange, binding
// key) triple so each handler consumes from its own durable queue.
type SubscriberProvider struct {
	cfg    AMQPConfig
	logger watermill.LoggerAdapter
}

func NewSubscriberProvider(cfg AMQPConfig, logger watermill.LoggerAdapter) *SubscriberProvider {
	return &SubscriberProvider{cfg: cfg, logger: logger}
}

func (sp *SubscriberProvider) Build(queue, exchange, bindingKey string) (message.Subscriber, error) {
	cfg := amqp.NewDurablePubSubConfig(sp.cfg.URI, amqp.GenerateQueueNameConstant(queue))
	cfg.Exchange = amqp.ExchangeConfig{
		GenerateName: func(string) string { return exchange },
		Type:         "topic",
		Durable:      true,
	}
	cfg.QueueBind.GenerateRoutingKey = func(string) string { return bindingKey }
	return amqp.NewSubscriber(cfg, sp.logger)
}
