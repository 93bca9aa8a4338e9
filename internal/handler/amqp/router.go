// Package amqp consumes platform alert events from the message broker
// and feeds them into the notification pipeline.
package amqp

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/google/uuid"

	"github.com/quantfabric/alert-delivery-service/internal/adapter/pubsub"
	"github.com/quantfabric/alert-delivery-service/internal/notify/dispatcher"
)

const (
	// ------------------- EXCHANGES (SOURCES) -------------------
	PlatformAlertsExchange = "qf_platform.alerts"

	// ------------------- TOPICS (ROUTING KEYS) -----------------
	TopicRiskAlert   = "platform.#.alert.risk.v1"
	TopicTradeAlert  = "platform.#.alert.trade.v1"
	TopicSystemAlert = "platform.#.alert.system.v1"
	TopicMarketAlert = "platform.#.alert.market.v1"

	// ------------------- QUEUES (CONSUMERS) --------------------
	AlertProcessorQueue = "alert-delivery.incoming-processor.v1"
	AlertPoisonTopic    = "alert-delivery.incoming-processor.v1.poison"
)

func NewWatermillRouter(logger watermill.LoggerAdapter) (*message.Router, error) {
	return message.NewRouter(message.RouterConfig{}, logger)
}

type AlertHandler struct {
	notify   dispatcher.Dispatcher
	logger   *slog.Logger
	exporter pubsub.EventDispatcher
	retry    RetryPolicy
}

func NewAlertHandler(notify dispatcher.Dispatcher, logger *slog.Logger, exporter pubsub.EventDispatcher, retry RetryPolicy) *AlertHandler {
	return &AlertHandler{notify, logger, exporter, retry}
}

// [REGISTRATION_PIPELINE]
func (h *AlertHandler) RegisterHandlers(router *message.Router, subProvider *pubsub.SubscriberProvider) error {
	poison, err := middleware.PoisonQueue(h.exporter.Publisher(), AlertPoisonTopic)
	if err != nil {
		return fmt.Errorf("POISON_SETUP_FAILED: %w", err)
	}

	configs := []struct {
		name     string
		exchange string
		topic    string
		handler  message.NoPublishHandlerFunc
	}{
		{"ON_RISK_ALERT", PlatformAlertsExchange, TopicRiskAlert, Bind(h, h.OnRiskAlertV1)},
		{"ON_TRADE_ALERT", PlatformAlertsExchange, TopicTradeAlert, Bind(h, h.OnTradeAlertV1)},
		{"ON_SYSTEM_ALERT", PlatformAlertsExchange, TopicSystemAlert, Bind(h, h.OnSystemAlertV1)},
		{"ON_MARKET_ALERT", PlatformAlertsExchange, TopicMarketAlert, Bind(h, h.OnMarketAlertV1)},
	}

	for _, c := range configs {
		instanceID := uuid.NewString()[:8]
		// [UNIQUE_HANDLER_QUEUE]
		// Each handler on THIS node consumes from its own queue.
		// Format: alert-delivery.incoming-processor.v1.b23a8f12.ON_RISK_ALERT
		handlerQueue := fmt.Sprintf("%s.%s.%s", AlertProcessorQueue, instanceID, c.name)

		sub, err := subProvider.Build(handlerQueue, c.exchange, c.topic)
		if err != nil {
			return err
		}

		router.AddConsumerHandler(c.name, c.topic, sub, c.handler).AddMiddleware(
			TraceIDMiddleware,
			LoggingMiddleware(h.logger),
			NewRetryMiddleware(h.retry).Middleware,
			poison,
			middleware.NewThrottle(100, time.Second).Middleware,
			middleware.Timeout(time.Second*30),
		)
	}

	h.logger.Info("AMQP_PIPELINE_READY", "queue", AlertProcessorQueue)
	return nil
}
