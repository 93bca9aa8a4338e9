package amqp

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/fx"

	"github.com/quantfabric/alert-delivery-service/config"
	pubsubadapter "github.com/quantfabric/alert-delivery-service/internal/adapter/pubsub"
)

var Module = fx.Module("amqp-handler",
	fx.Provide(
		func(cfg *config.Config) pubsubadapter.AMQPConfig {
			return pubsubadapter.AMQPConfig{URI: cfg.AMQP.URI}
		},
		func(cfg *config.Config) RetryPolicy {
			return RetryPolicy{
				MaxRetries:      cfg.AMQP.ConsumerRetries,
				InitialInterval: cfg.AMQP.RetryInterval,
				MaxInterval:     cfg.AMQP.RetryMaxInterval,
			}
		},

		pubsubadapter.NewPublisherProvider,
		pubsubadapter.NewSubscriberProvider,

		NewAlertHandler,
		NewWatermillRouter,
	),

	fx.Invoke(func(lc fx.Lifecycle, h *AlertHandler, router *message.Router, subProvider *pubsubadapter.SubscriberProvider) error {
		if err := h.RegisterHandlers(router, subProvider); err != nil {
			return err
		}

		loopCtx, cancel := context.WithCancel(context.Background())
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					if err := router.Run(loopCtx); err != nil {
						h.logger.Error("AMQP_ROUTER_STOPPED", "err", err)
					}
				}()
				return nil
			},
			OnStop: func(context.Context) error {
				cancel()
				return router.Close()
			},
		})
		return nil
	}),
)
