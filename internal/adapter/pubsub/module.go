package pubsub

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/fx"

	"github.com/quantfabric/alert-delivery-service/internal/notify/dispatcher"
)

var Module = fx.Module("pubsub",
	fx.Provide(
		NewGoChannelBus,

		func(g *gochannel.GoChannel, logger *slog.Logger) *Bus {
			return NewBus(g, logger)
		},

		func(g *gochannel.GoChannel, sink dispatcher.Dispatcher, exporter EventDispatcher, logger *slog.Logger) *TransitionConsumer {
			return NewTransitionConsumer(g, sink, exporter, logger)
		},
	),

	fx.Invoke(func(lc fx.Lifecycle, c *TransitionConsumer) {
		loopCtx, cancel := context.WithCancel(context.Background())
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				return c.Run(loopCtx)
			},
			OnStop: func(context.Context) error {
				c.Stop()
				cancel()
				return nil
			},
		})
	}),
)
