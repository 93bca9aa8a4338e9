package cmd

import (
	"go.uber.org/fx"

	"github.com/quantfabric/alert-delivery-service/config"
	pubsubadapter "github.com/quantfabric/alert-delivery-service/internal/adapter/pubsub"
	"github.com/quantfabric/alert-delivery-service/internal/adapter/store"
	exchangedi "github.com/quantfabric/alert-delivery-service/internal/exchange/di"
	amqphandler "github.com/quantfabric/alert-delivery-service/internal/handler/amqp"
	httphandler "github.com/quantfabric/alert-delivery-service/internal/handler/http"
	notifydi "github.com/quantfabric/alert-delivery-service/internal/notify/di"
)

func NewApp(cfg *config.Config) *fx.App {
	opts := []fx.Option{
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			ProvideWatermillLogger,
			ProvideRegisterer,
			ProvideEventDispatcher,
		),
		store.Module,
		notifydi.Module,
		pubsubadapter.Module,
		exchangedi.Module,
		httphandler.Module,
	}

	if cfg.AMQP.Enabled {
		opts = append(opts, amqphandler.Module)
	}

	return fx.New(opts...)
}
