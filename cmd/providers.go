package cmd

import (
	"io"
	"log/slog"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/quantfabric/alert-delivery-service/config"
	"github.com/quantfabric/alert-delivery-service/internal/adapter/pubsub"
)

// ExportExchange is the broker destination for outgoing enriched events.
const ExportExchange = "qf_platform.events"

func ProvideLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var w io.Writer = os.Stdout
	if cfg.Log.File != "" {
		w = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    100, // MB
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		})
	}

	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func ProvideWatermillLogger(logger *slog.Logger) watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logger)
}

func ProvideRegisterer() prometheus.Registerer {
	return prometheus.DefaultRegisterer
}

// ProvideEventDispatcher picks the export transport: the AMQP broker when
// configured, the in-process bus otherwise (single-node deployments).
func ProvideEventDispatcher(cfg *config.Config, g *gochannel.GoChannel, wmLogger watermill.LoggerAdapter) (pubsub.EventDispatcher, error) {
	if !cfg.AMQP.Enabled {
		return pubsub.NewEventDispatcher(g), nil
	}

	pp := pubsub.NewPublisherProvider(pubsub.AMQPConfig{URI: cfg.AMQP.URI}, wmLogger)
	pub, err := pp.Build(ExportExchange)
	if err != nil {
		return nil, err
	}
	return pubsub.NewEventDispatcher(pub), nil
}
