// Package notifydi wires the notification pipeline: rule evaluation,
// throttling, batching, sinks, the dispatcher and the delivery recorder.
package notifydi

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/quantfabric/alert-delivery-service/config"
	"github.com/quantfabric/alert-delivery-service/internal/adapter/store"
	"github.com/quantfabric/alert-delivery-service/internal/notify/batch"
	"github.com/quantfabric/alert-delivery-service/internal/notify/dispatcher"
	"github.com/quantfabric/alert-delivery-service/internal/notify/recorder"
	"github.com/quantfabric/alert-delivery-service/internal/notify/rules"
	"github.com/quantfabric/alert-delivery-service/internal/notify/sink"
	"github.com/quantfabric/alert-delivery-service/internal/notify/template"
)

var Module = fx.Module("notify",
	fx.Provide(
		template.NewRenderer,
		template.DefaultDigestComposers,

		func() *rules.Evaluator { return rules.NewEvaluator(time.Now) },
		func() *rules.ThrottleGate { return rules.NewThrottleGate(time.Now) },
		func() *batch.Scheduler { return batch.NewScheduler(time.Now) },

		func(cfg *config.Config, repo store.TimeSeriesRepo, logger *slog.Logger, reg prometheus.Registerer) *recorder.Recorder {
			return recorder.New(recorder.Config{
				BatchSize:     cfg.Batch.Size,
				FlushInterval: cfg.Batch.FlushInterval,
				Retention:     cfg.Recorder.Retention,
			}, repo, logger, reg, time.Now)
		},
		recorder.NewAggregator,

		func(cfg *config.Config, logger *slog.Logger) *sink.Registry {
			return sink.NewRegistry(
				sink.NewLogSink(logger),
				sink.NewWebhookSink(cfg.Webhook.Timeout, nil),
				sink.NewSlackSink(cfg.Slack.WebhookURL),
				sink.NewPushSink(sink.DevPushPort{Logger: logger}),
				sink.NewEmailSink(sink.DevEmailPort{Logger: logger}),
				sink.NewSMSSink(sink.DevSMSPort{Logger: logger}),
			)
		},

		func(
			cfg *config.Config,
			users store.UserRepo,
			sinks *sink.Registry,
			renderer *template.Renderer,
			evaluator *rules.Evaluator,
			throttle *rules.ThrottleGate,
			batches *batch.Scheduler,
			records *recorder.Recorder,
			logger *slog.Logger,
			reg prometheus.Registerer,
		) *dispatcher.Service {
			return dispatcher.New(dispatcher.Config{
				Workers:       cfg.Worker.Count,
				RetryAttempts: cfg.Retry.Attempts,
				RetryDelay:    cfg.Retry.Delay,
			}, users, sinks, renderer, evaluator, throttle, batches, records, logger, reg, time.Now)
		},
		fx.Annotate(
			func(s *dispatcher.Service) dispatcher.Dispatcher { return s },
			fx.As(new(dispatcher.Dispatcher)),
		),

		func(cfg *config.Config, svc *dispatcher.Service, composers template.DigestComposers) *dispatcher.Batcher {
			return dispatcher.NewBatcher(svc, composers, cfg.Batcher.TickInterval)
		},
	),

	// [DECORATION_LAYER] Timing and outcome logs around every ingress call.
	fx.Decorate(func(next dispatcher.Dispatcher, logger *slog.Logger) dispatcher.Dispatcher {
		return dispatcher.WithLogging(next, logger)
	}),

	fx.Invoke(func(lc fx.Lifecycle, rec *recorder.Recorder, agg *recorder.Aggregator, b *dispatcher.Batcher) {
		loopCtx, cancel := context.WithCancel(context.Background())
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go rec.Run(loopCtx)
				go agg.Run(loopCtx)
				go b.Run(loopCtx)
				return nil
			},
			OnStop: func(ctx context.Context) error {
				// [GRACEFUL_SHUTDOWN] Drain pending batches, then flush
				// the record queue; the aggregator follows the recorder.
				b.Stop(ctx)
				rec.Stop(ctx)
				cancel()
				return nil
			},
		})
	}),
)
