// Package exchangedi wires the exchange resilience layer: circuit
// breaker, failover controller, health prober and resilient executor.
package exchangedi

import (
	"context"
	"log/slog"
	"time"

	"go.uber.org/fx"

	"github.com/quantfabric/alert-delivery-service/config"
	"github.com/quantfabric/alert-delivery-service/internal/adapter/pubsub"
	"github.com/quantfabric/alert-delivery-service/internal/domain/event"
	"github.com/quantfabric/alert-delivery-service/internal/domain/model"
	"github.com/quantfabric/alert-delivery-service/internal/exchange/circuit"
	"github.com/quantfabric/alert-delivery-service/internal/exchange/executor"
	"github.com/quantfabric/alert-delivery-service/internal/exchange/failover"
	"github.com/quantfabric/alert-delivery-service/internal/exchange/health"
)

const breakerName = "exchange-api"

var Module = fx.Module("exchange",
	fx.Provide(
		func(cfg *config.Config, bus *pubsub.Bus) *circuit.Breaker {
			return circuit.NewBreaker(breakerName, circuit.Config{
				FailureThreshold: cfg.Circuit.FailureThreshold,
				Timeout:          cfg.Circuit.Timeout,
				SuccessThreshold: cfg.Circuit.SuccessThreshold,
				MinRequests:      cfg.Circuit.MinRequestsForSuccessRate,
			}, func(from, to model.CircuitState) {
				bus.PublishCircuit(event.NewCircuitEvent(breakerName, from, to))
			}, time.Now)
		},

		func(cfg *config.Config, logger *slog.Logger, bus *pubsub.Bus) *failover.Controller {
			return failover.NewController(failover.Config{
				FailbackCooldown:       cfg.Failover.FailbackCooldown,
				MaxConsecutiveFailures: cfg.Health.MaxConsecutiveFailures,
			}, logger, bus, time.Now)
		},

		func(cfg *config.Config, pool *failover.Controller, bus *pubsub.Bus, logger *slog.Logger) *health.Prober {
			return health.NewProber(health.Config{
				Interval:               cfg.Health.Interval,
				MaxAcceptableLatency:   cfg.Health.MaxLatency,
				MaxConsecutiveFailures: cfg.Health.MaxConsecutiveFailures,
			}, pool, bus, logger, time.Now)
		},

		func(breaker *circuit.Breaker, pool *failover.Controller, logger *slog.Logger) *executor.Executor {
			return executor.New(breaker, pool, logger, func(opName string, lastErr error) {
				logger.Error("EXCHANGE_POOL_EXHAUSTED", "op", opName, "err", lastErr)
			})
		},
	),

	fx.Invoke(func(lc fx.Lifecycle, p *health.Prober) {
		loopCtx, cancel := context.WithCancel(context.Background())
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go p.Run(loopCtx)
				return nil
			},
			OnStop: func(ctx context.Context) error {
				p.Stop(ctx)
				cancel()
				return nil
			},
		})
	}),
)
