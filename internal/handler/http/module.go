package http

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/quantfabric/alert-delivery-service/config"
	"github.com/quantfabric/alert-delivery-service/internal/exchange/executor"
	"github.com/quantfabric/alert-delivery-service/internal/exchange/failover"
)

var Module = fx.Module("http-handler",
	fx.Provide(
		fx.Annotate(
			func(c *failover.Controller) FailoverStatuser { return c },
			fx.As(new(FailoverStatuser)),
		),
		fx.Annotate(
			func(e *executor.Executor) ExecutorStatuser { return e },
			fx.As(new(ExecutorStatuser)),
		),

		NewAdminHandler,
		NewUserHandler,

		func(cfg *config.Config, admin *AdminHandler, users *UserHandler, logger *slog.Logger) *Server {
			return NewServer(Config{Addr: cfg.HTTP.Addr}, admin, users, logger)
		},
	),

	fx.Invoke(func(lc fx.Lifecycle, srv *Server, logger *slog.Logger) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					if err := srv.Run(); err != nil {
						logger.Error("HTTP_SERVER_STOPPED", "err", err)
					}
				}()
				return nil
			},
			OnStop: srv.Shutdown,
		})
	}),
)
