package dispatcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/quantfabric/alert-delivery-service/internal/domain/model"
)

// loggingMiddleware implements [DECORATOR_PATTERN] to add observability
// around the dispatcher without touching routing logic.
type loggingMiddleware struct {
	next   Dispatcher
	logger *slog.Logger
}

// WithLogging wraps a Dispatcher in the timing/outcome decorator.
func WithLogging(next Dispatcher, logger *slog.Logger) Dispatcher {
	return &loggingMiddleware{next: next, logger: logger}
}

func (m *loggingMiddleware) Process(ctx context.Context, msg *model.NotificationMessage, category string) {
	start := time.Now()
	m.next.Process(ctx, msg, category)
	m.logger.Debug("NOTIFICATION_PROCESSED",
		"msg_id", msg.ID,
		"category", category,
		"level", msg.Level.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func (m *loggingMiddleware) SendDirect(ctx context.Context, env *model.Envelope) {
	start := time.Now()
	m.next.SendDirect(ctx, env)
	m.logger.Debug("DIRECT_SEND_COMPLETED",
		"msg_id", env.NotificationID,
		"channel", env.Channel.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func (m *loggingMiddleware) HandlerFor(category string) func(*model.NotificationMessage) {
	return func(msg *model.NotificationMessage) {
		m.Process(context.Background(), msg, category)
	}
}
