package sink

import (
	"context"
	"log/slog"

	"github.com/quantfabric/alert-delivery-service/internal/domain/model"
)

var _ Sink = (*LogSink)(nil)

// LogSink writes notifications to the structured log. It never fails,
// which makes it the safety net channel for operational alerts.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Kind() model.ChannelKind { return model.ChannelLog }

func (s *LogSink) Send(_ context.Context, env *model.Envelope) error {
	s.logger.Info("NOTIFICATION",
		"notification_id", env.NotificationID,
		"user_id", env.UserID,
		"subject", env.Subject,
		"body", env.BodyText,
		"priority", string(env.Priority),
	)
	return nil
}
