package sink

import (
	"context"
	"log/slog"
)

// Development-mode ports. They stand in for the real FCM/SMTP/SMS
// clients when no provider is configured: every send is logged and
// reported as delivered, so the rest of the pipeline (retry, recording,
// batching) behaves exactly as in production.

type DevPushPort struct {
	Logger *slog.Logger
}

func (p DevPushPort) Send(_ context.Context, req PushRequest) PushResult {
	p.Logger.Info("DEV_PUSH_SENT", "token_prefix", prefix(req.Token, 8), "title", req.Title)
	return PushResult{Delivered: true}
}

type DevEmailPort struct {
	Logger *slog.Logger
}

func (p DevEmailPort) Send(_ context.Context, req EmailRequest) error {
	p.Logger.Info("DEV_EMAIL_SENT", "to", req.To, "subject", req.Subject)
	return nil
}

type DevSMSPort struct {
	Logger *slog.Logger
}

func (p DevSMSPort) Send(_ context.Context, phone, text string) error {
	p.Logger.Info("DEV_SMS_SENT", "phone", phone, "chars", len(text))
	return nil
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
