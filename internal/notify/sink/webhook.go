package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/quantfabric/alert-delivery-service/internal/domain/model"
)

var _ Sink = (*WebhookSink)(nil)

// WebhookSink POSTs the notification as JSON to the recipient URL.
//
// Status mapping follows the shared taxonomy: 2xx succeeds, 429 is
// RateLimited (the retry delay respects it), other 4xx are Permanent,
// everything else is Transient.
type WebhookSink struct {
	client  *http.Client
	headers map[string]string
}

func NewWebhookSink(timeout time.Duration, headers map[string]string) *WebhookSink {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WebhookSink{
		client:  &http.Client{Timeout: timeout},
		headers: headers,
	}
}

func (s *WebhookSink) Kind() model.ChannelKind { return model.ChannelWebhook }

func (s *WebhookSink) Send(ctx context.Context, env *model.Envelope) error {
	if env.Recipient == "" {
		return model.NewSinkError(model.SinkInvalidRecipient, fmt.Errorf("webhook: empty url"))
	}

	payload, err := json.Marshal(map[string]any{
		"notification_id": env.NotificationID,
		"subject":         env.Subject,
		"body":            env.BodyText,
		"priority":        string(env.Priority),
		"data":            env.Data,
	})
	if err != nil {
		return model.NewSinkError(model.SinkPermanent, fmt.Errorf("webhook: encode payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, env.Recipient, bytes.NewReader(payload))
	if err != nil {
		return model.NewSinkError(model.SinkPermanent, fmt.Errorf("webhook: build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return model.NewSinkError(model.SinkTransient, fmt.Errorf("webhook: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return model.NewSinkError(model.SinkRateLimited, fmt.Errorf("webhook: status %d", resp.StatusCode))
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return model.NewSinkError(model.SinkPermanent, fmt.Errorf("webhook: status %d", resp.StatusCode))
	default:
		return model.NewSinkError(model.SinkTransient, fmt.Errorf("webhook: status %d", resp.StatusCode))
	}
}
