package sink

import (
	"context"
	"fmt"

	"github.com/quantfabric/alert-delivery-service/internal/domain/model"
	"github.com/slack-go/slack"
)

var _ Sink = (*SlackSink)(nil)

// SlackSink posts notifications to an incoming-webhook URL. The recipient
// on the envelope is the webhook URL itself, per-user configurable.
type SlackSink struct {
	defaultWebhook string
}

func NewSlackSink(defaultWebhook string) *SlackSink {
	return &SlackSink{defaultWebhook: defaultWebhook}
}

func (s *SlackSink) Kind() model.ChannelKind { return model.ChannelSlack }

func (s *SlackSink) Send(ctx context.Context, env *model.Envelope) error {
	url := env.Recipient
	if url == "" {
		url = s.defaultWebhook
	}
	if url == "" {
		return model.NewSinkError(model.SinkInvalidRecipient, fmt.Errorf("slack: no webhook configured"))
	}

	color := "#439FE0"
	if env.Priority == model.PriorityHigh {
		color = "#D00000"
	}

	msg := &slack.WebhookMessage{
		Text: env.Subject,
		Attachments: []slack.Attachment{{
			Color:      color,
			Text:       env.BodyText,
			Footer:     env.NotificationID,
			MarkdownIn: []string{"text"},
		}},
	}

	if err := slack.PostWebhookContext(ctx, url, msg); err != nil {
		var serr slack.StatusCodeError
		if hasStatus(err, &serr) {
			switch {
			case serr.Code == 429:
				return model.NewSinkError(model.SinkRateLimited, err)
			case serr.Code >= 400 && serr.Code < 500:
				return model.NewSinkError(model.SinkPermanent, err)
			}
		}
		return model.NewSinkError(model.SinkTransient, fmt.Errorf("slack: %w", err))
	}
	return nil
}

func hasStatus(err error, target *slack.StatusCodeError) bool {
	if serr, ok := err.(slack.StatusCodeError); ok {
		*target = serr
		return true
	}
	return false
}
