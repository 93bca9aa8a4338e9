package sink

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/quantfabric/alert-delivery-service/internal/domain/model"
)

// SMSPort is implemented by the external SMS gateway client.
type SMSPort interface {
	Send(ctx context.Context, phone, text string) error
}

var _ Sink = (*SMSSink)(nil)

// SMSSink adapts the SMS port to the shared Sink contract. SMS carries
// only the subject line plus a truncated body.
type SMSSink struct {
	port SMSPort
}

func NewSMSSink(port SMSPort) *SMSSink {
	return &SMSSink{port: port}
}

func (s *SMSSink) Kind() model.ChannelKind { return model.ChannelSMS }

const smsBodyLimit = 140

func (s *SMSSink) Send(ctx context.Context, env *model.Envelope) error {
	if env.Recipient == "" {
		return model.NewSinkError(model.SinkInvalidRecipient, fmt.Errorf("sms: user %s has no phone", env.UserID))
	}

	text := env.Subject
	if env.BodyText != "" {
		text += ": " + env.BodyText
	}
	text = truncateText(text, smsBodyLimit)

	if err := s.port.Send(ctx, env.Recipient, text); err != nil {
		return model.NewSinkError(model.SinkTransient, fmt.Errorf("sms: %w", err))
	}
	return nil
}

// truncateText cuts at the last rune boundary within limit bytes; slicing
// mid-rune would hand the gateway invalid UTF-8.
func truncateText(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
