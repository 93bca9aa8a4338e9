package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/quantfabric/alert-delivery-service/internal/domain/model"
)

// EmailRequest is the contract-level payload for the external SMTP client.
type EmailRequest struct {
	To       string
	Subject  string
	BodyHTML string
	BodyText string
	Priority string
	Headers  map[string]string
}

// ErrEmailAuth marks authentication failures, which are permanent:
// retrying with the same credentials cannot succeed.
var ErrEmailAuth = errors.New("email: authentication failed")

// EmailPort is implemented by the external SMTP client. Connection-level
// failures should wrap a transient cause; auth failures wrap ErrEmailAuth.
type EmailPort interface {
	Send(ctx context.Context, req EmailRequest) error
}

var _ Sink = (*EmailSink)(nil)

// EmailSink adapts the email port to the shared Sink contract.
type EmailSink struct {
	port EmailPort
}

func NewEmailSink(port EmailPort) *EmailSink {
	return &EmailSink{port: port}
}

func (s *EmailSink) Kind() model.ChannelKind { return model.ChannelEmail }

func (s *EmailSink) Send(ctx context.Context, env *model.Envelope) error {
	if env.Recipient == "" {
		return model.NewSinkError(model.SinkInvalidRecipient, fmt.Errorf("email: user %s has no address", env.UserID))
	}

	err := s.port.Send(ctx, EmailRequest{
		To:       env.Recipient,
		Subject:  env.Subject,
		BodyHTML: env.BodyHTML,
		BodyText: env.BodyText,
		Priority: string(env.Priority),
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrEmailAuth) {
		return model.NewSinkError(model.SinkPermanent, err)
	}
	return model.NewSinkError(model.SinkTransient, err)
}
