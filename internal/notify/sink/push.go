package sink

import (
	"context"
	"fmt"

	"github.com/quantfabric/alert-delivery-service/internal/domain/model"
)

// PushRequest is the contract-level payload handed to the external push
// provider (FCM/APNs client lives outside the core).
type PushRequest struct {
	Token    string
	Title    string
	Body     string
	Icon     string
	Priority string // "normal" | "high"
	TTLSecs  int
	Data     map[string]string
}

// PushResult mirrors the provider response. TokenInvalid triggers device
// de-activation upstream.
type PushResult struct {
	Delivered    bool
	TokenInvalid bool
	Err          error
}

// PushPort is implemented by the external push client.
type PushPort interface {
	Send(ctx context.Context, req PushRequest) PushResult
}

var _ Sink = (*PushSink)(nil)

// PushSink adapts the push port to the shared Sink contract.
type PushSink struct {
	port PushPort
}

func NewPushSink(port PushPort) *PushSink {
	return &PushSink{port: port}
}

func (s *PushSink) Kind() model.ChannelKind { return model.ChannelPush }

func (s *PushSink) Send(ctx context.Context, env *model.Envelope) error {
	if env.PushToken == "" {
		return model.NewSinkError(model.SinkInvalidRecipient, fmt.Errorf("push: device %s has no token", env.DeviceID))
	}

	res := s.port.Send(ctx, PushRequest{
		Token:    env.PushToken,
		Title:    env.Subject,
		Body:     env.BodyText,
		Priority: string(env.Priority),
		TTLSecs:  env.TTLSeconds,
		Data:     env.Data,
	})
	if res.Delivered {
		return nil
	}
	if res.TokenInvalid {
		return model.NewSinkError(model.SinkInvalidRecipient, fmt.Errorf("push: token invalid for device %s", env.DeviceID))
	}
	err := res.Err
	if err == nil {
		err = fmt.Errorf("push: provider refused delivery")
	}
	return model.NewSinkError(model.SinkTransient, err)
}
