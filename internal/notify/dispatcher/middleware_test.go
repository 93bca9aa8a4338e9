package dispatcher

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfabric/alert-delivery-service/internal/domain/model"
)

type recordingDispatcher struct {
	processed  []*model.NotificationMessage
	categories []string
	direct     []*model.Envelope
}

func (d *recordingDispatcher) Process(_ context.Context, msg *model.NotificationMessage, category string) {
	d.processed = append(d.processed, msg)
	d.categories = append(d.categories, category)
}

func (d *recordingDispatcher) SendDirect(_ context.Context, env *model.Envelope) {
	d.direct = append(d.direct, env)
}

func (d *recordingDispatcher) HandlerFor(category string) func(*model.NotificationMessage) {
	return func(msg *model.NotificationMessage) { d.Process(context.Background(), msg, category) }
}

func TestWithLogging_DelegatesProcess(t *testing.T) {
	inner := &recordingDispatcher{}
	d := WithLogging(inner, slog.New(slog.NewTextHandler(io.Discard, nil)))

	msg := model.NewMessage(model.LevelWarning, "Margin", "low")
	d.Process(context.Background(), msg, "risk")

	require.Len(t, inner.processed, 1)
	assert.Same(t, msg, inner.processed[0])
	assert.Equal(t, "risk", inner.categories[0])
}

func TestWithLogging_DelegatesSendDirect(t *testing.T) {
	inner := &recordingDispatcher{}
	d := WithLogging(inner, slog.New(slog.NewTextHandler(io.Discard, nil)))

	env := &model.Envelope{NotificationID: "n1", Channel: model.ChannelEmail}
	d.SendDirect(context.Background(), env)

	require.Len(t, inner.direct, 1)
	assert.Same(t, env, inner.direct[0])
}

func TestWithLogging_HandlerRoutesThroughProcess(t *testing.T) {
	inner := &recordingDispatcher{}
	d := WithLogging(inner, slog.New(slog.NewTextHandler(io.Discard, nil)))

	msg := model.NewMessage(model.LevelError, "Order", "rejected")
	d.HandlerFor("trade")(msg)

	require.Len(t, inner.processed, 1)
	assert.Equal(t, "trade", inner.categories[0])
}
