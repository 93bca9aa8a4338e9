package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfabric/alert-delivery-service/internal/domain/model"
	"github.com/quantfabric/alert-delivery-service/internal/notify/template"
)

func newBatcherFixture(t *testing.T) (*fixture, *Batcher) {
	t.Helper()
	f := newFixture(t)
	b := NewBatcher(f.svc, template.DefaultDigestComposers(), time.Minute)
	return f, b
}

func TestBatcher_EmailDigest(t *testing.T) {
	f, b := newBatcherFixture(t)
	emailProfile(t, f, "u1")

	deadline := time.Now().Add(-time.Minute)
	f.sched.Enqueue("u1", model.ChannelEmail, alert(model.LevelInfo), deadline)
	f.sched.Enqueue("u1", model.ChannelEmail, alert(model.LevelError), deadline)

	b.flush(context.Background(), f.sched.Tick(time.Now()))

	sent := f.email.envelopes()
	require.Len(t, sent, 1)
	assert.Equal(t, "Digest — 2 notifications", sent[0].Subject)
	assert.Equal(t, "u1@example.com", sent[0].Recipient)

	// One record per digest, keyed by the batch id.
	points := pointsWithTag(f.ts, "channel_type", "email")
	require.Len(t, points, 1)
	assert.Equal(t, "error", points[0].Tags["level"])
	assert.Equal(t, "digest", points[0].Tags["category"])
}

func TestBatcher_PushReplaysIndividually(t *testing.T) {
	f, b := newBatcherFixture(t)
	p := model.NewUserProfile("u1")
	p.ChannelEnabled[model.ChannelPush] = true
	p.Devices = []*model.Device{{DeviceID: "d1", PushToken: "tok", Active: true}}
	require.NoError(t, f.users.Save(context.Background(), p))

	deadline := time.Now().Add(-time.Minute)
	f.sched.Enqueue("u1", model.ChannelPush, alert(model.LevelInfo), deadline)
	f.sched.Enqueue("u1", model.ChannelPush, alert(model.LevelWarning), deadline)

	b.flush(context.Background(), f.sched.Tick(time.Now()))

	assert.Len(t, f.push.envelopes(), 2)
}

func TestBatcher_MissingProfileDropsBatch(t *testing.T) {
	f, b := newBatcherFixture(t)

	deadline := time.Now().Add(-time.Minute)
	f.sched.Enqueue("ghost", model.ChannelEmail, alert(model.LevelInfo), deadline)

	b.flush(context.Background(), f.sched.Tick(time.Now()))

	assert.Empty(t, f.email.envelopes())
}

func TestBatcher_StopDrainsPending(t *testing.T) {
	f, b := newBatcherFixture(t)
	emailProfile(t, f, "u1")

	// Far-future deadline; only Drain (not a tick) can claim it.
	f.sched.Enqueue("u1", model.ChannelEmail, alert(model.LevelInfo), time.Now().Add(time.Hour))

	go b.Run(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	b.Stop(ctx)

	assert.Len(t, f.email.envelopes(), 1)
	assert.Equal(t, 0, f.sched.PendingCount())
}

func TestMaxLevel(t *testing.T) {
	msgs := []*model.NotificationMessage{
		{Level: model.LevelInfo},
		{Level: model.LevelCritical},
		{Level: model.LevelWarning},
	}
	assert.Equal(t, model.LevelCritical, maxLevel(msgs))
	assert.Equal(t, model.LevelInfo, maxLevel(nil))
}
