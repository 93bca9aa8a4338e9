package dispatcher

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/quantfabric/alert-delivery-service/internal/domain/model"
	"github.com/quantfabric/alert-delivery-service/internal/notify/template"
)

// Batcher drains due batches from the scheduler and dispatches digests.
//
// Channels with a digest composer release one artifact per batch; the rest
// (push) replay the messages individually in insertion order.
type Batcher struct {
	svc       *Service
	composers template.DigestComposers
	tick      time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewBatcher(svc *Service, composers template.DigestComposers, tick time.Duration) *Batcher {
	if tick <= 0 {
		tick = time.Minute
	}
	return &Batcher{
		svc:       svc,
		composers: composers,
		tick:      tick,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Run fires the scheduler on a timer until stopped.
func (b *Batcher) Run(ctx context.Context) {
	defer close(b.done)

	ticker := time.NewTicker(b.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stopCh:
			return
		case now := <-ticker.C:
			b.flush(ctx, b.svc.batches.Tick(now))
		}
	}
}

// Stop halts the loop and drains every pending batch within the caller's
// grace period. Drain failures are logged, not retried.
func (b *Batcher) Stop(ctx context.Context) {
	b.stopOnce.Do(func() { close(b.stopCh) })
	select {
	case <-b.done:
	case <-ctx.Done():
	}
	b.flush(ctx, b.svc.batches.Drain())
}

func (b *Batcher) flush(ctx context.Context, due []*model.PendingBatch) {
	for _, pb := range due {
		b.dispatch(ctx, pb)
	}
}

func (b *Batcher) dispatch(ctx context.Context, pb *model.PendingBatch) {
	profile, err := b.svc.users.Load(ctx, pb.UserID)
	if err != nil {
		b.svc.logger.Warn("BATCH_PROFILE_MISSING", "user_id", pb.UserID, "batch_id", pb.BatchID, "err", err)
		b.svc.dropped.WithLabelValues("repo_error").Inc()
		return
	}

	composer, hasDigest := b.composers[pb.Channel]
	if !hasDigest {
		// No digest form: replay messages one by one, preserving order.
		for _, m := range pb.Messages {
			b.svc.deliver(ctx, profile, m, batchCategory(m), pb.Channel)
		}
		return
	}

	rendered := composer.Compose(pb.UserID, pb.Messages)
	for _, env := range b.digestEnvelopes(profile, pb, rendered) {
		// The digest is a single wire artifact, so it gets a single
		// delivery record keyed by the batch id. The per-message ids
		// travel in the record tags for traceability.
		carrier := &model.NotificationMessage{
			ID:        pb.BatchID,
			Level:     maxLevel(pb.Messages),
			Title:     rendered.Subject,
			Body:      rendered.BodyText,
			Timestamp: pb.CreatedAt.UnixMilli(),
			Metadata:  map[string]string{"batch_size": strconv.Itoa(len(pb.Messages))},
		}
		env.NotificationID = pb.BatchID
		b.svc.sendWithRetry(ctx, profile, env, carrier, "digest")
	}
}

func maxLevel(msgs []*model.NotificationMessage) model.Level {
	top := model.LevelInfo
	for _, m := range msgs {
		if m.Level > top {
			top = m.Level
		}
	}
	return top
}

func (b *Batcher) digestEnvelopes(p *model.UserProfile, pb *model.PendingBatch, r template.Rendered) []*model.Envelope {
	env := &model.Envelope{
		UserID:   pb.UserID,
		Channel:  pb.Channel,
		Subject:  r.Subject,
		BodyHTML: r.BodyHTML,
		BodyText: r.BodyText,
		Priority: model.PriorityNormal,
	}
	switch pb.Channel {
	case model.ChannelEmail:
		if p.Email == "" {
			return nil
		}
		env.Recipient = p.Email
	case model.ChannelWebhook:
		if p.WebhookURL == "" {
			return nil
		}
		env.Recipient = p.WebhookURL
	case model.ChannelSlack:
		env.Recipient = p.SlackWebhookURL
	}
	return []*model.Envelope{env}
}

func batchCategory(m *model.NotificationMessage) string {
	if c, ok := m.Metadata["category"]; ok {
		return c
	}
	return "batch"
}
