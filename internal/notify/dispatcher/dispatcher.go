// Package dispatcher is the notification pipeline's ingress. It fans a
// message out to every eligible user and channel, applying routing rules,
// throttling and batching, and records the outcome of every attempt.
package dispatcher

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/quantfabric/alert-delivery-service/internal/adapter/store"
	"github.com/quantfabric/alert-delivery-service/internal/domain/model"
	"github.com/quantfabric/alert-delivery-service/internal/notify/batch"
	"github.com/quantfabric/alert-delivery-service/internal/notify/recorder"
	"github.com/quantfabric/alert-delivery-service/internal/notify/rules"
	"github.com/quantfabric/alert-delivery-service/internal/notify/sink"
	"github.com/quantfabric/alert-delivery-service/internal/notify/template"
)

// [DISPATCHER] PRIMARY INTERFACE FOR INGRESS HANDLERS (AMQP/HTTP/BUS)
type Dispatcher interface {
	Process(ctx context.Context, msg *model.NotificationMessage, category string)
	SendDirect(ctx context.Context, env *model.Envelope)
	HandlerFor(category string) func(*model.NotificationMessage)
}

// Config tunes fan-out concurrency and the sink retry policy.
type Config struct {
	Workers       int           // parallel user fan-out, default NumCPU
	RetryAttempts int           // sink retries, default 3
	RetryDelay    time.Duration // constant inter-retry wait, default 5s
	SinkTimeout   time.Duration // per-send deadline, default 30s
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 5 * time.Second
	}
	if c.SinkTimeout <= 0 {
		c.SinkTimeout = 30 * time.Second
	}
	return c
}

const userStripes = 64

// Service is the concrete dispatcher.
//
// Per-user work is serialized through striped locks so rule-state stays
// monotonic for a user while distinct users proceed in parallel. Sink
// failures never cross channels or users.
type Service struct {
	cfg       Config
	users     store.UserRepo
	sinks     *sink.Registry
	renderer  *template.Renderer
	evaluator *rules.Evaluator
	throttle  *rules.ThrottleGate
	batches   *batch.Scheduler
	records   *recorder.Recorder
	logger    *slog.Logger
	now       func() time.Time

	// one breaker per channel kind; a flapping sink trips open instead of
	// absorbing every worker's retry budget.
	breakers map[model.ChannelKind]*gobreaker.CircuitBreaker

	stripes [userStripes]sync.Mutex

	sent    *prometheus.CounterVec
	dropped *prometheus.CounterVec
	retried prometheus.Counter
}

func New(
	cfg Config,
	users store.UserRepo,
	sinks *sink.Registry,
	renderer *template.Renderer,
	evaluator *rules.Evaluator,
	throttle *rules.ThrottleGate,
	batches *batch.Scheduler,
	records *recorder.Recorder,
	logger *slog.Logger,
	reg prometheus.Registerer,
	now func() time.Time,
) *Service {
	if now == nil {
		now = time.Now
	}
	s := &Service{
		cfg:       cfg.withDefaults(),
		users:     users,
		sinks:     sinks,
		renderer:  renderer,
		evaluator: evaluator,
		throttle:  throttle,
		batches:   batches,
		records:   records,
		logger:    logger,
		now:       now,
		breakers:  make(map[model.ChannelKind]*gobreaker.CircuitBreaker),
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alert_dispatcher_sent_total",
			Help: "Successful sink deliveries by channel.",
		}, []string{"channel"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alert_dispatcher_dropped_total",
			Help: "Messages dropped before or during delivery, by reason.",
		}, []string{"reason"}),
		retried: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alert_dispatcher_retries_total",
			Help: "Sink send retries.",
		}),
	}
	if reg != nil {
		reg.MustRegister(s.sent, s.dropped, s.retried)
	}

	for _, ch := range model.AllChannels {
		s.breakers[ch] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "sink-" + ch.String(),
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("SINK_BREAKER_TRANSITION", "sink", name, "from", from.String(), "to", to.String())
			},
		})
	}
	return s
}

// Process fans the message out to every known profile. It never returns an
// error: failures are recorded and counted, not propagated.
func (s *Service) Process(ctx context.Context, msg *model.NotificationMessage, category string) {
	profiles, err := s.users.LoadAll(ctx)
	if err != nil {
		s.logger.Error("PROFILE_LOAD_FAILED", "err", err, "msg_id", msg.ID)
		s.dropped.WithLabelValues("repo_error").Inc()
		return
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	for _, profile := range profiles {
		profile := profile
		g.Go(func() error {
			// [PER_USER_SERIALIZATION] All work for one user funnels
			// through its stripe, preserving rule-state monotonicity.
			lock := &s.stripes[stripeFor(profile.UserID)]
			lock.Lock()
			defer lock.Unlock()

			s.processUser(gCtx, profile, msg, category)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Service) processUser(ctx context.Context, p *model.UserProfile, msg *model.NotificationMessage, category string) {
	for _, ch := range model.AllChannels {
		decision := s.evaluator.Evaluate(p, msg, category, ch)

		if decision.Outcome == rules.OutcomeAllow && !s.throttle.Admit(p.UserID, decision.Rule) {
			decision = rules.Decision{Outcome: rules.OutcomeDrop, Reason: rules.DropThrottled, Rule: decision.Rule}
		}

		switch decision.Outcome {
		case rules.OutcomeAllow:
			s.deliver(ctx, p, msg, category, ch)

		case rules.OutcomeBatch:
			s.batches.Enqueue(p.UserID, ch, msg, decision.Deadline)

		case rules.OutcomeDrop:
			s.recordDrop(ctx, p, msg, category, ch, decision.Reason)
		}
	}
}

// deliver renders and sends on a single channel. Push fans out once per
// active device; other channels send a single envelope.
func (s *Service) deliver(ctx context.Context, p *model.UserProfile, msg *model.NotificationMessage, category string, ch model.ChannelKind) {
	envs := s.envelopes(p, msg, ch)
	if len(envs) == 0 {
		s.recordDrop(ctx, p, msg, category, ch, "no_recipient")
		return
	}
	for _, env := range envs {
		s.sendWithRetry(ctx, p, env, msg, category)
	}
}

// envelopes resolves recipients and renders the message for the channel.
func (s *Service) envelopes(p *model.UserProfile, msg *model.NotificationMessage, ch model.ChannelKind) []*model.Envelope {
	vars := renderVars(msg)
	subject := s.renderer.RenderString(msg.Title, vars)
	body := s.renderer.RenderString(msg.Body, vars)

	base := model.Envelope{
		NotificationID: msg.ID,
		UserID:         p.UserID,
		Channel:        ch,
		Subject:        subject,
		BodyText:       body,
		Priority:       priorityFor(msg.Level),
		Data:           msg.Metadata,
	}

	switch ch {
	case model.ChannelPush:
		var out []*model.Envelope
		for _, d := range p.ActiveDevices() {
			env := base
			env.DeviceID = d.DeviceID
			env.PushToken = d.PushToken
			out = append(out, &env)
		}
		return out
	case model.ChannelEmail:
		if p.Email == "" {
			return nil
		}
		base.Recipient = p.Email
		base.BodyHTML = body
	case model.ChannelSMS:
		if p.Phone == "" {
			return nil
		}
		base.Recipient = p.Phone
	case model.ChannelWebhook:
		if p.WebhookURL == "" {
			return nil
		}
		base.Recipient = p.WebhookURL
	case model.ChannelSlack:
		base.Recipient = p.SlackWebhookURL
	case model.ChannelLog:
		// recipient-free channel
	}
	return []*model.Envelope{&base}
}

// sendWithRetry drives the retry policy for one envelope: transient and
// rate-limited errors retry with a constant delay; permanent and
// invalid-recipient errors short-circuit. The recorded RetryCount is the
// number of failed attempts preceding the final outcome.
func (s *Service) sendWithRetry(ctx context.Context, p *model.UserProfile, env *model.Envelope, msg *model.NotificationMessage, category string) {
	rec := s.newRecord(p, env, msg, category)

	target, err := s.sinks.For(env.Channel)
	if err != nil {
		rec.MarkFailed("no_sink", err.Error())
		s.records.Record(ctx, rec)
		s.dropped.WithLabelValues("no_sink").Inc()
		return
	}

	var lastErr error
	for attempt := 0; attempt < s.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			s.retried.Inc()
			if !sleepCtx(ctx, s.cfg.RetryDelay) {
				break // shutting down; keep the previous attempt's error
			}
		}

		rec.RetryCount = attempt
		lastErr = s.sendOnce(ctx, target, env)
		if lastErr == nil {
			rec.MarkDelivered(s.now())
			s.records.Record(ctx, rec)
			s.sent.WithLabelValues(env.Channel.String()).Inc()
			return
		}
		if !model.Retryable(lastErr) {
			break
		}
	}

	kind := model.SinkErrorKindOf(lastErr)
	rec.MarkFailed(errorCode(kind), lastErr.Error())
	s.records.Record(ctx, rec)
	s.dropped.WithLabelValues(errorCode(kind)).Inc()
	s.logger.Warn("SINK_DELIVERY_FAILED",
		"channel", env.Channel.String(),
		"user_id", env.UserID,
		"msg_id", env.NotificationID,
		"kind", kind.String(),
		"err", lastErr,
	)

	// Invalid push tokens de-activate the device so the next fan-out
	// skips it instead of burning retries.
	if kind == model.SinkInvalidRecipient && env.Channel == model.ChannelPush && env.DeviceID != "" {
		if err := s.users.DeactivateDevice(ctx, env.UserID, env.DeviceID); err != nil {
			s.logger.Warn("DEVICE_DEACTIVATION_FAILED", "device_id", env.DeviceID, "err", err)
		}
	}
}

// sendOnce performs a single breaker-guarded, deadline-bounded send.
func (s *Service) sendOnce(ctx context.Context, target sink.Sink, env *model.Envelope) error {
	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SinkTimeout)
	defer cancel()

	breaker := s.breakers[env.Channel]
	if breaker == nil {
		return target.Send(sendCtx, env)
	}
	_, err := breaker.Execute(func() (any, error) {
		return nil, target.Send(sendCtx, env)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return model.NewSinkError(model.SinkTransient, fmt.Errorf("sink %s: breaker open", env.Channel))
	}
	return err
}

// SendDirect bypasses rule evaluation and throttling; administrative use.
// The attempt is still recorded.
func (s *Service) SendDirect(ctx context.Context, env *model.Envelope) {
	msg := &model.NotificationMessage{
		ID:        env.NotificationID,
		Level:     model.LevelInfo,
		Title:     env.Subject,
		Body:      env.BodyText,
		Timestamp: s.now().UnixMilli(),
		Metadata:  env.Data,
	}
	s.sendWithRetry(ctx, &model.UserProfile{UserID: env.UserID}, env, msg, "direct")
}

// HandlerFor adapts Process into a plain callback for event buses.
func (s *Service) HandlerFor(category string) func(*model.NotificationMessage) {
	return func(m *model.NotificationMessage) {
		s.Process(context.Background(), m, category)
	}
}

func (s *Service) recordDrop(ctx context.Context, p *model.UserProfile, msg *model.NotificationMessage, category string, ch model.ChannelKind, reason string) {
	rec := &model.DeliveryRecord{
		NotificationID: msg.ID,
		UserID:         p.UserID,
		Channel:        ch,
		Level:          msg.Level,
		Category:       category,
		ExchangeID:     msg.ExchangeID,
		CreatedAt:      s.now(),
	}
	rec.MarkFailed(reason, "")
	s.records.Record(ctx, rec)
	s.dropped.WithLabelValues(reason).Inc()
}

func (s *Service) newRecord(p *model.UserProfile, env *model.Envelope, msg *model.NotificationMessage, category string) *model.DeliveryRecord {
	now := s.now()
	return &model.DeliveryRecord{
		NotificationID: env.NotificationID,
		UserID:         p.UserID,
		Channel:        env.Channel,
		Level:          msg.Level,
		Category:       category,
		ExchangeID:     msg.ExchangeID,
		DeviceID:       env.DeviceID,
		Recipient:      env.Recipient,
		CreatedAt:      now,
		SentAt:         now,
		Fields: map[string]float64{
			"title_length":   float64(len(msg.Title)),
			"message_length": float64(len(msg.Body)),
		},
	}
}

func renderVars(msg *model.NotificationMessage) map[string]string {
	vars := make(map[string]string, len(msg.Metadata)+4)
	for k, v := range msg.Metadata {
		vars[k] = v
	}
	vars["id"] = msg.ID
	vars["level"] = msg.Level.String()
	vars["exchange_id"] = msg.ExchangeID
	return vars
}

func priorityFor(l model.Level) model.EnvelopePriority {
	if l >= model.LevelError {
		return model.PriorityHigh
	}
	return model.PriorityNormal
}

func errorCode(kind model.SinkErrorKind) string {
	switch kind {
	case model.SinkInvalidRecipient:
		return "token_invalid"
	case model.SinkPermanent:
		return "permanent"
	case model.SinkRateLimited:
		return "rate_limited"
	}
	return "exhausted"
}

// sleepCtx waits for d unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func stripeFor(userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % userStripes)
}
