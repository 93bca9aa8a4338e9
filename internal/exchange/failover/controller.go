// Package failover maintains the primary-exchange election: priority
// ordering, health bookkeeping, failover on degradation, and cooled-down
// automatic failback.
package failover

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/quantfabric/alert-delivery-service/internal/domain/event"
	"github.com/quantfabric/alert-delivery-service/internal/domain/model"
	"github.com/quantfabric/alert-delivery-service/internal/exchange"
)

// TransitionSink receives failover transition events. The pubsub adapter
// implements it; tests use plain collectors.
type TransitionSink interface {
	PublishFailover(ev *event.FailoverEvent)
}

// Config tunes failover and failback behavior.
type Config struct {
	FailbackCooldown       time.Duration // min time before auto-failback, default 5m
	MaxConsecutiveFailures int           // probe failures before a health-driven failover, default 3
}

func (c Config) withDefaults() Config {
	if c.FailbackCooldown <= 0 {
		c.FailbackCooldown = 5 * time.Minute
	}
	if c.MaxConsecutiveFailures <= 0 {
		c.MaxConsecutiveFailures = 3
	}
	return c
}

type entry struct {
	adapter      exchange.Adapter
	priority     int
	health       model.ExchangeHealth
	lastFailover time.Time
	isPrimary    bool
}

// Controller owns the registered exchange set and the primary election.
// A single writer lock serializes every election; readers get consistent
// snapshots.
type Controller struct {
	cfg    Config
	logger *slog.Logger
	sink   TransitionSink
	now    func() time.Time

	mu        sync.RWMutex
	exchanges map[string]*entry
	primaryID string
}

func NewController(cfg Config, logger *slog.Logger, sink TransitionSink, now func() time.Time) *Controller {
	if now == nil {
		now = time.Now
	}
	return &Controller{
		cfg:       cfg.withDefaults(),
		logger:    logger,
		sink:      sink,
		now:       now,
		exchanges: make(map[string]*entry),
	}
}

// Register adds an exchange with its priority (higher wins) and runs the
// initial election: the new entry takes the primary role when it beats the
// incumbent among available exchanges.
func (c *Controller) Register(adapter exchange.Adapter, priority int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := adapter.ID()
	c.exchanges[id] = &entry{
		adapter:  adapter,
		priority: priority,
		health:   model.ExchangeHealth{Status: model.StatusHealthy, LastCheck: c.now()},
	}

	if c.primaryID == "" {
		c.setPrimaryLocked(id)
		return
	}
	if cur, ok := c.exchanges[c.primaryID]; ok && priority > cur.priority {
		c.setPrimaryLocked(id)
	}
}

// Unregister drops an exchange; losing the primary triggers a re-election.
func (c *Controller) Unregister(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.exchanges, id)
	if c.primaryID == id {
		c.primaryID = ""
		if next := c.bestAvailableLocked(""); next != "" {
			c.setPrimaryLocked(next)
		}
	}
}

// UpdateHealth installs a prober sample. An unavailable primary triggers
// an automatic failover; the evaluation tick also runs here so failback
// piggy-backs on the prober cadence.
func (c *Controller) UpdateHealth(id string, h model.ExchangeHealth) {
	c.mu.Lock()
	e, ok := c.exchanges[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	e.health = h
	isPrimary := c.primaryID == id
	c.mu.Unlock()

	// Health-driven failover waits out transient blips: the primary has
	// to miss several consecutive probes before losing the role.
	if isPrimary && !h.Available() && h.ConsecutiveFailures >= c.cfg.MaxConsecutiveFailures {
		_ = c.TriggerFailover(id, model.ReasonHealthCheckFailed)
	}
	c.EvaluateFailback()
}

// TriggerFailover moves the primary role off id when id currently holds
// it and some other available exchange exists.
func (c *Controller) TriggerFailover(id string, reason model.FailoverReason) error {
	c.mu.Lock()

	if c.primaryID != id {
		c.mu.Unlock()
		return nil // only the primary can fail over
	}
	next := c.bestAvailableLocked(id)
	if next == "" {
		c.mu.Unlock()
		return fmt.Errorf("failover: no available exchange to replace %q", id)
	}

	old := c.exchanges[id]
	old.lastFailover = c.now()
	old.isPrimary = false
	c.setPrimaryLocked(next)
	c.mu.Unlock()

	c.logger.Warn("EXCHANGE_FAILOVER", "from", id, "to", next, "reason", string(reason))
	c.publish(event.NewFailoverEvent(id, next, reason))
	return nil
}

// ManualFailover validates the target and forces the transition.
func (c *Controller) ManualFailover(toID string) error {
	c.mu.Lock()

	target, ok := c.exchanges[toID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("failover: exchange %q not registered", toID)
	}
	if !target.health.Available() {
		c.mu.Unlock()
		return fmt.Errorf("failover: exchange %q is not available", toID)
	}
	old := c.primaryID
	if old == toID {
		c.mu.Unlock()
		return nil
	}
	if prev, ok := c.exchanges[old]; ok {
		prev.lastFailover = c.now()
		prev.isPrimary = false
	}
	c.setPrimaryLocked(toID)
	c.mu.Unlock()

	c.publish(event.NewFailoverEvent(old, toID, model.ReasonManualTrigger))
	return nil
}

// EvaluateFailback returns the primary role to the highest-priority
// available exchange once its cooldown since the last failover expires.
func (c *Controller) EvaluateFailback() {
	c.mu.Lock()

	best := c.bestAvailableLocked("")
	if best == "" || best == c.primaryID {
		c.mu.Unlock()
		return
	}
	candidate := c.exchanges[best]
	if cur, ok := c.exchanges[c.primaryID]; ok && candidate.priority <= cur.priority {
		// Failback only ever promotes upward; moving off a failing primary
		// is TriggerFailover's job and stays gated on the failure streak.
		c.mu.Unlock()
		return
	}
	if c.now().Sub(candidate.lastFailover) < c.cfg.FailbackCooldown {
		c.mu.Unlock()
		return
	}
	old := c.primaryID
	if prev, ok := c.exchanges[old]; ok {
		prev.isPrimary = false
	}
	c.setPrimaryLocked(best)
	c.mu.Unlock()

	c.logger.Info("EXCHANGE_FAILBACK", "from", old, "to", best)
	c.publish(event.NewFailoverEvent(old, best, model.ReasonFailback))
}

// CurrentPrimary returns the elected primary's id, empty when none.
func (c *Controller) CurrentPrimary() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.primaryID
}

// Ordered returns the available adapters: primary first, then by
// descending priority. This is the executor's fallback sequence.
func (c *Controller) Ordered() []exchange.Adapter {
	c.mu.RLock()
	defer c.mu.RUnlock()

	type cand struct {
		id       string
		priority int
		adapter  exchange.Adapter
	}
	var rest []cand
	var primary exchange.Adapter
	for id, e := range c.exchanges {
		if !e.health.Available() {
			continue
		}
		if id == c.primaryID {
			primary = e.adapter
			continue
		}
		rest = append(rest, cand{id: id, priority: e.priority, adapter: e.adapter})
	}
	sort.Slice(rest, func(i, j int) bool {
		if rest[i].priority != rest[j].priority {
			return rest[i].priority > rest[j].priority
		}
		return rest[i].id < rest[j].id
	})

	out := make([]exchange.Adapter, 0, len(rest)+1)
	if primary != nil {
		out = append(out, primary)
	}
	for _, cnd := range rest {
		out = append(out, cnd.adapter)
	}
	return out
}

// Adapters lists every registered adapter id for the prober.
func (c *Controller) Adapters() []exchange.Adapter {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]exchange.Adapter, 0, len(c.exchanges))
	for _, e := range c.exchanges {
		out = append(out, e.adapter)
	}
	return out
}

// HealthOf returns the current health snapshot for one exchange.
func (c *Controller) HealthOf(id string) (model.ExchangeHealth, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.exchanges[id]
	if !ok {
		return model.ExchangeHealth{}, false
	}
	return e.health, true
}

// StatusSnapshot is the admin-surface view of the pool.
type StatusSnapshot struct {
	PrimaryID string                         `json:"primary_id"`
	Exchanges map[string]ExchangeStatusEntry `json:"exchanges"`
}

type ExchangeStatusEntry struct {
	Priority     int                  `json:"priority"`
	Health       model.ExchangeHealth `json:"health"`
	IsPrimary    bool                 `json:"is_primary"`
	LastFailover time.Time            `json:"last_failover"`
}

func (c *Controller) Snapshot() StatusSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := StatusSnapshot{
		PrimaryID: c.primaryID,
		Exchanges: make(map[string]ExchangeStatusEntry, len(c.exchanges)),
	}
	for id, e := range c.exchanges {
		snap.Exchanges[id] = ExchangeStatusEntry{
			Priority:     e.priority,
			Health:       e.health,
			IsPrimary:    e.isPrimary,
			LastFailover: e.lastFailover,
		}
	}
	return snap
}

// bestAvailableLocked finds the highest-priority available exchange,
// excluding the given id. Caller holds at least the read lock.
func (c *Controller) bestAvailableLocked(exclude string) string {
	best := ""
	bestPriority := 0
	for id, e := range c.exchanges {
		if id == exclude || !e.health.Available() {
			continue
		}
		if best == "" || e.priority > bestPriority || (e.priority == bestPriority && id < best) {
			best = id
			bestPriority = e.priority
		}
	}
	return best
}

func (c *Controller) setPrimaryLocked(id string) {
	c.primaryID = id
	for eid, e := range c.exchanges {
		e.isPrimary = eid == id
	}
}

func (c *Controller) publish(ev *event.FailoverEvent) {
	if c.sink != nil {
		c.sink.PublishFailover(ev)
	}
}
