package rules

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/quantfabric/alert-delivery-service/internal/domain/model"
)

const throttleShards = 32

// ThrottleGate enforces per-(user, rule) rate windows on top of the
// evaluator's Allow verdicts: a sliding one-hour emission counter plus a
// cooldown since the last emission.
//
// State is sharded by key hash so concurrent dispatcher workers never
// contend on a global lock. Stale timestamps are evicted lazily on read.
type ThrottleGate struct {
	now    func() time.Time
	shards [throttleShards]throttleShard
}

type throttleShard struct {
	mu      sync.Mutex
	entries map[string]*throttleEntry
}

type throttleEntry struct {
	emissions []time.Time // ascending, only the trailing hour retained
	lastSent  time.Time
}

func NewThrottleGate(now func() time.Time) *ThrottleGate {
	if now == nil {
		now = time.Now
	}
	g := &ThrottleGate{now: now}
	for i := range g.shards {
		g.shards[i].entries = make(map[string]*throttleEntry)
	}
	return g
}

// Admit checks the rule's rate limits and, when admitted, records the
// emission atomically. Decisions without a matched rule pass unchanged.
func (g *ThrottleGate) Admit(userID string, rule *model.NotificationRule) bool {
	if rule == nil || (rule.MaxPerHour <= 0 && rule.Cooldown <= 0) {
		return true
	}

	key := userID + "\x00" + rule.RuleID
	shard := &g.shards[shardIndex(key)]
	now := g.now()

	shard.mu.Lock()
	defer shard.mu.Unlock()

	entry, ok := shard.entries[key]
	if !ok {
		entry = &throttleEntry{}
		shard.entries[key] = entry
	}

	entry.evict(now)

	if rule.Cooldown > 0 && !entry.lastSent.IsZero() && now.Sub(entry.lastSent) < rule.Cooldown {
		return false
	}
	if rule.MaxPerHour > 0 && len(entry.emissions) >= rule.MaxPerHour {
		return false
	}

	entry.emissions = append(entry.emissions, now)
	entry.lastSent = now
	return true
}

// WindowCount reports the current hour-window emission count, for tests
// and status surfaces.
func (g *ThrottleGate) WindowCount(userID, ruleID string) int {
	key := userID + "\x00" + ruleID
	shard := &g.shards[shardIndex(key)]

	shard.mu.Lock()
	defer shard.mu.Unlock()

	entry, ok := shard.entries[key]
	if !ok {
		return 0
	}
	entry.evict(g.now())
	return len(entry.emissions)
}

func (e *throttleEntry) evict(now time.Time) {
	cutoff := now.Add(-time.Hour)
	i := 0
	for i < len(e.emissions) && !e.emissions[i].After(cutoff) {
		i++
	}
	if i > 0 {
		e.emissions = append(e.emissions[:0], e.emissions[i:]...)
	}
}

func shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % throttleShards)
}
