// Package batch holds deferred notifications per (user, channel) and
// releases them as digests when their deadlines fire.
package batch

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/quantfabric/alert-delivery-service/internal/domain/model"
)

type key struct {
	userID  string
	channel model.ChannelKind
}

// entry pairs the batch with its own sent flag so concurrent ticks can
// claim a due batch with a single compare-and-swap instead of holding the
// index lock through dispatch.
type entry struct {
	batch *model.PendingBatch
	sent  atomic.Bool
}

// Scheduler maintains the un-sent batch index. All index mutations sit in
// brief critical sections; claimed batches leave the index immediately.
type Scheduler struct {
	now func() time.Time

	mu      sync.Mutex
	pending map[key]*entry
}

func NewScheduler(now func() time.Time) *Scheduler {
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		now:     now,
		pending: make(map[key]*entry),
	}
}

// Enqueue coalesces msg into the open batch for (userID, ch), creating one
// with the given deadline if none exists. A later append never moves the
// deadline: the earliest one wins and is preserved.
func (s *Scheduler) Enqueue(userID string, ch model.ChannelKind, msg *model.NotificationMessage, deadline time.Time) *model.PendingBatch {
	k := key{userID: userID, channel: ch}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.pending[k]; ok && !e.sent.Load() {
		e.batch.Messages = append(e.batch.Messages, msg)
		return e.batch
	}

	b := model.NewPendingBatch(userID, ch, msg, s.now(), deadline)
	s.pending[k] = &entry{batch: b}
	return b
}

// Tick claims every batch whose deadline has passed. Claiming flips the
// sent flag exactly once, so overlapping ticks cannot double-dispatch.
func (s *Scheduler) Tick(now time.Time) []*model.PendingBatch {
	return s.collect(func(b *model.PendingBatch) bool { return b.Due(now) })
}

// Drain claims every pending batch unconditionally. Called at shutdown.
func (s *Scheduler) Drain() []*model.PendingBatch {
	return s.collect(func(*model.PendingBatch) bool { return true })
}

// PendingCount reports the number of open batches, for status surfaces.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Scheduler) collect(due func(*model.PendingBatch) bool) []*model.PendingBatch {
	s.mu.Lock()
	defer s.mu.Unlock()

	var claimed []*model.PendingBatch
	for k, e := range s.pending {
		if !due(e.batch) {
			continue
		}
		if !e.sent.CompareAndSwap(false, true) {
			continue // another tick owns it
		}
		e.batch.Sent = true
		claimed = append(claimed, e.batch)
		delete(s.pending, k)
	}
	return claimed
}
