package model

import (
	"time"

	"github.com/google/uuid"
)

// PendingBatch accumulates messages destined for one (user, channel) pair
// until its deadline fires.
//
// [INVARIANT] At most one un-sent batch exists per (user, channel); new
// messages coalesce into it. The scheduled deadline is fixed by the first
// message's rule and is never pushed back by later appends.
type PendingBatch struct {
	BatchID     string
	UserID      string
	Channel     ChannelKind
	Messages    []*NotificationMessage // append-only until flushed, insertion order preserved
	CreatedAt   time.Time
	ScheduledAt time.Time
	Sent        bool
}

// NewPendingBatch opens a batch around its first message.
func NewPendingBatch(userID string, ch ChannelKind, first *NotificationMessage, now, deadline time.Time) *PendingBatch {
	return &PendingBatch{
		BatchID:     uuid.NewString(),
		UserID:      userID,
		Channel:     ch,
		Messages:    []*NotificationMessage{first},
		CreatedAt:   now,
		ScheduledAt: deadline,
	}
}

// Due reports whether the batch deadline has passed.
func (b *PendingBatch) Due(now time.Time) bool {
	return !b.ScheduledAt.After(now)
}
