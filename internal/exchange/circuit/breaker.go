// Package circuit implements the three-state breaker guarding exchange
// operation dispatch. Unlike a conventional breaker, an open circuit does
// not yield an error: callers receive their own default value, so a
// short-circuit is indistinguishable from adapter unavailability.
package circuit

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/quantfabric/alert-delivery-service/internal/domain/model"
)

// Callback observes every state transition, in transition order.
type Callback func(from, to model.CircuitState)

// Config tunes the trip and recovery thresholds.
type Config struct {
	FailureThreshold int           // Closed->Open consecutive-failure trip, default 5
	Timeout          time.Duration // Open->HalfOpen wait, default 30s
	SuccessThreshold float64       // HalfOpen->Closed success ratio, default 0.5
	MinRequests      int           // HalfOpen sample size, default 10
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 0.5
	}
	if c.MinRequests <= 0 {
		c.MinRequests = 10
	}
	return c
}

// Breaker is a single-writer three-state machine. State reads are atomic
// and lock-free; transitions and the openedAt stamp sit behind one mutex,
// so observers may see a brief stale state but never a partial transition.
type Breaker struct {
	name string
	cfg  Config
	now  func() time.Time

	state               atomic.Int32
	consecutiveFailures atomic.Int64
	halfOpenAttempts    atomic.Int64
	halfOpenSuccesses   atomic.Int64

	mu       sync.Mutex
	openedAt time.Time

	callback Callback
}

func NewBreaker(name string, cfg Config, cb Callback, now func() time.Time) *Breaker {
	if now == nil {
		now = time.Now
	}
	return &Breaker{
		name:     name,
		cfg:      cfg.withDefaults(),
		now:      now,
		callback: cb,
	}
}

func (b *Breaker) Name() string { return b.name }

// State returns the current phase (possibly one transition stale).
func (b *Breaker) State() model.CircuitState {
	return model.CircuitState(b.state.Load())
}

// CanExecute reports whether an operation may run now. An expired Open
// window flips to HalfOpen on the first call that observes it.
func (b *Breaker) CanExecute() bool {
	switch b.State() {
	case model.CircuitClosed, model.CircuitHalfOpen:
		return true
	case model.CircuitOpen:
		b.mu.Lock()
		expired := b.now().Sub(b.openedAt) >= b.cfg.Timeout
		if expired && b.State() == model.CircuitOpen {
			b.transitionLocked(model.CircuitOpen, model.CircuitHalfOpen)
		}
		b.mu.Unlock()
		return expired
	}
	return false
}

// RecordSuccess feeds one successful operation into the machine.
func (b *Breaker) RecordSuccess() {
	switch b.State() {
	case model.CircuitClosed:
		b.consecutiveFailures.Store(0)
	case model.CircuitHalfOpen:
		attempts := b.halfOpenAttempts.Add(1)
		successes := b.halfOpenSuccesses.Add(1)
		if attempts >= int64(b.cfg.MinRequests) {
			rate := float64(successes) / float64(attempts)
			if rate >= b.cfg.SuccessThreshold {
				b.mu.Lock()
				if b.State() == model.CircuitHalfOpen {
					b.transitionLocked(model.CircuitHalfOpen, model.CircuitClosed)
				}
				b.mu.Unlock()
			}
		}
	}
}

// RecordFailure feeds one failed operation into the machine.
func (b *Breaker) RecordFailure() {
	switch b.State() {
	case model.CircuitClosed:
		if b.consecutiveFailures.Add(1) >= int64(b.cfg.FailureThreshold) {
			b.mu.Lock()
			if b.State() == model.CircuitClosed {
				b.transitionLocked(model.CircuitClosed, model.CircuitOpen)
			}
			b.mu.Unlock()
		}
	case model.CircuitHalfOpen:
		// Any failure before the sample threshold re-opens immediately.
		b.halfOpenAttempts.Add(1)
		b.mu.Lock()
		if b.State() == model.CircuitHalfOpen {
			b.transitionLocked(model.CircuitHalfOpen, model.CircuitOpen)
		}
		b.mu.Unlock()
	}
}

// Reset forces Closed; manual control.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if from := b.State(); from != model.CircuitClosed {
		b.transitionLocked(from, model.CircuitClosed)
	} else {
		b.consecutiveFailures.Store(0)
	}
}

// ManuallyOpen forces Open with a fresh openedAt stamp.
func (b *Breaker) ManuallyOpen() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if from := b.State(); from != model.CircuitOpen {
		b.transitionLocked(from, model.CircuitOpen)
	} else {
		b.openedAt = b.now()
	}
}

// Snapshot exposes the live tallies for status surfaces.
type Snapshot struct {
	Name                string             `json:"name"`
	State               model.CircuitState `json:"state"`
	ConsecutiveFailures int64              `json:"consecutive_failures"`
	HalfOpenAttempts    int64              `json:"half_open_attempts"`
	HalfOpenSuccesses   int64              `json:"half_open_successes"`
	OpenedAt            time.Time          `json:"opened_at"`
}

func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	openedAt := b.openedAt
	b.mu.Unlock()
	return Snapshot{
		Name:                b.name,
		State:               b.State(),
		ConsecutiveFailures: b.consecutiveFailures.Load(),
		HalfOpenAttempts:    b.halfOpenAttempts.Load(),
		HalfOpenSuccesses:   b.halfOpenSuccesses.Load(),
		OpenedAt:            openedAt,
	}
}

// transitionLocked performs the bookkeeping for a state change. Caller
// holds b.mu; the callback runs inside the transition order but outside
// any other lock.
func (b *Breaker) transitionLocked(from, to model.CircuitState) {
	b.state.Store(int32(to))
	switch to {
	case model.CircuitOpen:
		b.openedAt = b.now()
	case model.CircuitHalfOpen:
		b.halfOpenAttempts.Store(0)
		b.halfOpenSuccesses.Store(0)
	case model.CircuitClosed:
		b.consecutiveFailures.Store(0)
		b.halfOpenAttempts.Store(0)
		b.halfOpenSuccesses.Store(0)
	}
	if b.callback != nil {
		b.callback(from, to)
	}
}
