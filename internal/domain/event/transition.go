package event

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/quantfabric/alert-delivery-service/internal/domain/model"
)

var (
	_ Eventer    = (*FailoverEvent)(nil)
	_ Exportable = (*FailoverEvent)(nil)
	_ Eventer    = (*CircuitEvent)(nil)
	_ Eventer    = (*HealthEvent)(nil)
)

// FailoverEvent records a primary-role transition between two exchanges.
type FailoverEvent struct {
	ID         uuid.UUID            `json:"id"`
	From       string               `json:"from"`
	To         string               `json:"to"`
	Reason     model.FailoverReason `json:"reason"`
	OccurredAt int64                `json:"occurred_at"`
}

func NewFailoverEvent(from, to string, reason model.FailoverReason) *FailoverEvent {
	return &FailoverEvent{
		ID:         uuid.New(),
		From:       from,
		To:         to,
		Reason:     reason,
		OccurredAt: time.Now().UnixMilli(),
	}
}

func (e *FailoverEvent) GetID() string         { return e.ID.String() }
func (e *FailoverEvent) GetKind() Kind         { return KindFailover }
func (e *FailoverEvent) GetPriority() Priority { return PriorityHigh }
func (e *FailoverEvent) GetOccurredAt() int64  { return e.OccurredAt }
func (e *FailoverEvent) GetPayload() any       { return e }

func (e *FailoverEvent) GetRoutingKey() string {
	return fmt.Sprintf("exchange.v1.%s.failover", e.From)
}

// Notification renders the transition as a synthetic alert for the
// dispatcher. Failbacks are informational; forced failovers are errors.
func (e *FailoverEvent) Notification() *model.NotificationMessage {
	level := model.LevelError
	title := "Exchange failover"
	if e.Reason == model.ReasonFailback {
		level = model.LevelInfo
		title = "Exchange failback"
	}
	m := model.NewMessage(level, title,
		fmt.Sprintf("primary moved %s -> %s (%s)", e.From, e.To, e.Reason))
	m.ExchangeID = e.From
	m.Metadata["reason"] = string(e.Reason)
	m.Metadata["new_primary"] = e.To
	return m
}

// CircuitEvent records a circuit breaker state transition.
type CircuitEvent struct {
	ID         uuid.UUID          `json:"id"`
	Name       string             `json:"name"`
	From       model.CircuitState `json:"from"`
	To         model.CircuitState `json:"to"`
	OccurredAt int64              `json:"occurred_at"`
}

func NewCircuitEvent(name string, from, to model.CircuitState) *CircuitEvent {
	return &CircuitEvent{
		ID:         uuid.New(),
		Name:       name,
		From:       from,
		To:         to,
		OccurredAt: time.Now().UnixMilli(),
	}
}

func (e *CircuitEvent) GetID() string        { return e.ID.String() }
func (e *CircuitEvent) GetKind() Kind        { return KindCircuit }
func (e *CircuitEvent) GetOccurredAt() int64 { return e.OccurredAt }
func (e *CircuitEvent) GetPayload() any      { return e }

// GetPriority: a breaker opening is urgent, recovery is routine.
func (e *CircuitEvent) GetPriority() Priority {
	if e.To == model.CircuitOpen {
		return PriorityHigh
	}
	return PriorityNormal
}

// Notification renders the transition for the dispatcher.
func (e *CircuitEvent) Notification() *model.NotificationMessage {
	level := model.LevelWarning
	if e.To == model.CircuitOpen {
		level = model.LevelError
	}
	if e.To == model.CircuitClosed {
		level = model.LevelInfo
	}
	m := model.NewMessage(level, "Circuit breaker transition",
		fmt.Sprintf("%s: %s -> %s", e.Name, e.From, e.To))
	m.Metadata["circuit"] = e.Name
	m.Metadata["from"] = e.From.String()
	m.Metadata["to"] = e.To.String()
	return m
}

// HealthEvent carries one prober sample for an exchange.
type HealthEvent struct {
	ID         uuid.UUID            `json:"id"`
	ExchangeID string               `json:"exchange_id"`
	Health     model.ExchangeHealth `json:"health"`
	OccurredAt int64                `json:"occurred_at"`
}

func NewHealthEvent(exchangeID string, h model.ExchangeHealth) *HealthEvent {
	return &HealthEvent{
		ID:         uuid.New(),
		ExchangeID: exchangeID,
		Health:     h,
		OccurredAt: time.Now().UnixMilli(),
	}
}

func (e *HealthEvent) GetID() string        { return e.ID.String() }
func (e *HealthEvent) GetKind() Kind        { return KindHealth }
func (e *HealthEvent) GetOccurredAt() int64 { return e.OccurredAt }
func (e *HealthEvent) GetPayload() any      { return e }

func (e *HealthEvent) GetPriority() Priority {
	if e.Health.Status == model.StatusUnhealthy {
		return PriorityHigh
	}
	return PriorityLow
}
