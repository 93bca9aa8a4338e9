package event

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/quantfabric/alert-delivery-service/internal/domain/model"
)

var (
	_ Eventer    = (*NotificationEvent)(nil)
	_ Exportable = (*NotificationEvent)(nil)
)

// NotificationEvent wraps a platform alert together with its routing
// category for transit over the bus.
type NotificationEvent struct {
	ID       uuid.UUID                  `json:"id"`
	Category string                     `json:"category"`
	Message  *model.NotificationMessage `json:"message"`
}

func NewNotificationEvent(category string, msg *model.NotificationMessage) *NotificationEvent {
	return &NotificationEvent{
		ID:       uuid.New(),
		Category: category,
		Message:  msg,
	}
}

func (e *NotificationEvent) GetID() string        { return e.ID.String() }
func (e *NotificationEvent) GetKind() Kind        { return KindNotification }
func (e *NotificationEvent) GetPayload() any      { return e.Message }
func (e *NotificationEvent) GetOccurredAt() int64 { return e.Message.Timestamp }

// GetPriority lifts critical alerts above the rest of the bus traffic so
// synthetic transition storms cannot starve them.
func (e *NotificationEvent) GetPriority() Priority {
	if e.Message.Level >= model.LevelError {
		return PriorityHigh
	}
	return PriorityNormal
}

// GetRoutingKey
// [PATTERN] alerts.v1.{category}.{level}
func (e *NotificationEvent) GetRoutingKey() string {
	return fmt.Sprintf("alerts.v1.%s.%s", e.Category, e.Message.Level)
}
