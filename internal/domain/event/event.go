package event

//go:generate stringer -type=Kind
type Kind int16

const (
	KindNotification Kind = iota + 1 // [BUSINESS]
	KindFailover                     // [SYSTEM]
	KindCircuit                      // [SYSTEM]
	KindHealth                       // [SYSTEM]
)

type Priority int32

const (
	PriorityLow    Priority = 10
	PriorityNormal Priority = 20
	PriorityHigh   Priority = 30
)

// Eventer defines the contract for all packets flowing through the
// internal transition bus.
type Eventer interface {
	GetID() string
	GetKind() Kind
	GetPriority() Priority
	GetOccurredAt() int64
	GetPayload() any
}

// Exportable marks an event that should be re-published to the message bus.
// An empty routing key tells the publisher to skip it.
type Exportable interface {
	GetRoutingKey() string
}
