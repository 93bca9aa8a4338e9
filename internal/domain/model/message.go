package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

//go:generate stringer -type=Level
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelCritical:
		return "critical"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// Valid reports whether l is a member of the closed level set.
func (l Level) Valid() bool {
	return l >= LevelInfo && l <= LevelCritical
}

// [MESSAGE] CORE ENTITY REPRESENTING A SINGLE PLATFORM ALERT
//
// The ID is assigned once at creation and identifies the message across
// every downstream artifact (sink envelopes, delivery records, batches).
// Acknowledged is monotonic: it only ever flips false -> true.
type NotificationMessage struct {
	ID           string            `json:"id"`
	Level        Level             `json:"level"`
	Title        string            `json:"title"`
	Body         string            `json:"body"`
	ExchangeID   string            `json:"exchange_id,omitempty"`
	Timestamp    int64             `json:"timestamp"` // milliseconds since epoch
	Metadata     map[string]string `json:"metadata"`
	Acknowledged bool              `json:"acknowledged"`
}

// NewMessage builds a message with a fresh UUID and a creation timestamp.
func NewMessage(level Level, title, body string) *NotificationMessage {
	return &NotificationMessage{
		ID:        uuid.NewString(),
		Level:     level,
		Title:     title,
		Body:      body,
		Timestamp: time.Now().UnixMilli(),
		Metadata:  map[string]string{},
	}
}

// Acknowledge marks the message as seen. The transition is one-way.
func (m *NotificationMessage) Acknowledge() { m.Acknowledged = true }

// CreatedAt converts the millisecond timestamp back to wall-clock time.
func (m *NotificationMessage) CreatedAt() time.Time {
	return time.UnixMilli(m.Timestamp)
}

// ToJSON emits the canonical wire form: level as integer, timestamp in ms.
func (m *NotificationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MessageFromJSON is tolerant of absent optional fields: a missing metadata
// map decodes to an empty one and a missing acknowledged flag to false.
func MessageFromJSON(data []byte) (*NotificationMessage, error) {
	var m NotificationMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode notification message: %w", err)
	}
	if !m.Level.Valid() {
		return nil, fmt.Errorf("decode notification message: level %d out of range", int(m.Level))
	}
	if m.Metadata == nil {
		m.Metadata = map[string]string{}
	}
	return &m, nil
}
