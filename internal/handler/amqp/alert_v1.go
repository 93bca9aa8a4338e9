package amqp

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/quantfabric/alert-delivery-service/internal/domain/model"
)

// AlertV1 is the wire shape of a platform alert event. Producers may omit
// id and timestamp; the handler fills them in on ingest.
type AlertV1 struct {
	ID         string            `json:"id"`
	Level      int               `json:"level"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	ExchangeID string            `json:"exchange_id,omitempty"`
	Timestamp  int64             `json:"timestamp,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func (a *AlertV1) ToDomain() (*model.NotificationMessage, error) {
	level := model.Level(a.Level)
	if !level.Valid() {
		return nil, fmt.Errorf("alert %q: level %d out of range", a.ID, a.Level)
	}
	if a.Title == "" && a.Body == "" {
		return nil, fmt.Errorf("alert %q: empty title and body", a.ID)
	}

	id := a.ID
	if id == "" {
		id = uuid.NewString()
	}
	ts := a.Timestamp
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}
	meta := a.Metadata
	if meta == nil {
		meta = map[string]string{}
	}

	return &model.NotificationMessage{
		ID:         id,
		Level:      level,
		Title:      a.Title,
		Body:       a.Body,
		ExchangeID: a.ExchangeID,
		Timestamp:  ts,
		Metadata:   meta,
	}, nil
}
