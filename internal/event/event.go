package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	TypeOrderCompleted = "order.completed"
	Source             = "medusa-storefront"
)

// Event is the envelope every published message is wrapped in.
type Event struct {
	EventID     string          `json:"event_id"`
	EventType   string          `json:"event_type"`
	AggregateID string          `json:"aggregate_id"`
	Source      string          `json:"source"`
	Timestamp   time.Time       `json:"timestamp"`
	Data        json.RawMessage `json:"data"`
}

func New(eventType, aggregateID string, data any) (*Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Event{
		EventID:     uuid.NewString(),
		EventType:   eventType,
		AggregateID: aggregateID,
		Source:      Source,
		Timestamp:   time.Now().UTC(),
		Data:        raw,
	}, nil
}

type OrderCompleted struct {
	OrderID    string `json:"order_id"`
	DisplayID  string `json:"display_id,omitempty"`
	CartID     string `json:"cart_id"`
	SessionID  string `json:"session_id"`
	Email      string `json:"email,omitempty"`
	Currency   string `json:"currency,omitempty"`
	TotalCents int64  `json:"total_cents"`
}
