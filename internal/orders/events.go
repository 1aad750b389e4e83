package orders

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type OrderPlacedPayload struct {
	OrderID         string    `json:"order_id"`
	ProductID       string    `json:"product_id"`
	Customer        string    `json:"customer"`
	Quantity        int       `json:"quantity"`
	Status          Status    `json:"status"`
	Timestamp       time.Time `json:"timestamp"`
	ShippingAddress string    `json:"shipping_address"`
	PaymentMethod   string    `json:"payment_method"`
}

// Order rebuilds the order the event was emitted for.
func (p OrderPlacedPayload) Order() Order {
	return Order{
		ID:              p.OrderID,
		ProductID:       p.ProductID,
		Quantity:        p.Quantity,
		Customer:        p.Customer,
		Status:          p.Status,
		Timestamp:       p.Timestamp,
		ShippingAddress: p.ShippingAddress,
		PaymentMethod:   p.PaymentMethod,
	}
}

type OrderStatusChangedPayload struct {
	OrderID   string `json:"order_id"`
	From      Status `json:"from"`
	To        Status `json:"to"`
	ChangedBy string `json:"changed_by"`
}

// OutboxEvent is an envelope bound to its destination, written in the same
// transaction as the state change it describes.
type OutboxEvent struct {
	Topic    string
	Key      string
	Envelope Envelope
}

func newEvent(producer, topic, eventType, orderID string, payload any, at time.Time) (OutboxEvent, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return OutboxEvent{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return OutboxEvent{
		Topic: topic,
		Key:   string(PartitionKey(orderID)),
		Envelope: Envelope{
			EventID:       uuid.NewString(),
			EventType:     eventType,
			EventVersion:  1,
			OccurredAt:    at.UTC(),
			Producer:      producer,
			CorrelationID: orderID,
			Payload:       b,
		},
	}, nil
}
