// Package events publishes order lifecycle events for downstream consumers.
// The ledger stays the source of truth; events are notifications only.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderCreated   = "OrderCreated"
	EventOrderApproved  = "OrderApproved"
	EventOrderFulfilled = "OrderFulfilled"
	EventOrderExpired   = "OrderExpired"
	EventOrderCancelled = "OrderCancelled"
	EventLatePayment    = "LatePayment"
)

const envelopeVersion = 1

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

// OrderPayload is the body of every order event.
type OrderPayload struct {
	OrderID          string `json:"order_id"`
	ProductID        string `json:"product_id"`
	Quantity         int    `json:"quantity"`
	TotalAmountCents int64  `json:"total_amount_cents"`
	Status           string `json:"status"`
	PaymentID        string `json:"payment_id,omitempty"`
}

// NewEnvelope wraps payload in an envelope keyed by orderID.
func NewEnvelope(eventType, producer, orderID string, payload any) (Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  envelopeVersion,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: orderID,
		Payload:       body,
	}, nil
}

// UnwrapPayload decodes an envelope payload into T.
func UnwrapPayload[T any](payload json.RawMessage) (T, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}
