package services

import (
	"context"

	"pixstore/internal/events"
	"pixstore/internal/models"

	"github.com/rs/zerolog/log"
)

const eventProducer = "pixstore"

// publishOrderEvent emits an order event. Failures are logged only: the ledger
// already holds the state the event describes.
func publishOrderEvent(ctx context.Context, pub events.Publisher, eventType string, order *models.Order) {
	if pub == nil || order == nil {
		return
	}
	env, err := events.NewEnvelope(eventType, eventProducer, order.ID, events.OrderPayload{
		OrderID:          order.ID,
		ProductID:        order.ProductID,
		Quantity:         order.Quantity,
		TotalAmountCents: order.TotalAmountCents,
		Status:           string(order.Status),
		PaymentID:        order.PaymentID,
	})
	if err == nil {
		err = pub.Publish(ctx, env)
	}
	if err != nil {
		log.Warn().Err(err).Str("order_id", order.ID).Str("event_type", eventType).Msg("failed to publish order event")
	}
}
