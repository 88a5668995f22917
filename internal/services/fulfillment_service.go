package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pixstore/internal/events"
	"pixstore/internal/fulfillment"
	"pixstore/internal/metrics"
	"pixstore/internal/models"
	"pixstore/internal/repositories"
	"pixstore/pkg/retry"

	"github.com/rs/zerolog/log"
)

// markPolicy retries recording a delivery that already happened. An order left
// approved after delivery is redelivered by the sweeper.
var markPolicy = retry.Policy{Attempts: 5, Base: 50 * time.Millisecond, Max: time.Second}

// FulfillmentService delivers approved orders and marks them fulfilled.
type FulfillmentService struct {
	ledger    repositories.OrderLedger
	deliverer fulfillment.Deliverer
	events    events.Publisher
	metrics   *metrics.Metrics
	policy    retry.Policy
	inflight  sync.Map // order id -> struct{}
	now       func() time.Time
}

// NewFulfillmentService creates a new FulfillmentService. pub and m may be nil.
func NewFulfillmentService(ledger repositories.OrderLedger, deliverer fulfillment.Deliverer, policy retry.Policy, pub events.Publisher, m *metrics.Metrics) *FulfillmentService {
	if pub == nil {
		pub = events.NoopPublisher{}
	}
	return &FulfillmentService{
		ledger:    ledger,
		deliverer: deliverer,
		events:    pub,
		metrics:   m,
		policy:    policy,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Fulfill delivers the goods for an approved order. Orders in any other status
// are skipped, which makes redelivered jobs harmless. On delivery failure the
// order stays approved and the error is returned.
func (s *FulfillmentService) Fulfill(ctx context.Context, orderID string) error {
	if _, busy := s.inflight.LoadOrStore(orderID, struct{}{}); busy {
		log.Debug().Str("order_id", orderID).Msg("fulfillment already in progress")
		return nil
	}
	defer s.inflight.Delete(orderID)

	order, err := s.ledger.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != models.StatusApproved {
		log.Debug().Str("order_id", orderID).Str("status", string(order.Status)).Msg("nothing to fulfill")
		s.metrics.Fulfillment("skipped")
		return nil
	}

	delivery := fulfillment.Delivery{
		OrderID:        order.ID,
		BuyerReference: order.BuyerReference,
		ProductID:      order.ProductID,
		Quantity:       order.Quantity,
	}
	attempt := 0
	err = retry.Do(ctx, s.policy, func(ctx context.Context) error {
		attempt++
		err := s.deliverer.Deliver(ctx, delivery)
		if err != nil {
			log.Warn().Err(err).Str("order_id", orderID).Int("attempt", attempt).Msg("delivery attempt failed")
		}
		return err
	})
	if err != nil {
		s.metrics.Fulfillment("failed")
		return fmt.Errorf("deliver order %s: %w", orderID, err)
	}

	var ok bool
	err = retry.Do(context.WithoutCancel(ctx), markPolicy, func(ctx context.Context) error {
		var merr error
		ok, merr = s.ledger.MarkFulfilled(ctx, orderID, s.now())
		return merr
	})
	if err != nil {
		log.Error().Err(err).Str("order_id", orderID).Msg("delivered but not marked fulfilled, order will be redelivered")
		s.metrics.Fulfillment("unrecorded")
		return fmt.Errorf("mark order %s fulfilled: %w", orderID, err)
	}
	if !ok {
		log.Warn().Str("order_id", orderID).Msg("order left approved before it was marked fulfilled")
		s.metrics.Fulfillment("conflict")
		return nil
	}

	s.metrics.Fulfillment("delivered")
	if order, err = s.ledger.GetByID(ctx, orderID); err == nil {
		publishOrderEvent(ctx, s.events, events.EventOrderFulfilled, order)
	}
	log.Info().Str("order_id", orderID).Str("buyer_reference", delivery.BuyerReference).Msg("order fulfilled")
	return nil
}
