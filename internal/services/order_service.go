package services

import (
	"context"
	"errors"
	"fmt"

	"pixstore/internal/events"
	"pixstore/internal/metrics"
	"pixstore/internal/models"
	"pixstore/internal/repositories"
	"pixstore/pkg/pix"

	"github.com/rs/zerolog/log"
)

// PixSettings identifies the receiving account printed into every payload.
type PixSettings struct {
	Key          string
	MerchantName string
	MerchantCity string
}

// CreateOrderRequest is a buyer's purchase request.
type CreateOrderRequest struct {
	ProductID      string `json:"product_id" validate:"required,max=64"`
	Quantity       int    `json:"quantity"`
	BuyerReference string `json:"buyer_reference" validate:"required,max=255"`
}

// Checkout pairs an order with the payload the buyer pays. PixPayload is empty
// once the order is no longer pending.
type Checkout struct {
	Order      *models.Order `json:"order"`
	PixPayload string        `json:"pix_payload,omitempty"`
}

// OrderService handles the buyer-facing order lifecycle.
type OrderService struct {
	ledger  repositories.OrderLedger
	pix     PixSettings
	events  events.Publisher
	metrics *metrics.Metrics
}

// NewOrderService creates a new OrderService. pub and m may be nil.
func NewOrderService(ledger repositories.OrderLedger, settings PixSettings, pub events.Publisher, m *metrics.Metrics) *OrderService {
	if pub == nil {
		pub = events.NoopPublisher{}
	}
	return &OrderService{
		ledger:  ledger,
		pix:     settings,
		events:  pub,
		metrics: m,
	}
}

// CreateOrder reserves stock, records a pending order and returns its payload.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Checkout, error) {
	order := &models.Order{
		ProductID:      req.ProductID,
		Quantity:       req.Quantity,
		BuyerReference: req.BuyerReference,
	}
	if err := s.ledger.Create(ctx, order); err != nil {
		s.metrics.OrderRejected(rejectReason(err))
		return nil, err
	}

	payload, err := s.Payload(order)
	if err != nil {
		// An order the buyer cannot pay must not hold stock.
		if _, relErr := s.ledger.Release(ctx, order.ID, models.StatusCancelled); relErr != nil {
			log.Error().Err(relErr).Str("order_id", order.ID).Msg("failed to release unpayable order")
		}
		s.metrics.OrderRejected("payload")
		return nil, fmt.Errorf("build payload for order %s: %w", order.ID, err)
	}

	s.metrics.OrderCreated(order.ProductID)
	publishOrderEvent(ctx, s.events, events.EventOrderCreated, order)
	log.Info().
		Str("order_id", order.ID).
		Str("product_id", order.ProductID).
		Int("quantity", order.Quantity).
		Int64("total_amount_cents", order.TotalAmountCents).
		Msg("order created")

	return &Checkout{Order: order, PixPayload: payload}, nil
}

// GetOrder returns an order, rebuilding its payload while it is still pending.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*Checkout, error) {
	order, err := s.ledger.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	checkout := &Checkout{Order: order}
	if order.Status == models.StatusPending {
		if checkout.PixPayload, err = s.Payload(order); err != nil {
			return nil, err
		}
	}
	return checkout, nil
}

// ListOrders returns orders matching filter.
func (s *OrderService) ListOrders(ctx context.Context, filter repositories.OrderFilter) ([]models.Order, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("unknown order status %q", filter.Status)
	}
	return s.ledger.List(ctx, filter)
}

// CancelOrder cancels a pending order and returns its units to stock.
func (s *OrderService) CancelOrder(ctx context.Context, id string) (*models.Order, error) {
	ok, err := s.ledger.Release(ctx, id, models.StatusCancelled)
	if err != nil {
		return nil, err
	}
	order, err := s.ledger.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return order, fmt.Errorf("order %s is %s: %w", id, order.Status, ErrOrderNotCancellable)
	}
	s.metrics.OrderReleased(string(models.StatusCancelled))
	publishOrderEvent(ctx, s.events, events.EventOrderCancelled, order)
	log.Info().Str("order_id", id).Msg("order cancelled")
	return order, nil
}

// Payload builds the BR Code for order. The same order always yields the same payload.
func (s *OrderService) Payload(order *models.Order) (string, error) {
	return pix.Build(pix.Payload{
		Key:          s.pix.Key,
		AmountCents:  order.TotalAmountCents,
		MerchantName: s.pix.MerchantName,
		MerchantCity: s.pix.MerchantCity,
		TxID:         order.ID,
	})
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, repositories.ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, repositories.ErrProductNotFound):
		return "unknown_product"
	case errors.Is(err, repositories.ErrInvalidQuantity):
		return "invalid_quantity"
	default:
		return "error"
	}
}
