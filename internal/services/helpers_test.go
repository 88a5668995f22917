package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"pixstore/internal/events"
	"pixstore/internal/fulfillment"
	"pixstore/internal/gateway"
	"pixstore/internal/models"
	"pixstore/internal/repositories"
	"pixstore/internal/services"

	"github.com/stretchr/testify/require"
)

var testPix = services.PixSettings{Key: "chave@example.com", MerchantName: "ProxyBat", MerchantCity: "SAO PAULO"}

func newStore(t *testing.T, stock int) (*repositories.MemoryOrderLedger, *repositories.MemoryProductRepository) {
	t.Helper()
	products := repositories.NewMemoryProductRepository()
	require.NoError(t, products.Create(context.Background(), &models.Product{
		ID: "rotativa-2gb", Name: "Rotativa 2GB", PriceCents: 1950, Stock: stock,
	}))
	return repositories.NewMemoryOrderLedger(products), products
}

func createPending(t *testing.T, ledger repositories.OrderLedger, qty int) *models.Order {
	t.Helper()
	order := &models.Order{ProductID: "rotativa-2gb", Quantity: qty, BuyerReference: "chat-42"}
	require.NoError(t, ledger.Create(context.Background(), order))
	return order
}

// stubGateway serves payments from a map.
type stubGateway struct {
	mu       sync.Mutex
	payments map[string]gateway.Payment
	err      error
	calls    int
}

func newStubGateway() *stubGateway {
	return &stubGateway{payments: make(map[string]gateway.Payment)}
}

func (g *stubGateway) approve(paymentID, orderID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[paymentID] = gateway.Payment{ID: paymentID, Status: gateway.StatusApproved, ExternalReference: orderID}
}

func (g *stubGateway) set(p gateway.Payment) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[p.ID] = p
}

func (g *stubGateway) GetPayment(_ context.Context, id string) (*gateway.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	p, ok := g.payments[id]
	if !ok {
		return nil, gateway.ErrPaymentNotFound
	}
	return &p, nil
}

// recordingQueue records enqueued order ids and optionally forwards them.
type recordingQueue struct {
	mu      sync.Mutex
	ids     []string
	err     error
	forward func(ctx context.Context, orderID string) error
}

func (q *recordingQueue) Enqueue(ctx context.Context, orderID string) error {
	q.mu.Lock()
	if q.err != nil {
		q.mu.Unlock()
		return q.err
	}
	q.ids = append(q.ids, orderID)
	forward := q.forward
	q.mu.Unlock()
	if forward != nil {
		return forward(ctx, orderID)
	}
	return nil
}

func (q *recordingQueue) enqueued() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.ids...)
}

// countingDeliverer counts deliveries per order and fails the first failures calls.
type countingDeliverer struct {
	mu       sync.Mutex
	count    map[string]int
	failures int
}

func newCountingDeliverer() *countingDeliverer {
	return &countingDeliverer{count: make(map[string]int)}
}

func (d *countingDeliverer) Deliver(_ context.Context, del fulfillment.Delivery) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failures > 0 {
		d.failures--
		return errors.New("callback unreachable")
	}
	d.count[del.OrderID]++
	return nil
}

func (d *countingDeliverer) deliveries(orderID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count[orderID]
}

// recordingPublisher keeps published event types.
type recordingPublisher struct {
	mu    sync.Mutex
	types []string
}

func (p *recordingPublisher) Publish(_ context.Context, env events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, env.EventType)
	return nil
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.types...)
}
