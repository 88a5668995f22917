package services_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"pixstore/internal/events"
	"pixstore/internal/models"
	"pixstore/internal/repositories"
	"pixstore/internal/services"
	"pixstore/pkg/pix"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderService_CreateOrder(t *testing.T) {
	ctx := context.Background()
	ledger, products := newStore(t, 10)
	pub := &recordingPublisher{}
	service := services.NewOrderService(ledger, testPix, pub, nil)

	checkout, err := service.CreateOrder(ctx, services.CreateOrderRequest{
		ProductID: "rotativa-2gb", Quantity: 3, BuyerReference: "chat-42",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, checkout.Order.Status)
	assert.Equal(t, int64(5850), checkout.Order.TotalAmountCents)

	require.NoError(t, pix.Verify(checkout.PixPayload))
	assert.True(t, strings.HasPrefix(checkout.PixPayload, "000201"))
	assert.Contains(t, checkout.PixPayload, "540558.50")
	assert.Contains(t, checkout.PixPayload, checkout.Order.ID)
	assert.Equal(t, []string{events.EventOrderCreated}, pub.published())

	p, err := products.GetByID(ctx, "rotativa-2gb")
	require.NoError(t, err)
	assert.Equal(t, 7, p.Stock)
}

func TestOrderService_CreateOrderErrors(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newStore(t, 1)
	service := services.NewOrderService(ledger, testPix, nil, nil)

	_, err := service.CreateOrder(ctx, services.CreateOrderRequest{ProductID: "rotativa-2gb", Quantity: 2, BuyerReference: "b"})
	assert.ErrorIs(t, err, repositories.ErrOutOfStock)
	_, err = service.CreateOrder(ctx, services.CreateOrderRequest{ProductID: "nope", Quantity: 1, BuyerReference: "b"})
	assert.ErrorIs(t, err, repositories.ErrProductNotFound)
	_, err = service.CreateOrder(ctx, services.CreateOrderRequest{ProductID: "rotativa-2gb", Quantity: 0, BuyerReference: "b"})
	assert.ErrorIs(t, err, repositories.ErrInvalidQuantity)
}

func TestOrderService_ConcurrentCreateOnLastUnit(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newStore(t, 1)
	service := services.NewOrderService(ledger, testPix, nil, nil)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = service.CreateOrder(ctx, services.CreateOrderRequest{ProductID: "rotativa-2gb", Quantity: 1, BuyerReference: "b"})
		}(i)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			failures++
			assert.ErrorIs(t, err, repositories.ErrOutOfStock)
		}
	}
	assert.Equal(t, 1, failures)
}

func TestOrderService_BadPixKeyReleasesStock(t *testing.T) {
	ctx := context.Background()
	ledger, products := newStore(t, 2)
	service := services.NewOrderService(ledger, services.PixSettings{MerchantName: "X", MerchantCity: "Y"}, nil, nil)

	_, err := service.CreateOrder(ctx, services.CreateOrderRequest{ProductID: "rotativa-2gb", Quantity: 2, BuyerReference: "b"})
	assert.ErrorIs(t, err, pix.ErrMissingKey)

	p, err := products.GetByID(ctx, "rotativa-2gb")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Stock)

	cancelled, err := ledger.List(ctx, repositories.OrderFilter{Status: models.StatusCancelled})
	require.NoError(t, err)
	assert.Len(t, cancelled, 1)
}

func TestOrderService_GetOrderRedisplaysPayload(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newStore(t, 5)
	service := services.NewOrderService(ledger, testPix, nil, nil)

	created, err := service.CreateOrder(ctx, services.CreateOrderRequest{ProductID: "rotativa-2gb", Quantity: 1, BuyerReference: "b"})
	require.NoError(t, err)

	again, err := service.GetOrder(ctx, created.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, created.PixPayload, again.PixPayload)

	_, err = ledger.Approve(ctx, created.Order.ID, "pay-1", created.Order.CreatedAt)
	require.NoError(t, err)
	approved, err := service.GetOrder(ctx, created.Order.ID)
	require.NoError(t, err)
	assert.Empty(t, approved.PixPayload)
	assert.Equal(t, models.StatusApproved, approved.Order.Status)

	_, err = service.GetOrder(ctx, "missing")
	assert.ErrorIs(t, err, repositories.ErrOrderNotFound)
}

func TestOrderService_CancelOrder(t *testing.T) {
	ctx := context.Background()
	ledger, products := newStore(t, 5)
	pub := &recordingPublisher{}
	service := services.NewOrderService(ledger, testPix, pub, nil)

	order := createPending(t, ledger, 2)
	cancelled, err := service.CancelOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
	assert.Equal(t, []string{events.EventOrderCancelled}, pub.published())

	p, err := products.GetByID(ctx, "rotativa-2gb")
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)

	_, err = service.CancelOrder(ctx, order.ID)
	assert.ErrorIs(t, err, services.ErrOrderNotCancellable)
	_, err = service.CancelOrder(ctx, "missing")
	assert.ErrorIs(t, err, repositories.ErrOrderNotFound)
}

func TestOrderService_ListOrders(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newStore(t, 5)
	service := services.NewOrderService(ledger, testPix, nil, nil)
	createPending(t, ledger, 1)
	createPending(t, ledger, 1)

	orders, err := service.ListOrders(ctx, repositories.OrderFilter{Status: models.StatusPending})
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	_, err = service.ListOrders(ctx, repositories.OrderFilter{Status: "shipped"})
	assert.Error(t, err)
}
