package repositories

import (
	"context"
	"sync"
	"testing"
	"time"

	"pixstore/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryLedger(t *testing.T, stock int) (*MemoryOrderLedger, *MemoryProductRepository) {
	t.Helper()
	products := NewMemoryProductRepository()
	require.NoError(t, products.Create(context.Background(), &models.Product{
		ID: "proxy-br", Name: "Proxy BR", PriceCents: 1950, Stock: stock,
	}))
	return NewMemoryOrderLedger(products), products
}

func TestMemoryOrderLedger_Create(t *testing.T) {
	ctx := context.Background()
	ledger, products := newMemoryLedger(t, 5)

	order := &models.Order{ProductID: "proxy-br", Quantity: 2, BuyerReference: "chat-1"}
	require.NoError(t, ledger.Create(ctx, order))
	assert.Len(t, order.ID, models.OrderIDLength)
	assert.Equal(t, models.StatusPending, order.Status)
	assert.Equal(t, int64(3900), order.TotalAmountCents)

	p, err := products.GetByID(ctx, "proxy-br")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)

	err = ledger.Create(ctx, &models.Order{ProductID: "proxy-br", Quantity: 4})
	assert.ErrorIs(t, err, ErrOutOfStock)
	err = ledger.Create(ctx, &models.Order{ProductID: "missing", Quantity: 1})
	assert.ErrorIs(t, err, ErrProductNotFound)
	err = ledger.Create(ctx, &models.Order{ProductID: "proxy-br", Quantity: 0})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	p, err = products.GetByID(ctx, "proxy-br")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock, "failed creates must not touch stock")
}

func TestMemoryOrderLedger_ConcurrentCreateLastUnit(t *testing.T) {
	ctx := context.Background()
	ledger, products := newMemoryLedger(t, 1)

	const buyers = 8
	var wg sync.WaitGroup
	errs := make([]error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = ledger.Create(ctx, &models.Order{ProductID: "proxy-br", Quantity: 1})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrOutOfStock)
	}
	assert.Equal(t, 1, succeeded)

	p, err := products.GetByID(ctx, "proxy-br")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock)
}

func TestMemoryOrderLedger_CompareAndSwap(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newMemoryLedger(t, 5)
	order := &models.Order{ProductID: "proxy-br", Quantity: 1}
	require.NoError(t, ledger.Create(ctx, order))

	now := time.Now().UTC()
	ok, err := ledger.MarkFulfilled(ctx, order.ID, now)
	require.NoError(t, err)
	assert.False(t, ok, "pending order cannot be fulfilled")

	ok, err = ledger.Approve(ctx, order.ID, "pay-1", now)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = ledger.Approve(ctx, order.ID, "pay-2", now)
	require.NoError(t, err)
	assert.False(t, ok, "second approval must lose")

	got, err := ledger.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "pay-1", got.PaymentID)
	assert.Equal(t, models.StatusApproved, got.Status)

	ok, err = ledger.Release(ctx, order.ID, models.StatusCancelled)
	require.NoError(t, err)
	assert.False(t, ok, "approved order cannot be released")

	ok, err = ledger.MarkFulfilled(ctx, order.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = ledger.MarkFulfilled(ctx, order.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = ledger.Approve(ctx, "nope", "pay", now)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestMemoryOrderLedger_ConcurrentApproveHasOneWinner(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newMemoryLedger(t, 1)
	order := &models.Order{ProductID: "proxy-br", Quantity: 1}
	require.NoError(t, ledger.Create(ctx, order))

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := ledger.Approve(ctx, order.ID, "pay", time.Now().UTC())
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestMemoryOrderLedger_ReleaseRestocks(t *testing.T) {
	ctx := context.Background()
	ledger, products := newMemoryLedger(t, 3)
	order := &models.Order{ProductID: "proxy-br", Quantity: 2}
	require.NoError(t, ledger.Create(ctx, order))

	ok, err := ledger.Release(ctx, order.ID, models.StatusExpired)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = ledger.Release(ctx, order.ID, models.StatusExpired)
	require.NoError(t, err)
	assert.False(t, ok, "release is not repeatable")

	p, err := products.GetByID(ctx, "proxy-br")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)

	_, err = ledger.Release(ctx, order.ID, models.StatusFulfilled)
	assert.Error(t, err)
}

func TestMemoryOrderLedger_ListAndFindStale(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newMemoryLedger(t, 10)
	for i := 0; i < 3; i++ {
		require.NoError(t, ledger.Create(ctx, &models.Order{ProductID: "proxy-br", Quantity: 1, BuyerReference: "buyer-a"}))
	}
	other := &models.Order{ProductID: "proxy-br", Quantity: 1, BuyerReference: "buyer-b"}
	require.NoError(t, ledger.Create(ctx, other))
	_, err := ledger.Approve(ctx, other.ID, "pay", time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)

	all, err := ledger.List(ctx, OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	pending, err := ledger.List(ctx, OrderFilter{Status: models.StatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 3)

	byBuyer, err := ledger.List(ctx, OrderFilter{BuyerReference: "buyer-b"})
	require.NoError(t, err)
	require.Len(t, byBuyer, 1)
	assert.Equal(t, other.ID, byBuyer[0].ID)

	paged, err := ledger.List(ctx, OrderFilter{Limit: 2, Offset: 3})
	require.NoError(t, err)
	assert.Len(t, paged, 1)

	paged, err = ledger.List(ctx, OrderFilter{Limit: 2, Offset: -1})
	require.NoError(t, err)
	assert.Len(t, paged, 2, "negative offset starts at the first order")

	stale, err := ledger.FindStale(ctx, models.StatusPending, time.Now().UTC().Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Len(t, stale, 3)
	stale, err = ledger.FindStale(ctx, models.StatusPending, time.Now().UTC().Add(-time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, stale)

	staleApproved, err := ledger.FindStale(ctx, models.StatusApproved, time.Now().UTC().Add(-30*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, staleApproved, 1)
	assert.Equal(t, other.ID, staleApproved[0].ID)
}
