package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"pixstore/internal/models"
)

// MemoryOrderLedger is an in-memory implementation of OrderLedger backed by a
// MemoryProductRepository for stock. It does not survive restarts; use it for
// tests and local runs only.
type MemoryOrderLedger struct {
	products *MemoryProductRepository
	orders   map[string]models.Order
	mu       sync.RWMutex
}

// NewMemoryOrderLedger creates a new instance of MemoryOrderLedger.
func NewMemoryOrderLedger(products *MemoryProductRepository) *MemoryOrderLedger {
	return &MemoryOrderLedger{
		products: products,
		orders:   make(map[string]models.Order),
	}
}

// Create reserves stock and inserts a pending order.
func (l *MemoryOrderLedger) Create(_ context.Context, order *models.Order) error {
	if order.Quantity < 1 {
		return ErrInvalidQuantity
	}
	if order.ID == "" {
		order.ID = models.NewOrderID()
	}

	product, err := l.products.reserve(order.ProductID, order.Quantity)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.orders[order.ID]; exists {
		l.products.restock(order.ProductID, order.Quantity)
		return fmt.Errorf("order %s: %w", order.ID, ErrDuplicateID)
	}
	now := time.Now().UTC()
	order.TotalAmountCents = product.PriceCents * int64(order.Quantity)
	order.Status = models.StatusPending
	order.CreatedAt = now
	order.UpdatedAt = now
	l.orders[order.ID] = *order
	return nil
}

// GetByID returns an order by its ID.
func (l *MemoryOrderLedger) GetByID(_ context.Context, id string) (*models.Order, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	order, ok := l.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, ErrOrderNotFound)
	}
	return &order, nil
}

// List returns orders matching filter, newest first.
func (l *MemoryOrderLedger) List(_ context.Context, filter OrderFilter) ([]models.Order, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	orderList := make([]models.Order, 0, len(l.orders))
	for _, o := range l.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.BuyerReference != "" && o.BuyerReference != filter.BuyerReference {
			continue
		}
		orderList = append(orderList, o)
	}
	sort.Slice(orderList, func(i, j int) bool {
		if !orderList[i].CreatedAt.Equal(orderList[j].CreatedAt) {
			return orderList[i].CreatedAt.After(orderList[j].CreatedAt)
		}
		return orderList[i].ID < orderList[j].ID
	})
	return page(orderList, normalizeOffset(filter.Offset), normalizeLimit(filter.Limit)), nil
}

// Approve is a compare-and-swap from pending to approved.
func (l *MemoryOrderLedger) Approve(_ context.Context, id, paymentID string, at time.Time) (bool, error) {
	return l.swap(id, models.StatusPending, func(o *models.Order) {
		o.Status = models.StatusApproved
		o.PaymentID = paymentID
		o.ApprovedAt = &at
		o.UpdatedAt = at
	})
}

// MarkFulfilled is a compare-and-swap from approved to fulfilled.
func (l *MemoryOrderLedger) MarkFulfilled(_ context.Context, id string, at time.Time) (bool, error) {
	return l.swap(id, models.StatusApproved, func(o *models.Order) {
		o.Status = models.StatusFulfilled
		o.FulfilledAt = &at
		o.UpdatedAt = at
	})
}

// Release moves a pending order to a terminal status and restocks its units.
func (l *MemoryOrderLedger) Release(_ context.Context, id string, to models.OrderStatus) (bool, error) {
	if !models.CanTransition(models.StatusPending, to) || to == models.StatusApproved {
		return false, fmt.Errorf("cannot release order into status %q", to)
	}
	var released models.Order
	ok, err := l.swap(id, models.StatusPending, func(o *models.Order) {
		o.Status = to
		o.UpdatedAt = time.Now().UTC()
		released = *o
	})
	if err != nil || !ok {
		return ok, err
	}
	l.products.restock(released.ProductID, released.Quantity)
	return true, nil
}

// FindStale lists orders in status older than before.
func (l *MemoryOrderLedger) FindStale(_ context.Context, status models.OrderStatus, before time.Time, limit int) ([]models.Order, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var stale []models.Order
	for _, o := range l.orders {
		if o.Status != status {
			continue
		}
		ts := o.CreatedAt
		if status == models.StatusApproved && o.ApprovedAt != nil {
			ts = *o.ApprovedAt
		}
		if ts.Before(before) {
			stale = append(stale, o)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].CreatedAt.Before(stale[j].CreatedAt) })
	return page(stale, 0, normalizeLimit(limit)), nil
}

func (l *MemoryOrderLedger) swap(id string, from models.OrderStatus, apply func(*models.Order)) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	order, ok := l.orders[id]
	if !ok {
		return false, fmt.Errorf("order %s: %w", id, ErrOrderNotFound)
	}
	if order.Status != from {
		return false, nil
	}
	apply(&order)
	l.orders[id] = order
	return true, nil
}

func page(orders []models.Order, offset, limit int) []models.Order {
	if offset >= len(orders) {
		return []models.Order{}
	}
	end := offset + limit
	if end > len(orders) {
		end = len(orders)
	}
	return orders[offset:end]
}
