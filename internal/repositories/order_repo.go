package repositories

import (
	"context"
	"time"

	"pixstore/internal/models"
)

// OrderFilter narrows List results. Zero values mean "any".
type OrderFilter struct {
	Status         models.OrderStatus
	BuyerReference string
	Limit          int
	Offset         int
}

// OrderLedger is the single source of truth for orders and what was promised.
// Every status change is a compare-and-swap on the current status: a call whose
// precondition does not hold returns false and changes nothing.
type OrderLedger interface {
	// Create checks and decrements stock, prices the order and inserts it as pending,
	// all-or-nothing. It fills in Status, TotalAmountCents and timestamps.
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]models.Order, error)
	// Approve moves a pending order to approved.
	Approve(ctx context.Context, id, paymentID string, at time.Time) (bool, error)
	// MarkFulfilled moves an approved order to fulfilled.
	MarkFulfilled(ctx context.Context, id string, at time.Time) (bool, error)
	// Release moves a pending order to expired or cancelled and returns its units to stock.
	Release(ctx context.Context, id string, to models.OrderStatus) (bool, error)
	// FindStale lists orders in status whose status timestamp is older than before.
	FindStale(ctx context.Context, status models.OrderStatus, before time.Time, limit int) ([]models.Order, error)
}

const defaultListLimit = 100

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return defaultListLimit
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
