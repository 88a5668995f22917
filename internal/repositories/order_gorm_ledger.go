package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pixstore/internal/models"

	"gorm.io/gorm"
)

// GORMOrderLedger is a GORM implementation of OrderLedger. Stock decrements are
// guarded UPDATEs so concurrent buyers of the last unit cannot both succeed.
type GORMOrderLedger struct {
	db *gorm.DB
}

// NewGORMOrderLedger creates a new instance of GORMOrderLedger.
func NewGORMOrderLedger(db *gorm.DB) *GORMOrderLedger {
	return &GORMOrderLedger{db: db}
}

// Create reserves stock and inserts a pending order in one transaction.
func (l *GORMOrderLedger) Create(ctx context.Context, order *models.Order) error {
	if order.Quantity < 1 {
		return ErrInvalidQuantity
	}
	if order.ID == "" {
		order.ID = models.NewOrderID()
	}

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Product{}).
			Where("id = ? AND stock >= ?", order.ProductID, order.Quantity).
			Update("stock", gorm.Expr("stock - ?", order.Quantity))
		if res.Error != nil {
			return fmt.Errorf("failed to reserve stock: %w", res.Error)
		}

		var product models.Product
		if err := tx.First(&product, "id = ?", order.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("product %s: %w", order.ProductID, ErrProductNotFound)
			}
			return fmt.Errorf("failed to load product %s: %w", order.ProductID, err)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("product %s (requested %d, available %d): %w",
				order.ProductID, order.Quantity, product.Stock, ErrOutOfStock)
		}

		now := time.Now().UTC()
		order.TotalAmountCents = product.PriceCents * int64(order.Quantity)
		order.Status = models.StatusPending
		order.CreatedAt = now
		order.UpdatedAt = now
		if err := tx.Create(order).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("order %s: %w", order.ID, ErrDuplicateID)
			}
			return fmt.Errorf("failed to insert order: %w", err)
		}
		return nil
	})
}

// GetByID retrieves an order by its ID.
func (l *GORMOrderLedger) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := l.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order %s: %w", id, ErrOrderNotFound)
		}
		return nil, fmt.Errorf("failed to get order %s: %w", id, err)
	}
	return &order, nil
}

// List returns orders matching filter, newest first.
func (l *GORMOrderLedger) List(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	q := l.db.WithContext(ctx).Model(&models.Order{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.BuyerReference != "" {
		q = q.Where("buyer_reference = ?", filter.BuyerReference)
	}
	var orders []models.Order
	err := q.Order("created_at DESC, id").
		Limit(normalizeLimit(filter.Limit)).
		Offset(normalizeOffset(filter.Offset)).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// Approve is a compare-and-swap from pending to approved.
func (l *GORMOrderLedger) Approve(ctx context.Context, id, paymentID string, at time.Time) (bool, error) {
	return l.swap(ctx, id, models.StatusPending, map[string]interface{}{
		"status":      models.StatusApproved,
		"payment_id":  paymentID,
		"approved_at": at,
		"updated_at":  at,
	})
}

// MarkFulfilled is a compare-and-swap from approved to fulfilled.
func (l *GORMOrderLedger) MarkFulfilled(ctx context.Context, id string, at time.Time) (bool, error) {
	return l.swap(ctx, id, models.StatusApproved, map[string]interface{}{
		"status":       models.StatusFulfilled,
		"fulfilled_at": at,
		"updated_at":   at,
	})
}

// Release moves a pending order to a terminal status and restocks its units.
func (l *GORMOrderLedger) Release(ctx context.Context, id string, to models.OrderStatus) (bool, error) {
	if !models.CanTransition(models.StatusPending, to) || to == models.StatusApproved {
		return false, fmt.Errorf("cannot release order into status %q", to)
	}

	released := false
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.First(&order, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("order %s: %w", id, ErrOrderNotFound)
			}
			return fmt.Errorf("failed to load order %s: %w", id, err)
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", id, models.StatusPending).
			Updates(map[string]interface{}{"status": to, "updated_at": time.Now().UTC()})
		if res.Error != nil {
			return fmt.Errorf("failed to release order %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}

		err := tx.Model(&models.Product{}).
			Where("id = ?", order.ProductID).
			Update("stock", gorm.Expr("stock + ?", order.Quantity)).Error
		if err != nil {
			return fmt.Errorf("failed to restock product %s: %w", order.ProductID, err)
		}
		released = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return released, nil
}

// FindStale lists orders in status older than before. Pending orders age from
// creation, approved orders from approval.
func (l *GORMOrderLedger) FindStale(ctx context.Context, status models.OrderStatus, before time.Time, limit int) ([]models.Order, error) {
	column := "created_at"
	if status == models.StatusApproved {
		column = "approved_at"
	}
	var orders []models.Order
	err := l.db.WithContext(ctx).
		Where("status = ? AND "+column+" < ?", status, before).
		Order(column).
		Limit(normalizeLimit(limit)).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find stale %s orders: %w", status, err)
	}
	return orders, nil
}

func (l *GORMOrderLedger) swap(ctx context.Context, id string, from models.OrderStatus, updates map[string]interface{}) (bool, error) {
	res := l.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("failed to update order %s: %w", id, res.Error)
	}
	if res.RowsAffected == 1 {
		return true, nil
	}
	if _, err := l.GetByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}
