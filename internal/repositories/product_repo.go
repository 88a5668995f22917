package repositories

import (
	"context"

	"pixstore/internal/models"
)

// ProductRepository defines the interface for catalog data access. Stock is only
// ever decremented through OrderLedger.Create and restored through OrderLedger.Release.
type ProductRepository interface {
	GetAll(ctx context.Context) ([]models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
}
