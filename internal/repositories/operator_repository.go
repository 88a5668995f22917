package repositories

import (
	"context"

	"pixstore/internal/models"
)

// OperatorRepository defines the interface for back-office user data access.
type OperatorRepository interface {
	Create(ctx context.Context, operator *models.Operator) error
	GetByUsername(ctx context.Context, username string) (*models.Operator, error)
	GetByEmail(ctx context.Context, email string) (*models.Operator, error)
}
