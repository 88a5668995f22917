package repositories

import (
	"context"
	"errors"
	"fmt"

	"pixstore/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMOperatorRepository is a GORM implementation of OperatorRepository.
type GORMOperatorRepository struct {
	db *gorm.DB
}

// NewGORMOperatorRepository creates a new instance of GORMOperatorRepository.
func NewGORMOperatorRepository(db *gorm.DB) *GORMOperatorRepository {
	return &GORMOperatorRepository{
		db: db,
	}
}

// Create creates a new operator in the database.
func (r *GORMOperatorRepository) Create(ctx context.Context, operator *models.Operator) error {
	if operator.ID == "" {
		operator.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(operator).Error; err != nil {
		return fmt.Errorf("failed to create operator: %w", err)
	}
	return nil
}

// GetByUsername retrieves an operator by username.
func (r *GORMOperatorRepository) GetByUsername(ctx context.Context, username string) (*models.Operator, error) {
	return r.findOne(ctx, "username = ?", username)
}

// GetByEmail retrieves an operator by email.
func (r *GORMOperatorRepository) GetByEmail(ctx context.Context, email string) (*models.Operator, error) {
	return r.findOne(ctx, "email = ?", email)
}

func (r *GORMOperatorRepository) findOne(ctx context.Context, query string, arg string) (*models.Operator, error) {
	var operator models.Operator
	if err := r.db.WithContext(ctx).First(&operator, query, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("operator %s: %w", arg, ErrOperatorNotFound)
		}
		return nil, fmt.Errorf("failed to get operator %s: %w", arg, err)
	}
	return &operator, nil
}
