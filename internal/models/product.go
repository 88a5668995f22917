package models

import "time"

// Product represents a digital good in the catalog. Stock is the remaining
// unit count and is only decremented by order creation.
type Product struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(64)" validate:"required,max=64"`
	Name        string    `json:"name" gorm:"type:varchar(100)" validate:"required,min=3,max=100"`
	Description string    `json:"description" gorm:"type:varchar(500)" validate:"omitempty,max=500"`
	PriceCents  int64     `json:"price_cents" validate:"required,gt=0"`
	Stock       int       `json:"stock" validate:"gte=0"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
