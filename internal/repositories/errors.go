package repositories

import "errors"

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrOperatorNotFound = errors.New("operator not found")
	ErrOutOfStock       = errors.New("out of stock")
	ErrInvalidQuantity  = errors.New("quantity must be at least 1")
	ErrDuplicateID      = errors.New("duplicate id")
)
