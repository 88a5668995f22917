package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusApproved  OrderStatus = "approved"
	StatusFulfilled OrderStatus = "fulfilled"
	StatusExpired   OrderStatus = "expired"
	StatusCancelled OrderStatus = "cancelled"
)

var validNext = map[OrderStatus]map[OrderStatus]bool{
	StatusPending:   {StatusApproved: true, StatusExpired: true, StatusCancelled: true},
	StatusApproved:  {StatusFulfilled: true},
	StatusFulfilled: {},
	StatusExpired:   {},
	StatusCancelled: {},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	_, ok := validNext[s]
	return ok
}

// Terminal reports whether no further transition is possible from s.
func (s OrderStatus) Terminal() bool {
	return s.Valid() && len(validNext[s]) == 0
}

// OrderIDLength is the length of generated order ids. It matches the BR Code
// txid budget so the id can travel inside the payment payload unchanged.
const OrderIDLength = 25

// NewOrderID returns a collision-resistant, alphanumeric order id.
func NewOrderID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:OrderIDLength]
}

// Order is a purchase of a single product. TotalAmountCents is fixed at creation;
// only Status and the approval/fulfillment stamps change afterwards.
type Order struct {
	ID               string      `json:"id" gorm:"primaryKey;type:varchar(32)"`
	BuyerReference   string      `json:"buyer_reference" gorm:"type:varchar(255);not null"`
	ProductID        string      `json:"product_id" gorm:"type:varchar(64);not null;index"`
	Quantity         int         `json:"quantity" gorm:"not null"`
	TotalAmountCents int64       `json:"total_amount_cents" gorm:"not null"`
	Status           OrderStatus `json:"status" gorm:"type:varchar(16);not null;index"`
	PaymentID        string      `json:"payment_id,omitempty" gorm:"type:varchar(64)"`
	CreatedAt        time.Time   `json:"created_at" gorm:"index"`
	UpdatedAt        time.Time   `json:"updated_at"`
	ApprovedAt       *time.Time  `json:"approved_at,omitempty"`
	FulfilledAt      *time.Time  `json:"fulfilled_at,omitempty"`
}
