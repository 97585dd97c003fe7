package model

import (
	"time"

	"github.com/google/uuid"
)

// Cart holds a user's pending selections. Every user owns exactly one cart.
type Cart struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	UserID    uuid.UUID  `json:"userId" db:"user_id"`
	Items     []CartItem `json:"items" db:"-"`
	UpdatedAt time.Time  `json:"updatedAt" db:"updated_at"`
}

// CartItem is one product and quantity entry in a cart.
type CartItem struct {
	ProductID uuid.UUID `json:"productId" db:"product_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
	AddedAt   time.Time `json:"addedAt" db:"added_at"`

	// Product is resolved only when requested through CartQueryOptions.
	Product *Product `json:"product,omitempty" db:"-"`
}

// CartQueryOptions controls which references are resolved when reading a cart.
type CartQueryOptions struct {
	IncludeProducts bool
}

// TotalQuantity returns the number of units across all lines.
func (c *Cart) TotalQuantity() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}
