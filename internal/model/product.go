package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents a catalogue entry with its sellable stock.
type Product struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	Code       string          `json:"code" db:"code"`
	Title      string          `json:"title" db:"title"`
	Price      decimal.Decimal `json:"price" db:"price"`
	Stock      int             `json:"stock" db:"stock"`
	Active     bool            `json:"active" db:"active"`
	Category   string          `json:"category" db:"category"`
	Thumbnails []string        `json:"thumbnails" db:"thumbnails"`
	CreatedAt  time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time       `json:"updatedAt" db:"updated_at"`
}

// Thumbnail returns the primary thumbnail, if any.
func (p *Product) Thumbnail() string {
	if len(p.Thumbnails) == 0 {
		return ""
	}
	return p.Thumbnails[0]
}
