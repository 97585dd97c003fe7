// Package pricing computes the derived monetary totals of an order.
package pricing

import (
	"storefront/internal/config"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Totals are the server-computed amounts of an order.
// Total always equals Subtotal - Discount + Shipping + Tax.
type Totals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// Calculator applies the configured shipping and tax rules.
type Calculator struct {
	taxRate               decimal.Decimal
	taxPlaces             int32
	freeShippingThreshold decimal.Decimal
	flatShippingFee       decimal.Decimal
	minOrderAmount        decimal.Decimal
}

// NewCalculator creates a calculator from the order configuration.
func NewCalculator(cfg config.OrderConfig) *Calculator {
	return &Calculator{
		taxRate:               cfg.TaxRate,
		taxPlaces:             cfg.TaxRoundPlaces,
		freeShippingThreshold: cfg.FreeShippingThreshold,
		flatShippingFee:       cfg.FlatShippingFee,
		minOrderAmount:        cfg.MinOrderAmount,
	}
}

// Compute derives discount, shipping, tax and total for subtotal.
// discountPercent is the promo percentage in [0, 100]; zero means no promo.
func (c *Calculator) Compute(subtotal decimal.Decimal, discountPercent int) Totals {
	discount := Discount(subtotal, discountPercent)

	shipping := c.flatShippingFee
	if subtotal.GreaterThanOrEqual(c.freeShippingThreshold) {
		shipping = decimal.Zero
	}

	tax := subtotal.Sub(discount).Mul(c.taxRate).Round(c.taxPlaces)

	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		Shipping: shipping,
		Tax:      tax,
		Total:    subtotal.Sub(discount).Add(shipping).Add(tax),
	}
}

// BelowMinimum reports whether total is under the configured minimum order amount.
func (c *Calculator) BelowMinimum(total decimal.Decimal) bool {
	return total.LessThan(c.minOrderAmount)
}

// MinOrderAmount returns the configured minimum.
func (c *Calculator) MinOrderAmount() decimal.Decimal {
	return c.minOrderAmount
}

// Discount returns percent of subtotal rounded to whole units, clamped to [0, subtotal].
func Discount(subtotal decimal.Decimal, percent int) decimal.Decimal {
	if percent <= 0 || subtotal.Sign() <= 0 {
		return decimal.Zero
	}
	if percent >= 100 {
		return subtotal
	}
	return subtotal.Mul(decimal.NewFromInt(int64(percent))).Div(hundred).Round(0)
}
