// Package pricing derives the prices shown to shoppers from catalog fields.
// Nothing here is persisted; every value is recomputed on read.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

var hundred = decimal.NewFromInt(100)

// EffectivePrice is the discount price when one is set and non-zero,
// otherwise the list price.
func EffectivePrice(p *models.Product) decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	if p.DiscountPrice != nil && !p.DiscountPrice.IsZero() {
		return *p.DiscountPrice
	}
	return p.Price
}

// HasDiscount reports whether a discount price is recorded at all.
func HasDiscount(p *models.Product) bool {
	return p != nil && p.DiscountPrice != nil
}

// DiscountPercent is the whole-number percentage saved, truncated toward zero.
// A missing or zero discount and a zero list price all yield 0.
func DiscountPercent(p *models.Product) int {
	if p == nil || p.DiscountPrice == nil || p.DiscountPrice.IsZero() || p.Price.IsZero() {
		return 0
	}
	saved := p.Price.Sub(*p.DiscountPrice)
	return int(saved.Mul(hundred).Div(p.Price).IntPart())
}

// LineTotal multiplies a unit price by a quantity without rounding.
func LineTotal(unit decimal.Decimal, qty int) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(qty)))
}
