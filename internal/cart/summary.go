package cart

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Summary is the read model of a cart. Every figure is derived on read.
type Summary struct {
	LineCount     int             `json:"line_count"`
	TotalQuantity int             `json:"total_quantity"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	Lines         []SummaryLine   `json:"lines"`
}

// SummaryLine reports a line next to the product's current stock, so a line
// that now exceeds stock is visible to the shopper rather than corrected.
type SummaryLine struct {
	ItemID            uuid.UUID       `json:"item_id"`
	ProductID         uuid.UUID       `json:"product_id"`
	ProductName       string          `json:"product_name"`
	Quantity          int             `json:"quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	LineTotal         decimal.Decimal `json:"line_total"`
	InStock           bool            `json:"in_stock"`
	AvailableQuantity int             `json:"available_quantity"`
}

// Summarize loads the cart lines with fresh product data and builds the summary.
func (s *service) Summarize(ctx context.Context, cart *models.Cart) (*Summary, error) {
	if cart == nil {
		return nil, InvalidOwnerError()
	}
	items, err := s.repo.ListItems(ctx, cart.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart lines")
	}
	return BuildSummary(items), nil
}

// BuildSummary folds loaded lines into a Summary. Lines must have Product set.
func BuildSummary(items []models.CartItem) *Summary {
	summary := &Summary{
		TotalPrice: decimal.Zero,
		Lines:      make([]SummaryLine, 0, len(items)),
	}
	for _, item := range items {
		product := item.Product
		if product == nil {
			product = &models.Product{ID: item.ProductID}
		}
		unit := pricing.EffectivePrice(product)
		lineTotal := pricing.LineTotal(unit, item.Quantity)

		summary.Lines = append(summary.Lines, SummaryLine{
			ItemID:            item.ID,
			ProductID:         item.ProductID,
			ProductName:       product.Name,
			Quantity:          item.Quantity,
			UnitPrice:         unit,
			LineTotal:         lineTotal,
			InStock:           product.InStock(),
			AvailableQuantity: product.StockQuantity,
		})
		summary.TotalQuantity += item.Quantity
		summary.TotalPrice = summary.TotalPrice.Add(lineTotal)
	}
	summary.LineCount = len(summary.Lines)
	return summary
}
