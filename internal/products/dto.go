package product

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// ProductDTO is the detail representation of a product.
type ProductDTO struct {
	ID              uuid.UUID        `json:"id"`
	Name            string           `json:"name"`
	Slug            string           `json:"slug"`
	Description     string           `json:"description"`
	Price           decimal.Decimal  `json:"price"`
	DiscountPrice   *decimal.Decimal `json:"discount_price"`
	FinalPrice      decimal.Decimal  `json:"final_price"`
	DiscountPercent int              `json:"discount_percent"`
	HasDiscount     bool             `json:"has_discount"`
	StockQuantity   int              `json:"stock_quantity"`
	InStock         bool             `json:"in_stock"`
	SKU             string           `json:"sku"`
	IsAvailable     bool             `json:"is_available"`
	ViewsCount      int              `json:"views_count"`
	AverageRating   int              `json:"average_rating"`
	ReviewsCount    int64            `json:"reviews_count"`
	Category        *CategoryDTO     `json:"category,omitempty"`
	Brand           *BrandDTO        `json:"brand,omitempty"`
	Specifications  []SpecDTO        `json:"specifications"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// ProductListItemDTO is the compact representation used by listings.
type ProductListItemDTO struct {
	ID              uuid.UUID        `json:"id"`
	Name            string           `json:"name"`
	Slug            string           `json:"slug"`
	Price           decimal.Decimal  `json:"price"`
	DiscountPrice   *decimal.Decimal `json:"discount_price"`
	FinalPrice      decimal.Decimal  `json:"final_price"`
	DiscountPercent int              `json:"discount_percent"`
	HasDiscount     bool             `json:"has_discount"`
	InStock         bool             `json:"in_stock"`
	AverageRating   int              `json:"average_rating"`
	ViewsCount      int              `json:"views_count"`
	CategoryName    string           `json:"category_name"`
	BrandName       string           `json:"brand_name"`
	CreatedAt       time.Time        `json:"created_at"`
}

// SpecDTO is one name/value attribute.
type SpecDTO struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CategoryDTO surfaces a category; Children is only filled by the tree.
type CategoryDTO struct {
	ID          uuid.UUID     `json:"id"`
	Name        string        `json:"name"`
	Slug        string        `json:"slug"`
	Description *string       `json:"description,omitempty"`
	ParentID    *uuid.UUID    `json:"parent_id,omitempty"`
	IsActive    bool          `json:"is_active"`
	Children    []CategoryDTO `json:"children,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// BrandDTO surfaces a brand.
type BrandDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewProductDTO builds the detail DTO from the persisted model.
func NewProductDTO(product *models.Product, reviewsCount int64) *ProductDTO {
	dto := &ProductDTO{
		ID:              product.ID,
		Name:            product.Name,
		Slug:            product.Slug,
		Description:     product.Description,
		Price:           product.Price,
		DiscountPrice:   product.DiscountPrice,
		FinalPrice:      pricing.EffectivePrice(product),
		DiscountPercent: pricing.DiscountPercent(product),
		HasDiscount:     pricing.HasDiscount(product),
		StockQuantity:   product.StockQuantity,
		InStock:         product.InStock(),
		SKU:             product.SKU,
		IsAvailable:     product.IsAvailable,
		ViewsCount:      product.ViewsCount,
		AverageRating:   product.AverageRating,
		ReviewsCount:    reviewsCount,
		Specifications:  make([]SpecDTO, len(product.Specs)),
		CreatedAt:       product.CreatedAt,
		UpdatedAt:       product.UpdatedAt,
	}
	for i, spec := range product.Specs {
		dto.Specifications[i] = SpecDTO{Name: spec.Name, Value: spec.Value}
	}
	if product.Category != nil {
		dto.Category = NewCategoryDTO(product.Category)
	}
	if product.Brand != nil {
		dto.Brand = NewBrandDTO(product.Brand)
	}
	return dto
}

// NewProductListItemDTO builds the listing DTO.
func NewProductListItemDTO(product *models.Product) ProductListItemDTO {
	dto := ProductListItemDTO{
		ID:              product.ID,
		Name:            product.Name,
		Slug:            product.Slug,
		Price:           product.Price,
		DiscountPrice:   product.DiscountPrice,
		FinalPrice:      pricing.EffectivePrice(product),
		DiscountPercent: pricing.DiscountPercent(product),
		HasDiscount:     pricing.HasDiscount(product),
		InStock:         product.InStock(),
		AverageRating:   product.AverageRating,
		ViewsCount:      product.ViewsCount,
		CreatedAt:       product.CreatedAt,
	}
	if product.Category != nil {
		dto.CategoryName = product.Category.Name
	}
	if product.Brand != nil {
		dto.BrandName = product.Brand.Name
	}
	return dto
}

func newProductList(products []models.Product) []ProductListItemDTO {
	out := make([]ProductListItemDTO, len(products))
	for i := range products {
		out[i] = NewProductListItemDTO(&products[i])
	}
	return out
}

func NewCategoryDTO(category *models.Category) *CategoryDTO {
	return &CategoryDTO{
		ID:          category.ID,
		Name:        category.Name,
		Slug:        category.Slug,
		Description: category.Description,
		ParentID:    category.ParentID,
		IsActive:    category.IsActive,
		CreatedAt:   category.CreatedAt,
	}
}

func NewBrandDTO(brand *models.Brand) *BrandDTO {
	return &BrandDTO{
		ID:          brand.ID,
		Name:        brand.Name,
		Slug:        brand.Slug,
		Description: brand.Description,
		IsActive:    brand.IsActive,
		CreatedAt:   brand.CreatedAt,
	}
}

// buildCategoryTree nests active categories under their parents. A category
// whose parent is inactive or missing is dropped along with its subtree.
func buildCategoryTree(categories []models.Category) []CategoryDTO {
	children := make(map[uuid.UUID][]models.Category)
	var roots []models.Category
	for _, category := range categories {
		if category.ParentID == nil {
			roots = append(roots, category)
			continue
		}
		children[*category.ParentID] = append(children[*category.ParentID], category)
	}

	var build func(nodes []models.Category) []CategoryDTO
	build = func(nodes []models.Category) []CategoryDTO {
		out := make([]CategoryDTO, 0, len(nodes))
		for i := range nodes {
			dto := NewCategoryDTO(&nodes[i])
			dto.Children = build(children[nodes[i].ID])
			out = append(out, *dto)
		}
		return out
	}
	return build(roots)
}
