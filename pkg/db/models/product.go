package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a catalog listing. Stock is read by the cart but never written by it.
type Product struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	CategoryID    uuid.UUID        `gorm:"column:category_id;type:uuid;not null;index"`
	BrandID       uuid.UUID        `gorm:"column:brand_id;type:uuid;not null;index"`
	Name          string           `gorm:"column:name;not null"`
	Slug          string           `gorm:"column:slug;not null;uniqueIndex"`
	Description   string           `gorm:"column:description;not null"`
	Price         decimal.Decimal  `gorm:"column:price;type:numeric(10,2);not null"`
	DiscountPrice *decimal.Decimal `gorm:"column:discount_price;type:numeric(10,2)"`
	StockQuantity int              `gorm:"column:stock_quantity;not null"`
	SKU           string           `gorm:"column:sku;not null;uniqueIndex"`
	IsAvailable   bool             `gorm:"column:is_available;not null"`
	ViewsCount    int              `gorm:"column:views_count;not null"`
	AverageRating int              `gorm:"column:average_rating;not null"`
	Category      *Category        `gorm:"foreignKey:CategoryID;constraint:OnDelete:CASCADE"`
	Brand         *Brand           `gorm:"foreignKey:BrandID;constraint:OnDelete:CASCADE"`
	Specs         []ProductSpec    `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// InStock reports whether the product can currently be bought at all.
func (p *Product) InStock() bool {
	return p.StockQuantity > 0 && p.IsAvailable
}

// ProductSpec is one named attribute row shown on the product page.
type ProductSpec struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:product_specs_product_name_key"`
	Name      string    `gorm:"column:name;not null;uniqueIndex:product_specs_product_name_key"`
	Value     string    `gorm:"column:value;not null"`
	Position  int       `gorm:"column:position;not null"`
}

func (ProductSpec) TableName() string {
	return "product_specs"
}

func (s *ProductSpec) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
