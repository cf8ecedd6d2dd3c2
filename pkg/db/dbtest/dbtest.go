// Package dbtest opens migrated databases for repository and service tests.
package dbtest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
)

// Open returns a handle on a fresh on-disk sqlite database with every
// migration applied. Transactions take the write lock on BEGIN so concurrent
// writers queue instead of failing on upgrade.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "storefront.db")
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=5000&_foreign_keys=1&_journal_mode=WAL", path)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	migrateOrFail(t, conn, "sqlite3")
	return conn
}

// OpenPostgres returns a migrated handle on the database named by
// STOREFRONT_DB_DSN and skips the test when it is unset.
func OpenPostgres(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := os.Getenv(config.EnvDBDSN)
	if dsn == "" {
		t.Skipf("%s is not set", config.EnvDBDSN)
	}
	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	migrateOrFail(t, conn, "postgres")
	return conn
}

func migrateOrFail(t testing.TB, conn *gorm.DB, dialect string) {
	t.Helper()
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("extract sql.DB: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := migrate.ApplyEmbedded(context.Background(), sqlDB, dialect); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
}

// MustCreateUser inserts an active, verified customer.
func MustCreateUser(t testing.TB, conn *gorm.DB) *models.User {
	t.Helper()
	user := &models.User{
		Email:        fmt.Sprintf("sf_test_%s@example.com", uuid.NewString()),
		PasswordHash: "hash",
		IsActive:     true,
		IsVerified:   true,
	}
	if err := conn.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

// MustCreateCategory inserts an active root category.
func MustCreateCategory(t testing.TB, conn *gorm.DB) *models.Category {
	t.Helper()
	suffix := uuid.NewString()[:8]
	category := &models.Category{Name: "Category " + suffix, Slug: "category-" + suffix, IsActive: true}
	if err := conn.Create(category).Error; err != nil {
		t.Fatalf("create category: %v", err)
	}
	return category
}

// MustCreateBrand inserts an active brand.
func MustCreateBrand(t testing.TB, conn *gorm.DB) *models.Brand {
	t.Helper()
	suffix := uuid.NewString()[:8]
	brand := &models.Brand{Name: "Brand " + suffix, Slug: "brand-" + suffix, IsActive: true}
	if err := conn.Create(brand).Error; err != nil {
		t.Fatalf("create brand: %v", err)
	}
	return brand
}

// ProductOption tweaks the product built by MustCreateProduct.
type ProductOption func(*models.Product)

// WithPrice sets the list price, e.g. "19.99".
func WithPrice(price string) ProductOption {
	return func(p *models.Product) { p.Price = decimal.RequireFromString(price) }
}

// WithDiscount sets the discount price.
func WithDiscount(price string) ProductOption {
	return func(p *models.Product) {
		d := decimal.RequireFromString(price)
		p.DiscountPrice = &d
	}
}

// Unavailable marks the product as withdrawn from sale.
func Unavailable() ProductOption {
	return func(p *models.Product) { p.IsAvailable = false }
}

// MustCreateProduct inserts an available product with the given stock in a
// fresh category and brand.
func MustCreateProduct(t testing.TB, conn *gorm.DB, stock int, opts ...ProductOption) *models.Product {
	t.Helper()
	category := MustCreateCategory(t, conn)
	brand := MustCreateBrand(t, conn)
	suffix := uuid.NewString()[:8]
	product := &models.Product{
		CategoryID:    category.ID,
		BrandID:       brand.ID,
		Name:          "Product " + suffix,
		Slug:          "product-" + suffix,
		Description:   "test product",
		Price:         decimal.RequireFromString("10.00"),
		StockQuantity: stock,
		SKU:           "SKU-" + strings.ToUpper(suffix),
		IsAvailable:   true,
	}
	for _, opt := range opts {
		opt(product)
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}
