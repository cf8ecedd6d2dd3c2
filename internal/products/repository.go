package product

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// PopularLimit caps the popular listing.
const PopularLimit = 10

// Repository wires together all catalog persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByID loads the product without associations.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProduct reads the product on the caller's transaction. The cart uses
// it to check stock while holding its own cart lock.
func (r *Repository) GetProduct(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Product, error) {
	return r.WithTx(tx).FindByID(ctx, id)
}

// GetProductDetail loads the product with category, brand and specs.
func (r *Repository) GetProductDetail(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Category").
		Preload("Brand").
		Preload("Specs", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC").Order("name ASC")
		}).
		First(&product, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListProducts returns every product, newest first.
func (r *Repository) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := r.listQuery(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Find(&products).Error
	return products, err
}

// ListPopular returns the most viewed products.
func (r *Repository) ListPopular(ctx context.Context, limit int) ([]models.Product, error) {
	if limit <= 0 {
		limit = PopularLimit
	}
	var products []models.Product
	err := r.listQuery(ctx).
		Order("views_count DESC").
		Order("created_at DESC").
		Limit(limit).
		Find(&products).Error
	return products, err
}

// ListOnSale returns products that carry a discount price.
func (r *Repository) ListOnSale(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := r.listQuery(ctx).
		Where("discount_price IS NOT NULL").
		Order("created_at DESC").
		Find(&products).Error
	return products, err
}

func (r *Repository) listQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Category").Preload("Brand")
}

// CreateProduct inserts the product together with its specs.
func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// UpdateProduct saves the product columns; associations are left alone.
func (r *Repository) UpdateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Omit(gormAssociations...).Save(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

var gormAssociations = []string{"Category", "Brand", "Specs"}

// DeleteProduct removes the product; specs, reviews and cart lines cascade.
func (r *Repository) DeleteProduct(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id)
	return res.RowsAffected, res.Error
}

// ReplaceSpecs replaces all specs of the product.
func (r *Repository) ReplaceSpecs(ctx context.Context, productID uuid.UUID, specs []models.ProductSpec) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("product_id = ?", productID).Delete(&models.ProductSpec{}).Error; err != nil {
		return err
	}
	if len(specs) == 0 {
		return nil
	}
	return tx.Create(&specs).Error
}

// IncrementViews bumps views_count in a single statement.
func (r *Repository) IncrementViews(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		UpdateColumn("views_count", gorm.Expr("views_count + ?", 1))
	return res.RowsAffected, res.Error
}

// ProductSlugExists reports whether a product other than excludeID uses slug.
func (r *Repository) ProductSlugExists(ctx context.Context, slug string, excludeID uuid.UUID) (bool, error) {
	return r.slugExists(ctx, &models.Product{}, slug, excludeID)
}

// CategorySlugExists reports whether a category already uses slug.
func (r *Repository) CategorySlugExists(ctx context.Context, slug string) (bool, error) {
	return r.slugExists(ctx, &models.Category{}, slug, uuid.Nil)
}

// BrandSlugExists reports whether a brand already uses slug.
func (r *Repository) BrandSlugExists(ctx context.Context, slug string) (bool, error) {
	return r.slugExists(ctx, &models.Brand{}, slug, uuid.Nil)
}

func (r *Repository) slugExists(ctx context.Context, model any, slug string, excludeID uuid.UUID) (bool, error) {
	query := r.db.WithContext(ctx).Model(model).Where("slug = ?", slug)
	if excludeID != uuid.Nil {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ReviewStats returns the review count and the integer-truncated average
// rating of the product. A product without reviews averages 0.
func (r *Repository) ReviewStats(ctx context.Context, productID uuid.UUID) (int64, int, error) {
	var row struct {
		Reviews int64
		Total   int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Select("COUNT(*) AS reviews, COALESCE(SUM(rating), 0) AS total").
		Where("product_id = ?", productID).
		Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	if row.Reviews == 0 {
		return 0, 0, nil
	}
	return row.Reviews, int(row.Total / row.Reviews), nil
}

// CountReviews returns the number of reviews per product for the given ids.
func (r *Repository) CountReviews(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64, len(productIDs))
	if len(productIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		ProductID uuid.UUID
		Reviews   int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Select("product_id, COUNT(*) AS reviews").
		Where("product_id IN ?", productIDs).
		Group("product_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.ProductID] = row.Reviews
	}
	return counts, nil
}

// SetAverageRating stores the cached rating without touching updated_at.
func (r *Repository) SetAverageRating(ctx context.Context, productID uuid.UUID, rating int) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		UpdateColumn("average_rating", rating).Error
}

// ListActiveCategories returns active categories ordered by name.
func (r *Repository) ListActiveCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&categories).Error
	return categories, err
}

// FindCategoryByID loads a category.
func (r *Repository) FindCategoryByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).First(&category, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// CreateCategory inserts a category.
func (r *Repository) CreateCategory(ctx context.Context, category *models.Category) (*models.Category, error) {
	if err := r.db.WithContext(ctx).Create(category).Error; err != nil {
		return nil, err
	}
	return category, nil
}

// ListActiveBrands returns active brands ordered by name.
func (r *Repository) ListActiveBrands(ctx context.Context) ([]models.Brand, error) {
	var brands []models.Brand
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&brands).Error
	return brands, err
}

// FindBrandByID loads a brand.
func (r *Repository) FindBrandByID(ctx context.Context, id uuid.UUID) (*models.Brand, error) {
	var brand models.Brand
	if err := r.db.WithContext(ctx).First(&brand, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &brand, nil
}

// CreateBrand inserts a brand.
func (r *Repository) CreateBrand(ctx context.Context, brand *models.Brand) (*models.Brand, error) {
	if err := r.db.WithContext(ctx).Create(brand).Error; err != nil {
		return nil, err
	}
	return brand, nil
}
