package product

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const (
	minNameLength = 5
	maxNameLength = 100
	maxSpecLength = 50
)

var skuPattern = regexp.MustCompile(`^[A-Z0-9-]+$`)

// Service exposes catalog reads and admin writes.
type Service interface {
	ListProducts(ctx context.Context) ([]ProductListItemDTO, error)
	PopularProducts(ctx context.Context) ([]ProductListItemDTO, error)
	OnSaleProducts(ctx context.Context) ([]ProductListItemDTO, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	RecomputeAverageRating(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (int, error)

	CategoryTree(ctx context.Context) ([]CategoryDTO, error)
	CreateCategory(ctx context.Context, input CreateCategoryInput) (*CategoryDTO, error)
	ListBrands(ctx context.Context) ([]BrandDTO, error)
	CreateBrand(ctx context.Context, input CreateBrandInput) (*BrandDTO, error)
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	CategoryID    uuid.UUID
	BrandID       uuid.UUID
	Name          string
	Description   string
	Price         decimal.Decimal
	DiscountPrice *decimal.Decimal
	StockQuantity int
	SKU           string
	IsAvailable   bool
	Specs         []SpecInput
}

// UpdateProductInput carries a partial update; nil fields are left unchanged.
// Specs, when set, replaces the full list. ClearDiscount removes the discount.
type UpdateProductInput struct {
	CategoryID    *uuid.UUID
	BrandID       *uuid.UUID
	Name          *string
	Description   *string
	Price         *decimal.Decimal
	DiscountPrice *decimal.Decimal
	ClearDiscount bool
	StockQuantity *int
	SKU           *string
	IsAvailable   *bool
	Specs         *[]SpecInput
}

// SpecInput is one name/value attribute row.
type SpecInput struct {
	Name  string
	Value string
}

// CreateCategoryInput holds the payload to create a category.
type CreateCategoryInput struct {
	Name        string
	Description *string
	ParentID    *uuid.UUID
	IsActive    bool
}

// CreateBrandInput holds the payload to create a brand.
type CreateBrandInput struct {
	Name        string
	Description *string
	IsActive    bool
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo *Repository
	tx   txRunner
}

// NewService builds the catalog service.
func NewService(repo *Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) ListProducts(ctx context.Context) ([]ProductListItemDTO, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return newProductList(products), nil
}

func (s *service) PopularProducts(ctx context.Context) ([]ProductListItemDTO, error) {
	products, err := s.repo.ListPopular(ctx, PopularLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list popular products")
	}
	return newProductList(products), nil
}

func (s *service) OnSaleProducts(ctx context.Context) ([]ProductListItemDTO, error) {
	products, err := s.repo.ListOnSale(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products on sale")
	}
	return newProductList(products), nil
}

// GetProduct returns the detail view and counts the visit.
func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	updated, err := s.repo.IncrementViews(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment product views")
	}
	if updated == 0 {
		return nil, productNotFound()
	}
	return s.loadDetail(ctx, id)
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.SKU = strings.TrimSpace(input.SKU)
	if err := validateName(input.Name); err != nil {
		return nil, err
	}
	if err := validateSKU(input.SKU); err != nil {
		return nil, err
	}
	if err := validatePricing(input.Price, input.DiscountPrice); err != nil {
		return nil, err
	}
	if input.StockQuantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock_quantity must not be negative")
	}
	specs, err := buildSpecs(input.Specs)
	if err != nil {
		return nil, err
	}

	var createdID uuid.UUID
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := ensureCategory(ctx, txRepo, input.CategoryID); err != nil {
			return err
		}
		if err := ensureBrand(ctx, txRepo, input.BrandID); err != nil {
			return err
		}
		slug, err := uniqueSlug(ctx, input.Name, func(ctx context.Context, candidate string) (bool, error) {
			return txRepo.ProductSlugExists(ctx, candidate, uuid.Nil)
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "generate product slug")
		}

		product := &models.Product{
			CategoryID:    input.CategoryID,
			BrandID:       input.BrandID,
			Name:          input.Name,
			Slug:          slug,
			Description:   input.Description,
			Price:         input.Price,
			DiscountPrice: input.DiscountPrice,
			StockQuantity: input.StockQuantity,
			SKU:           input.SKU,
			IsAvailable:   input.IsAvailable,
			Specs:         specs,
		}
		created, err := txRepo.CreateProduct(ctx, product)
		if err != nil {
			return mapWriteError(err, "db: insert product")
		}
		createdID = created.ID
		return nil
	})
	if err != nil {
		return nil, asTyped(err, "create product")
	}
	return s.loadDetail(ctx, createdID)
}

func (s *service) UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		product, err := txRepo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return productNotFound()
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}

		if input.CategoryID != nil && *input.CategoryID != product.CategoryID {
			if err := ensureCategory(ctx, txRepo, *input.CategoryID); err != nil {
				return err
			}
		}
		if input.BrandID != nil && *input.BrandID != product.BrandID {
			if err := ensureBrand(ctx, txRepo, *input.BrandID); err != nil {
				return err
			}
		}
		if err := applyUpdateToProduct(product, input); err != nil {
			return err
		}

		if _, err := txRepo.UpdateProduct(ctx, product); err != nil {
			return mapWriteError(err, "db: update product")
		}
		if input.Specs != nil {
			specs, err := buildSpecs(*input.Specs)
			if err != nil {
				return err
			}
			for i := range specs {
				specs[i].ProductID = product.ID
			}
			if err := txRepo.ReplaceSpecs(ctx, product.ID, specs); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: replace product specs")
			}
		}
		return nil
	})
	if err != nil {
		return nil, asTyped(err, "update product")
	}
	return s.loadDetail(ctx, id)
}

func (s *service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	deleted, err := s.repo.DeleteProduct(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	if deleted == 0 {
		return productNotFound()
	}
	return nil
}

// RecomputeAverageRating refreshes the cached rating from the reviews table.
// It runs on tx when one is given so the review write and the new average
// commit together.
func (s *service) RecomputeAverageRating(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (int, error) {
	repo := s.repo.WithTx(tx)
	_, average, err := repo.ReviewStats(ctx, productID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate product rating")
	}
	if err := repo.SetAverageRating(ctx, productID, average); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store product rating")
	}
	return average, nil
}

func (s *service) CategoryTree(ctx context.Context) ([]CategoryDTO, error) {
	categories, err := s.repo.ListActiveCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	return buildCategoryTree(categories), nil
}

func (s *service) CreateCategory(ctx context.Context, input CreateCategoryInput) (*CategoryDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if input.ParentID != nil {
		if err := ensureCategory(ctx, s.repo, *input.ParentID); err != nil {
			return nil, err
		}
	}
	slug, err := uniqueSlug(ctx, name, s.repo.CategorySlugExists)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "generate category slug")
	}
	created, err := s.repo.CreateCategory(ctx, &models.Category{
		Name:        name,
		Slug:        slug,
		Description: input.Description,
		ParentID:    input.ParentID,
		IsActive:    input.IsActive,
	})
	if err != nil {
		return nil, asTyped(mapWriteError(err, "db: insert category"), "create category")
	}
	return NewCategoryDTO(created), nil
}

func (s *service) ListBrands(ctx context.Context) ([]BrandDTO, error) {
	brands, err := s.repo.ListActiveBrands(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list brands")
	}
	out := make([]BrandDTO, len(brands))
	for i := range brands {
		out[i] = *NewBrandDTO(&brands[i])
	}
	return out, nil
}

func (s *service) CreateBrand(ctx context.Context, input CreateBrandInput) (*BrandDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	slug, err := uniqueSlug(ctx, name, s.repo.BrandSlugExists)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "generate brand slug")
	}
	created, err := s.repo.CreateBrand(ctx, &models.Brand{
		Name:        name,
		Slug:        slug,
		Description: input.Description,
		IsActive:    input.IsActive,
	})
	if err != nil {
		return nil, asTyped(mapWriteError(err, "db: insert brand"), "create brand")
	}
	return NewBrandDTO(created), nil
}

func (s *service) loadDetail(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.GetProductDetail(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, productNotFound()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product detail")
	}
	reviews, _, err := s.repo.ReviewStats(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count product reviews")
	}
	return NewProductDTO(product, reviews), nil
}

func applyUpdateToProduct(product *models.Product, input UpdateProductInput) error {
	if input.CategoryID != nil {
		product.CategoryID = *input.CategoryID
	}
	if input.BrandID != nil {
		product.BrandID = *input.BrandID
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if err := validateName(name); err != nil {
			return err
		}
		product.Name = name
	}
	if input.Description != nil {
		product.Description = *input.Description
	}
	if input.SKU != nil {
		sku := strings.TrimSpace(*input.SKU)
		if err := validateSKU(sku); err != nil {
			return err
		}
		product.SKU = sku
	}
	if input.StockQuantity != nil {
		if *input.StockQuantity < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "stock_quantity must not be negative")
		}
		product.StockQuantity = *input.StockQuantity
	}
	if input.IsAvailable != nil {
		product.IsAvailable = *input.IsAvailable
	}
	if input.Price != nil {
		product.Price = *input.Price
	}
	switch {
	case input.ClearDiscount:
		product.DiscountPrice = nil
	case input.DiscountPrice != nil:
		discount := *input.DiscountPrice
		product.DiscountPrice = &discount
	}
	return validatePricing(product.Price, product.DiscountPrice)
}

func validateName(name string) error {
	length := utf8.RuneCountInString(name)
	if length < minNameLength || length > maxNameLength {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("name must be between %d and %d characters", minNameLength, maxNameLength))
	}
	return nil
}

func validateSKU(sku string) error {
	if !skuPattern.MatchString(sku) {
		return pkgerrors.New(pkgerrors.CodeValidation, "sku may only contain upper-case letters, digits and hyphens")
	}
	return nil
}

func validatePricing(price decimal.Decimal, discount *decimal.Decimal) error {
	if !price.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be greater than zero")
	}
	if discount == nil {
		return nil
	}
	if discount.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount_price must not be negative")
	}
	if !discount.LessThan(price) {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount_price must be lower than price")
	}
	return nil
}

func buildSpecs(inputs []SpecInput) ([]models.ProductSpec, error) {
	specs := make([]models.ProductSpec, 0, len(inputs))
	seen := make(map[string]struct{}, len(inputs))
	for i, input := range inputs {
		name := strings.TrimSpace(input.Name)
		value := strings.TrimSpace(input.Value)
		if name == "" || value == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "specification name and value are required")
		}
		if utf8.RuneCountInString(name) > maxSpecLength || utf8.RuneCountInString(value) > maxSpecLength {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("specification name and value must be at most %d characters", maxSpecLength))
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("duplicate specification %q", name))
		}
		seen[key] = struct{}{}
		specs = append(specs, models.ProductSpec{Name: name, Value: value, Position: i})
	}
	return specs, nil
}

func ensureCategory(ctx context.Context, repo *Repository, id uuid.UUID) error {
	if _, err := repo.FindCategoryByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeValidation, "category not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}
	return nil
}

func ensureBrand(ctx context.Context, repo *Repository, id uuid.UUID) error {
	if _, err := repo.FindBrandByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeValidation, "brand not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load brand")
	}
	return nil
}

func mapWriteError(err error, msg string) error {
	switch {
	case db.IsUniqueViolation(err, "sku"):
		return pkgerrors.New(pkgerrors.CodeConflict, "a product with this sku already exists")
	case db.IsUniqueViolation(err, ""):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "name or slug already in use")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
	}
}

func asTyped(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

func productNotFound() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}
