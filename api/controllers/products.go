package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	productsvc "github.com/angelmondragon/storefront-backend/internal/products"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type specRequest struct {
	Name  string `json:"name" validate:"required,max=50"`
	Value string `json:"value" validate:"required,max=50"`
}

type createProductRequest struct {
	CategoryID    uuid.UUID        `json:"category_id" validate:"required"`
	BrandID       uuid.UUID        `json:"brand_id" validate:"required"`
	Name          string           `json:"name" validate:"required,min=5,max=100"`
	Description   string           `json:"description" validate:"required"`
	Price         decimal.Decimal  `json:"price"`
	DiscountPrice *decimal.Decimal `json:"discount_price,omitempty"`
	StockQuantity int              `json:"stock_quantity" validate:"gte=0"`
	SKU           string           `json:"sku" validate:"required,sku"`
	IsAvailable   *bool            `json:"is_available,omitempty"`
	Specs         []specRequest    `json:"specifications,omitempty" validate:"omitempty,dive"`
}

func (r createProductRequest) toInput() productsvc.CreateProductInput {
	available := true
	if r.IsAvailable != nil {
		available = *r.IsAvailable
	}
	return productsvc.CreateProductInput{
		CategoryID:    r.CategoryID,
		BrandID:       r.BrandID,
		Name:          r.Name,
		Description:   r.Description,
		Price:         r.Price,
		DiscountPrice: r.DiscountPrice,
		StockQuantity: r.StockQuantity,
		SKU:           r.SKU,
		IsAvailable:   available,
		Specs:         toSpecInputs(r.Specs),
	}
}

type updateProductRequest struct {
	CategoryID    *uuid.UUID       `json:"category_id,omitempty"`
	BrandID       *uuid.UUID       `json:"brand_id,omitempty"`
	Name          *string          `json:"name,omitempty" validate:"omitempty,min=5,max=100"`
	Description   *string          `json:"description,omitempty"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	DiscountPrice *decimal.Decimal `json:"discount_price,omitempty"`
	ClearDiscount bool             `json:"clear_discount,omitempty"`
	StockQuantity *int             `json:"stock_quantity,omitempty" validate:"omitempty,gte=0"`
	SKU           *string          `json:"sku,omitempty" validate:"omitempty,sku"`
	IsAvailable   *bool            `json:"is_available,omitempty"`
	Specs         *[]specRequest   `json:"specifications,omitempty" validate:"omitempty"`
}

func (r updateProductRequest) toInput() productsvc.UpdateProductInput {
	input := productsvc.UpdateProductInput{
		CategoryID:    r.CategoryID,
		BrandID:       r.BrandID,
		Name:          r.Name,
		Description:   r.Description,
		Price:         r.Price,
		DiscountPrice: r.DiscountPrice,
		ClearDiscount: r.ClearDiscount,
		StockQuantity: r.StockQuantity,
		SKU:           r.SKU,
		IsAvailable:   r.IsAvailable,
	}
	if r.Specs != nil {
		specs := toSpecInputs(*r.Specs)
		input.Specs = &specs
	}
	return input
}

func toSpecInputs(specs []specRequest) []productsvc.SpecInput {
	out := make([]productsvc.SpecInput, 0, len(specs))
	for _, spec := range specs {
		out = append(out, productsvc.SpecInput{Name: spec.Name, Value: spec.Value})
	}
	return out
}

// ProductList returns the catalog, newest first.
func ProductList(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return productListing(svc, logg, productsvc.Service.ListProducts)
}

// ProductPopular returns the most viewed products.
func ProductPopular(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return productListing(svc, logg, productsvc.Service.PopularProducts)
}

// ProductOnSale returns discounted products.
func ProductOnSale(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return productListing(svc, logg, productsvc.Service.OnSaleProducts)
}

func productListing(svc productsvc.Service, logg *logger.Logger, list func(productsvc.Service, context.Context) ([]productsvc.ProductListItemDTO, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		products, err := list(svc, r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, products)
	}
}

// ProductDetail returns one product and counts the view.
func ProductDetail(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.GetProduct(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// AdminCreateProduct handles product creation for staff users.
func AdminCreateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.CreateProduct(r.Context(), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

// AdminUpdateProduct applies a partial update.
func AdminUpdateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.UpdateProduct(r.Context(), id, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// AdminDeleteProduct removes a product; its cart lines and reviews cascade.
func AdminDeleteProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteProduct(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}
