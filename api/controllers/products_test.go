package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	productsvc "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/reviews"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
)

type catalogEnvelope struct {
	Data  json.RawMessage `json:"data"`
	Error struct {
		Code string `json:"code"`
	} `json:"error"`
}

type catalogAPI struct {
	t       *testing.T
	conn    *gorm.DB
	handler http.Handler
}

// withUser stands in for the auth middleware when a test sends X-Test-User.
func withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Test-User"); id != "" {
			r = r.WithContext(middleware.WithUserID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func newCatalogAPI(t *testing.T) *catalogAPI {
	t.Helper()
	conn := dbtest.Open(t)
	client := db.FromGorm(conn)
	products, err := productsvc.NewService(productsvc.NewRepository(conn), client)
	require.NoError(t, err)
	reviewSvc, err := reviews.NewService(reviews.NewRepository(conn), client, products)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(withUser)
	r.Get("/products/", ProductList(products, nil))
	r.Get("/products/on_sale/", ProductOnSale(products, nil))
	r.Get("/products/{id}/", ProductDetail(products, nil))
	r.Post("/products/", AdminCreateProduct(products, nil))
	r.Patch("/products/{id}/", AdminUpdateProduct(products, nil))
	r.Delete("/products/{id}/", AdminDeleteProduct(products, nil))
	r.Get("/categories/", CategoryTree(products, nil))
	r.Post("/categories/", AdminCreateCategory(products, nil))
	r.Get("/reviews/", ReviewList(reviewSvc, nil))
	r.Post("/reviews/", ReviewCreate(reviewSvc, nil))
	r.Patch("/reviews/{id}/", ReviewUpdate(reviewSvc, nil))
	r.Delete("/reviews/{id}/", ReviewDelete(reviewSvc, nil))
	return &catalogAPI{t: t, conn: conn, handler: r}
}

func (a *catalogAPI) do(method, path, body string, user uuid.UUID) (*httptest.ResponseRecorder, catalogEnvelope) {
	a.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if user != uuid.Nil {
		req.Header.Set("X-Test-User", user.String())
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var env catalogEnvelope
	if rec.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestAdminCreateProductAndDetail(t *testing.T) {
	api := newCatalogAPI(t)
	category := dbtest.MustCreateCategory(t, api.conn)
	brand := dbtest.MustCreateBrand(t, api.conn)

	body := fmt.Sprintf(`{
		"category_id": %q,
		"brand_id": %q,
		"name": "Mechanical Keyboard",
		"description": "tactile switches",
		"price": "120.00",
		"discount_price": "90.00",
		"stock_quantity": 4,
		"sku": "KB-100",
		"specifications": [{"name": "Layout", "value": "ANSI"}]
	}`, category.ID, brand.ID)
	rec, env := api.do(http.MethodPost, "/products/", body, uuid.Nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created productsvc.ProductDTO
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "mechanical-keyboard", created.Slug)
	assert.Equal(t, 25, created.DiscountPercent)
	assert.True(t, created.IsAvailable)
	require.Len(t, created.Specifications, 1)

	rec, env = api.do(http.MethodGet, "/products/"+created.ID.String()+"/", "", uuid.Nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail productsvc.ProductDTO
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	assert.Equal(t, 1, detail.ViewsCount)

	rec, env = api.do(http.MethodGet, "/products/on_sale/", "", uuid.Nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sale []productsvc.ProductListItemDTO
	require.NoError(t, json.Unmarshal(env.Data, &sale))
	require.Len(t, sale, 1)
	assert.Equal(t, created.ID, sale[0].ID)
}

func TestAdminCreateProductValidation(t *testing.T) {
	api := newCatalogAPI(t)
	category := dbtest.MustCreateCategory(t, api.conn)
	brand := dbtest.MustCreateBrand(t, api.conn)

	body := fmt.Sprintf(`{"category_id": %q, "brand_id": %q, "name": "Mechanical Keyboard", "description": "x", "price": "10", "stock_quantity": 1, "sku": "kb 100"}`, category.ID, brand.ID)
	rec, env := api.do(http.MethodPost, "/products/", body, uuid.Nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestProductDetailUnknownAndDeleted(t *testing.T) {
	api := newCatalogAPI(t)
	product := dbtest.MustCreateProduct(t, api.conn, 2)

	rec, _ := api.do(http.MethodGet, "/products/"+uuid.NewString()+"/", "", uuid.Nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = api.do(http.MethodGet, "/products/not-a-uuid/", "", uuid.Nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = api.do(http.MethodDelete, "/products/"+product.ID.String()+"/", "", uuid.Nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = api.do(http.MethodGet, "/products/"+product.ID.String()+"/", "", uuid.Nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCategoryTreeNestsChildren(t *testing.T) {
	api := newCatalogAPI(t)

	rec, env := api.do(http.MethodPost, "/categories/", `{"name": "Peripherals"}`, uuid.Nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var parent productsvc.CategoryDTO
	require.NoError(t, json.Unmarshal(env.Data, &parent))

	rec, _ = api.do(http.MethodPost, "/categories/", fmt.Sprintf(`{"name": "Keyboards", "parent_id": %q}`, parent.ID), uuid.Nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, env = api.do(http.MethodGet, "/categories/", "", uuid.Nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tree []productsvc.CategoryDTO
	require.NoError(t, json.Unmarshal(env.Data, &tree))
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, "keyboards", tree[0].Children[0].Slug)
}

func TestReviewLifecycle(t *testing.T) {
	api := newCatalogAPI(t)
	product := dbtest.MustCreateProduct(t, api.conn, 1)
	author := dbtest.MustCreateUser(t, api.conn)
	stranger := dbtest.MustCreateUser(t, api.conn)
	body := fmt.Sprintf(`{"product_id": %q, "rating": 4, "comment": "solid"}`, product.ID)

	rec, _ := api.do(http.MethodPost, "/reviews/", body, uuid.Nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, env := api.do(http.MethodPost, "/reviews/", body, author.ID)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created reviews.ReviewDTO
	require.NoError(t, json.Unmarshal(env.Data, &created))

	rec, _ = api.do(http.MethodPost, "/reviews/", body, author.ID)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, env = api.do(http.MethodGet, "/reviews/?product="+product.ID.String()+"&rating=4", "", uuid.Nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []reviews.ReviewDTO
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 1)

	rec, _ = api.do(http.MethodGet, "/reviews/?rating=9", "", uuid.Nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	path := "/reviews/" + created.ID.String() + "/"
	// Editing someone else's review looks like a missing review.
	rec, _ = api.do(http.MethodPatch, path, `{"rating": 1}`, stranger.ID)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = api.do(http.MethodPatch, path, `{"rating": 2}`, author.ID)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated reviews.ReviewDTO
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, 2, updated.Rating)

	rec, _ = api.do(http.MethodDelete, path, "", author.ID)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
