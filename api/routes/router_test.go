package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/reviews"
	"github.com/angelmondragon/storefront-backend/internal/users"
	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error {
	return p.err
}

type stubAuthService struct{}

func (stubAuthService) Login(ctx context.Context, req auth.LoginRequest, cartSessionKey string) (*auth.LoginResponse, error) {
	return nil, fmt.Errorf("not implemented")
}

type stubRegisterService struct{}

func (stubRegisterService) Register(ctx context.Context, req auth.RegisterRequest) (*users.UserDTO, error) {
	return nil, fmt.Errorf("not implemented")
}

// stubUsersService is only reached through routes that never call it.
type stubUsersService struct {
	users.Service
}

type stubSessionManager struct{}

func (stubSessionManager) HasSession(ctx context.Context, accessID string) (bool, error) {
	return true, nil
}

func (stubSessionManager) Rotate(ctx context.Context, userID uuid.UUID, oldAccessID, provided string) (string, string, error) {
	return "", "", nil
}

func (stubSessionManager) Revoke(ctx context.Context, userID uuid.UUID, accessID string) error {
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:                 "secret",
			Issuer:                 "issuer",
			ExpirationMinutes:      60,
			RefreshTokenTTLMinutes: 120,
		},
		CORS: config.CORSConfig{AllowedOrigins: []string{"https://shop.example.com"}},
	}
}

type testRouter struct {
	cfg     *config.Config
	conn    *gorm.DB
	handler http.Handler
}

func newTestRouter(t *testing.T, dbPinger db.Pinger) *testRouter {
	t.Helper()
	cfg := testConfig()
	conn := dbtest.Open(t)
	client := db.FromGorm(conn)
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: "debug", Output: io.Discard})

	productRepo := product.NewRepository(conn)
	productService, err := product.NewService(productRepo, client)
	if err != nil {
		t.Fatalf("product service: %v", err)
	}
	reviewService, err := reviews.NewService(reviews.NewRepository(conn), client, productService)
	if err != nil {
		t.Fatalf("review service: %v", err)
	}
	reg := prometheus.NewRegistry()
	cartService, err := cart.NewService(cart.ServiceParams{
		Repo:    cart.NewRepository(conn),
		Tx:      client,
		Catalog: productRepo,
		Metrics: metrics.NewCartMetrics(reg),
		Logger:  logg,
	})
	if err != nil {
		t.Fatalf("cart service: %v", err)
	}

	handler := NewRouter(
		cfg,
		logg,
		dbPinger,
		nil,
		Observability{Gatherer: reg, HTTP: metrics.NewHTTPMetrics(reg)},
		stubSessionManager{},
		stubAuthService{},
		stubRegisterService{},
		stubUsersService{},
		productService,
		reviewService,
		cartService,
	)
	return &testRouter{cfg: cfg, conn: conn, handler: handler}
}

func (tr *testRouter) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	tr.handler.ServeHTTP(rec, req)
	return rec
}

func buildToken(t *testing.T, cfg *config.Config, role enums.UserRole, userID uuid.UUID) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: userID,
		Role:   role,
		JTI:    session.NewAccessID(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestHealthRoutes(t *testing.T) {
	tr := newTestRouter(t, stubPinger{})
	if rec := tr.do(t, http.MethodGet, "/health/live", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected live 200 got %d", rec.Code)
	}
	if rec := tr.do(t, http.MethodGet, "/health/ready", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected ready 200 got %d", rec.Code)
	}

	down := newTestRouter(t, stubPinger{err: fmt.Errorf("connection refused")})
	rec := down.do(t, http.MethodGet, "/health/ready", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected ready 503 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"db"`) {
		t.Fatalf("expected failing db check in body: %s", rec.Body.String())
	}
}

func TestMetricsEndpointExposesRouteCounters(t *testing.T) {
	tr := newTestRouter(t, stubPinger{})
	tr.do(t, http.MethodGet, "/health/live", "", nil)

	rec := tr.do(t, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected metrics 200 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `http_requests_total{method="GET",route="/health/live",status="200"} 1`) {
		t.Fatalf("expected live route counter, got:\n%s", rec.Body.String())
	}
}

func TestCatalogWritesRequireAdmin(t *testing.T) {
	tr := newTestRouter(t, stubPinger{})
	body := `{"name":"Keyboards"}`

	if rec := tr.do(t, http.MethodPost, "/api/products/category/", body, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", rec.Code)
	}

	customer := buildToken(t, tr.cfg, enums.UserRoleCustomer, uuid.New())
	if rec := tr.do(t, http.MethodPost, "/api/products/category/", body, bearer(customer)); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer got %d", rec.Code)
	}

	admin := buildToken(t, tr.cfg, enums.UserRoleAdmin, uuid.New())
	if rec := tr.do(t, http.MethodPost, "/api/products/category/", body, bearer(admin)); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for admin got %d: %s", rec.Code, rec.Body.String())
	}

	if rec := tr.do(t, http.MethodGet, "/api/products/category/", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected public category tree got %d", rec.Code)
	}
}

func TestProductListingsArePublic(t *testing.T) {
	tr := newTestRouter(t, stubPinger{})
	p := dbtest.MustCreateProduct(t, tr.conn, 3)

	for _, path := range []string{
		"/api/products/product/",
		"/api/products/product/popular/",
		"/api/products/product/on_sale/",
		"/api/products/product/" + p.ID.String() + "/",
		"/api/products/brand/",
		"/api/products/reviews/?product=" + p.ID.String(),
	} {
		if rec := tr.do(t, http.MethodGet, path, "", nil); rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, rec.Code)
		}
	}

	if rec := tr.do(t, http.MethodDelete, "/api/products/product/"+p.ID.String()+"/", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected anonymous delete to be rejected got %d", rec.Code)
	}
}

func TestUserRoutesRequireAuth(t *testing.T) {
	tr := newTestRouter(t, stubPinger{})
	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/users/profile/"},
		{http.MethodPatch, "/api/users/profile/"},
		{http.MethodPost, "/api/users/change-password/"},
		{http.MethodPost, "/api/users/resend-verification/"},
		{http.MethodPost, "/api/products/reviews/"},
	} {
		if rec := tr.do(t, route.method, route.path, "{}", nil); rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401 got %d", route.method, route.path, rec.Code)
		}
	}
}

func TestGuestCartKeepsSessionAcrossRequests(t *testing.T) {
	tr := newTestRouter(t, stubPinger{})
	p := dbtest.MustCreateProduct(t, tr.conn, 5, dbtest.WithPrice("10.00"))

	rec := tr.do(t, http.MethodGet, "/api/cart/", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	key := rec.Header().Get(middleware.CartSessionHeader)
	if key == "" {
		t.Fatalf("expected a minted cart session")
	}

	headers := map[string]string{middleware.CartSessionHeader: key}
	rec = tr.do(t, http.MethodPost, "/api/cart/add/", fmt.Sprintf(`{"product_id":%q,"quantity":2}`, p.ID), headers)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}

	rec = tr.do(t, http.MethodGet, "/api/cart/", "", headers)
	var env struct {
		Data cart.Summary `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if env.Data.TotalQuantity != 2 || env.Data.TotalPrice.String() != "20" {
		t.Fatalf("unexpected summary %+v", env.Data)
	}

	other := tr.do(t, http.MethodGet, "/api/cart/", "", nil)
	if err := json.Unmarshal(other.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if env.Data.LineCount != 0 {
		t.Fatalf("a new session must start empty, got %+v", env.Data)
	}
}

func TestUserCartFollowsToken(t *testing.T) {
	tr := newTestRouter(t, stubPinger{})
	user := dbtest.MustCreateUser(t, tr.conn)
	p := dbtest.MustCreateProduct(t, tr.conn, 5)
	headers := bearer(buildToken(t, tr.cfg, enums.UserRoleCustomer, user.ID))

	rec := tr.do(t, http.MethodPost, "/api/cart/add/", fmt.Sprintf(`{"product_id":%q}`, p.ID), headers)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if key := rec.Header().Get(middleware.CartSessionHeader); key != "" {
		t.Fatalf("authenticated requests should not mint a session, got %q", key)
	}

	var count int64
	if err := tr.conn.Table("carts").Where("user_id = ?", user.ID).Count(&count).Error; err != nil {
		t.Fatalf("count carts: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one user cart got %d", count)
	}

	bad := map[string]string{"Authorization": "Bearer not-a-token"}
	if rec := tr.do(t, http.MethodGet, "/api/cart/", "", bad); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected invalid token to be rejected got %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	tr := newTestRouter(t, stubPinger{})
	rec := tr.do(t, http.MethodOptions, "/api/cart/add/", "", map[string]string{
		"Origin":                         "https://shop.example.com",
		"Access-Control-Request-Method":  http.MethodPost,
		"Access-Control-Request-Headers": middleware.CartSessionHeader,
	})
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://shop.example.com" {
		t.Fatalf("expected allowed origin header got %q", got)
	}
}
