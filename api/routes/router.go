package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/cart"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	products "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/reviews"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(ctx context.Context, userID uuid.UUID, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, userID uuid.UUID, accessID string) error
}

// Observability carries the registry served at /metrics and the HTTP
// collectors recorded by the router.
type Observability struct {
	Gatherer prometheus.Gatherer
	HTTP     *metrics.HTTPMetrics
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	obs Observability,
	sessionManager sessionManager,
	authService auth.Service,
	registerService auth.RegisterService,
	userService users.Service,
	productService products.Service,
	reviewService reviews.Service,
	cartService cart.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.CORS(cfg.CORS),
		middleware.Logging(logg),
		middleware.Metrics(obs.HTTP),
	)

	deps := map[string]controllers.Pinger{}
	if dbP != nil {
		deps["db"] = dbP
	}
	if redisClient != nil {
		deps["redis"] = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps, logg))
	})
	if obs.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(obs.Gatherer, promhttp.HandlerOpts{}))
	}

	rateLimit := func(policy middleware.AuthRateLimitPolicy) func(http.Handler) http.Handler {
		if redisClient == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return middleware.AuthRateLimit(policy, redisClient, logg)
	}
	requireAuth := middleware.Auth(cfg.JWT, sessionManager, logg)
	requireAdmin := middleware.RequireRole(logg, enums.UserRoleAdmin)

	r.Route("/api/users", func(r chi.Router) {
		r.With(rateLimit(middleware.RegisterRateLimitPolicy(cfg.AuthRateLimit))).Post("/register/", controllers.AuthRegister(registerService, authService, logg))
		r.With(rateLimit(middleware.LoginRateLimitPolicy(cfg.AuthRateLimit))).Post("/login/", controllers.AuthLogin(authService, logg))
		r.Post("/logout/", controllers.AuthLogout(sessionManager, cfg.JWT, logg))
		r.Post("/token/refresh/", controllers.AuthRefresh(sessionManager, cfg.JWT, logg))
		r.Post("/verify-email/", controllers.UserVerifyEmail(userService, logg))
		r.With(rateLimit(middleware.PasswordResetRateLimitPolicy(cfg.AuthRateLimit))).Post("/password-reset/request/", controllers.UserPasswordResetRequest(userService, logg))
		r.Post("/password-reset/confirm/", controllers.UserPasswordResetConfirm(userService, logg))

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/profile/", controllers.UserProfile(userService, logg))
			r.Patch("/profile/", controllers.UserUpdateProfile(userService, logg))
			r.Post("/change-password/", controllers.UserChangePassword(userService, logg))
			r.Post("/resend-verification/", controllers.UserResendVerification(userService, logg))
		})
	})

	r.Route("/api/products", func(r chi.Router) {
		r.Route("/category", func(r chi.Router) {
			r.Get("/", controllers.CategoryTree(productService, logg))
			r.With(requireAuth, requireAdmin).Post("/", controllers.AdminCreateCategory(productService, logg))
		})
		r.Route("/brand", func(r chi.Router) {
			r.Get("/", controllers.BrandList(productService, logg))
			r.With(requireAuth, requireAdmin).Post("/", controllers.AdminCreateBrand(productService, logg))
		})
		r.Route("/product", func(r chi.Router) {
			r.Get("/", controllers.ProductList(productService, logg))
			r.Get("/popular/", controllers.ProductPopular(productService, logg))
			r.Get("/on_sale/", controllers.ProductOnSale(productService, logg))
			r.Get("/{id}/", controllers.ProductDetail(productService, logg))

			r.Group(func(r chi.Router) {
				r.Use(requireAuth, requireAdmin)
				r.Post("/", controllers.AdminCreateProduct(productService, logg))
				r.Patch("/{id}/", controllers.AdminUpdateProduct(productService, logg))
				r.Delete("/{id}/", controllers.AdminDeleteProduct(productService, logg))
			})
		})
		r.Route("/reviews", func(r chi.Router) {
			r.Get("/", controllers.ReviewList(reviewService, logg))
			r.Get("/{id}/", controllers.ReviewDetail(reviewService, logg))

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/", controllers.ReviewCreate(reviewService, logg))
				r.Patch("/{id}/", controllers.ReviewUpdate(reviewService, logg))
				r.Delete("/{id}/", controllers.ReviewDelete(reviewService, logg))
			})
		})
	})

	r.Route("/api/cart", func(r chi.Router) {
		r.Use(
			middleware.OptionalAuth(cfg.JWT, sessionManager, logg),
			middleware.CartOwner(logg),
		)
		r.Get("/", cartcontrollers.CartFetch(cartService, logg))
		r.Post("/add/", cartcontrollers.CartAddItem(cartService, logg))
		r.Post("/clear/", cartcontrollers.CartClear(cartService, logg))
		r.Patch("/items/{id}/", cartcontrollers.CartUpdateItem(cartService, logg))
		r.Delete("/items/{id}/", cartcontrollers.CartRemoveItem(cartService, logg))
	})

	return r
}
