package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	// CartSessionHeader carries the anonymous cart key in both directions.
	CartSessionHeader = "X-Cart-Session"
	// CartSessionCookie is the cookie alternative to CartSessionHeader.
	CartSessionCookie = "cart_session"

	maxSessionKeyLen = 64
	cartCookieMaxAge = 60 * 60 * 24 * 30
)

// CartOwner resolves whose cart the request addresses and stores it in the
// context. It must run after OptionalAuth: an authenticated caller always
// owns the user cart. Anonymous callers are identified by CartSessionHeader
// or CartSessionCookie; when neither is sent a key is minted and returned on
// the response.
func CartOwner(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if userID, ok := UserUUIDFromContext(ctx); ok {
				next.ServeHTTP(w, r.WithContext(WithCartOwner(ctx, cart.UserOwner(userID))))
				return
			}

			key := SessionKeyFromRequest(r)
			if len(key) > maxSessionKeyLen {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "cart session key is too long"))
				return
			}
			if key == "" {
				key = uuid.NewString()
				if logg != nil {
					logg.Info(logg.WithField(ctx, "cart_session", key), "cart.session.minted")
				}
			}
			w.Header().Set(CartSessionHeader, key)
			http.SetCookie(w, &http.Cookie{
				Name:     CartSessionCookie,
				Value:    key,
				Path:     "/",
				MaxAge:   cartCookieMaxAge,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})

			next.ServeHTTP(w, r.WithContext(WithCartOwner(ctx, cart.SessionOwner(key))))
		})
	}
}

// SessionKeyFromRequest returns the anonymous cart key, header first.
func SessionKeyFromRequest(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(CartSessionHeader)); key != "" {
		return key
	}
	if cookie, err := r.Cookie(CartSessionCookie); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}
