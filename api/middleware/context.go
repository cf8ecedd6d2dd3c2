package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/cart"
)

type contextKey uint8

const (
	ctxUserID contextKey = iota
	ctxRole
	ctxAccessID
	ctxCartOwner
)

func fromContext[T any](ctx context.Context, key contextKey) (T, bool) {
	var zero T
	if ctx == nil {
		return zero, false
	}
	v, ok := ctx.Value(key).(T)
	return v, ok
}

func withValue(ctx context.Context, key contextKey, v any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, v)
}

// UserIDFromContext is empty for anonymous requests.
func UserIDFromContext(ctx context.Context) string {
	id, _ := fromContext[string](ctx, ctxUserID)
	return id
}

// UserUUIDFromContext parses the authenticated user id; ok is false for
// anonymous requests.
func UserUUIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

func RoleFromContext(ctx context.Context) string {
	role, _ := fromContext[string](ctx, ctxRole)
	return role
}

// AccessIDFromContext is the jti of the access token that authenticated the
// request.
func AccessIDFromContext(ctx context.Context) string {
	id, _ := fromContext[string](ctx, ctxAccessID)
	return id
}

// CartOwnerFromContext returns the owner resolved by CartOwner.
func CartOwnerFromContext(ctx context.Context) (cart.Owner, bool) {
	return fromContext[cart.Owner](ctx, ctxCartOwner)
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return withValue(ctx, ctxUserID, userID)
}

func WithRole(ctx context.Context, role string) context.Context {
	return withValue(ctx, ctxRole, role)
}

func WithAccessID(ctx context.Context, accessID string) context.Context {
	return withValue(ctx, ctxAccessID, accessID)
}

func WithCartOwner(ctx context.Context, owner cart.Owner) context.Context {
	return withValue(ctx, ctxCartOwner, owner)
}
