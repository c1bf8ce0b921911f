package auth

import (
	"context"

	"github.com/goliatone/go-router"
)

var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// DefaultContextKey is the router locals key used by the access guard
const DefaultContextKey = "user"

// WithClaimsContext sets the AuthClaims in the given context
func WithClaimsContext(r context.Context, claims AuthClaims) context.Context {
	return context.WithValue(r, claimsCtxKey, claims)
}

// GetClaims extracts the AuthClaims from the standard context
func GetClaims(ctx context.Context) (AuthClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(AuthClaims)
	return raw, ok
}

// GetRouterClaims extracts the AuthClaims from the router context
func GetRouterClaims(ctx router.Context, key string) (AuthClaims, bool) {
	if key == "" {
		key = DefaultContextKey
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return nil, false
	}
	claims, ok := raw.(AuthClaims)
	return claims, ok
}

// GetRouterSession returns the session for the verified token stored by the
// access guard.
func GetRouterSession(ctx router.Context, key string) (Session, error) {
	claims, ok := GetRouterClaims(ctx, key)
	if !ok {
		return nil, ErrUnauthorized
	}
	return sessionFromAuthClaims(claims)
}
