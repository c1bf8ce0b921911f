package auth

import (
	"context"

	"github.com/goliatone/go-auth-signup/middleware/jwtware"
)

// ValidationListener runs after the guard accepted a session token
type ValidationListener = jwtware.ValidationListener

// ContextEnricherAdapter stores the session claims in the request context
func ContextEnricherAdapter(c context.Context, claims jwtware.AuthClaims) context.Context {
	authClaims, ok := claims.(AuthClaims)
	if !ok {
		return c
	}
	return WithClaimsContext(c, authClaims)
}

// RegisterValidationListeners appends listeners to cfg
func RegisterValidationListeners(cfg *jwtware.Config, listeners ...ValidationListener) {
	if cfg == nil || len(listeners) == 0 {
		return
	}
	cfg.ValidationListeners = append(cfg.ValidationListeners, listeners...)
}
