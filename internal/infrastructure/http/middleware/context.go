package middleware

import (
	"context"

	"github.com/testpulse-io/testpulse/internal/domain"
)

type contextKey string

const authContextKey contextKey = "auth"

// WithAuthContext injects the resolved auth context into the request context.
func WithAuthContext(ctx context.Context, ac domain.AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, ac)
}

// AuthContextFrom returns the resolved auth context, or (Anonymous, false)
// when the resolver has not run.
func AuthContextFrom(ctx context.Context) (domain.AuthContext, bool) {
	v := ctx.Value(authContextKey)
	if v == nil {
		return domain.Anonymous, false
	}
	ac, ok := v.(domain.AuthContext)
	if !ok {
		return domain.Anonymous, false
	}
	return ac, true
}
