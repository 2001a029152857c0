package auth

import (
	"context"

	"fintrack/internal/core"
)

type identityKey struct{}

// WithUser stores the authenticated user in ctx.
func WithUser(ctx context.Context, u core.User) context.Context {
	return context.WithValue(ctx, identityKey{}, u)
}

// UserFrom returns the user placed in ctx by the auth middleware.
func UserFrom(ctx context.Context) (core.User, bool) {
	u, ok := ctx.Value(identityKey{}).(core.User)
	return u, ok
}
