package auth

import (
	"context"

	"github.com/facturo/facturo/internal/model"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// userContextKey is the context key for the authenticated user.
	userContextKey contextKey = "auth_user"
)

// ContextWithUser stores the authenticated user. Password and generation
// material are stripped so downstream handlers never see them.
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	safe := user.Clone()
	safe.PasswordHash = ""
	safe.TokenGenerationID = ""
	return context.WithValue(ctx, userContextKey, safe)
}

// UserFromContext retrieves the authenticated user.
// Returns nil if not present.
func UserFromContext(ctx context.Context) *model.User {
	user, ok := ctx.Value(userContextKey).(*model.User)
	if !ok {
		return nil
	}
	return user
}

// MustUserFromContext retrieves the authenticated user.
// Panics if not present (use only when the auth middleware has run).
func MustUserFromContext(ctx context.Context) *model.User {
	user := UserFromContext(ctx)
	if user == nil {
		panic("auth user not found - ensure auth middleware is applied")
	}
	return user
}

// UserIDFromContext is a convenience function to get the user ID from context.
// Returns empty string if not authenticated.
func UserIDFromContext(ctx context.Context) string {
	user := UserFromContext(ctx)
	if user == nil {
		return ""
	}
	return user.ID
}
