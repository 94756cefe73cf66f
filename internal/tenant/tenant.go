// Package tenant binds the active account for a request to its context and
// exposes the filter every tenant-scoped query must apply.
//
// Scoping fails closed: a context that never had a scope bound cannot
// query scoped data. The only unscoped path is WithoutTenant, which
// callers must name explicitly.
package tenant

import (
	"context"
	"errors"

	"github.com/facturo/facturo/internal/model"
)

// ErrNoTenant is returned when a scoped query runs without an account bound.
var ErrNoTenant = errors.New("no tenant bound to request")

// Scope is the tenant of a single request. The zero value binds no tenant.
type Scope struct {
	accountID string
	unscoped  bool
	reason    string
}

// ForAccount binds the given account.
func ForAccount(accountID string) Scope {
	return Scope{accountID: accountID}
}

// None binds no tenant. Scoped queries under None fail with ErrNoTenant.
func None() Scope {
	return Scope{}
}

// Resolve derives the scope for an authenticated user.
func Resolve(user *model.User) Scope {
	if user == nil || !user.HasAccount() {
		return None()
	}
	return ForAccount(*user.AccountID)
}

// AccountID returns the bound account id, or "" when none is bound.
func (s Scope) AccountID() string {
	return s.accountID
}

// HasTenant reports whether an account is bound.
func (s Scope) HasTenant() bool {
	return s.accountID != ""
}

// Unscoped reports whether this scope was created by WithoutTenant.
func (s Scope) Unscoped() bool {
	return s.unscoped
}

// Reason is the label given to WithoutTenant, for logging.
func (s Scope) Reason() string {
	return s.reason
}

// Matches reports whether a row owned by accountID is visible in this scope.
func (s Scope) Matches(accountID *string) bool {
	if s.unscoped {
		return true
	}
	return s.HasTenant() && accountID != nil && *accountID == s.accountID
}

type contextKey struct{}

// WithScope returns a context carrying scope.
func WithScope(ctx context.Context, scope Scope) context.Context {
	return context.WithValue(ctx, contextKey{}, scope)
}

// FromContext returns the bound scope and whether one was bound at all.
func FromContext(ctx context.Context) (Scope, bool) {
	scope, ok := ctx.Value(contextKey{}).(Scope)
	return scope, ok
}

// WithoutTenant returns a context whose queries are not filtered by account.
// Reserved for inherently tenant-less operations such as organization
// bootstrap at registration. reason must be non-empty.
func WithoutTenant(ctx context.Context, reason string) context.Context {
	if reason == "" {
		panic("tenant: WithoutTenant requires a reason")
	}
	return WithScope(ctx, Scope{unscoped: true, reason: reason})
}

// AccountFilter returns the account id a scoped query must filter by.
// unscoped is true only inside WithoutTenant. A missing scope, or one with
// no tenant, yields ErrNoTenant.
func AccountFilter(ctx context.Context) (accountID string, unscoped bool, err error) {
	scope, ok := FromContext(ctx)
	if !ok {
		return "", false, ErrNoTenant
	}
	if scope.unscoped {
		return "", true, nil
	}
	if !scope.HasTenant() {
		return "", false, ErrNoTenant
	}
	return scope.accountID, false, nil
}
