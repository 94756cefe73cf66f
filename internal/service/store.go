// Package service provides business logic for the application.
package service

import (
	"context"

	"github.com/facturo/facturo/internal/model"
)

// CredentialStore holds the lookups and writes that run before a tenant is
// resolved, or that only ever touch the caller's own record. None of these
// are filtered by tenant.
type CredentialStore interface {
	CreateAccountWithAdmin(ctx context.Context, account *model.Account, admin *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetAccountByID(ctx context.Context, id string) (*model.Account, error)
	EnsureTokenGeneration(ctx context.Context, userID, candidate string) (*model.User, error)
	RotateTokenGeneration(ctx context.Context, userID, generationID string) (*model.User, error)
	UpdatePasswordHash(ctx context.Context, userID, hash string) (*model.User, error)
	UpdateUser(ctx context.Context, userID string, changes model.UserChanges) (*model.User, error)
	DeleteUserAccount(ctx context.Context, userID string) error
}

// UserStore holds tenant-scoped user queries. Every method filters by the
// account bound to ctx and fails with tenant.ErrNoTenant when none is bound.
type UserStore interface {
	ListUsers(ctx context.Context) ([]*model.User, error)
	GetScopedUser(ctx context.Context, id string) (*model.User, error)
	CreateScopedUser(ctx context.Context, u *model.User) error
	UpdateScopedUser(ctx context.Context, id string, changes model.UserChanges) (*model.User, error)
	DeleteScopedUser(ctx context.Context, id string) error
}

// Store is the full persistence surface. Implemented by repository.Repository
// and memstore.Store.
type Store interface {
	CredentialStore
	UserStore
	Ping(ctx context.Context) error
}
