package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/facturo/facturo/internal/model"
	"github.com/facturo/facturo/internal/tenant"
)

// CreateAccountWithAdmin inserts an account and its first admin user in one
// transaction. It is the registration bootstrap and only runs inside
// tenant.WithoutTenant.
func (r *Repository) CreateAccountWithAdmin(ctx context.Context, account *model.Account, admin *model.User) error {
	if _, unscoped, err := tenant.AccountFilter(ctx); err != nil || !unscoped {
		return fmt.Errorf("create account outside bootstrap: %w", tenant.ErrNoTenant)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO accounts (id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`, account.ID, account.Name, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	admin.AccountID = &account.ID
	if err := insertUser(ctx, tx, admin); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit account: %w", err)
	}
	return nil
}

// GetAccountByID retrieves an account by its ID.
func (r *Repository) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	var a model.Account
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`, id).Scan(&a.ID, &a.Name, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account by ID: %w", err)
	}
	return &a, nil
}
