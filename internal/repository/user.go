package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/facturo/facturo/internal/model"
	"github.com/facturo/facturo/internal/tenant"
)

const userColumns = `id, account_id, email, password_hash, first_name, last_name, phone, state,
	company_name, admin, active, token_generation_id, version, created_at, updated_at`

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.AccountID,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.Phone,
		&u.State,
		&u.CompanyName,
		&u.Admin,
		&u.Active,
		&u.TokenGenerationID,
		&u.Version,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func insertUser(ctx context.Context, db execer, u *model.User) error {
	if u.Version == 0 {
		u.Version = 1
	}
	_, err := db.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		u.ID,
		u.AccountID,
		model.NormalizeEmail(u.Email),
		u.PasswordHash,
		u.FirstName,
		u.LastName,
		u.Phone,
		u.State,
		u.CompanyName,
		u.Admin,
		u.Active,
		u.TokenGenerationID,
		u.Version,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// queryUser runs a single-row user query and maps no rows to ErrUserNotFound.
func (r *Repository) queryUser(ctx context.Context, op, query string, args ...any) (*model.User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		if isUniqueViolation(err) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return user, nil
}

// GetUserByID retrieves a user by ID without tenant filtering.
// Used by the authentication pipeline before a tenant is known.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return r.queryUser(ctx, "get user by ID",
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetUserByEmail retrieves a user by case-insensitive email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.queryUser(ctx, "get user by email",
		`SELECT `+userColumns+` FROM users WHERE lower(email) = $1`, model.NormalizeEmail(email))
}

// EnsureTokenGeneration assigns candidate as the generation id only when the
// user has none. The existing id wins otherwise, so concurrent first logins
// agree on one value.
func (r *Repository) EnsureTokenGeneration(ctx context.Context, userID, candidate string) (*model.User, error) {
	return r.queryUser(ctx, "ensure token generation", `
		UPDATE users
		SET token_generation_id = COALESCE(NULLIF(token_generation_id, ''), $2),
		    version = CASE WHEN token_generation_id = '' THEN version + 1 ELSE version END
		WHERE id = $1
		RETURNING `+userColumns, userID, candidate)
}

// RotateTokenGeneration replaces the generation id in a single statement.
// There is no read-modify-write, so a racing login either sees the old id
// (and its token dies with this rotation) or the new one.
func (r *Repository) RotateTokenGeneration(ctx context.Context, userID, generationID string) (*model.User, error) {
	return r.queryUser(ctx, "rotate token generation", `
		UPDATE users
		SET token_generation_id = $2, version = version + 1, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns, userID, generationID)
}

// UpdatePasswordHash stores a new hash. It leaves the generation id alone.
func (r *Repository) UpdatePasswordHash(ctx context.Context, userID, hash string) (*model.User, error) {
	return r.queryUser(ctx, "update password", `
		UPDATE users
		SET password_hash = $2, version = version + 1, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns, userID, hash)
}

// UpdateUser applies changes to the user's own record, unscoped by tenant.
func (r *Repository) UpdateUser(ctx context.Context, userID string, changes model.UserChanges) (*model.User, error) {
	set, args := changeSet(changes, 2)
	return r.queryUser(ctx, "update user", `
		UPDATE users
		SET `+set+`
		WHERE id = $1
		RETURNING `+userColumns, append([]any{userID}, args...)...)
}

// DeleteUserAccount removes the user and, when it was the last member,
// the account itself.
func (r *Repository) DeleteUserAccount(ctx context.Context, userID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var accountID *string
	err = tx.QueryRow(ctx, `DELETE FROM users WHERE id = $1 RETURNING account_id`, userID).Scan(&accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if accountID != nil {
		_, err = tx.Exec(ctx, `
			DELETE FROM accounts
			WHERE id = $1 AND NOT EXISTS (SELECT 1 FROM users WHERE account_id = $1)
		`, *accountID)
		if err != nil {
			return fmt.Errorf("failed to delete empty account: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit user deletion: %w", err)
	}
	return nil
}

// scopeFilter returns the account predicate for a scoped query, numbered
// from argIndex. Inside tenant.WithoutTenant the predicate is empty.
func scopeFilter(ctx context.Context, argIndex int) (string, []any, error) {
	accountID, unscoped, err := tenant.AccountFilter(ctx)
	if err != nil {
		return "", nil, err
	}
	if unscoped {
		return "", nil, nil
	}
	return fmt.Sprintf(" AND account_id = $%d", argIndex), []any{accountID}, nil
}

// ListUsers returns users of the bound tenant, oldest first.
func (r *Repository) ListUsers(ctx context.Context) ([]*model.User, error) {
	filter, args, err := scopeFilter(ctx, 1)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE TRUE`+filter+`
		ORDER BY created_at, id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// GetScopedUser retrieves a user of the bound tenant. A user of another
// tenant reads as ErrUserNotFound.
func (r *Repository) GetScopedUser(ctx context.Context, id string) (*model.User, error) {
	filter, args, err := scopeFilter(ctx, 2)
	if err != nil {
		return nil, err
	}
	return r.queryUser(ctx, "get scoped user",
		`SELECT `+userColumns+` FROM users WHERE id = $1`+filter,
		append([]any{id}, args...)...)
}

// CreateScopedUser inserts a user into the bound tenant. The account id on
// u is overwritten with the tenant's.
func (r *Repository) CreateScopedUser(ctx context.Context, u *model.User) error {
	accountID, unscoped, err := tenant.AccountFilter(ctx)
	if err != nil {
		return err
	}
	if !unscoped {
		u.AccountID = &accountID
	}
	return insertUser(ctx, r.pool, u)
}

// UpdateScopedUser applies changes to a user of the bound tenant.
func (r *Repository) UpdateScopedUser(ctx context.Context, id string, changes model.UserChanges) (*model.User, error) {
	set, args := changeSet(changes, 2)
	filter, filterArgs, err := scopeFilter(ctx, 2+len(args))
	if err != nil {
		return nil, err
	}

	all := append([]any{id}, args...)
	all = append(all, filterArgs...)
	return r.queryUser(ctx, "update scoped user", `
		UPDATE users
		SET `+set+`
		WHERE id = $1`+filter+`
		RETURNING `+userColumns, all...)
}

// DeleteScopedUser deletes a user of the bound tenant.
func (r *Repository) DeleteScopedUser(ctx context.Context, id string) error {
	filter, args, err := scopeFilter(ctx, 2)
	if err != nil {
		return err
	}

	result, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`+filter, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// changeSet renders the SET list for changes, numbering placeholders from
// argIndex. version and updated_at are always bumped.
func changeSet(c model.UserChanges, argIndex int) (string, []any) {
	sets := []string{"version = version + 1", "updated_at = now()"}
	var args []any

	add := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argIndex))
		args = append(args, value)
		argIndex++
	}

	if c.Email != nil {
		add("email", model.NormalizeEmail(*c.Email))
	}
	if c.FirstName != nil {
		add("first_name", *c.FirstName)
	}
	if c.LastName != nil {
		add("last_name", *c.LastName)
	}
	if c.Phone != nil {
		add("phone", *c.Phone)
	}
	if c.State != nil {
		add("state", *c.State)
	}
	if c.CompanyName != nil {
		add("company_name", *c.CompanyName)
	}
	if c.Admin != nil {
		add("admin", *c.Admin)
	}
	if c.Active != nil {
		add("active", *c.Active)
	}
	if c.PasswordHash != nil {
		add("password_hash", *c.PasswordHash)
	}

	return strings.Join(sets, ", "), args
}
