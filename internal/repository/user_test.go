package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/facturo/facturo/internal/model"
	"github.com/facturo/facturo/internal/tenant"
)

func TestChangeSet(t *testing.T) {
	t.Parallel()

	name := "Ada"
	admin := false
	set, args := changeSet(model.UserChanges{FirstName: &name, Admin: &admin}, 2)

	want := "version = version + 1, updated_at = now(), first_name = $2, admin = $3"
	if set != want {
		t.Errorf("changeSet() = %q, want %q", set, want)
	}
	if len(args) != 2 || args[0] != "Ada" || args[1] != false {
		t.Errorf("changeSet() args = %v", args)
	}
}

func TestChangeSet_NormalizesEmail(t *testing.T) {
	t.Parallel()

	email := "  Mixed@Case.COM "
	_, args := changeSet(model.UserChanges{Email: &email}, 1)
	if len(args) != 1 || args[0] != "mixed@case.com" {
		t.Errorf("email arg = %v", args)
	}
}

func TestScopeFilter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	if _, _, err := scopeFilter(ctx, 2); !errors.Is(err, tenant.ErrNoTenant) {
		t.Errorf("unbound: expected ErrNoTenant, got %v", err)
	}

	clause, args, err := scopeFilter(tenant.WithScope(ctx, tenant.ForAccount("acct-a")), 3)
	if err != nil {
		t.Fatalf("scoped: %v", err)
	}
	if clause != " AND account_id = $3" || len(args) != 1 || args[0] != "acct-a" {
		t.Errorf("scoped clause = %q args = %v", clause, args)
	}

	clause, args, err = scopeFilter(tenant.WithoutTenant(ctx, "registration"), 2)
	if err != nil || clause != "" || args != nil {
		t.Errorf("unscoped clause = %q args = %v err = %v", clause, args, err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	if !isUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Error("23505 should be a unique violation")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Error("23503 is a foreign key violation")
	}
	if isUniqueViolation(errors.New("unique")) {
		t.Error("plain errors are not unique violations")
	}
}
