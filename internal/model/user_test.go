package model

import "testing"

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"a@acme.com", "a@acme.com"},
		{"  A@Acme.COM ", "a@acme.com"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeEmail(tt.in); got != tt.want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUser_FullName(t *testing.T) {
	t.Parallel()

	u := &User{FirstName: "Juan", LastName: "Pérez"}
	if got := u.FullName(); got != "Juan Pérez" {
		t.Errorf("FullName() = %q", got)
	}

	u = &User{FirstName: "Solo"}
	if got := u.FullName(); got != "Solo" {
		t.Errorf("FullName() = %q, want trimmed", got)
	}
}

func TestUser_CloneDoesNotShareAccount(t *testing.T) {
	t.Parallel()

	acct := "acct-1"
	u := &User{ID: "u1", AccountID: &acct}
	c := u.Clone()
	*c.AccountID = "acct-2"

	if u.AccountIDValue() != "acct-1" {
		t.Errorf("original account changed to %q", u.AccountIDValue())
	}
}

func TestUserChanges_Apply(t *testing.T) {
	t.Parallel()

	email := "  New@Example.com"
	active := false
	u := &User{Email: "old@example.com", Active: true, Admin: true}

	changes := UserChanges{Email: &email, Active: &active}
	if changes.IsEmpty() {
		t.Fatal("expected non-empty changes")
	}
	changes.Apply(u)

	if u.Email != "new@example.com" {
		t.Errorf("Email = %q", u.Email)
	}
	if u.Active {
		t.Error("expected Active false")
	}
	if !u.Admin {
		t.Error("Admin must be untouched")
	}
	if !(UserChanges{}).IsEmpty() {
		t.Error("zero UserChanges should be empty")
	}
}
