package model

import (
	"strings"
	"time"
)

// User is an authenticated principal. AccountID is nil only for root users
// that do not belong to any tenant.
type User struct {
	ID           string  `json:"id"`
	AccountID    *string `json:"account_id"`
	Email        string  `json:"email"`
	PasswordHash string  `json:"-"` // Never serialize
	FirstName    string  `json:"first_name"`
	LastName     string  `json:"last_name"`
	Phone        string  `json:"phone,omitempty"`
	State        string  `json:"state,omitempty"`
	CompanyName  string  `json:"company_name,omitempty"`
	Admin        bool    `json:"admin"`
	Active       bool    `json:"active"`

	// TokenGenerationID is embedded in every issued token. Replacing it
	// invalidates all tokens issued before the replacement.
	TokenGenerationID string `json:"-"`

	// Version is bumped by every row mutation.
	Version int64 `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// HasAccount reports whether the user belongs to a tenant.
func (u *User) HasAccount() bool {
	return u.AccountID != nil && *u.AccountID != ""
}

// AccountIDValue returns the account id or "" for root users.
func (u *User) AccountIDValue() string {
	if u.AccountID == nil {
		return ""
	}
	return *u.AccountID
}

// Clone returns a copy that does not share the AccountID pointer.
func (u *User) Clone() *User {
	c := *u
	if u.AccountID != nil {
		id := *u.AccountID
		c.AccountID = &id
	}
	return &c
}

// NormalizeEmail lower-cases and trims an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserChanges is a partial update. Nil fields are left untouched.
type UserChanges struct {
	Email        *string
	FirstName    *string
	LastName     *string
	Phone        *string
	State        *string
	CompanyName  *string
	Admin        *bool
	Active       *bool
	PasswordHash *string
}

// IsEmpty reports whether no field is set.
func (c UserChanges) IsEmpty() bool {
	return c.Email == nil && c.FirstName == nil && c.LastName == nil &&
		c.Phone == nil && c.State == nil && c.CompanyName == nil &&
		c.Admin == nil && c.Active == nil && c.PasswordHash == nil
}

// Apply copies the set fields onto u.
func (c UserChanges) Apply(u *User) {
	if c.Email != nil {
		u.Email = NormalizeEmail(*c.Email)
	}
	if c.FirstName != nil {
		u.FirstName = *c.FirstName
	}
	if c.LastName != nil {
		u.LastName = *c.LastName
	}
	if c.Phone != nil {
		u.Phone = *c.Phone
	}
	if c.State != nil {
		u.State = *c.State
	}
	if c.CompanyName != nil {
		u.CompanyName = *c.CompanyName
	}
	if c.Admin != nil {
		u.Admin = *c.Admin
	}
	if c.Active != nil {
		u.Active = *c.Active
	}
	if c.PasswordHash != nil {
		u.PasswordHash = *c.PasswordHash
	}
}
