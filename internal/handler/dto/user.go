// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/facturo/facturo/internal/model"
)

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	AccountName          string  `json:"account_name,omitempty"`
	Email                string  `json:"email"`
	Password             string  `json:"password"`
	PasswordConfirmation *string `json:"password_confirmation,omitempty"`
	FirstName            string  `json:"first_name"`
	LastName             string  `json:"last_name"`
	Phone                string  `json:"phone,omitempty"`
	State                string  `json:"state,omitempty"`
	CompanyName          string  `json:"company_name,omitempty"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateAccountRequest is the body of PATCH /auth/account.
type UpdateAccountRequest struct {
	FirstName   *string `json:"first_name,omitempty"`
	LastName    *string `json:"last_name,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	State       *string `json:"state,omitempty"`
	CompanyName *string `json:"company_name,omitempty"`

	CurrentPassword      string  `json:"current_password,omitempty"`
	Password             string  `json:"password,omitempty"`
	PasswordConfirmation *string `json:"password_confirmation,omitempty"`
}

// DeleteAccountRequest is the body of DELETE /auth/account.
type DeleteAccountRequest struct {
	CurrentPassword string `json:"current_password"`
}

// CreateUserRequest is the body of POST /api/v1/users.
type CreateUserRequest struct {
	Email                string  `json:"email"`
	Password             string  `json:"password,omitempty"`
	PasswordConfirmation *string `json:"password_confirmation,omitempty"`
	FirstName            string  `json:"first_name"`
	LastName             string  `json:"last_name"`
	Phone                string  `json:"phone,omitempty"`
	State                string  `json:"state,omitempty"`
	CompanyName          string  `json:"company_name,omitempty"`
	Admin                bool    `json:"admin,omitempty"`
	Active               *bool   `json:"active,omitempty"`
}

// UpdateUserRequest is the body of PATCH /api/v1/users/{id}.
// An account_id field, if sent, is ignored.
type UpdateUserRequest struct {
	Email                *string `json:"email,omitempty"`
	FirstName            *string `json:"first_name,omitempty"`
	LastName             *string `json:"last_name,omitempty"`
	Phone                *string `json:"phone,omitempty"`
	State                *string `json:"state,omitempty"`
	CompanyName          *string `json:"company_name,omitempty"`
	Admin                *bool   `json:"admin,omitempty"`
	Active               *bool   `json:"active,omitempty"`
	Password             *string `json:"password,omitempty"`
	PasswordConfirmation *string `json:"password_confirmation,omitempty"`
}

// UserResponse represents a user in API responses.
type UserResponse struct {
	ID          string    `json:"id"`
	AccountID   *string   `json:"account_id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	FullName    string    `json:"full_name"`
	Phone       string    `json:"phone,omitempty"`
	State       string    `json:"state,omitempty"`
	CompanyName string    `json:"company_name,omitempty"`
	Admin       bool      `json:"admin"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AccountResponse names the tenant a user belongs to.
type AccountResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RegisterResponse is returned by POST /auth/register.
type RegisterResponse struct {
	Message string           `json:"message"`
	User    UserResponse     `json:"user"`
	Account *AccountResponse `json:"account,omitempty"`
}

// LoginResponse is returned by POST /auth/login.
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// UserEnvelope wraps a single user. Account is set by /auth/validate.
type UserEnvelope struct {
	User    UserResponse     `json:"user"`
	Account *AccountResponse `json:"account,omitempty"`
}

// MessageResponse carries a human-readable confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// CreatedResponse is returned when a resource is created.
type CreatedResponse struct {
	ID string `json:"id"`
}

// OKResponse acknowledges an update.
type OKResponse struct {
	OK bool `json:"ok"`
}

// AccountFromModel converts an account into its API shape. A nil account
// stays nil.
func AccountFromModel(a *model.Account) *AccountResponse {
	if a == nil {
		return nil
	}
	return &AccountResponse{ID: a.ID, Name: a.Name}
}

// UserFromModel converts a domain user into its API shape.
func UserFromModel(u *model.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		AccountID:   u.AccountID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		FullName:    u.FullName(),
		Phone:       u.Phone,
		State:       u.State,
		CompanyName: u.CompanyName,
		Admin:       u.Admin,
		Active:      u.Active,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// UsersFromModel converts a list of users.
func UsersFromModel(users []*model.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, UserFromModel(u))
	}
	return out
}
