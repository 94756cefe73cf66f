// Package auth provides credential hashing, bearer token issuance and
// validation, and generation-based session revocation.
package auth

import "errors"

var (
	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidToken indicates a malformed, badly signed or expired token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is wrapped by ErrInvalidToken when exp has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrRevoked indicates a correctly signed token with a stale generation tag.
	ErrRevoked = errors.New("token revoked")
	// ErrUnauthorized is what callers see for any authentication failure.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInactive indicates the user exists but has been deactivated.
	ErrInactive = errors.New("inactive account")
	// ErrMissingSecret is returned when the token service has no signing secret.
	ErrMissingSecret = errors.New("token signing secret is not configured")
	// ErrNoGeneration indicates a user without a token-generation identifier.
	ErrNoGeneration = errors.New("user has no token generation id")
)
